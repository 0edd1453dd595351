package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/reservation-engine-go/example/shared/shell"
	"github.com/AntonStoeckl/reservation-engine-go/reservation"
)

const (
	requestTimeout   = 2 * time.Second
	reportInterval   = 5 * time.Second
	queueSizeFactor  = 2
	verifyTxTimeout  = 30 * time.Second
	outcomeRetryable = "retries_exhausted"
)

var ErrCapacityInvariantViolated = errors.New("capacity invariant violated")

// ResourceStore is the part of a reservation store the simulation needs besides reservation.Store.
type ResourceStore interface {
	reservation.Store
	RegisterResource(ctx context.Context, resource reservation.Resource) error
}

// ReservationSimulation drives concurrent Create, CloseEarly and Extend requests against one store
// using a worker pool, and verifies the capacity invariant at the end.
type ReservationSimulation struct {
	store    ResourceStore
	resolver reservation.Resolver
	config   Config
	state    *SimulationState
	selector *ScenarioSelector
	metrics  reservation.MetricsCollector

	requestQueue chan Scenario
	wg           sync.WaitGroup

	mu                sync.Mutex
	outcomes          map[ScenarioType]map[string]int64
	requestCount      int64
	backpressureCount int64
	startTime         time.Time
}

// NewReservationSimulation creates a new ReservationSimulation.
func NewReservationSimulation(
	store ResourceStore,
	resolver reservation.Resolver,
	config Config,
	location *time.Location,
	metrics reservation.MetricsCollector,
) *ReservationSimulation {

	state := NewSimulationState()

	return &ReservationSimulation{
		store:        store,
		resolver:     resolver,
		config:       config,
		state:        state,
		selector:     NewScenarioSelector(state, config, location),
		metrics:      metrics,
		requestQueue: make(chan Scenario, config.Workers*queueSizeFactor),
		outcomes:     make(map[ScenarioType]map[string]int64),
	}
}

// Run registers the resources, runs the main phase for the configured duration or until ctx is done,
// and finally verifies that no resource is occupied beyond its capacity.
func (rs *ReservationSimulation) Run(ctx context.Context) error {
	log.Printf("Reservation Simulation starting with setup phase...")

	if err := rs.setup(ctx); err != nil {
		return fmt.Errorf("failed to set up resources: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, rs.config.Duration)
	defer cancel()

	rs.runMainSimulation(runCtx)
	rs.logFinalStats()

	verifyCtx, verifyCancel := context.WithTimeout(context.WithoutCancel(ctx), verifyTxTimeout)
	defer verifyCancel()

	return rs.verifyCapacityInvariant(verifyCtx)
}

func (rs *ReservationSimulation) setup(ctx context.Context) error {
	resources := make([]reservation.Resource, 0, rs.config.Resources)
	for i := 0; i < rs.config.Resources; i++ {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		resource := reservation.Resource{ID: id, Capacity: 1 + rand.IntN(rs.config.CapacityMax)} //nolint:gosec
		if registerErr := rs.store.RegisterResource(ctx, resource); registerErr != nil {
			return registerErr
		}

		resources = append(resources, resource)
	}

	holders := make([]reservation.HolderID, 0, rs.config.Holders)
	for i := 0; i < rs.config.Holders; i++ {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		holders = append(holders, id)
	}

	rs.state.SetPopulation(resources, holders)
	log.Printf("Registered %d resources (capacity 1-%d) for %d holders", len(resources), rs.config.CapacityMax, len(holders))

	return nil
}

// runMainSimulation executes the rate-limited request generation loop with a fixed worker pool.
func (rs *ReservationSimulation) runMainSimulation(ctx context.Context) {
	rs.mu.Lock()
	rs.startTime = time.Now()
	rs.mu.Unlock()

	// For rates >50 req/sec, batch multiple requests to avoid timer precision issues
	batchSize := 1
	batchInterval := time.Second / time.Duration(rs.config.Rate)

	if rs.config.Rate >= 50 {
		batchSize = rs.config.Rate / 10
		batchInterval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	log.Printf("Main simulation starting with %d requests/second (batch: %d req every %v), %d workers, goroutines: %d",
		rs.config.Rate, batchSize, batchInterval, rs.config.Workers, runtime.NumGoroutine())

	for i := 0; i < rs.config.Workers; i++ {
		rs.wg.Add(1)
		go rs.worker(ctx, i)
	}

	reporterDone := make(chan struct{})
	go rs.metricsReporter(ctx, reporterDone)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Main simulation stopping - initiating graceful shutdown")
			close(rs.requestQueue)
			rs.wg.Wait()
			<-reporterDone

			return

		case <-ticker.C:
			for i := 0; i < batchSize; i++ {
				scenario := rs.selector.SelectScenario(time.Now())

				select {
				case rs.requestQueue <- scenario:
				default:
					// Queue full - record backpressure and drop the request
					rs.recordBackpressure(scenario)
				}
			}
		}
	}
}

// worker processes requests from the queue until it is closed.
// Requests already taken from the queue run to completion even after ctx is done.
func (rs *ReservationSimulation) worker(ctx context.Context, workerID int) {
	defer rs.wg.Done()

	for scenario := range rs.requestQueue {
		err := rs.executeScenario(context.WithoutCancel(ctx), scenario)
		rs.recordOutcome(scenario, err)

		if scenario.Claimed {
			rs.state.Release(scenario.Reservation.ID)
		}
	}

	log.Printf("Worker %d stopping - queue closed", workerID)
}

func (rs *ReservationSimulation) executeScenario(ctx context.Context, scenario Scenario) error {
	opCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	retryOptions := []shell.RetryOption{}
	if rs.metrics != nil {
		retryOptions = append(retryOptions, shell.WithMetrics(rs.metrics, string(scenario.Type)))
	}

	_, err := shell.RetryWithExponentialBackoff(opCtx, func(ctx context.Context) error {
		return rs.execute(ctx, scenario)
	}, retryOptions...)

	return err
}

func (rs *ReservationSimulation) execute(ctx context.Context, scenario Scenario) error {
	switch scenario.Type {
	case ScenarioCreate:
		created, err := rs.resolver.Create(ctx, reservation.BuildCreateCommand(
			scenario.ResourceID, scenario.HolderID, scenario.Window.Start, scenario.Window.End))
		if err != nil {
			return err
		}

		rs.state.Track(created)

		return nil

	case ScenarioCloseEarly:
		_, err := rs.resolver.CloseEarly(ctx, reservation.BuildCloseEarlyCommand(
			scenario.Reservation.ID, scenario.HolderID, time.Time{}))
		if err != nil {
			return err
		}

		rs.state.MarkClosed(scenario.Reservation.ID)

		return nil

	case ScenarioExtend:
		extended, err := rs.resolver.Extend(ctx, reservation.BuildExtendCommand(
			scenario.Reservation.ID, scenario.HolderID, scenario.NewEnd))
		if err != nil {
			return err
		}

		rs.state.MarkExtended(extended.ID, extended.Window.End)

		return nil

	default:
		return fmt.Errorf("unknown scenario type: %s", scenario.Type)
	}
}

func (rs *ReservationSimulation) recordOutcome(scenario Scenario, err error) {
	outcome := reservation.KindOf(err).String()
	if reservation.IsRetryable(err) {
		outcome = outcomeRetryable
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.requestCount++

	byOutcome, ok := rs.outcomes[scenario.Type]
	if !ok {
		byOutcome = make(map[string]int64)
		rs.outcomes[scenario.Type] = byOutcome
	}
	byOutcome[outcome]++

	if scenario.IsError && err == nil {
		log.Printf("Intentional error scenario succeeded unexpectedly: %s", scenario.Reason)
	}
}

func (rs *ReservationSimulation) recordBackpressure(scenario Scenario) {
	if scenario.Claimed {
		rs.state.Release(scenario.Reservation.ID)
	}

	rs.mu.Lock()
	rs.backpressureCount++
	rs.mu.Unlock()
}

// verifyCapacityInvariant re-reads every resource and checks by a sweep over effective windows
// that at no instant more reservations overlap than the capacity allows.
func (rs *ReservationSimulation) verifyCapacityInvariant(ctx context.Context) error {
	violations := 0

	for _, resource := range rs.state.Resources() {
		var existing reservation.Reservations

		err := rs.store.WithinTx(ctx, func(ctx context.Context, tx reservation.Tx) error {
			var findErr error
			existing, findErr = tx.FindByResource(ctx, resource.ID)

			return findErr
		})
		if err != nil {
			return fmt.Errorf("failed to read reservations of resource %s: %w", resource.ID, err)
		}

		if peak := reservation.PeakOccupancy(existing); peak > resource.Capacity {
			violations++
			log.Printf("VIOLATION: resource %s has capacity %d but peak occupancy %d", resource.ID, resource.Capacity, peak)
		}
	}

	if violations > 0 {
		return fmt.Errorf("%w on %d resources", ErrCapacityInvariantViolated, violations)
	}

	log.Printf("Capacity invariant holds for all %d resources", len(rs.state.Resources()))

	return nil
}

func (rs *ReservationSimulation) metricsReporter(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.logCurrentStats()
		}
	}
}

func (rs *ReservationSimulation) logCurrentStats() {
	rs.mu.Lock()
	elapsed := time.Since(rs.startTime)
	requests := rs.requestCount
	backpressure := rs.backpressureCount
	rs.mu.Unlock()

	active, closed := rs.state.GetStats()
	rate := float64(requests) / elapsed.Seconds()

	log.Printf("Stats: requests=%d (%.1f req/s), backpressure=%d, tracked active=%d, closed=%d, goroutines=%d",
		requests, rate, backpressure, active, closed, runtime.NumGoroutine())
}

func (rs *ReservationSimulation) logFinalStats() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	elapsed := time.Since(rs.startTime)
	log.Printf("Final stats after %v: requests=%d, backpressure=%d", elapsed.Round(time.Second), rs.requestCount, rs.backpressureCount)

	for _, scenarioType := range []ScenarioType{ScenarioCreate, ScenarioCloseEarly, ScenarioExtend} {
		byOutcome := rs.outcomes[scenarioType]

		outcomes := make([]string, 0, len(byOutcome))
		for outcome := range byOutcome {
			outcomes = append(outcomes, outcome)
		}
		sort.Strings(outcomes)

		for _, outcome := range outcomes {
			log.Printf("  %-12s %-18s %d", scenarioType, outcome, byOutcome[outcome])
		}
	}
}
