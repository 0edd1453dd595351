package main

import (
	"math/rand/v2"
	"time"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
)

// ScenarioType represents different types of scenarios the simulation can execute.
type ScenarioType string

const (
	ScenarioCreate     ScenarioType = "create"
	ScenarioCloseEarly ScenarioType = "close_early"
	ScenarioExtend     ScenarioType = "extend"
)

const (
	createShare     = 60 // percent of all requests
	closeEarlyShare = 25 // percent of all requests, the rest extends
	maxStartOffset  = 72 * time.Hour
	minLength       = time.Hour
	maxLength       = 7 * 24 * time.Hour
	maxExtension    = 3 * 24 * time.Hour
)

// Scenario represents a single operation to be executed by the simulation.
type Scenario struct {
	Type        ScenarioType
	ResourceID  reservation.ResourceID
	HolderID    reservation.HolderID
	Reservation trackedReservation
	Window      reservation.Window
	NewEnd      time.Time
	Claimed     bool   // True if Reservation was claimed and must be released after execution
	IsError     bool   // True if this is an intentional error scenario
	Reason      string // Description of why this is an error scenario
}

// ScenarioSelector selects scenarios based on the current simulation state.
type ScenarioSelector struct {
	state    *SimulationState
	config   Config
	location *time.Location
}

// NewScenarioSelector creates a new scenario selector with the given state and configuration.
// Generated windows start on full hours of location.
func NewScenarioSelector(state *SimulationState, config Config, location *time.Location) *ScenarioSelector {
	return &ScenarioSelector{
		state:    state,
		config:   config,
		location: location,
	}
}

// SelectScenario picks the next scenario. Close and extend fall back to create
// when there is no reservation to operate on.
func (s *ScenarioSelector) SelectScenario(now time.Time) Scenario {
	roll := rand.IntN(100) //nolint:gosec

	switch {
	case roll < createShare:
		return s.createScenario(now)
	case roll < createShare+closeEarlyShare:
		return s.closeEarlyScenario(now)
	default:
		return s.extendScenario(now)
	}
}

func (s *ScenarioSelector) createScenario(now time.Time) Scenario {
	start := now.In(s.location).Truncate(time.Hour).Add(randomDuration(0, maxStartOffset).Truncate(time.Hour))
	end := start.Add(randomDuration(minLength, maxLength).Truncate(time.Hour))

	return Scenario{
		Type:       ScenarioCreate,
		ResourceID: s.state.RandomResource().ID,
		HolderID:   s.state.RandomHolder(),
		Window:     reservation.Window{Start: start.UTC(), End: end.UTC()},
	}
}

func (s *ScenarioSelector) closeEarlyScenario(now time.Time) Scenario {
	if chance(s.config.ErrorProbabilities.ClosedAgain) {
		if closed, ok := s.state.ClaimClosed(); ok {
			return Scenario{
				Type:        ScenarioCloseEarly,
				HolderID:    closed.HolderID,
				Reservation: closed,
				IsError:     true,
				Reason:      "close an already closed reservation",
			}
		}
	}

	tracked, ok := s.state.Claim(now)
	if !ok {
		return s.createScenario(now)
	}

	return s.withForeignHolder(Scenario{
		Type:        ScenarioCloseEarly,
		HolderID:    tracked.HolderID,
		Reservation: tracked,
		Claimed:     true,
	})
}

func (s *ScenarioSelector) extendScenario(now time.Time) Scenario {
	tracked, ok := s.state.Claim(now)
	if !ok {
		return s.createScenario(now)
	}

	return s.withForeignHolder(Scenario{
		Type:        ScenarioExtend,
		HolderID:    tracked.HolderID,
		Reservation: tracked,
		NewEnd:      tracked.Window.End.Add(randomDuration(minLength, maxExtension).Truncate(time.Hour)),
		Claimed:     true,
	})
}

func (s *ScenarioSelector) withForeignHolder(scenario Scenario) Scenario {
	if !chance(s.config.ErrorProbabilities.ForeignHolder) {
		return scenario
	}

	foreign := s.state.RandomHolder()
	if foreign == scenario.HolderID {
		return scenario
	}

	scenario.HolderID = foreign
	scenario.IsError = true
	scenario.Reason = "operate on a reservation held by somebody else"

	return scenario
}

func randomDuration(low, high time.Duration) time.Duration {
	return low + rand.N(high-low+1) //nolint:gosec
}

func chance(percent float64) bool {
	return rand.Float64()*100 < percent //nolint:gosec
}
