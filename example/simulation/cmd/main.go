package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"github.com/AntonStoeckl/reservation-engine-go/example/shared/shell/config"
	"github.com/AntonStoeckl/reservation-engine-go/migrations"
	"github.com/AntonStoeckl/reservation-engine-go/reservation"
	"github.com/AntonStoeckl/reservation-engine-go/reservation/oteladapters"
	"github.com/AntonStoeckl/reservation-engine-go/reservation/postgresengine"
)

const instrumentationName = "reservation-simulation"

func main() {
	if err := run(); err != nil {
		log.Printf("Reservation Simulation failed: %v", err)
		os.Exit(1)
	}

	log.Printf("Reservation Simulation stopped")
}

//nolint:funlen
func run() error {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}

	app, err := config.Load(cfg.EnvFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("🔧 USING DATABASE ADAPTER: %s", app.DBAdapter)

	// Migrations always run through a pgx pool, independent of the adapter under test
	migrationPool, err := newPGXPool(ctx, app)
	if err != nil {
		return err
	}
	defer migrationPool.Close()

	if migrateErr := migrations.Apply(ctx, migrationPool); migrateErr != nil {
		return fmt.Errorf("failed to apply migrations: %w", migrateErr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	storeOptions := []postgresengine.Option{
		postgresengine.WithLockTimeout(app.LockTimeout),
		postgresengine.WithLogger(logger),
	}
	resolverOptions := []reservation.Option{
		reservation.WithTxTimeout(app.TxTimeout),
		reservation.WithLogger(logger),
	}

	var retryMetrics reservation.MetricsCollector

	if cfg.ObservabilityEnabled || app.OTelEnabled {
		providers, obsErr := config.NewObservabilityProviders(ctx, app)
		if obsErr != nil {
			return fmt.Errorf("failed to create observability providers: %w", obsErr)
		}
		defer func() {
			if shutdownErr := providers.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
				log.Printf("Error during observability shutdown: %v", shutdownErr)
			}
		}()

		metricsCollector := oteladapters.NewMetricsCollector(otel.Meter(instrumentationName))
		tracingCollector := oteladapters.NewTracingCollector(otel.Tracer(instrumentationName))
		contextualLogger := oteladapters.NewSlogBridgeLogger(instrumentationName)

		storeOptions = append(storeOptions, postgresengine.WithContextualLogger(contextualLogger))
		resolverOptions = append(resolverOptions,
			reservation.WithMetrics(metricsCollector),
			reservation.WithTracing(tracingCollector),
			reservation.WithContextualLogger(contextualLogger),
		)
		retryMetrics = metricsCollector

		log.Printf("Observability enabled: exporting to %s", app.OTelEndpoint)
	}

	store, closeDB, err := initializeStore(ctx, app, storeOptions...)
	if err != nil {
		return fmt.Errorf("failed to create reservation store: %w", err)
	}
	defer closeDB()

	resolver, err := reservation.NewResolver(store, resolverOptions...)
	if err != nil {
		return fmt.Errorf("failed to create resolver: %w", err)
	}

	simulation := NewReservationSimulation(store, resolver, cfg, app.Location(), retryMetrics)

	log.Printf("Configuration: rate=%d req/s, resources=%d (capacity 1-%d), holders=%d, workers=%d, duration=%v",
		cfg.Rate, cfg.Resources, cfg.CapacityMax, cfg.Holders, cfg.Workers, cfg.Duration)
	log.Printf("Error rates: foreign-holder=%.1f%%, closed-again=%.1f%%",
		cfg.ErrorProbabilities.ForeignHolder, cfg.ErrorProbabilities.ClosedAgain)
	log.Printf("Press Ctrl+C to stop early...")

	if runErr := simulation.Run(ctx); runErr != nil {
		if errors.Is(runErr, ErrCapacityInvariantViolated) {
			return runErr
		}

		return fmt.Errorf("reservation simulation failed: %w", runErr)
	}

	return nil
}

func newPGXPool(ctx context.Context, app config.App) (*pgxpool.Pool, error) {
	poolConfig, err := config.PostgresPGXPoolConfig(app)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx pool config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", pingErr)
	}

	return pool, nil
}

// initializeStore creates the Store on top of the configured database adapter.
// The returned func closes the underlying connection pool.
func initializeStore(
	ctx context.Context,
	app config.App,
	options ...postgresengine.Option,
) (postgresengine.Store, func(), error) {

	switch app.DBAdapter {
	case config.AdapterPGX:
		log.Printf("🔧 Initializing PGX adapter with connection pool")

		pool, err := newPGXPool(ctx, app)
		if err != nil {
			return postgresengine.Store{}, nil, err
		}

		store, err := postgresengine.NewStoreFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return postgresengine.Store{}, nil, err
		}

		return store, pool.Close, nil

	case config.AdapterSQL:
		log.Printf("🔧 Initializing SQL.DB adapter with lib/pq driver")

		db, err := config.PostgresSQLDB(ctx, app)
		if err != nil {
			return postgresengine.Store{}, nil, err
		}

		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		if err != nil {
			_ = db.Close()
			return postgresengine.Store{}, nil, err
		}

		return store, func() { _ = db.Close() }, nil

	case config.AdapterSQLX:
		log.Printf("🔧 Initializing SQLX adapter with lib/pq driver")

		db, err := config.PostgresSQLX(ctx, app)
		if err != nil {
			return postgresengine.Store{}, nil, err
		}

		store, err := postgresengine.NewStoreFromSQLX(db, options...)
		if err != nil {
			_ = db.Close()
			return postgresengine.Store{}, nil, err
		}

		return store, func() { _ = db.Close() }, nil

	default:
		return postgresengine.Store{}, nil, config.ErrUnknownDBAdapter
	}
}
