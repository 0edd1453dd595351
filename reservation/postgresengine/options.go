package postgresengine

import (
	"time"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
)

// Logger is the logging surface of the Store. *slog.Logger satisfies it.
type Logger = reservation.Logger

// ContextualLogger is the context-aware logging surface of the Store.
type ContextualLogger = reservation.ContextualLogger

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithLockTimeout bounds how long a transaction waits for a row lock (SET LOCAL lock_timeout).
// A lock wait that exceeds it fails with reservation.ErrStoreUnavailable, which is retryable.
// Zero disables the bound and leaves the server default in place.
func WithLockTimeout(timeout time.Duration) Option {
	return func(s *Store) error {
		if timeout < 0 {
			return ErrNegativeLockTimeout
		}

		s.lockTimeout = timeout

		return nil
	}
}

// WithoutAuditTrail disables writing reservation_events rows for committed mutations.
func WithoutAuditTrail() Option {
	return func(s *Store) error {
		s.auditTrail = false
		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: rows affected, transaction outcomes with durations
// Error level: database failures.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Store.
// The contextual logger will receive log messages with context information including
// automatic trace/span correlation when tracing is enabled.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger
		return nil
	}
}
