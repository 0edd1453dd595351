package reservation

import (
	"time"
)

// Option defines a functional option for configuring the Resolver.
type Option func(*Resolver) error

// WithClock sets the clock used for timestamps, for clamping close instants and for list filters.
func WithClock(clock Clock) Option {
	return func(r *Resolver) error {
		if clock != nil {
			r.clock = clock
		}

		return nil
	}
}

// WithTxTimeout bounds every store transaction. The caller's context deadline still wins if it is shorter.
// A timed-out transaction fails with ErrTransactionTimeout and applies nothing.
func WithTxTimeout(timeout time.Duration) Option {
	return func(r *Resolver) error {
		if timeout <= 0 {
			return ErrInvalidTxTimeout
		}

		r.txTimeout = timeout

		return nil
	}
}

// WithLogger sets the logger for the Resolver.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Info level: operation outcomes with ids and durations
// Warn level: business rejections like capacity exceeded or conflicts
// Error level: store failures.
func WithLogger(logger Logger) Option {
	return func(r *Resolver) error {
		r.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Resolver.
// Log records then carry trace/span correlation when tracing is enabled.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(r *Resolver) error {
		r.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Resolver.
func WithMetrics(collector MetricsCollector) Option {
	return func(r *Resolver) error {
		r.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Resolver.
// One span is started per Create, CloseEarly and Extend call.
func WithTracing(collector TracingCollector) Option {
	return func(r *Resolver) error {
		r.tracingCollector = collector
		return nil
	}
}
