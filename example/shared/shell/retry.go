package shell

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

// Metric names emitted by RetryWithExponentialBackoff when a collector is configured.
const (
	RetryDelayMetric         = "reservation_retry_delay_seconds"
	RetriesMetric            = "reservation_retries_total"
	MaxRetriesReachedMetric  = "reservation_max_retries_reached_total"
	retryLabelOperation      = "operation"
	retryLabelAttemptNumber  = "attempt_number"
	retryLabelErrorType      = "error_type"
	retryLabelFinalErrorType = "final_error_type"
	errorTypeContextCanceled = "context_canceled"
	errorTypeNone            = "none"
)

var (
	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrEmptyOperation is returned when an empty operation name is provided to WithMetrics.
	ErrEmptyOperation = errors.New("operation must not be empty")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// RetryableFunc represents a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// RetryMetadata describes how a retried call went.
type RetryMetadata struct {
	Attempts      int
	TotalDelay    time.Duration
	LastErrorType string
}

type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector reservation.MetricsCollector
	operation        string
}

// RetryWithExponentialBackoff executes fn and retries it with exponential backoff
// as long as it fails with an error for which reservation.IsRetryable holds.
//
// Retry Schedule (default): 0 ms, 10 ms, 20 ms, 40 ms, 80 ms, 160 ms (with 30% jitter)
//
// Business failures like ErrCapacityExceeded or ErrForbidden are returned at once.
// A retry is safe because a failed Resolver operation applies nothing.
func RetryWithExponentialBackoff(
	ctx context.Context,
	fn RetryableFunc,
	options ...RetryOption,
) (RetryMetadata, error) {

	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return RetryMetadata{}, err
		}
	}

	meta := RetryMetadata{LastErrorType: errorTypeNone}
	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec //math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			recordRetryDelayMetric(ctx, config, attempt, backoffDelay)

			select {
			case <-time.After(backoffDelay):
				meta.TotalDelay += backoffDelay
			case <-ctx.Done():
				meta.LastErrorType = getErrorType(ctx.Err())
				return meta, ctx.Err()
			}
		}

		meta.Attempts++

		lastErr = fn(ctx)
		if lastErr == nil {
			meta.LastErrorType = errorTypeNone
			return meta, nil
		}

		meta.LastErrorType = getErrorType(lastErr)

		if !reservation.IsRetryable(lastErr) {
			return meta, lastErr
		}

		recordRetryAttemptMetric(ctx, attempt, config, lastErr)
	}

	recordMaxRetriesReachedMetric(ctx, config, lastErr)

	return meta, lastErr
}

func recordRetryDelayMetric(ctx context.Context, config *retryConfig, attempt int, backoffDelay time.Duration) {
	if config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		retryLabelOperation:     config.operation,
		retryLabelAttemptNumber: strconv.Itoa(attempt),
	}

	if contextualCollector, ok := config.metricsCollector.(reservation.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, RetryDelayMetric, backoffDelay, labels)
		return
	}

	config.metricsCollector.RecordDuration(RetryDelayMetric, backoffDelay, labels)
}

// recordRetryAttemptMetric counts only failures that will actually be retried.
func recordRetryAttemptMetric(ctx context.Context, attempt int, config *retryConfig, lastErr error) {
	if attempt >= config.maxAttempts-1 || config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		retryLabelOperation:     config.operation,
		retryLabelAttemptNumber: strconv.Itoa(attempt + 1),
		retryLabelErrorType:     getErrorType(lastErr),
	}

	incrementCounter(ctx, config, RetriesMetric, labels)
}

func recordMaxRetriesReachedMetric(ctx context.Context, config *retryConfig, lastErr error) {
	if config.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		retryLabelOperation:      config.operation,
		retryLabelFinalErrorType: getErrorType(lastErr),
	}

	incrementCounter(ctx, config, MaxRetriesReachedMetric, labels)
}

func incrementCounter(ctx context.Context, config *retryConfig, metric string, labels map[string]string) {
	if contextualCollector, ok := config.metricsCollector.(reservation.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	config.metricsCollector.IncrementCounter(metric, labels)
}

// getErrorType returns the failure kind label of err, or context_canceled.
func getErrorType(err error) string {
	if err == nil {
		return errorTypeNone
	}

	if errors.Is(err, context.Canceled) {
		return errorTypeContextCanceled
	}

	return reservation.KindOf(err).String()
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the maximum number of attempts, including the first one.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, baseDelay*8, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter, as a share of the calculated backoff delay.
// Valid range: 0.0 (no jitter) to 1.0 (100% jitter).
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithMetrics sets the metrics collector for retry instrumentation.
// The operation labels every metric, e.g. "create" or "extend".
func WithMetrics(collector reservation.MetricsCollector, operation string) RetryOption {
	return func(config *retryConfig) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		if operation == "" {
			return ErrEmptyOperation
		}

		config.metricsCollector = collector
		config.operation = operation

		return nil
	}
}
