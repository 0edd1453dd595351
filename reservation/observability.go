package reservation

import (
	"context"
	"time"
)

// Logger interface for operation outcomes, business rejections and store failures.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace correlation.
// This interface follows the same dependency-free pattern as MetricsCollector and TracingCollector,
// allowing users to integrate with any logging backend that supports context-based correlation.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting Resolver performance and operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods for trace correlation.
// This interface is optional - the Resolver uses the context-aware methods when available, falling back to
// the base MetricsCollector interface otherwise.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for collecting distributed tracing information from Resolver operations.
// Users can integrate with any tracing backend (OpenTelemetry, Jaeger, Zipkin, etc.) by implementing it.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// Metric names emitted by the Resolver.
const (
	MetricOperationDuration = "reservation_operation_duration_seconds"
	MetricOperations        = "reservation_operations_total"
	MetricRejections        = "reservation_rejections_total"
	MetricStoreErrors       = "reservation_store_errors_total"
	MetricAvailableUnits    = "reservation_available_units"
)

// Span names emitted by the Resolver.
const (
	SpanNameCreate     = "reservation.create"
	SpanNameCloseEarly = "reservation.close_early"
	SpanNameExtend     = "reservation.extend"
)

// Metric label and span attribute keys.
const (
	AttrOperation     = "operation"
	AttrStatus        = "status"
	AttrFailureKind   = "failure_kind"
	AttrResourceID    = "resource_id"
	AttrReservationID = "reservation_id"
	AttrHolderID      = "holder_id"
	AttrDurationMS    = "duration_ms"
)

// Status values used in metric labels and span status.
const (
	StatusSuccess  = "success"
	StatusRejected = "rejected"
	StatusError    = "error"
)
