package reservation

import (
	"context"
	"math"
	"strconv"
	"time"
)

const (
	logMsgReservationCreated  = "reservation created"
	logMsgReservationClosed   = "reservation closed early"
	logMsgReservationExtended = "reservation extended"
	logMsgOperationRejected   = "reservation operation rejected"
	logMsgStoreFailed         = "reservation store operation failed"
	logMsgOperation           = "reservation operation: "
	logAttrOperation          = "operation"
	logAttrError              = "error"
	logAttrFailureKind        = "failure_kind"
	logAttrDurationMS         = "duration_ms"
	logAttrReservationID      = "reservation_id"
	logAttrResourceID         = "resource_id"
	logAttrHolderID           = "holder_id"
)

// operationObserver encapsulates logging, metrics and tracing for one Resolver operation.
type operationObserver struct {
	r         Resolver
	ctx       context.Context
	operation string
	span      SpanContext
	startedAt time.Time
}

// startOperation starts a tracing span if the tracing collector is configured and returns an observer.
func (r Resolver) startOperation(
	ctx context.Context,
	operation string,
	spanName string,
	attrs map[string]string,
) (*operationObserver, context.Context) {

	var span SpanContext
	if r.tracingCollector != nil {
		ctx, span = r.tracingCollector.StartSpan(ctx, spanName, attrs)
	}

	return &operationObserver{
		r:         r,
		ctx:       ctx,
		operation: operation,
		span:      span,
		startedAt: time.Now(),
	}, ctx
}

// finish logs the outcome, records metrics and completes the span.
// Business rejections are logged at warn level, store failures at error level.
func (o *operationObserver) finish(err error, args ...any) {
	duration := time.Since(o.startedAt)
	kind := KindOf(err)
	allArgs := append([]any{logAttrOperation, o.operation, logAttrDurationMS, toMilliseconds(duration)}, args...)

	switch {
	case err == nil:
		o.r.logInfo(o.ctx, successMessage(o.operation), allArgs...)
		o.r.recordOperation(o.ctx, o.operation, StatusSuccess, duration)
		o.finishSpan(StatusSuccess, nil, duration)

	case isRejection(kind):
		allArgs = append(allArgs, logAttrFailureKind, kind.String(), logAttrError, err.Error())
		o.r.logWarn(o.ctx, logMsgOperationRejected, allArgs...)
		o.r.recordOperation(o.ctx, o.operation, StatusRejected, duration)
		o.r.incrementCounter(o.ctx, MetricRejections, map[string]string{
			AttrOperation:   o.operation,
			AttrFailureKind: kind.String(),
		})
		o.finishSpan(StatusRejected, map[string]string{AttrFailureKind: kind.String()}, duration)

	default:
		o.r.logFailure(o.ctx, o.operation, err, allArgs[2:]...)
		o.r.recordOperation(o.ctx, o.operation, StatusError, duration)
		o.finishSpan(StatusError, map[string]string{AttrFailureKind: kind.String()}, duration)
	}
}

func (o *operationObserver) finishSpan(status string, attrs map[string]string, duration time.Duration) {
	if o.r.tracingCollector == nil || o.span == nil {
		return
	}

	o.span.SetStatus(status)
	o.span.AddAttribute(AttrDurationMS, formatMilliseconds(duration))
	for key, value := range attrs {
		o.span.AddAttribute(key, value)
	}

	o.r.tracingCollector.FinishSpan(o.span, status, attrs)
}

// logFailure logs a store failure at error level and counts it.
func (r Resolver) logFailure(ctx context.Context, operation string, err error, args ...any) {
	kind := KindOf(err)
	if isRejection(kind) {
		r.logWarn(ctx, logMsgOperationRejected,
			append([]any{logAttrOperation, operation, logAttrFailureKind, kind.String(), logAttrError, err.Error()}, args...)...)
		return
	}

	allArgs := append([]any{logAttrOperation, operation, logAttrFailureKind, kind.String(), logAttrError, err.Error()}, args...)

	if r.logger != nil {
		r.logger.Error(logMsgStoreFailed, allArgs...)
	}

	if r.contextualLogger != nil {
		r.contextualLogger.ErrorContext(ctx, logMsgStoreFailed, allArgs...)
	}

	r.incrementCounter(ctx, MetricStoreErrors, map[string]string{
		AttrOperation:   operation,
		AttrFailureKind: kind.String(),
	})
}

func (r Resolver) logInfo(ctx context.Context, msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}

	if r.contextualLogger != nil {
		r.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (r Resolver) logWarn(ctx context.Context, msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}

	if r.contextualLogger != nil {
		r.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

// recordOperation records the duration histogram and the operations counter.
func (r Resolver) recordOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if r.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		AttrOperation: operation,
		AttrStatus:    status,
	}

	// Use context-aware methods if available
	if contextualCollector, ok := r.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, MetricOperationDuration, duration, labels)
		contextualCollector.IncrementCounterContext(ctx, MetricOperations, labels)
		return
	}

	r.metricsCollector.RecordDuration(MetricOperationDuration, duration, labels)
	r.metricsCollector.IncrementCounter(MetricOperations, labels)
}

func (r Resolver) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if r.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := r.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	r.metricsCollector.IncrementCounter(metric, labels)
}

func (r Resolver) recordValue(ctx context.Context, metric string, value float64, operation string) {
	if r.metricsCollector == nil {
		return
	}

	labels := map[string]string{AttrOperation: operation}

	if contextualCollector, ok := r.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
		return
	}

	r.metricsCollector.RecordValue(metric, value, labels)
}

// isRejection reports whether kind is a caller error rather than an infrastructure or catalog failure.
func isRejection(kind FailureKind) bool {
	switch kind {
	case FailureNone, FailureStoreUnavailable, FailureInvalidCapacity, FailureUnknown:
		return false
	default:
		return true
	}
}

func successMessage(operation string) string {
	switch operation {
	case operationCreate:
		return logMsgReservationCreated
	case operationCloseEarly:
		return logMsgReservationClosed
	case operationExtend:
		return logMsgReservationExtended
	default:
		return logMsgOperation + operation
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func formatMilliseconds(d time.Duration) string {
	return strconv.FormatFloat(toMilliseconds(d), 'f', 2, 64)
}
