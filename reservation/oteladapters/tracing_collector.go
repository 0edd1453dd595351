package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
)

const attrOutcome = "reservation.outcome"

// TracingCollector implements reservation.TracingCollector using the OpenTelemetry tracing API.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a new OpenTelemetry tracing collector.
// The tracer should be created from your OpenTelemetry TracerProvider.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan creates a new span with the given name and attributes and returns the context carrying it.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, reservation.SpanContext) {
	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan sets the final attributes and status and ends the span.
// Span contexts that were not created by this collector are ignored.
func (t *TracingCollector) FinishSpan(spanCtx reservation.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	otelSpanCtx.span.SetAttributes(toAttributes(attrs)...)
	otelSpanCtx.setSpanStatus(status)
	otelSpanCtx.span.End()
}

var _ reservation.TracingCollector = (*TracingCollector)(nil)

// OTelSpanContext implements reservation.SpanContext by wrapping an OpenTelemetry span.
type OTelSpanContext struct {
	span trace.Span
}

// SetStatus sets the OpenTelemetry span status based on the provided status string.
func (s *OTelSpanContext) SetStatus(status string) {
	s.setSpanStatus(status)
}

// AddAttribute adds an attribute to the OpenTelemetry span.
func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

// setSpanStatus maps reservation status strings to OpenTelemetry status codes.
// A business rejection is a correct answer of the engine, so it leaves the status unset
// and is recorded as an attribute only.
func (s *OTelSpanContext) setSpanStatus(status string) {
	switch status {
	case reservation.StatusSuccess:
		s.span.SetStatus(codes.Ok, "")
	case reservation.StatusError:
		s.span.SetStatus(codes.Error, "Operation failed")
	case reservation.StatusRejected:
		s.span.SetAttributes(attribute.String(attrOutcome, status))
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

var _ reservation.SpanContext = (*OTelSpanContext)(nil)
