package testdoubles

import (
	"context"
	"maps"
	"sync"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
)

// SpySpanContext is the span handed out by TracingCollectorSpy. It keeps everything
// the Resolver reports about one operation span.
type SpySpanContext struct {
	mu              sync.Mutex
	name            string
	startAttributes map[string]string
	endAttributes   map[string]string
	attributes      map[string]string
	status          string
}

// SetStatus implements reservation.SpanContext.
func (c *SpySpanContext) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = status
}

// AddAttribute implements reservation.SpanContext.
func (c *SpySpanContext) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attributes[key] = value
}

// GetAttributes returns a copy of the attributes added while the span was open.
func (c *SpySpanContext) GetAttributes() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return maps.Clone(c.attributes)
}

func (c *SpySpanContext) finish(status string, attrs map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = status
	c.endAttributes = maps.Clone(attrs)
}

func (c *SpySpanContext) snapshot() SpySpanRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	return SpySpanRecord{
		Name:            c.name,
		StartAttributes: maps.Clone(c.startAttributes),
		Status:          c.status,
		EndAttributes:   maps.Clone(c.endAttributes),
		SpanContext:     c,
	}
}

// SpySpanRecord is a point-in-time copy of one span.
type SpySpanRecord struct {
	Name            string
	StartAttributes map[string]string
	Status          string
	EndAttributes   map[string]string
	SpanContext     *SpySpanContext
}

// TracingCollectorSpy records the reservation.create, reservation.close_early and
// reservation.extend spans in start order.
type TracingCollectorSpy struct {
	mu          sync.Mutex
	spans       []*SpySpanContext
	recordCalls bool
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
// With recordCalls false StartSpan hands out no span, like a disabled tracer.
func NewTracingCollectorSpy(recordCalls bool) *TracingCollectorSpy {
	return &TracingCollectorSpy{recordCalls: recordCalls}
}

// StartSpan implements reservation.TracingCollector.
func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, reservation.SpanContext) {
	if !s.recordCalls {
		return ctx, nil
	}

	span := &SpySpanContext{
		name:            name,
		startAttributes: maps.Clone(attrs),
		attributes:      make(map[string]string),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.spans = append(s.spans, span)

	return ctx, span
}

// FinishSpan implements reservation.TracingCollector. Spans from other collectors are ignored.
func (s *TracingCollectorSpy) FinishSpan(spanCtx reservation.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*SpySpanContext)
	if !s.recordCalls || !ok || span == nil {
		return
	}

	span.finish(status, attrs)
}

// GetSpanRecords returns snapshots of all spans in start order.
func (s *TracingCollectorSpy) GetSpanRecords() []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpySpanRecord, 0, len(s.spans))
	for _, span := range s.spans {
		records = append(records, span.snapshot())
	}

	return records
}

// CountSpanRecordsForName counts the spans started with name.
func (s *TracingCollectorSpy) CountSpanRecordsForName(name string) int {
	count := 0
	for _, record := range s.GetSpanRecords() {
		if record.Name == name {
			count++
		}
	}

	return count
}

// HasSpanRecordForName starts a fluent chain over the spans started with name.
func (s *TracingCollectorSpy) HasSpanRecordForName(name string) *SpanRecordMatcher {
	matcher := &SpanRecordMatcher{}
	for _, record := range s.GetSpanRecords() {
		if record.Name == name {
			matcher.candidates = append(matcher.candidates, record)
		}
	}

	return matcher
}

// SpanRecordMatcher narrows a set of span records. It asserts true when at least one
// span matches every condition of the chain.
type SpanRecordMatcher struct {
	candidates []SpySpanRecord
}

// WithStatus keeps spans finished with status.
func (m *SpanRecordMatcher) WithStatus(status string) *SpanRecordMatcher {
	return m.keep(func(record SpySpanRecord) bool { return record.Status == status })
}

// WithStartAttribute keeps spans started with the attribute.
func (m *SpanRecordMatcher) WithStartAttribute(key, value string) *SpanRecordMatcher {
	return m.keep(func(record SpySpanRecord) bool {
		attrValue, exists := record.StartAttributes[key]
		return exists && attrValue == value
	})
}

// WithEndAttribute keeps spans finished with the attribute.
func (m *SpanRecordMatcher) WithEndAttribute(key, value string) *SpanRecordMatcher {
	return m.keep(func(record SpySpanRecord) bool {
		attrValue, exists := record.EndAttributes[key]
		return exists && attrValue == value
	})
}

func (m *SpanRecordMatcher) keep(match func(record SpySpanRecord) bool) *SpanRecordMatcher {
	remaining := make([]SpySpanRecord, 0, len(m.candidates))
	for _, record := range m.candidates {
		if match(record) {
			remaining = append(remaining, record)
		}
	}
	m.candidates = remaining

	return m
}

// Assert reports whether at least one span survived the chain.
func (m *SpanRecordMatcher) Assert() bool {
	return len(m.candidates) > 0
}

var _ reservation.TracingCollector = (*TracingCollectorSpy)(nil)
var _ reservation.SpanContext = (*SpySpanContext)(nil)
