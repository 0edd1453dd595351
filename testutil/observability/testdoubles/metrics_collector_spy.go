package testdoubles

import (
	"maps"
	"sync"
	"time"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
)

// InstrumentKind tells apart the three recording calls of reservation.MetricsCollector.
type InstrumentKind int

const (
	InstrumentDuration InstrumentKind = iota
	InstrumentCounter
	InstrumentValue
)

// SpyMetricRecord is one captured metrics call. Value is only set for InstrumentValue.
type SpyMetricRecord struct {
	Kind   InstrumentKind
	Metric string
	Value  float64
	Labels map[string]string
}

// MetricsCollectorSpy captures the metrics the Resolver and the retry helper emit.
// It implements reservation.MetricsCollector but not the contextual variant, so it also exercises
// the fallback path of the Resolver and the retry helper.
type MetricsCollectorSpy struct {
	records     []SpyMetricRecord
	mu          sync.Mutex
	recordCalls bool
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
// With recordCalls false every call is dropped.
func NewMetricsCollectorSpy(recordCalls bool) *MetricsCollectorSpy {
	return &MetricsCollectorSpy{recordCalls: recordCalls}
}

// RecordDuration implements reservation.MetricsCollector.
func (s *MetricsCollectorSpy) RecordDuration(metric string, _ time.Duration, labels map[string]string) {
	s.capture(SpyMetricRecord{Kind: InstrumentDuration, Metric: metric, Labels: labels})
}

// IncrementCounter implements reservation.MetricsCollector.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.capture(SpyMetricRecord{Kind: InstrumentCounter, Metric: metric, Labels: labels})
}

// RecordValue implements reservation.MetricsCollector.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.capture(SpyMetricRecord{Kind: InstrumentValue, Metric: metric, Value: value, Labels: labels})
}

func (s *MetricsCollectorSpy) capture(record SpyMetricRecord) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record.Labels = maps.Clone(record.Labels)
	s.records = append(s.records, record)
}

func (s *MetricsCollectorSpy) recordsOf(kind InstrumentKind, metric string) []SpyMetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected := make([]SpyMetricRecord, 0)
	for _, record := range s.records {
		if record.Kind == kind && record.Metric == metric {
			selected = append(selected, record)
		}
	}

	return selected
}

// HasDurationRecordForMetric starts a fluent chain over the duration records of metric.
func (s *MetricsCollectorSpy) HasDurationRecordForMetric(metric string) *MetricRecordMatcher {
	return &MetricRecordMatcher{candidates: s.recordsOf(InstrumentDuration, metric)}
}

// HasCounterRecordForMetric starts a fluent chain over the counter records of metric.
func (s *MetricsCollectorSpy) HasCounterRecordForMetric(metric string) *MetricRecordMatcher {
	return &MetricRecordMatcher{candidates: s.recordsOf(InstrumentCounter, metric)}
}

// HasValueRecordForMetric starts a fluent chain over the value records of metric.
func (s *MetricsCollectorSpy) HasValueRecordForMetric(metric string) *MetricRecordMatcher {
	return &MetricRecordMatcher{candidates: s.recordsOf(InstrumentValue, metric)}
}

// CountDurationRecordsForMetric counts the duration records of metric.
func (s *MetricsCollectorSpy) CountDurationRecordsForMetric(metric string) int {
	return len(s.recordsOf(InstrumentDuration, metric))
}

// CountCounterRecordsForMetric counts the counter records of metric.
func (s *MetricsCollectorSpy) CountCounterRecordsForMetric(metric string) int {
	return len(s.recordsOf(InstrumentCounter, metric))
}

// MetricRecordMatcher narrows a set of metric records by label. Every With* call keeps
// only the records that still match.
type MetricRecordMatcher struct {
	candidates []SpyMetricRecord
}

// WithOperation keeps records labelled with the Resolver or retry operation.
func (m *MetricRecordMatcher) WithOperation(operation string) *MetricRecordMatcher {
	return m.WithLabel("operation", operation)
}

// WithStatus keeps records with the given outcome, one of the reservation.Status* values.
func (m *MetricRecordMatcher) WithStatus(status string) *MetricRecordMatcher {
	return m.WithLabel("status", status)
}

// WithFailureKind keeps records labelled with the reservation.FailureKind name.
func (m *MetricRecordMatcher) WithFailureKind(kind string) *MetricRecordMatcher {
	return m.WithLabel("failure_kind", kind)
}

// WithErrorType keeps retry records labelled with the retried error type.
func (m *MetricRecordMatcher) WithErrorType(errorType string) *MetricRecordMatcher {
	return m.WithLabel("error_type", errorType)
}

func (m *MetricRecordMatcher) WithLabel(key, value string) *MetricRecordMatcher {
	remaining := make([]SpyMetricRecord, 0, len(m.candidates))
	for _, record := range m.candidates {
		if labelValue, exists := record.Labels[key]; exists && labelValue == value {
			remaining = append(remaining, record)
		}
	}
	m.candidates = remaining

	return m
}

// WithValue keeps value records that carry exactly value.
func (m *MetricRecordMatcher) WithValue(value float64) *MetricRecordMatcher {
	remaining := make([]SpyMetricRecord, 0, len(m.candidates))
	for _, record := range m.candidates {
		if record.Kind == InstrumentValue && record.Value == value {
			remaining = append(remaining, record)
		}
	}
	m.candidates = remaining

	return m
}

// Assert reports whether at least one record survived the chain.
func (m *MetricRecordMatcher) Assert() bool {
	return len(m.candidates) > 0
}

var _ reservation.MetricsCollector = (*MetricsCollectorSpy)(nil)
