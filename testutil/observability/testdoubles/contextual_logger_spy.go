package testdoubles

import (
	"context"
	"slices"
	"sync"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
)

// ContextualLoggerSpy is a reservation.ContextualLogger implementation that captures contextual logging calls.
// It keeps the context of each call, so tests can check that trace correlation data is passed through.
type ContextualLoggerSpy struct {
	records     []ContextualLogRecord
	mu          sync.Mutex
	recordCalls bool
}

// ContextualLogRecord represents a recorded contextual log call.
type ContextualLogRecord struct {
	Level   string
	Message string
	Args    []any
	Context context.Context
}

// Log levels as recorded by ContextualLoggerSpy.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// NewContextualLoggerSpy creates a new ContextualLoggerSpy instance.
func NewContextualLoggerSpy(recordCalls bool) *ContextualLoggerSpy {
	return &ContextualLoggerSpy{
		recordCalls: recordCalls,
	}
}

// DebugContext implements reservation.ContextualLogger.
func (l *ContextualLoggerSpy) DebugContext(ctx context.Context, msg string, args ...any) {
	l.record(ctx, LevelDebug, msg, args)
}

// InfoContext implements reservation.ContextualLogger.
func (l *ContextualLoggerSpy) InfoContext(ctx context.Context, msg string, args ...any) {
	l.record(ctx, LevelInfo, msg, args)
}

// WarnContext implements reservation.ContextualLogger.
func (l *ContextualLoggerSpy) WarnContext(ctx context.Context, msg string, args ...any) {
	l.record(ctx, LevelWarn, msg, args)
}

// ErrorContext implements reservation.ContextualLogger.
func (l *ContextualLoggerSpy) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.record(ctx, LevelError, msg, args)
}

func (l *ContextualLoggerSpy) record(ctx context.Context, level string, msg string, args []any) {
	if !l.recordCalls {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, ContextualLogRecord{
		Level:   level,
		Message: msg,
		Args:    slices.Clone(args),
		Context: ctx,
	})
}

// GetRecords returns a copy of the records with the given level.
func (l *ContextualLoggerSpy) GetRecords(level string) []ContextualLogRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	selected := make([]ContextualLogRecord, 0)
	for _, record := range l.records {
		if record.Level == level {
			selected = append(selected, record)
		}
	}

	return selected
}

// HasLog checks if a log with the given level and message exists.
func (l *ContextualLoggerSpy) HasLog(level string, message string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, record := range l.records {
		if record.Level == level && record.Message == message {
			return true
		}
	}

	return false
}

var _ reservation.ContextualLogger = (*ContextualLoggerSpy)(nil)
