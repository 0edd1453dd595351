package postgresengine

import (
	"context"
	"math"
	"time"
)

// logQueryWithDuration logs SQL statements with execution time at debug level if a logger is configured.
func (s Store) logQueryWithDuration(
	ctx context.Context,
	sqlQuery string,
	action string,
	duration time.Duration,
) {

	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (s Store) logOperation(ctx context.Context, message string, args ...any) {
	if s.logger != nil {
		s.logger.Info(message, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, message, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (s Store) logError(
	ctx context.Context,
	message string,
	err error,
	args ...any,
) {

	if s.logger == nil && s.contextualLogger == nil {
		return
	}

	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.logger != nil {
		s.logger.Error(message, allArgs...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
