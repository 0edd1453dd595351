// Package testdoubles provides spies for the observability interfaces of package reservation.
//
//   - LogHandlerSpy: a slog.Handler that keeps every record for attribute checks
//   - ContextualLoggerSpy: a reservation.ContextualLogger that keeps the context of each call
//   - MetricsCollectorSpy: captures duration, counter and value calls with their labels
//   - TracingCollectorSpy: captures operation spans with start and end attributes
//
// The Resolver, the Postgres store and the retry helper are tested against these spies
// without a telemetry backend.
package testdoubles
