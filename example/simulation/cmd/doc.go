// Package main implements a load simulation for the reservation engine on PostgreSQL.
//
// The simulation registers a population of resources with random capacities and a population of
// holders, then lets a fixed worker pool issue rate-limited Create, CloseEarly and Extend requests
// for the configured duration. Retryable store failures are retried with exponential backoff,
// every outcome is counted by failure kind.
//
// A configurable share of requests is deliberately wrong: a foreign holder tries to close or
// extend a reservation, or an already closed reservation is closed again. These must be rejected.
//
// At shutdown every resource is re-read and a sweep over the effective reservation windows checks
// that no instant is occupied beyond the resource capacity. A violation makes the process exit
// with a non-zero status.
//
// The database adapter (pgx, sql, sqlx) and connection settings come from RESERVATION_* environment
// variables or an .env file, see the config package. Observability is exported via OTLP gRPC when
// -observability-enabled is set.
package main
