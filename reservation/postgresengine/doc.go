// Package postgresengine provides a PostgreSQL implementation of reservation.Store.
//
// The store supports three database adapters:
//   - pgx.Pool (recommended for performance)
//   - database/sql with the lib/pq driver
//   - sqlx.DB
//
// Concurrency control is pessimistic. LockResource issues SELECT ... FOR UPDATE on the resource
// row, so two transactions deciding on the same resource run one after the other, while
// transactions on different resources do not wait for each other. Lock waits are bounded with
// SET LOCAL lock_timeout (see WithLockTimeout).
//
// Every committed mutation also appends a row to reservation_events with a JSON payload,
// unless the store is created WithoutAuditTrail.
//
// Driver errors are classified: serialization failures, deadlocks, lock timeouts, cancelled
// statements and connection failures carry reservation.ErrStoreUnavailable; deadline
// expiry carries reservation.ErrTransactionTimeout. Both are retryable.
//
// Usage:
//
//	store, err := postgresengine.NewStoreFromPGXPool(pool, postgresengine.WithLogger(slog.Default()))
//	resolver, err := reservation.NewResolver(store)
//
// The schema is provided by the migrations package.
package postgresengine
