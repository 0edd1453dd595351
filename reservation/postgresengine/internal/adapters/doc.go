// Package adapters provide transaction adapter implementations for the PostgreSQL reservation store.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgx.Pool, sql.DB, and sqlx.DB. All adapters begin READ COMMITTED transactions and expose them
// through a common DBTx interface, so the store runs the same SQL regardless of the connection type.
package adapters
