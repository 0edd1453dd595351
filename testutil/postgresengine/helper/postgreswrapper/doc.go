// Package postgreswrapper provides test utilities for abstracting over different PostgreSQL database adapters.
//
// This package enables testing of the reservation store across multiple database drivers
// (pgx, sql.DB, sqlx.DB) using a common Wrapper interface. The specific adapter type is determined
// by the ADAPTER_TYPE environment variable, the database by RESERVATION_TEST_DSN. Tests are
// skipped when the database cannot be reached.
//
// Usage:
//
//	wrapper := CreateWrapperWithTestConfig(t)
//	defer wrapper.Close()
//	CleanUp(t, wrapper)
//
//	store := wrapper.GetStore()
package postgreswrapper
