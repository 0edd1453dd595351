// Package config provides environment configuration and database connection builders
// for the reservation engine examples.
//
// Settings are read from RESERVATION_* environment variables with envconfig, after an
// optional .env file has been loaded with godotenv. The builders create PostgreSQL
// connections for the three supported drivers (pgx.Pool, sql.DB, sqlx.DB) and the
// OpenTelemetry providers used by the simulation.
//
// This package is part of the shell (infrastructure) layer.
package config
