package config

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

const (
	driverPostgres         = "postgres"
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = time.Minute * 5
	defaultPingTimeout     = time.Second * 5
)

// PostgresSQLDB opens a configured *sql.DB with the lib/pq driver and checks the connection.
func PostgresSQLDB(ctx context.Context, app App) (*sql.DB, error) {
	db, err := sql.Open(driverPostgres, app.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	configureStdPool(db, app)

	if pingErr := ping(ctx, db); pingErr != nil {
		_ = db.Close()
		return nil, pingErr
	}

	return db, nil
}

func configureStdPool(db *sql.DB, app App) {
	db.SetMaxOpenConns(int(app.MaxConns))
	db.SetMaxIdleConns(int(app.MinConns))
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)
}

func ping(ctx context.Context, db *sql.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	return db.PingContext(pingCtx)
}
