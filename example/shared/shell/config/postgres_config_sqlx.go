package config

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// PostgresSQLX opens a configured *sqlx.DB with the lib/pq driver and checks the connection.
func PostgresSQLX(ctx context.Context, app App) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverPostgres, app.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	configureStdPool(db.DB, app)

	if pingErr := ping(ctx, db.DB); pingErr != nil {
		_ = db.Close()
		return nil, pingErr
	}

	return db, nil
}
