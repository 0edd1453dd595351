package migrations_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/reservation-engine-go/migrations"
	"github.com/AntonStoeckl/reservation-engine-go/testutil/postgresengine/helper/postgreswrapper"
)

func Test_Names_AreSortedAndComplete(t *testing.T) {
	// act
	names, err := migrations.Names()

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{"001_resources.sql", "002_reservations.sql", "003_reservation_events.sql"}, names)
}

func Test_Apply_IsIdempotent(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool := postgreswrapper.ConnectPoolOrSkip(t)
	defer pool.Close()

	// act
	firstErr := migrations.Apply(ctx, pool)
	secondErr := migrations.Apply(ctx, pool)

	// assert
	require.NoError(t, firstErr)
	require.NoError(t, secondErr)

	var applied int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 3, applied)

	for _, table := range []string{"resources", "reservations", "reservation_events"} {
		var exists bool
		require.NoError(t, pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists))
		assert.True(t, exists, "table %s should exist", table)
	}
}
