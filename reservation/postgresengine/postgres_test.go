package postgresengine_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
	"github.com/AntonStoeckl/reservation-engine-go/reservation/postgresengine"
	. "github.com/AntonStoeckl/reservation-engine-go/testutil/helper"                                //nolint:revive
	. "github.com/AntonStoeckl/reservation-engine-go/testutil/observability/testdoubles"             //nolint:revive
	. "github.com/AntonStoeckl/reservation-engine-go/testutil/postgresengine/helper/postgreswrapper" //nolint:revive
)

var errFromFn = errors.New("fn failed")

func setupResolver(t *testing.T, wrapper Wrapper, options ...reservation.Option) reservation.Resolver {
	t.Helper()

	options = append([]reservation.Option{reservation.WithClock(reservation.NewFixedClock(FixtureBaseTime()))}, options...)
	resolver, err := reservation.NewResolver(wrapper.GetStore(), options...)
	require.NoError(t, err)

	return resolver
}

func Test_NewStore_Errors(t *testing.T) {
	// act
	_, pgxErr := postgresengine.NewStoreFromPGXPool(nil)
	_, sqlErr := postgresengine.NewStoreFromSQLDB(nil)
	_, sqlxErr := postgresengine.NewStoreFromSQLX(nil)

	// assert
	assert.ErrorIs(t, pgxErr, postgresengine.ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlErr, postgresengine.ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlxErr, postgresengine.ErrNilDatabaseConnection)
}

func Test_NewStore_Error_NegativeLockTimeout(t *testing.T) {
	// arrange
	pool := ConnectPoolOrSkip(t)
	defer pool.Close()

	// act
	_, err := postgresengine.NewStoreFromPGXPool(pool, postgresengine.WithLockTimeout(-time.Second))

	// assert
	assert.ErrorIs(t, err, postgresengine.ErrNegativeLockTimeout)
}

func Test_WithinTx_CommitsAndPersistsAuditEvent(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	CleanUp(t, wrapper)
	store := wrapper.GetStore()

	// arrange
	resource := GivenResourceWasRegistered(t, ctx, store, 1)
	r := FixtureReservation(t, resource.ID, GivenWindow(t, FixtureBaseTime(), 0, time.Hour))

	// act
	err := store.WithinTx(ctx, func(ctx context.Context, tx reservation.Tx) error {
		return tx.Insert(ctx, r)
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, CountReservations(t, wrapper, resource.ID))
	assert.Equal(t, []string{"ReservationCreated"}, GetAuditEventTypes(t, wrapper, r.ID))
	assert.Contains(t, GetAuditPayload(t, wrapper, r.ID), r.HolderID.String())
}

func Test_WithinTx_RollsBackOnError(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	CleanUp(t, wrapper)
	store := wrapper.GetStore()

	// arrange
	resource := GivenResourceWasRegistered(t, ctx, store, 1)
	r := FixtureReservation(t, resource.ID, GivenWindow(t, FixtureBaseTime(), 0, time.Hour))

	// act
	err := store.WithinTx(ctx, func(ctx context.Context, tx reservation.Tx) error {
		if insertErr := tx.Insert(ctx, r); insertErr != nil {
			return insertErr
		}

		return errFromFn
	})

	// assert
	assert.ErrorIs(t, err, errFromFn)
	assert.Zero(t, CountReservations(t, wrapper, resource.ID))
	assert.Empty(t, GetAuditEventTypes(t, wrapper, r.ID))
}

func Test_Tx_ReadsBackWhatWasWritten(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	CleanUp(t, wrapper)
	store := wrapper.GetStore()

	// arrange
	base := FixtureBaseTime()
	resource := GivenResourceWasRegistered(t, ctx, store, 2)
	r := FixtureReservation(t, resource.ID, GivenWindow(t, base, 0, time.Hour))

	// act
	var found, foundByHolder reservation.Reservations
	var byID reservation.Reservation
	var locked reservation.Resource

	err := store.WithinTx(ctx, func(ctx context.Context, tx reservation.Tx) error {
		if insertErr := tx.Insert(ctx, r); insertErr != nil {
			return insertErr
		}

		var txErr error
		if locked, txErr = tx.LockResource(ctx, resource.ID); txErr != nil {
			return txErr
		}

		if byID, txErr = tx.LockReservation(ctx, r.ID); txErr != nil {
			return txErr
		}

		if found, txErr = tx.FindByResource(ctx, resource.ID); txErr != nil {
			return txErr
		}

		foundByHolder, txErr = tx.FindByHolder(ctx, r.HolderID)

		return txErr
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, resource, locked)
	assert.Equal(t, r.ID, byID.ID)
	assert.True(t, byID.Window.Start.Equal(r.Window.Start))
	assert.True(t, byID.Window.End.Equal(r.Window.End))
	assert.True(t, byID.Active)
	assert.Nil(t, byID.ClosedAt)
	require.Len(t, found, 1)
	require.Len(t, foundByHolder, 1)
}

func Test_Tx_NotFoundErrors(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	CleanUp(t, wrapper)

	// act
	var resourceErr, reservationErr error
	_ = wrapper.GetStore().WithinTx(ctx, func(ctx context.Context, tx reservation.Tx) error {
		_, resourceErr = tx.GetResource(ctx, GivenUniqueID(t))
		_, reservationErr = tx.FindByID(ctx, GivenUniqueID(t))
		return nil
	})

	// assert
	assert.ErrorIs(t, resourceErr, reservation.ErrResourceNotFound)
	assert.ErrorIs(t, reservationErr, reservation.ErrReservationNotFound)
}

func Test_Resolver_Lifecycle_WritesAuditTrail(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	CleanUp(t, wrapper)
	resolver := setupResolver(t, wrapper)

	// arrange
	base := FixtureBaseTime()
	resource := GivenResourceWasRegistered(t, ctx, wrapper.GetStore(), 1)
	created := GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, base, 0, time.Hour))

	// act
	extended, extendErr := resolver.Extend(ctx, reservation.BuildExtendCommand(created.ID, created.HolderID, base.Add(2*time.Hour)))
	closed, closeErr := resolver.CloseEarly(ctx, reservation.BuildCloseEarlyCommand(created.ID, created.HolderID, base.Add(90*time.Minute)))
	_, againErr := resolver.CloseEarly(ctx, reservation.BuildCloseEarlyCommand(created.ID, created.HolderID, base.Add(100*time.Minute)))

	// assert
	require.NoError(t, extendErr)
	require.NoError(t, closeErr)
	assert.ErrorIs(t, againErr, reservation.ErrAlreadyClosed)
	assert.Equal(t, base.Add(2*time.Hour), extended.Window.End)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, base.Add(90*time.Minute), *closed.ClosedAt)

	assert.Equal(t,
		[]string{"ReservationCreated", "ReservationExtended", "ReservationClosedEarly"},
		GetAuditEventTypes(t, wrapper, created.ID),
	)
	assert.Contains(t, GetAuditPayload(t, wrapper, created.ID), "closedAt")
}

func Test_Resolver_CapacityAndConflict(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	CleanUp(t, wrapper)
	resolver := setupResolver(t, wrapper)

	// arrange
	base := FixtureBaseTime()
	resource := GivenResourceWasRegistered(t, ctx, wrapper.GetStore(), 2)
	first := GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, base, 0, time.Hour))
	GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, base, 0, time.Hour))
	GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, base, 2*time.Hour, time.Hour))

	// act
	_, capacityErr := resolver.Create(ctx, reservation.BuildCreateCommand(resource.ID, GivenUniqueID(t), base.Add(30*time.Minute), base.Add(45*time.Minute)))
	_, conflictErr := resolver.Extend(ctx, reservation.BuildExtendCommand(first.ID, first.HolderID, base.Add(150*time.Minute)))
	free, availabilityErr := resolver.Availability(ctx, resource.ID, GivenWindow(t, base, 2*time.Hour, time.Hour))

	// assert
	assert.ErrorIs(t, capacityErr, reservation.ErrCapacityExceeded)
	assert.ErrorIs(t, conflictErr, reservation.ErrConflict)
	require.NoError(t, availabilityErr)
	assert.Equal(t, 1, free)
	assert.Equal(t, 3, CountReservations(t, wrapper, resource.ID))
}

func Test_Resolver_Concurrent_CapacityIsNeverExceeded(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	wrapper := CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	CleanUp(t, wrapper)
	resolver := setupResolver(t, wrapper, reservation.WithTxTimeout(10*time.Second))

	// arrange
	resource := GivenResourceWasRegistered(t, ctx, wrapper.GetStore(), 3)
	window := GivenWindow(t, FixtureBaseTime(), 0, time.Hour)
	contenders := 12

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, rejections := 0, 0

	// act
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := resolver.Create(ctx, reservation.BuildCreateCommand(resource.ID, GivenUniqueID(t), window.Start, window.End))

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				successes++
			case errors.Is(err, reservation.ErrCapacityExceeded):
				rejections++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// assert
	assert.Equal(t, resource.Capacity, successes)
	assert.Equal(t, contenders-resource.Capacity, rejections)
	assert.Equal(t, resource.Capacity, CountReservations(t, wrapper, resource.ID))
}

func Test_Store_WithoutAuditTrail(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wrapper := CreateWrapperWithTestConfig(t, postgresengine.WithoutAuditTrail())
	defer wrapper.Close()
	CleanUp(t, wrapper)
	resolver := setupResolver(t, wrapper)

	// arrange
	resource := GivenResourceWasRegistered(t, ctx, wrapper.GetStore(), 1)

	// act
	created := GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, FixtureBaseTime(), 0, time.Hour))

	// assert
	assert.Empty(t, GetAuditEventTypes(t, wrapper, created.ID))
}

func Test_Observability_Store_WithLogger_LogsStatements(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logHandler := NewLogHandlerSpy(false)
	wrapper := CreateWrapperWithTestConfig(t, postgresengine.WithLogger(slog.New(logHandler)))
	defer wrapper.Close()
	CleanUp(t, wrapper)
	resolver := setupResolver(t, wrapper)

	// arrange
	resource := GivenResourceWasRegistered(t, ctx, wrapper.GetStore(), 1)
	logHandler.Reset()

	// act
	GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, FixtureBaseTime(), 0, time.Hour))

	// assert
	assert.True(t, logHandler.HasDebugLogWithMessage("executed sql for: lock_resource").
		WithDurationMS().
		WithAttributeKey("query").
		Assert(), "should log the resource lock statement")
	assert.True(t, logHandler.HasDebugLogWithMessage("executed sql for: insert").WithDurationMS().Assert())
	assert.True(t, logHandler.HasInfoLogWithMessage("reservation store operation: insert").WithRowsAffected().Assert())
	assert.True(t, logHandler.HasInfoLogWithMessage("transaction committed").WithDurationMS().Assert())
}

func Test_Observability_Store_WithContextualLogger_LogsRollback(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	contextualLogger := NewContextualLoggerSpy(true)
	wrapper := CreateWrapperWithTestConfig(t, postgresengine.WithContextualLogger(contextualLogger))
	defer wrapper.Close()
	CleanUp(t, wrapper)

	// act
	err := wrapper.GetStore().WithinTx(ctx, func(_ context.Context, _ reservation.Tx) error {
		return errFromFn
	})

	// assert
	assert.ErrorIs(t, err, errFromFn)
	assert.True(t, contextualLogger.HasLog(LevelInfo, "transaction rolled back"))
	assert.True(t, contextualLogger.HasLog(LevelDebug, "executed sql for: lock_timeout"))
}
