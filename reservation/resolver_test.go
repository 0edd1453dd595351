package reservation_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
	"github.com/AntonStoeckl/reservation-engine-go/reservation/memengine"
	. "github.com/AntonStoeckl/reservation-engine-go/testutil/helper" //nolint:revive
)

func setupResolver(t *testing.T, options ...reservation.Option) (*memengine.Store, reservation.Resolver) {
	t.Helper()

	store, err := memengine.NewStore()
	require.NoError(t, err)

	options = append([]reservation.Option{reservation.WithClock(reservation.NewFixedClock(FixtureBaseTime()))}, options...)
	resolver, err := reservation.NewResolver(store, options...)
	require.NoError(t, err)

	return store, resolver
}

func Test_NewResolver_Errors(t *testing.T) {
	// act
	_, nilStoreErr := reservation.NewResolver(nil)

	store, err := memengine.NewStore()
	require.NoError(t, err)
	_, timeoutErr := reservation.NewResolver(store, reservation.WithTxTimeout(0))

	// assert
	assert.ErrorIs(t, nilStoreErr, reservation.ErrNilStore)
	assert.ErrorIs(t, timeoutErr, reservation.ErrInvalidTxTimeout)
}

func Test_Resolver_Create_Success(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 1)
	holderID := GivenUniqueID(t)
	window := GivenWindow(t, FixtureBaseTime(), time.Hour, 2*time.Hour)

	// act
	created, err := resolver.Create(ctx, reservation.BuildCreateCommand(resource.ID, holderID, window.Start, window.End))

	// assert
	require.NoError(t, err)
	assert.Equal(t, resource.ID, created.ResourceID)
	assert.Equal(t, holderID, created.HolderID)
	assert.Equal(t, window, created.Window)
	assert.True(t, created.Active)
	assert.Nil(t, created.ClosedAt)
	assert.Equal(t, FixtureBaseTime(), created.CreatedAt)

	stored, err := store.Reservations(ctx, resource.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, created, stored[0])
}

func Test_Resolver_Create_Error_CapacityExceeded(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 2)
	window := GivenWindow(t, FixtureBaseTime(), 0, 4*time.Hour)
	GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), window)
	GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), window)
	overlapping := GivenWindow(t, FixtureBaseTime(), time.Hour, time.Hour)

	// act
	_, err := resolver.Create(ctx, reservation.BuildCreateCommand(resource.ID, GivenUniqueID(t), overlapping.Start, overlapping.End))

	// assert
	assert.ErrorIs(t, err, reservation.ErrCapacityExceeded)
	assert.Equal(t, reservation.FailureCapacityExceeded, reservation.KindOf(err))

	stored, _ := store.Reservations(ctx, resource.ID)
	assert.Len(t, stored, 2, "a rejected create must not change the reservation set")
}

func Test_Resolver_Create_Success_TouchingWindowsDoNotConflict(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 1)
	first := GivenWindow(t, FixtureBaseTime(), 0, time.Hour)
	GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), first)

	// act
	_, err := resolver.Create(ctx, reservation.BuildCreateCommand(resource.ID, GivenUniqueID(t), first.End, first.End.Add(time.Hour)))

	// assert
	assert.NoError(t, err)
}

func Test_Resolver_Create_Errors_InvalidInput(t *testing.T) {
	ctx := context.Background()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 1)
	base := FixtureBaseTime()

	testCases := []struct {
		name        string
		command     reservation.CreateCommand
		expectedErr error
	}{
		{
			name:        "empty window",
			command:     reservation.BuildCreateCommand(resource.ID, GivenUniqueID(t), base, base),
			expectedErr: reservation.ErrInvalidWindow,
		},
		{
			name:        "reversed window",
			command:     reservation.BuildCreateCommand(resource.ID, GivenUniqueID(t), base.Add(time.Hour), base),
			expectedErr: reservation.ErrInvalidWindow,
		},
		{
			name:        "unknown resource",
			command:     reservation.BuildCreateCommand(GivenUniqueID(t), GivenUniqueID(t), base, base.Add(time.Hour)),
			expectedErr: reservation.ErrResourceNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, err := resolver.Create(ctx, tc.command)

			// assert
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}

	stored, _ := store.Reservations(ctx, resource.ID)
	assert.Empty(t, stored)
}

func Test_Resolver_Create_Success_AfterCloseEarlyFreesUnit(t *testing.T) {
	// arrange
	ctx := context.Background()
	base := FixtureBaseTime()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 1)
	first := GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, base, 0, 4*time.Hour))
	GivenReservationWasClosedEarly(t, ctx, resolver, first, base.Add(time.Hour))

	freed := GivenWindow(t, base, time.Hour, 3*time.Hour)
	stillOccupied := GivenWindow(t, base, 30*time.Minute, time.Hour)

	// act
	_, freedErr := resolver.Create(ctx, reservation.BuildCreateCommand(resource.ID, GivenUniqueID(t), freed.Start, freed.End))
	_, occupiedErr := resolver.Create(ctx, reservation.BuildCreateCommand(resource.ID, GivenUniqueID(t), stillOccupied.Start, stillOccupied.End))

	// assert
	assert.NoError(t, freedErr, "the unit is bookable from the close instant on")
	assert.ErrorIs(t, occupiedErr, reservation.ErrCapacityExceeded, "the time before the close stays occupied")
}

func Test_Resolver_CloseEarly_Success(t *testing.T) {
	// arrange
	ctx := context.Background()
	base := FixtureBaseTime()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 1)
	created := GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, base, 0, 4*time.Hour))
	closeAt := base.Add(90 * time.Minute)

	// act
	closed, err := resolver.CloseEarly(ctx, reservation.BuildCloseEarlyCommand(created.ID, created.HolderID, closeAt))

	// assert
	require.NoError(t, err)
	assert.False(t, closed.Active)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, closeAt, *closed.ClosedAt)
	assert.Equal(t, created.Window, closed.Window, "closing never changes the reserved window")
	assert.Equal(t, reservation.StateClosedEarly, closed.StateAt(base))
}

func Test_Resolver_CloseEarly_ClampsCloseInstant(t *testing.T) {
	ctx := context.Background()
	base := FixtureBaseTime()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 5)
	window := GivenWindow(t, base, time.Hour, 2*time.Hour)

	testCases := []struct {
		name     string
		asOf     time.Time
		expected time.Time
	}{
		{name: "before start", asOf: base, expected: window.Start},
		{name: "after end", asOf: base.Add(10 * time.Hour), expected: window.End},
		{name: "zero uses the clock", asOf: time.Time{}, expected: window.Start},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			created := GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), window)

			// act
			closed, err := resolver.CloseEarly(ctx, reservation.BuildCloseEarlyCommand(created.ID, created.HolderID, tc.asOf))

			// assert
			require.NoError(t, err)
			require.NotNil(t, closed.ClosedAt)
			assert.Equal(t, tc.expected, *closed.ClosedAt)
		})
	}
}

func Test_Resolver_CloseEarly_Errors(t *testing.T) {
	ctx := context.Background()
	base := FixtureBaseTime()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 3)
	window := GivenWindow(t, base, 0, 4*time.Hour)
	active := GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), window)
	closed := GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), window)
	GivenReservationWasClosedEarly(t, ctx, resolver, closed, base.Add(time.Hour))

	testCases := []struct {
		name        string
		command     reservation.CloseEarlyCommand
		expectedErr error
	}{
		{
			name:        "unknown reservation",
			command:     reservation.BuildCloseEarlyCommand(GivenUniqueID(t), active.HolderID, base),
			expectedErr: reservation.ErrReservationNotFound,
		},
		{
			name:        "foreign holder",
			command:     reservation.BuildCloseEarlyCommand(active.ID, GivenUniqueID(t), base),
			expectedErr: reservation.ErrForbidden,
		},
		{
			name:        "already closed",
			command:     reservation.BuildCloseEarlyCommand(closed.ID, closed.HolderID, base.Add(2*time.Hour)),
			expectedErr: reservation.ErrAlreadyClosed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, err := resolver.CloseEarly(ctx, tc.command)

			// assert
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}

	stored, _ := store.Reservations(ctx, resource.ID)
	require.Len(t, stored, 2)
	assert.True(t, stored[0].Active, "a rejected close must not change the reservation")
	assert.Equal(t, base.Add(time.Hour), *stored[1].ClosedAt, "a repeated close must not move the close instant")
}

func Test_Resolver_Extend_Success(t *testing.T) {
	// arrange
	ctx := context.Background()
	base := FixtureBaseTime()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 1)
	created := GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, base, 0, time.Hour))
	GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, base, 3*time.Hour, time.Hour))
	newEnd := base.Add(3 * time.Hour)

	// act
	extended, err := resolver.Extend(ctx, reservation.BuildExtendCommand(created.ID, created.HolderID, newEnd))

	// assert
	require.NoError(t, err)
	assert.Equal(t, created.Window.Start, extended.Window.Start)
	assert.Equal(t, newEnd, extended.Window.End, "extending up to the next reservation's start touches but does not overlap")
	assert.True(t, extended.Active)

	stored, _ := store.Reservations(ctx, resource.ID)
	assert.Equal(t, newEnd, stored[0].Window.End)
}

func Test_Resolver_Extend_Success_Shrink(t *testing.T) {
	// arrange
	ctx := context.Background()
	base := FixtureBaseTime()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 1)
	created := GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, base, 0, 4*time.Hour))

	// act
	shrunk, err := resolver.Extend(ctx, reservation.BuildExtendCommand(created.ID, created.HolderID, base.Add(time.Hour)))

	// assert
	require.NoError(t, err)
	assert.Equal(t, time.Hour, shrunk.Window.Duration())
}

func Test_Resolver_Extend_Error_ConflictEvenWithSpareCapacity(t *testing.T) {
	// arrange
	ctx := context.Background()
	base := FixtureBaseTime()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 5)
	created := GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, base, 0, time.Hour))
	GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, base, 2*time.Hour, time.Hour))

	// act
	_, err := resolver.Extend(ctx, reservation.BuildExtendCommand(created.ID, created.HolderID, base.Add(150*time.Minute)))

	// assert
	assert.ErrorIs(t, err, reservation.ErrConflict)

	stored, _ := store.Reservations(ctx, resource.ID)
	assert.Equal(t, created.Window.End, stored[0].Window.End, "a rejected extend must not move the end")
}

func Test_Resolver_Extend_Errors(t *testing.T) {
	ctx := context.Background()
	base := FixtureBaseTime()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 3)
	window := GivenWindow(t, base, time.Hour, time.Hour)
	active := GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), window)
	closed := GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, base, 4*time.Hour, time.Hour))
	GivenReservationWasClosedEarly(t, ctx, resolver, closed, base)

	testCases := []struct {
		name        string
		command     reservation.ExtendCommand
		expectedErr error
	}{
		{
			name:        "unknown reservation",
			command:     reservation.BuildExtendCommand(GivenUniqueID(t), active.HolderID, window.End.Add(time.Hour)),
			expectedErr: reservation.ErrReservationNotFound,
		},
		{
			name:        "foreign holder",
			command:     reservation.BuildExtendCommand(active.ID, GivenUniqueID(t), window.End.Add(time.Hour)),
			expectedErr: reservation.ErrForbidden,
		},
		{
			name:        "new end before start",
			command:     reservation.BuildExtendCommand(active.ID, active.HolderID, window.Start.Add(-time.Minute)),
			expectedErr: reservation.ErrForbidden,
		},
		{
			name:        "new end equals start",
			command:     reservation.BuildExtendCommand(active.ID, active.HolderID, window.Start),
			expectedErr: reservation.ErrInvalidWindow,
		},
		{
			name:        "already closed",
			command:     reservation.BuildExtendCommand(closed.ID, closed.HolderID, base.Add(6*time.Hour)),
			expectedErr: reservation.ErrAlreadyClosed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, err := resolver.Extend(ctx, tc.command)

			// assert
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func Test_Resolver_ListByHolder_Filters(t *testing.T) {
	// arrange
	ctx := context.Background()
	base := FixtureBaseTime()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 5)
	holderID := GivenUniqueID(t)

	current := GivenReservationWasCreated(t, ctx, resolver, resource.ID, holderID, GivenWindow(t, base, -time.Hour, 2*time.Hour))
	future := GivenReservationWasCreated(t, ctx, resolver, resource.ID, holderID, GivenWindow(t, base, time.Hour, time.Hour))
	expired := GivenReservationWasCreated(t, ctx, resolver, resource.ID, holderID, GivenWindow(t, base, -3*time.Hour, time.Hour))
	closed := GivenReservationWasCreated(t, ctx, resolver, resource.ID, holderID, GivenWindow(t, base, -time.Hour, 4*time.Hour))
	GivenReservationWasClosedEarly(t, ctx, resolver, closed, base.Add(-30*time.Minute))
	GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), GivenWindow(t, base, 0, time.Hour))

	// act
	all, allErr := resolver.ListByHolder(ctx, holderID, reservation.ListAll)
	currentOnly, currentErr := resolver.ListByHolder(ctx, holderID, reservation.ListCurrentOnly)
	historyOnly, historyErr := resolver.ListByHolder(ctx, holderID, reservation.ListHistoryOnly)

	// assert
	require.NoError(t, allErr)
	require.NoError(t, currentErr)
	require.NoError(t, historyErr)
	assert.Len(t, all, 4)
	assert.ElementsMatch(t, []reservation.ReservationID{current.ID, future.ID}, ids(currentOnly))
	assert.ElementsMatch(t, []reservation.ReservationID{expired.ID, closed.ID}, ids(historyOnly))
}

func Test_Resolver_Availability(t *testing.T) {
	// arrange
	ctx := context.Background()
	base := FixtureBaseTime()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 3)
	window := GivenWindow(t, base, 0, 2*time.Hour)
	GivenReservationWasCreated(t, ctx, resolver, resource.ID, GivenUniqueID(t), window)

	// act
	free, err := resolver.Availability(ctx, resource.ID, window)
	_, invalidErr := resolver.Availability(ctx, resource.ID, reservation.Window{Start: base, End: base})
	_, unknownErr := resolver.Availability(ctx, GivenUniqueID(t), window)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 2, free)
	assert.ErrorIs(t, invalidErr, reservation.ErrInvalidWindow)
	assert.ErrorIs(t, unknownErr, reservation.ErrResourceNotFound)
}

func Test_Resolver_Create_Concurrent_LastUnitHasOneWinner(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, resolver := setupResolver(t)
	resource := GivenResourceWasRegistered(t, ctx, store, 1)
	window := GivenWindow(t, FixtureBaseTime(), 0, time.Hour)
	contenders := 20

	var wg sync.WaitGroup
	errs := make(chan error, contenders)

	// act
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := resolver.Create(ctx, reservation.BuildCreateCommand(resource.ID, GivenUniqueID(t), window.Start, window.End))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// assert
	successes, rejections := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, reservation.ErrCapacityExceeded):
			rejections++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, contenders-1, rejections)

	stored, _ := store.Reservations(ctx, resource.ID)
	assert.LessOrEqual(t, reservation.PeakOccupancy(stored), resource.Capacity)
}

func Test_Resolver_Create_Error_StoreFailureAppliesNothing(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, err := memengine.NewStore(memengine.WithCommitHook(func(_ context.Context) error {
		return reservation.ErrStoreUnavailable
	}))
	require.NoError(t, err)
	resolver, err := reservation.NewResolver(store)
	require.NoError(t, err)
	resource := GivenResourceWasRegistered(t, ctx, store, 1)
	window := GivenWindow(t, FixtureBaseTime(), 0, time.Hour)

	// act
	_, createErr := resolver.Create(ctx, reservation.BuildCreateCommand(resource.ID, GivenUniqueID(t), window.Start, window.End))

	// assert
	assert.ErrorIs(t, createErr, reservation.ErrStoreUnavailable)
	assert.True(t, reservation.IsRetryable(createErr))

	stored, _ := store.Reservations(ctx, resource.ID)
	assert.Empty(t, stored)
}

func Test_Resolver_Create_Error_TransactionTimeout(t *testing.T) {
	// arrange
	ctx := context.Background()
	store, err := memengine.NewStore(memengine.WithCommitHook(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	require.NoError(t, err)
	resolver, err := reservation.NewResolver(store, reservation.WithTxTimeout(20*time.Millisecond))
	require.NoError(t, err)
	resource := GivenResourceWasRegistered(t, ctx, store, 1)
	window := GivenWindow(t, FixtureBaseTime(), 0, time.Hour)

	// act
	_, createErr := resolver.Create(ctx, reservation.BuildCreateCommand(resource.ID, GivenUniqueID(t), window.Start, window.End))

	// assert
	assert.ErrorIs(t, createErr, reservation.ErrTransactionTimeout)
	assert.Equal(t, reservation.FailureStoreUnavailable, reservation.KindOf(createErr))

	stored, _ := store.Reservations(ctx, resource.ID)
	assert.Empty(t, stored, "a timed-out transaction applies nothing")
}

func Test_Resolver_RandomOperationSequences_KeepCapacityInvariant(t *testing.T) {
	const seeds = 25
	const steps = 60

	base := FixtureBaseTime()
	succeeded := map[string]int{}

	for seed := uint64(1); seed <= seeds; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			// arrange
			ctx := context.Background()
			rng := rand.New(rand.NewPCG(seed, seed*7919)) //nolint:gosec
			store, resolver := setupResolver(t)
			resource := GivenResourceWasRegistered(t, ctx, store, 1+rng.IntN(3))
			holders := []reservation.HolderID{GivenUniqueID(t), GivenUniqueID(t), GivenUniqueID(t)}
			var created reservation.Reservations

			for step := 0; step < steps; step++ {
				// act
				var operation string
				var err error

				switch pick := rng.IntN(3); {
				case pick == 0 || len(created) == 0:
					operation = "create"
					start := base.Add(time.Duration(rng.IntN(24)) * time.Hour)
					end := start.Add(time.Duration(1+rng.IntN(6)) * time.Hour)

					var r reservation.Reservation
					r, err = resolver.Create(ctx, reservation.BuildCreateCommand(resource.ID, holders[rng.IntN(len(holders))], start, end))
					if err == nil {
						created = append(created, r)
					}
				case pick == 1:
					operation = "close_early"
					target := created[rng.IntN(len(created))]
					asOf := base.Add(time.Duration(rng.IntN(30*60)) * time.Minute)
					_, err = resolver.CloseEarly(ctx, reservation.BuildCloseEarlyCommand(target.ID, target.HolderID, asOf))
				default:
					operation = "extend"
					target := created[rng.IntN(len(created))]
					newEnd := target.Window.Start.Add(time.Duration(1+rng.IntN(10)) * time.Hour)
					_, err = resolver.Extend(ctx, reservation.BuildExtendCommand(target.ID, target.HolderID, newEnd))
				}

				// assert
				switch {
				case err == nil:
					succeeded[operation]++
				case errors.Is(err, reservation.ErrCapacityExceeded),
					errors.Is(err, reservation.ErrConflict),
					errors.Is(err, reservation.ErrAlreadyClosed):
				default:
					require.NoError(t, err, "step %d: %s failed with a non-business error", step, operation)
				}

				stored, readErr := store.Reservations(ctx, resource.ID)
				require.NoError(t, readErr)
				require.LessOrEqual(t, reservation.PeakOccupancy(stored), resource.Capacity,
					"step %d: %s overbooked a resource of capacity %d", step, operation, resource.Capacity)

				for _, r := range stored {
					require.True(t, r.Window.Start.Before(r.Window.End), "step %d: window of %s became empty", step, r.ID)
				}
			}
		})
	}

	assert.Positive(t, succeeded["create"])
	assert.Positive(t, succeeded["close_early"])
	assert.Positive(t, succeeded["extend"])
}

func ids(reservations reservation.Reservations) []reservation.ReservationID {
	result := make([]reservation.ReservationID, 0, len(reservations))
	for _, r := range reservations {
		result = append(result, r.ID)
	}

	return result
}
