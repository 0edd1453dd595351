package helper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
)

// ResourceRegistrar is implemented by every reservation store of this module.
type ResourceRegistrar interface {
	RegisterResource(ctx context.Context, resource reservation.Resource) error
}

// FixtureBaseTime is a fixed point in time used as "now" across tests.
func FixtureBaseTime() time.Time {
	return time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
}

// GivenUniqueID generates a unique UUID for testing.
func GivenUniqueID(t testing.TB) uuid.UUID {
	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return id
}

// GivenWindow builds a window that starts offset after base and lasts length.
func GivenWindow(t testing.TB, base time.Time, offset time.Duration, length time.Duration) reservation.Window {
	window, err := reservation.BuildWindow(base.Add(offset), base.Add(offset+length))
	assert.NoError(t, err, "error in arranging test data")

	return window
}

// GivenResourceWasRegistered registers a new resource with the given capacity.
func GivenResourceWasRegistered(
	t testing.TB,
	ctx context.Context, //nolint:revive
	store ResourceRegistrar,
	capacity int,
) reservation.Resource {

	resource := reservation.Resource{ID: GivenUniqueID(t), Capacity: capacity}
	err := store.RegisterResource(ctx, resource)
	assert.NoError(t, err, "error in arranging test data")

	return resource
}

// GivenReservationWasCreated creates a reservation through the Resolver.
func GivenReservationWasCreated(
	t testing.TB,
	ctx context.Context, //nolint:revive
	resolver reservation.Resolver,
	resourceID reservation.ResourceID,
	holderID reservation.HolderID,
	window reservation.Window,
) reservation.Reservation {

	created, err := resolver.Create(ctx, reservation.BuildCreateCommand(resourceID, holderID, window.Start, window.End))
	assert.NoError(t, err, "error in arranging test data")

	return created
}

// GivenReservationWasClosedEarly closes the reservation through the Resolver.
func GivenReservationWasClosedEarly(
	t testing.TB,
	ctx context.Context, //nolint:revive
	resolver reservation.Resolver,
	r reservation.Reservation,
	asOf time.Time,
) reservation.Reservation {

	closed, err := resolver.CloseEarly(ctx, reservation.BuildCloseEarlyCommand(r.ID, r.HolderID, asOf))
	assert.NoError(t, err, "error in arranging test data")

	return closed
}

// FixtureReservation builds a reservation value without storing it.
func FixtureReservation(
	t testing.TB,
	resourceID reservation.ResourceID,
	window reservation.Window,
) reservation.Reservation {

	return reservation.Reservation{
		ID:         GivenUniqueID(t),
		ResourceID: resourceID,
		HolderID:   GivenUniqueID(t),
		Window:     window,
		Active:     true,
		CreatedAt:  FixtureBaseTime(),
		UpdatedAt:  FixtureBaseTime(),
	}
}

// FixtureClosedReservation builds a reservation that was closed at closedAt.
func FixtureClosedReservation(
	t testing.TB,
	resourceID reservation.ResourceID,
	window reservation.Window,
	closedAt time.Time,
) reservation.Reservation {

	r := FixtureReservation(t, resourceID, window)
	r.Active = false
	r.ClosedAt = &closedAt

	return r
}
