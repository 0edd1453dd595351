package reservation

import (
	"context"
	"time"
)

// ReservationReader is the read primitive the Ledger needs. It is usable inside a transaction.
type ReservationReader interface {
	FindByResource(ctx context.Context, resourceID ResourceID) (Reservations, error)
}

// Tx is a transaction-scoped handle onto the reservation store.
//
// A Tx is only valid inside the function passed to Store.WithinTx and must not be retained.
// Mutation of an existing reservation is only possible through UpdateWindowEnd and MarkClosed.
type Tx interface {
	ReservationReader

	// GetResource reads a resource without locking it. Returns ErrResourceNotFound.
	GetResource(ctx context.Context, resourceID ResourceID) (Resource, error)

	// LockResource reads a resource and holds an exclusive lock on it until the transaction ends.
	// Returns ErrResourceNotFound.
	LockResource(ctx context.Context, resourceID ResourceID) (Resource, error)

	// FindByID reads a reservation without locking it. Returns ErrReservationNotFound.
	FindByID(ctx context.Context, id ReservationID) (Reservation, error)

	// LockReservation reads a reservation and holds an exclusive lock on it until the transaction ends.
	// Returns ErrReservationNotFound.
	LockReservation(ctx context.Context, id ReservationID) (Reservation, error)

	FindByHolder(ctx context.Context, holderID HolderID) (Reservations, error)

	Insert(ctx context.Context, r Reservation) error

	UpdateWindowEnd(ctx context.Context, id ReservationID, end time.Time, updatedAt time.Time) error

	MarkClosed(ctx context.Context, id ReservationID, closedAt time.Time, updatedAt time.Time) error
}

// Store runs functions inside ACID transactions.
//
// WithinTx commits if and only if fn returns nil. Any error from fn, or from beginning
// or committing the transaction, rolls back every change made through tx.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
