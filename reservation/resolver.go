package reservation

import (
	"context"
	"errors"
	"time"
)

const (
	operationCreate       = "create"
	operationCloseEarly   = "close_early"
	operationExtend       = "extend"
	operationListByHolder = "list_by_holder"
	operationAvailability = "availability"
)

// Resolver orchestrates the reservation lifecycle transitions against a Store.
//
// Every operation runs in exactly one store transaction. Create and Extend lock the
// resource row first, which serialises concurrent decisions on the same resource.
// A failed operation leaves the reservation set exactly as it was.
type Resolver struct {
	store            Store
	ledger           Ledger
	clock            Clock
	txTimeout        time.Duration
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// NewResolver creates a Resolver on top of store with optional configuration.
func NewResolver(store Store, opts ...Option) (Resolver, error) {
	if store == nil {
		return Resolver{}, ErrNilStore
	}

	r := Resolver{
		store: store,
		clock: NewSystemClock(),
	}

	for _, opt := range opts {
		if err := opt(&r); err != nil {
			return Resolver{}, err
		}
	}

	return r, nil
}

// Create reserves one unit of the resource for the command's window.
//
// Fails with ErrInvalidWindow, ErrResourceNotFound or ErrCapacityExceeded.
func (r Resolver) Create(ctx context.Context, command CreateCommand) (Reservation, error) {
	observer, ctx := r.startOperation(ctx, operationCreate, SpanNameCreate, map[string]string{
		AttrResourceID: command.ResourceID.String(),
		AttrHolderID:   command.HolderID.String(),
	})

	created, err := r.create(ctx, command)
	observer.finish(err, logAttrReservationID, created.ID.String(), logAttrResourceID, command.ResourceID.String())

	return created, err
}

func (r Resolver) create(ctx context.Context, command CreateCommand) (Reservation, error) {
	if command.Window.IsEmpty() {
		return Reservation{}, ErrInvalidWindow
	}

	id, err := NewReservationID()
	if err != nil {
		return Reservation{}, err
	}

	var created Reservation

	err = r.withinTx(ctx, func(ctx context.Context, tx Tx) error {
		resource, lockErr := tx.LockResource(ctx, command.ResourceID)
		if lockErr != nil {
			return lockErr
		}

		if validateErr := resource.Validate(); validateErr != nil {
			return validateErr
		}

		hasCapacity, ledgerErr := r.ledger.HasCapacity(ctx, tx, resource.ID, command.Window, resource.Capacity)
		if ledgerErr != nil {
			return ledgerErr
		}

		if !hasCapacity {
			return ErrCapacityExceeded
		}

		now := r.clock.Now()
		candidate := Reservation{
			ID:         id,
			ResourceID: resource.ID,
			HolderID:   command.HolderID,
			Window:     command.Window,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if insertErr := tx.Insert(ctx, candidate); insertErr != nil {
			return insertErr
		}

		created = candidate

		return nil
	})

	if err != nil {
		return Reservation{}, err
	}

	return created, nil
}

// CloseEarly ends the reservation at the command's instant, clamped into the reservation's window.
// The freed unit is bookable from that instant on.
//
// Fails with ErrReservationNotFound, ErrForbidden or ErrAlreadyClosed.
func (r Resolver) CloseEarly(ctx context.Context, command CloseEarlyCommand) (Reservation, error) {
	observer, ctx := r.startOperation(ctx, operationCloseEarly, SpanNameCloseEarly, map[string]string{
		AttrReservationID: command.ReservationID.String(),
		AttrHolderID:      command.HolderID.String(),
	})

	closed, err := r.closeEarly(ctx, command)
	observer.finish(err, logAttrReservationID, command.ReservationID.String())

	return closed, err
}

func (r Resolver) closeEarly(ctx context.Context, command CloseEarlyCommand) (Reservation, error) {
	if command.AsOf.IsZero() {
		command.AsOf = r.clock.Now()
	}

	var closed Reservation

	err := r.withinTx(ctx, func(ctx context.Context, tx Tx) error {
		current, lockErr := tx.LockReservation(ctx, command.ReservationID)
		if lockErr != nil {
			return lockErr
		}

		closedAt, decideErr := decideCloseEarly(current, command)
		if decideErr != nil {
			return decideErr
		}

		now := r.clock.Now()
		if markErr := tx.MarkClosed(ctx, current.ID, closedAt, now); markErr != nil {
			return markErr
		}

		current.Active = false
		current.ClosedAt = &closedAt
		current.UpdatedAt = now
		closed = current

		return nil
	})

	if err != nil {
		return Reservation{}, err
	}

	return closed, nil
}

// Extend moves the end of the reservation to the command's new end.
//
// Unlike Create, capacity is not consulted: any overlap of the new window with another
// reservation on the same resource is rejected with ErrConflict.
//
// Fails with ErrReservationNotFound, ErrForbidden, ErrAlreadyClosed, ErrInvalidWindow or ErrConflict.
func (r Resolver) Extend(ctx context.Context, command ExtendCommand) (Reservation, error) {
	observer, ctx := r.startOperation(ctx, operationExtend, SpanNameExtend, map[string]string{
		AttrReservationID: command.ReservationID.String(),
		AttrHolderID:      command.HolderID.String(),
	})

	extended, err := r.extend(ctx, command)
	observer.finish(err, logAttrReservationID, command.ReservationID.String())

	return extended, err
}

func (r Resolver) extend(ctx context.Context, command ExtendCommand) (Reservation, error) {
	var extended Reservation

	err := r.withinTx(ctx, func(ctx context.Context, tx Tx) error {
		// The resource id never changes, so an unlocked read is enough to find the lock order:
		// resource first, then reservation, the same order Create uses.
		unlocked, findErr := tx.FindByID(ctx, command.ReservationID)
		if findErr != nil {
			return findErr
		}

		if _, decideErr := decideExtend(unlocked, command); decideErr != nil {
			return decideErr
		}

		if _, lockErr := tx.LockResource(ctx, unlocked.ResourceID); lockErr != nil {
			return lockErr
		}

		current, lockErr := tx.LockReservation(ctx, command.ReservationID)
		if lockErr != nil {
			return lockErr
		}

		candidate, decideErr := decideExtend(current, command)
		if decideErr != nil {
			return decideErr
		}

		occupancy, ledgerErr := r.ledger.Occupancy(ctx, tx, current.ResourceID, candidate, current.ID)
		if ledgerErr != nil {
			return ledgerErr
		}

		if occupancy > 0 {
			return ErrConflict
		}

		now := r.clock.Now()
		if updateErr := tx.UpdateWindowEnd(ctx, current.ID, candidate.End, now); updateErr != nil {
			return updateErr
		}

		current.Window = candidate
		current.UpdatedAt = now
		extended = current

		return nil
	})

	if err != nil {
		return Reservation{}, err
	}

	return extended, nil
}

// ListByHolder returns the holder's reservations selected by filter, as of the Resolver's clock.
func (r Resolver) ListByHolder(ctx context.Context, holderID HolderID, filter ListFilter) (Reservations, error) {
	var selected Reservations

	err := r.withinTx(ctx, func(ctx context.Context, tx Tx) error {
		all, findErr := tx.FindByHolder(ctx, holderID)
		if findErr != nil {
			return findErr
		}

		asOf := r.clock.Now()
		selected = make(Reservations, 0, len(all))
		for _, reservation := range all {
			if matchesFilter(reservation, filter, asOf) {
				selected = append(selected, reservation)
			}
		}

		return nil
	})

	if err != nil {
		r.logFailure(ctx, operationListByHolder, err, logAttrHolderID, holderID.String())
		return nil, err
	}

	return selected, nil
}

// Availability returns how many more reservations for window the resource can take right now.
func (r Resolver) Availability(ctx context.Context, resourceID ResourceID, window Window) (int, error) {
	if window.IsEmpty() {
		return 0, ErrInvalidWindow
	}

	var free int

	err := r.withinTx(ctx, func(ctx context.Context, tx Tx) error {
		resource, getErr := tx.GetResource(ctx, resourceID)
		if getErr != nil {
			return getErr
		}

		available, ledgerErr := r.ledger.Available(ctx, tx, resource.ID, window, resource.Capacity)
		if ledgerErr != nil {
			return ledgerErr
		}

		free = available

		return nil
	})

	if err != nil {
		r.logFailure(ctx, operationAvailability, err, logAttrResourceID, resourceID.String())
		return 0, err
	}

	r.recordValue(ctx, MetricAvailableUnits, float64(free), operationAvailability)

	return free, nil
}

// withinTx runs fn in one store transaction bounded by the configured timeout.
// Deadline failures are reported as ErrTransactionTimeout.
func (r Resolver) withinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if r.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}

	err := r.store.WithinTx(ctx, fn)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrTransactionTimeout) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrTransactionTimeout, err)
	}

	return err
}
