package memengine

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
)

var ErrTxDone = errors.New("transaction has already been committed or rolled back")
var ErrDuplicateReservation = errors.New("reservation id already exists")

// Store is an in-process reservation.Store.
//
// Transactions are fully serialised: only one runs at a time, and waiting for the turn honours
// the context deadline. Every transaction works on a staged copy of the data which replaces the
// committed state only when the transaction function returns nil.
type Store struct {
	turn       chan struct{}
	committed  *state
	commitHook func(ctx context.Context) error
}

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithCommitHook sets a function that runs right before a transaction would commit.
// Returning an error rolls the transaction back. Used to simulate store failures.
func WithCommitHook(hook func(ctx context.Context) error) Option {
	return func(s *Store) error {
		s.commitHook = hook
		return nil
	}
}

// NewStore creates an empty Store with optional configuration.
func NewStore(options ...Option) (*Store, error) {
	s := &Store{
		turn:      make(chan struct{}, 1),
		committed: newState(),
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// RegisterResource adds or replaces a resource in the catalog.
func (s *Store) RegisterResource(ctx context.Context, resource reservation.Resource) error {
	if err := resource.Validate(); err != nil {
		return err
	}

	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.committed.resources[resource.ID] = resource

	return nil
}

// Reservations returns a snapshot of all committed reservations on resourceID in insertion order.
func (s *Store) Reservations(ctx context.Context, resourceID reservation.ResourceID) (reservation.Reservations, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	return s.committed.byResource(resourceID), nil
}

// WithinTx runs fn in a serialised transaction and commits iff fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx reservation.Tx) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	tx := &memTx{staged: s.committed.clone()}
	defer tx.finish()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return errors.Join(reservation.ErrTransactionTimeout, err)
	}

	if s.commitHook != nil {
		if err := s.commitHook(ctx); err != nil {
			return err
		}
	}

	s.committed = tx.staged

	return nil
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.Join(reservation.ErrTransactionTimeout, ctx.Err())
		}

		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.turn
}

type state struct {
	resources    map[reservation.ResourceID]reservation.Resource
	reservations map[reservation.ReservationID]reservation.Reservation
	order        []reservation.ReservationID
}

func newState() *state {
	return &state{
		resources:    make(map[reservation.ResourceID]reservation.Resource),
		reservations: make(map[reservation.ReservationID]reservation.Reservation),
	}
}

func (st *state) clone() *state {
	cloned := &state{
		resources:    make(map[reservation.ResourceID]reservation.Resource, len(st.resources)),
		reservations: make(map[reservation.ReservationID]reservation.Reservation, len(st.reservations)),
		order:        slices.Clone(st.order),
	}

	for id, resource := range st.resources {
		cloned.resources[id] = resource
	}

	for id, r := range st.reservations {
		cloned.reservations[id] = copyReservation(r)
	}

	return cloned
}

func (st *state) byResource(resourceID reservation.ResourceID) reservation.Reservations {
	return st.filter(func(r reservation.Reservation) bool { return r.ResourceID == resourceID })
}

func (st *state) filter(keep func(r reservation.Reservation) bool) reservation.Reservations {
	result := make(reservation.Reservations, 0)
	for _, id := range st.order {
		r := st.reservations[id]
		if keep(r) {
			result = append(result, copyReservation(r))
		}
	}

	return result
}

func copyReservation(r reservation.Reservation) reservation.Reservation {
	if r.ClosedAt != nil {
		closedAt := *r.ClosedAt
		r.ClosedAt = &closedAt
	}

	return r
}

// memTx is the transaction-scoped handle. The whole store is held by the running transaction,
// so the Lock* methods only need to read.
type memTx struct {
	staged *state
	done   bool
}

func (tx *memTx) finish() {
	tx.done = true
}

func (tx *memTx) FindByResource(_ context.Context, resourceID reservation.ResourceID) (reservation.Reservations, error) {
	if tx.done {
		return nil, ErrTxDone
	}

	return tx.staged.byResource(resourceID), nil
}

func (tx *memTx) GetResource(_ context.Context, resourceID reservation.ResourceID) (reservation.Resource, error) {
	if tx.done {
		return reservation.Resource{}, ErrTxDone
	}

	resource, ok := tx.staged.resources[resourceID]
	if !ok {
		return reservation.Resource{}, reservation.ErrResourceNotFound
	}

	return resource, nil
}

func (tx *memTx) LockResource(ctx context.Context, resourceID reservation.ResourceID) (reservation.Resource, error) {
	return tx.GetResource(ctx, resourceID)
}

func (tx *memTx) FindByID(_ context.Context, id reservation.ReservationID) (reservation.Reservation, error) {
	if tx.done {
		return reservation.Reservation{}, ErrTxDone
	}

	r, ok := tx.staged.reservations[id]
	if !ok {
		return reservation.Reservation{}, reservation.ErrReservationNotFound
	}

	return copyReservation(r), nil
}

func (tx *memTx) LockReservation(ctx context.Context, id reservation.ReservationID) (reservation.Reservation, error) {
	return tx.FindByID(ctx, id)
}

func (tx *memTx) FindByHolder(_ context.Context, holderID reservation.HolderID) (reservation.Reservations, error) {
	if tx.done {
		return nil, ErrTxDone
	}

	return tx.staged.filter(func(r reservation.Reservation) bool { return r.HolderID == holderID }), nil
}

func (tx *memTx) Insert(_ context.Context, r reservation.Reservation) error {
	if tx.done {
		return ErrTxDone
	}

	if _, ok := tx.staged.resources[r.ResourceID]; !ok {
		return reservation.ErrResourceNotFound
	}

	if _, exists := tx.staged.reservations[r.ID]; exists {
		return ErrDuplicateReservation
	}

	if r.Window.IsEmpty() {
		return reservation.ErrInvalidWindow
	}

	tx.staged.reservations[r.ID] = copyReservation(r)
	tx.staged.order = append(tx.staged.order, r.ID)

	return nil
}

func (tx *memTx) UpdateWindowEnd(_ context.Context, id reservation.ReservationID, end time.Time, updatedAt time.Time) error {
	if tx.done {
		return ErrTxDone
	}

	r, ok := tx.staged.reservations[id]
	if !ok {
		return reservation.ErrReservationNotFound
	}

	if !r.Window.Start.Before(end) {
		return reservation.ErrInvalidWindow
	}

	r.Window.End = end.UTC()
	r.UpdatedAt = updatedAt
	tx.staged.reservations[id] = r

	return nil
}

func (tx *memTx) MarkClosed(_ context.Context, id reservation.ReservationID, closedAt time.Time, updatedAt time.Time) error {
	if tx.done {
		return ErrTxDone
	}

	r, ok := tx.staged.reservations[id]
	if !ok {
		return reservation.ErrReservationNotFound
	}

	if !r.Active {
		return reservation.ErrAlreadyClosed
	}

	closed := closedAt.UTC()
	r.Active = false
	r.ClosedAt = &closed
	r.UpdatedAt = updatedAt
	tx.staged.reservations[id] = r

	return nil
}

var _ reservation.Store = (*Store)(nil)
var _ reservation.Tx = (*memTx)(nil)
