package reservation

import (
	"time"

	"github.com/google/uuid"
)

// ResourceID identifies a finite-capacity resource, e.g. a book title.
type ResourceID = uuid.UUID

// HolderID identifies the party holding a reservation, e.g. a reader.
type HolderID = uuid.UUID

// ReservationID identifies one reservation.
type ReservationID = uuid.UUID

// Resource is the read-only view of a catalog entry the reservation core needs.
type Resource struct {
	ID       ResourceID
	Capacity int
}

// Validate checks that the Resource has at least one unit.
func (r Resource) Validate() error {
	if r.Capacity < 1 {
		return ErrInvalidCapacity
	}

	return nil
}

// Reservation is one holder's claim on one unit of a Resource for a Window.
type Reservation struct {
	ID         ReservationID
	ResourceID ResourceID
	HolderID   HolderID
	Window     Window
	Active     bool
	ClosedAt   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Reservations is an alias for a slice of Reservation.
type Reservations = []Reservation

// State is the lifecycle state of a Reservation at a given instant.
type State int

const (
	StateActive State = iota
	StateClosedEarly
	StateExpiredNaturally
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosedEarly:
		return "closed_early"
	case StateExpiredNaturally:
		return "expired_naturally"
	default:
		return "unknown"
	}
}

// NewReservationID returns a time-ordered (v7) reservation id.
func NewReservationID() (ReservationID, error) {
	return uuid.NewV7()
}

// StateAt derives the lifecycle state of r as of the given instant.
func (r Reservation) StateAt(asOf time.Time) State {
	if !r.Active {
		return StateClosedEarly
	}

	if !asOf.Before(r.Window.End) {
		return StateExpiredNaturally
	}

	return StateActive
}

// IsHeldBy reports whether holderID owns r.
func (r Reservation) IsHeldBy(holderID HolderID) bool {
	return r.HolderID == holderID
}
