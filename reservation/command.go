package reservation

import (
	"time"
)

const (
	commandTypeCreate     = "CreateReservation"
	commandTypeCloseEarly = "CloseReservationEarly"
	commandTypeExtend     = "ExtendReservation"
)

// CreateCommand represents the intent to reserve one unit of a resource for a window.
type CreateCommand struct {
	ResourceID ResourceID
	HolderID   HolderID
	Window     Window
}

// CommandType returns the type identifier for this command, used for observability.
func (c CreateCommand) CommandType() string {
	return commandTypeCreate
}

// BuildCreateCommand creates a new CreateCommand. The window is validated by Resolver.Create,
// so a command with start >= end can be built and will be rejected with ErrInvalidWindow.
func BuildCreateCommand(resourceID ResourceID, holderID HolderID, start, end time.Time) CreateCommand {
	return CreateCommand{
		ResourceID: resourceID,
		HolderID:   holderID,
		Window:     Window{Start: start.UTC(), End: end.UTC()},
	}
}

// CloseEarlyCommand represents the intent to return a unit before the end of its window.
type CloseEarlyCommand struct {
	ReservationID ReservationID
	HolderID      HolderID
	AsOf          time.Time
}

// CommandType returns the type identifier for this command, used for observability.
func (c CloseEarlyCommand) CommandType() string {
	return commandTypeCloseEarly
}

// BuildCloseEarlyCommand creates a new CloseEarlyCommand.
// A zero asOf is replaced with the Resolver's clock at execution time.
func BuildCloseEarlyCommand(reservationID ReservationID, holderID HolderID, asOf time.Time) CloseEarlyCommand {
	return CloseEarlyCommand{
		ReservationID: reservationID,
		HolderID:      holderID,
		AsOf:          asOf.UTC(),
	}
}

// ExtendCommand represents the intent to move the end of a reservation window.
type ExtendCommand struct {
	ReservationID ReservationID
	HolderID      HolderID
	NewEnd        time.Time
}

// CommandType returns the type identifier for this command, used for observability.
func (c ExtendCommand) CommandType() string {
	return commandTypeExtend
}

// BuildExtendCommand creates a new ExtendCommand.
func BuildExtendCommand(reservationID ReservationID, holderID HolderID, newEnd time.Time) ExtendCommand {
	return ExtendCommand{
		ReservationID: reservationID,
		HolderID:      holderID,
		NewEnd:        newEnd.UTC(),
	}
}

// ListFilter selects which reservations ListByHolder returns.
type ListFilter int

const (
	// ListAll returns every reservation of the holder.
	ListAll ListFilter = iota

	// ListCurrentOnly returns reservations that occupy the resource now or in the future.
	ListCurrentOnly

	// ListHistoryOnly returns reservations that were closed early or have expired.
	ListHistoryOnly
)
