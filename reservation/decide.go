package reservation

import (
	"time"
)

// decideCloseEarly checks whether command may close current and returns the instant to record.
//
// Business rules:
//   - only the holder may close the reservation
//   - the reservation must be active
//   - the close instant is clamped into [start, end], so a late return never widens
//     the occupied window and an early one never precedes the start
func decideCloseEarly(current Reservation, command CloseEarlyCommand) (time.Time, error) {
	if !current.IsHeldBy(command.HolderID) {
		return time.Time{}, ErrForbidden
	}

	if !current.Active {
		return time.Time{}, ErrAlreadyClosed
	}

	closedAt := command.AsOf
	if closedAt.Before(current.Window.Start) {
		closedAt = current.Window.Start
	}

	if closedAt.After(current.Window.End) {
		closedAt = current.Window.End
	}

	return closedAt, nil
}

// decideExtend checks whether command may move the end of current and returns the candidate window.
// The conflict check against other reservations is done by the caller.
//
// Business rules:
//   - only the holder may extend the reservation
//   - the reservation must be active
//   - a new end before the start is a forbidden redefinition of the window
//   - a new end equal to the start would produce an empty window
func decideExtend(current Reservation, command ExtendCommand) (Window, error) {
	if !current.IsHeldBy(command.HolderID) {
		return Window{}, ErrForbidden
	}

	if !current.Active {
		return Window{}, ErrAlreadyClosed
	}

	if command.NewEnd.Before(current.Window.Start) {
		return Window{}, ErrForbidden
	}

	if command.NewEnd.Equal(current.Window.Start) {
		return Window{}, ErrInvalidWindow
	}

	return Window{Start: current.Window.Start, End: command.NewEnd}, nil
}

// matchesFilter reports whether r is selected by filter as of asOf.
func matchesFilter(r Reservation, filter ListFilter, asOf time.Time) bool {
	effective := occupiedWindow(r)
	current := !effective.IsEmpty() && asOf.Before(effective.End)

	switch filter {
	case ListCurrentOnly:
		return current
	case ListHistoryOnly:
		return !current
	default:
		return true
	}
}
