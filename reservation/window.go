package reservation

import (
	"time"
)

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// BuildWindow creates a Window from start and end.
// Both ends are normalised to UTC. Start must be strictly before End.
func BuildWindow(start, end time.Time) (Window, error) {
	if !start.Before(end) {
		return Window{}, ErrInvalidWindow
	}

	return Window{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether the half-open intervals [a, b) and [c, d) overlap.
// Touching intervals (b == c) do not overlap.
func Overlaps(a, b, c, d time.Time) bool {
	return a.Before(d) && c.Before(b)
}

// Overlaps reports whether w and other share at least one instant.
func (w Window) Overlaps(other Window) bool {
	return Overlaps(w.Start, w.End, other.Start, other.End)
}

// Contains reports whether t lies inside w. The End instant is not contained.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// IsEmpty reports whether w occupies no time at all.
func (w Window) IsEmpty() bool {
	return !w.Start.Before(w.End)
}

// Duration returns the length of w, zero for an empty window.
func (w Window) Duration() time.Duration {
	if w.IsEmpty() {
		return 0
	}

	return w.End.Sub(w.Start)
}

// EffectiveWindow returns the portion of r that counts toward capacity.
//
// Active reservations occupy [Start, End) even after End has passed (natural expiry).
// Closed reservations occupy [Start, min(ClosedAt, End)), which is empty when they were closed
// at or before their own Start. The occupied window does not depend on the instant it is
// evaluated at, so asOf is ignored.
func EffectiveWindow(r Reservation, _ time.Time) Window {
	return occupiedWindow(r)
}

func occupiedWindow(r Reservation) Window {
	if r.Active || r.ClosedAt == nil {
		return r.Window
	}

	end := *r.ClosedAt
	if end.After(r.Window.End) {
		end = r.Window.End
	}

	if !r.Window.Start.Before(end) {
		return Window{Start: r.Window.Start, End: r.Window.Start}
	}

	return Window{Start: r.Window.Start, End: end}
}
