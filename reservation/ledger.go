package reservation

import (
	"context"
	"slices"
	"time"
)

// CountOverlapping returns how many of the existing reservations occupy any part of candidate,
// judged by their effective window. Reservations named in exclude are skipped.
func CountOverlapping(existing Reservations, candidate Window, exclude ...ReservationID) int {
	count := 0

	for _, r := range existing {
		if slices.Contains(exclude, r.ID) {
			continue
		}

		effective := occupiedWindow(r)
		if effective.IsEmpty() {
			continue
		}

		if effective.Overlaps(candidate) {
			count++
		}
	}

	return count
}

// PeakOccupancy returns the highest number of reservations whose effective windows
// contain the same instant. The result must never exceed the resource capacity.
func PeakOccupancy(existing Reservations) int {
	type edge struct {
		at    time.Time
		delta int
	}

	edges := make([]edge, 0, 2*len(existing))
	for _, r := range existing {
		effective := occupiedWindow(r)
		if effective.IsEmpty() {
			continue
		}

		edges = append(edges, edge{at: effective.Start, delta: 1}, edge{at: effective.End, delta: -1})
	}

	// Ends sort before starts at the same instant: [t0,t1) and [t1,t2) never coexist.
	slices.SortFunc(edges, func(a, b edge) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}

		return a.delta - b.delta
	})

	current, peak := 0, 0
	for _, e := range edges {
		current += e.delta
		if current > peak {
			peak = current
		}
	}

	return peak
}

// Ledger computes occupancy of a resource against a ReservationReader.
// It has no side effects and its zero value is ready to use.
type Ledger struct{}

// Occupancy returns the number of reservations on resourceID whose effective window overlaps candidate.
func (l Ledger) Occupancy(
	ctx context.Context,
	reader ReservationReader,
	resourceID ResourceID,
	candidate Window,
	exclude ...ReservationID,
) (int, error) {

	existing, err := reader.FindByResource(ctx, resourceID)
	if err != nil {
		return 0, err
	}

	return CountOverlapping(existing, candidate, exclude...), nil
}

// HasCapacity reports whether one more reservation for candidate fits into capacity.
func (l Ledger) HasCapacity(
	ctx context.Context,
	reader ReservationReader,
	resourceID ResourceID,
	candidate Window,
	capacity int,
	exclude ...ReservationID,
) (bool, error) {

	occupancy, err := l.Occupancy(ctx, reader, resourceID, candidate, exclude...)
	if err != nil {
		return false, err
	}

	return occupancy < capacity, nil
}

// Available returns capacity minus occupancy for candidate, floored at zero.
func (l Ledger) Available(
	ctx context.Context,
	reader ReservationReader,
	resourceID ResourceID,
	candidate Window,
	capacity int,
	exclude ...ReservationID,
) (int, error) {

	occupancy, err := l.Occupancy(ctx, reader, resourceID, candidate, exclude...)
	if err != nil {
		return 0, err
	}

	return max(capacity-occupancy, 0), nil
}
