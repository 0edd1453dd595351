package main

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/AntonStoeckl/reservation-engine-go/reservation"
)

// trackedReservation is what the simulation remembers about a reservation it created.
type trackedReservation struct {
	ID         reservation.ReservationID
	ResourceID reservation.ResourceID
	HolderID   reservation.HolderID
	Window     reservation.Window
}

// SimulationState tracks the reservations the simulation believes to be active.
// All state updates are protected by mutex for concurrent access from the worker pool.
type SimulationState struct {
	mu sync.RWMutex

	resources []reservation.Resource
	holders   []reservation.HolderID

	active map[reservation.ReservationID]trackedReservation
	closed []trackedReservation

	// busy holds reservations a worker is currently operating on, so two workers do not race on one of them.
	busy map[reservation.ReservationID]bool
}

// NewSimulationState creates a new empty simulation state.
func NewSimulationState() *SimulationState {
	return &SimulationState{
		active: make(map[reservation.ReservationID]trackedReservation),
		busy:   make(map[reservation.ReservationID]bool),
	}
}

// SetPopulation stores the registered resources and the holder ids.
func (s *SimulationState) SetPopulation(resources []reservation.Resource, holders []reservation.HolderID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resources = resources
	s.holders = holders
}

// Resources returns the registered resources.
func (s *SimulationState) Resources() []reservation.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.resources
}

// RandomResource picks a registered resource.
func (s *SimulationState) RandomResource() reservation.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.resources[rand.IntN(len(s.resources))] //nolint:gosec
}

// RandomHolder picks a holder id.
func (s *SimulationState) RandomHolder() reservation.HolderID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.holders[rand.IntN(len(s.holders))] //nolint:gosec
}

// Track remembers a created reservation.
func (s *SimulationState) Track(r reservation.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active[r.ID] = trackedReservation{ID: r.ID, ResourceID: r.ResourceID, HolderID: r.HolderID, Window: r.Window}
}

// Claim picks a random active reservation that no other worker is using and marks it busy.
// Expired reservations are dropped on the way.
func (s *SimulationState) Claim(now time.Time) (trackedReservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, tracked := range s.active { // map iteration order is random enough here
		if !now.Before(tracked.Window.End) {
			delete(s.active, id)
			continue
		}

		if s.busy[id] {
			continue
		}

		s.busy[id] = true

		return tracked, true
	}

	return trackedReservation{}, false
}

// ClaimClosed picks a reservation that was already closed.
func (s *SimulationState) ClaimClosed() (trackedReservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.closed) == 0 {
		return trackedReservation{}, false
	}

	return s.closed[rand.IntN(len(s.closed))], true //nolint:gosec
}

// Release ends the claim on a reservation.
func (s *SimulationState) Release(id reservation.ReservationID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.busy, id)
}

// MarkClosed moves a reservation from active to closed.
func (s *SimulationState) MarkClosed(id reservation.ReservationID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracked, ok := s.active[id]
	if !ok {
		return
	}

	delete(s.active, id)
	s.closed = append(s.closed, tracked)
}

// MarkExtended stores the new end of a reservation.
func (s *SimulationState) MarkExtended(id reservation.ReservationID, newEnd time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracked, ok := s.active[id]
	if !ok {
		return
	}

	tracked.Window.End = newEnd
	s.active[id] = tracked
}

// GetStats returns current state statistics.
func (s *SimulationState) GetStats() (active, closed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.active), len(s.closed)
}
