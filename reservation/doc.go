// Package reservation provides the reservation engine for finite-capacity resources,
// e.g. a book title with N interchangeable physical copies in a public library.
//
// The package decides whether a resource can be reserved for a requested time window,
// keeps track of active and historical reservations, and mutates reservation windows
// (early return, extension) without ever exceeding the capacity of the resource.
//
// All windows are half-open intervals [start, end). Touching windows do not overlap.
//
// Building blocks:
//   - Interval arithmetic: Overlaps, Window, EffectiveWindow
//   - Capacity ledger: CountOverlapping, PeakOccupancy, Ledger
//   - Conflict resolver: Resolver with Create, CloseEarly, Extend
//   - Store contract: Store, Tx, ReservationReader (implemented by memengine and postgresengine)
//
// Common usage pattern:
//
//	store, _ := postgresengine.NewStoreFromPGXPool(pool)
//	resolver, _ := reservation.NewResolver(store, reservation.WithTxTimeout(5*time.Second))
//
//	lending, err := resolver.Create(ctx, reservation.BuildCreateCommand(bookID, readerID, start, end))
//	switch {
//	case errors.Is(err, reservation.ErrCapacityExceeded):
//		// no free copy in that window
//	case reservation.IsRetryable(err):
//		// retry with backoff
//	}
//
//	lending, err = resolver.CloseEarly(ctx, reservation.BuildCloseEarlyCommand(lending.ID, readerID, time.Now()))
package reservation
