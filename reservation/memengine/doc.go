// Package memengine provides an in-process implementation of reservation.Store.
//
// It holds resources and reservations in memory, runs one transaction at a time and
// applies a transaction's changes only when it commits. It suits unit tests and embedders
// that need the reservation rules without a database.
//
//	store, _ := memengine.NewStore()
//	_ = store.RegisterResource(ctx, reservation.Resource{ID: bookID, Capacity: 3})
//	resolver, _ := reservation.NewResolver(store)
package memengine
