// Package helper provides fixtures shared by the tests of every reservation store:
// a fixed base time, windows, resources and reservations created through the Resolver.
package helper
