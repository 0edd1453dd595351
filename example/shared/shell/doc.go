// Package shell holds caller-side helpers around the reservation Resolver.
//
// The Resolver never retries on its own. RetryWithExponentialBackoff gives callers
// like the simulation a bounded retry for failures that reservation.IsRetryable
// reports as transient, while business rejections fail fast.
//
// In Domain-Driven Design or Hexagonal Architecture terminology, this would be
// called the 'infrastructure' layer.
package shell
