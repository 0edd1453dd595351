package reservation

import (
	"context"
	"errors"
)

var ErrNilStore = errors.New("nil store supplied")
var ErrInvalidWindow = errors.New("invalid window: start must be before end")
var ErrInvalidCapacity = errors.New("invalid capacity: must be at least 1")
var ErrResourceNotFound = errors.New("resource not found")
var ErrReservationNotFound = errors.New("reservation not found")
var ErrCapacityExceeded = errors.New("capacity exceeded: no free unit in the requested window")
var ErrConflict = errors.New("conflict: window overlaps another reservation")
var ErrForbidden = errors.New("forbidden")
var ErrAlreadyClosed = errors.New("reservation is already closed")
var ErrStoreUnavailable = errors.New("reservation store unavailable")
var ErrTransactionTimeout = errors.New("reservation store transaction timed out")
var ErrInvalidTxTimeout = errors.New("transaction timeout must be positive")

// FailureKind classifies an error returned by the Resolver.
// Transports map a FailureKind to their own status codes.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureInvalidWindow
	FailureNotFound
	FailureCapacityExceeded
	FailureConflict
	FailureForbidden
	FailureAlreadyClosed
	FailureStoreUnavailable
	FailureInvalidCapacity
	FailureUnknown
)

// String provides a string representation of FailureKind for logging and metrics labels.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureInvalidWindow:
		return "invalid_window"
	case FailureNotFound:
		return "not_found"
	case FailureCapacityExceeded:
		return "capacity_exceeded"
	case FailureConflict:
		return "conflict"
	case FailureForbidden:
		return "forbidden"
	case FailureAlreadyClosed:
		return "already_closed"
	case FailureStoreUnavailable:
		return "store_unavailable"
	case FailureInvalidCapacity:
		return "invalid_capacity"
	default:
		return "unknown"
	}
}

// KindOf maps any error to its FailureKind.
//
// Timeouts (ErrTransactionTimeout, context.DeadlineExceeded) are reported as FailureStoreUnavailable.
// ErrInvalidCapacity comes from catalog data, not from the caller, and has its own kind.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrInvalidWindow):
		return FailureInvalidWindow
	case errors.Is(err, ErrInvalidCapacity):
		return FailureInvalidCapacity
	case errors.Is(err, ErrResourceNotFound), errors.Is(err, ErrReservationNotFound):
		return FailureNotFound
	case errors.Is(err, ErrCapacityExceeded):
		return FailureCapacityExceeded
	case errors.Is(err, ErrConflict):
		return FailureConflict
	case errors.Is(err, ErrForbidden):
		return FailureForbidden
	case errors.Is(err, ErrAlreadyClosed):
		return FailureAlreadyClosed
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrTransactionTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return FailureStoreUnavailable
	default:
		return FailureUnknown
	}
}

// IsRetryable reports whether the caller may retry the failed operation unchanged.
//
// Only infrastructure failures are retryable. Business rejections never are:
// retrying a CapacityExceeded with the same window gives the same answer.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTransactionTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
