package errs

import (
	"errors"
)

// not found
var (
	ErrBookNotFound        = errors.New("book not found")
	ErrLoanNotFound        = errors.New("active loan not found")
	ErrReservationNotFound = errors.New("reservation not found")
)

// precondition
var (
	ErrNoCopiesAvailable           = errors.New("no copies available for checkout, please place a reservation")
	ErrInvalidReservationState     = errors.New("only pending or ready reservations can be changed")
	ErrDuplicateReservation        = errors.New("user already has an active reservation for this book")
	ErrInsufficientAvailableCopies = errors.New("not enough unloaned copies")
	ErrCopyAlreadyLoaned           = errors.New("copy already has an active loan")
	ErrLoanNotActive               = errors.New("loan is not active")
	ErrAvailableExceedsTotal       = errors.New("available copies would exceed total copies")
	ErrInvalidCount                = errors.New("count must be positive")
)

// consistency
var (
	ErrInventoryInconsistent   = errors.New("inventory inconsistent: counter shows available copies but no free copy exists")
	ErrNoPhysicalCopyAvailable = errors.New("no available physical copy to fulfill reservation")
)

// ErrConcurrencyConflict marks serialization failures, deadlocks and lock timeouts.
// The whole operation may be retried.
var ErrConcurrencyConflict = errors.New("concurrent update conflict")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound) ||
		errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrReservationNotFound)
}

func IsPrecondition(err error) bool {
	for _, target := range []error{
		ErrNoCopiesAvailable,
		ErrInvalidReservationState,
		ErrDuplicateReservation,
		ErrInsufficientAvailableCopies,
		ErrCopyAlreadyLoaned,
		ErrLoanNotActive,
		ErrAvailableExceedsTotal,
		ErrInvalidCount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsInconsistency(err error) bool {
	return errors.Is(err, ErrInventoryInconsistent) || errors.Is(err, ErrNoPhysicalCopyAvailable)
}
