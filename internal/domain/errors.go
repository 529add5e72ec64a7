package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the services wraps exactly one of them.
var (
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

var (
	ErrItemNotFound    = fmt.Errorf("%w: item not found", ErrNotFound)
	ErrBookingNotFound = fmt.Errorf("%w: booking not found", ErrNotFound)
	ErrWalletNotFound  = fmt.Errorf("%w: wallet not found", ErrNotFound)
	ErrHoldNotFound    = fmt.Errorf("%w: no escrow hold for booking", ErrNotFound)

	ErrRenterRequired    = fmt.Errorf("%w: renter is required", ErrValidation)
	ErrOwnItem           = fmt.Errorf("%w: cannot book your own item", ErrValidation)
	ErrItemInactive      = fmt.Errorf("%w: item is not offered for rent", ErrValidation)
	ErrInvalidPrice      = fmt.Errorf("%w: price must be greater than zero", ErrValidation)
	ErrDatesRequired     = fmt.Errorf("%w: start and end dates are required", ErrValidation)
	ErrPastDate          = fmt.Errorf("%w: start date cannot be in the past", ErrValidation)
	ErrDateTooFar        = fmt.Errorf("%w: start date is too far in the future", ErrValidation)
	ErrInvalidDateRange  = fmt.Errorf("%w: end date must be after start date", ErrValidation)
	ErrInvalidTransition = fmt.Errorf("%w: operation not allowed in current booking status", ErrValidation)
	ErrBookingEnded      = fmt.Errorf("%w: booking period has already ended", ErrValidation)
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrPaymentFailed     = fmt.Errorf("%w: payment failed", ErrValidation)

	ErrNotAvailable      = fmt.Errorf("%w: item not available for the selected dates", ErrConflict)
	ErrAlreadyHeld       = fmt.Errorf("%w: funds already held for booking", ErrConflict)
	ErrWalletExists      = fmt.Errorf("%w: wallet already exists for owner", ErrConflict)
	ErrAlreadyPaid       = fmt.Errorf("%w: booking is already paid", ErrConflict)
	ErrPaymentInProgress = fmt.Errorf("%w: payment for booking is in progress", ErrConflict)

	ErrNotOwner  = fmt.Errorf("%w: only the item owner can do this", ErrForbidden)
	ErrNotRenter = fmt.Errorf("%w: only the renter can do this", ErrForbidden)

	ErrNoBalance = fmt.Errorf("%w: no available balance", ErrInsufficientFunds)
)

// KindOf names the error kind of err, or "internal" when err carries none.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	default:
		return "internal"
	}
}
