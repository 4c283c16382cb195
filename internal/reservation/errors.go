// Package reservation holds the tent reservation lifecycle.  Every operation
// reads a Document and returns the Patch that performs the transition; none
// of them touch a store, so the same rules run server-side and in clients.
package reservation

import "github.com/cockroachdb/errors"

// Validation failures.  They are surfaced to the user and never cause a
// state change.
var (
    ErrTentNotFound        = errors.New("tent not found")
    ErrTentUnavailable     = errors.New("tent is not available")
    ErrReservationNotFound = errors.New("reservation not found")
    ErrReservationClosed   = errors.New("reservation is no longer pending")
    ErrTentMismatch        = errors.New("reservation does not reference this tent")
    ErrInvalidTransition   = errors.New("invalid target state")
    ErrActiveHolds         = errors.New("tents have active holds")
    ErrIncompleteContact   = errors.New("name and phone are required")
    ErrEmptyCart           = errors.New("cart line has no item")
)

// IsValidation reports whether err is one of the user-facing validation errors.
func IsValidation(err error) bool {
    return errors.IsAny(err,
        ErrTentNotFound, ErrTentUnavailable, ErrReservationNotFound, ErrReservationClosed,
        ErrTentMismatch, ErrInvalidTransition, ErrActiveHolds, ErrIncompleteContact, ErrEmptyCart)
}
