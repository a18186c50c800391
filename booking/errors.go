/*
errors.go - Centralized error types for the booking engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Other packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Reservation errors - slot conflicts and hold expiry
  2. Lookup errors - missing holds/bookings/records
  3. Payment errors - refund execution failures

USAGE:
  Callers classify with errors.Is:

    if errors.Is(err, booking.ErrSlotConflict) {
        // 409 - pick another slot
    }

SEE ALSO:
  - reservation/manager.go: Returns conflict/expired errors
  - ledger/engine.go: Returns reconciliation errors
*/
package booking

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrSlotConflict is returned when a slot is already committed or held by
	// a different owner. Not retried automatically; the caller picks another slot.
	ErrSlotConflict = errors.New("slot already booked or held")

	// ErrHoldExpired is returned when completing a hold whose TTL has passed.
	// An expired hold is treated as if it never existed.
	ErrHoldExpired = errors.New("hold expired")

	// ErrNotFound is returned when a hold/booking/usage record doesn't exist.
	// Idempotent cancel operations treat this as success.
	ErrNotFound = errors.New("not found")

	// ErrRefundFailed is returned when the payment gateway reported a refund
	// failure. The classification change still commits; the payment row is
	// flagged for manual follow-up.
	ErrRefundFailed = errors.New("refund failed")

	// ErrPartialReconciliation is returned when a recalculation pass could not
	// commit all of its writes. The pass is retried from scratch off current
	// state; refund idempotency prevents double-refunding.
	ErrPartialReconciliation = errors.New("reconciliation incomplete")

	// ErrMembershipInactive is returned when appending usage for a membership
	// that is not active.
	ErrMembershipInactive = errors.New("membership not active")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SlotConflictError reports which slot was contested and by what.
type SlotConflictError struct {
	Slot     SlotKey
	HeldBy   ClientID  // non-empty when an active hold blocks the slot
	BookedBy BookingID // non-empty when a committed booking blocks the slot
}

func (e *SlotConflictError) Error() string {
	if e.BookedBy != "" {
		return fmt.Sprintf("slot %s already booked (booking %s)", e.Slot, e.BookedBy)
	}
	return fmt.Sprintf("slot %s held by another client", e.Slot)
}

func (e *SlotConflictError) Unwrap() error { return ErrSlotConflict }

// RefundFailedError carries the payment that needs manual follow-up.
type RefundFailedError struct {
	PaymentID PaymentID
	BookingID BookingID
	Amount    Money
	Note      string
}

func (e *RefundFailedError) Error() string {
	return fmt.Sprintf("refund of %s for booking %s failed: %s", e.Amount, e.BookingID, e.Note)
}

func (e *RefundFailedError) Unwrap() error { return ErrRefundFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict returns true for errors the API surfaces as 409.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSlotConflict)
}

// IsNotFound returns true for missing-resource errors, including expired
// holds, which are indistinguishable from absent ones.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrHoldExpired)
}
