/*
Package reservation implements the slot hold protocol.

PURPOSE:
  A booking is a multi-step checkout (calendar, details, payment) with real
  latency. The Manager gives the client a short-lived exclusive hold on the
  slot for the duration of that flow, so two clients cannot buy the same
  slot out from under each other.

LIFECYCLE:
  Reserve  -> hold created (or same-owner hold replaced), fixed TTL
  Complete -> hold converted into a committed booking, hold removed
  Cancel   -> hold removed, idempotent

EXPIRY:
  TTL is a hard cutover and is evaluated lazily at read time. An expired
  hold is treated as absent everywhere even if the row still exists; the
  slot is immediately claimable by anyone. Physical purging is an
  optimization (see Sweep), never a correctness requirement.

RACES:
  Slot exclusivity is enforced by the store's atomic conditional writes, not
  by read-then-write in this package. Complete re-validates against the
  committed bookings to close the window between hold creation and
  completion.

SEE ALSO:
  - booking/store.go: PutHold/CreateBooking atomicity contract
  - api/handlers.go: HTTP surface for this flow
*/
package reservation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lancef37/sunday-tan-website-sub000/booking"
)

// DefaultTTL is how long a hold shields a slot during checkout.
const DefaultTTL = 15 * time.Minute

// Manager creates, completes, and releases slot holds.
type Manager struct {
	Store booking.Store
	TTL   time.Duration

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

func NewManager(store booking.Store) *Manager {
	return &Manager{
		Store: store,
		TTL:   DefaultTTL,
		Now:   time.Now,
	}
}

// =============================================================================
// RESERVE
// =============================================================================

// Reserve takes a hold on (date, time) for owner. It fails with a
// SlotConflictError if the slot has a committed booking or an active hold
// owned by someone else. A repeat call by the same owner replaces the prior
// hold (payload updated, expiry reset) so a user can revisit checkout.
func (m *Manager) Reserve(ctx context.Context, date, timeOfDay string, owner booking.ClientID, payload json.RawMessage) (*booking.Hold, error) {
	slot, err := booking.NewSlotKey(date, timeOfDay)
	if err != nil {
		return nil, err
	}
	if owner == "" {
		return nil, fmt.Errorf("reserve: owner required")
	}

	now := m.Now()
	hold := booking.Hold{
		ID:        booking.HoldID(booking.NewID("hold")),
		Owner:     owner,
		Slot:      slot,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(m.TTL),
	}

	if err := m.Store.PutHold(ctx, hold, now); err != nil {
		return nil, err
	}
	return &hold, nil
}

// =============================================================================
// COMPLETE
// =============================================================================

// Complete converts a hold into a committed booking and removes the hold.
// It fails with ErrHoldExpired if the hold is absent or past its TTL, and
// with a SlotConflictError if another process committed a booking for the
// slot between hold creation and completion.
func (m *Manager) Complete(ctx context.Context, id booking.HoldID, owner booking.ClientID, paymentRef string) (*booking.Booking, error) {
	now := m.Now()

	hold, err := m.Store.GetHold(ctx, id, now)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	if hold == nil {
		return nil, booking.ErrHoldExpired
	}
	if owner != "" && hold.Owner != owner {
		return nil, booking.ErrHoldExpired // don't leak another client's hold
	}

	b := booking.Booking{
		ID:         booking.BookingID(booking.NewID("bk")),
		Slot:       hold.Slot,
		Client:     hold.Owner,
		Status:     booking.BookingConfirmed,
		PaymentRef: paymentRef,
		Payload:    hold.Payload,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// The store's insert-if-absent re-validates slot availability and closes
	// the reserve/complete race.
	if err := m.Store.CreateBooking(ctx, b); err != nil {
		return nil, err
	}

	if err := m.Store.DeleteHold(ctx, id); err != nil {
		// The booking is committed; a stray hold row is harmless because all
		// reads filter by expiry. Surface nothing to the caller.
		return &b, nil
	}
	return &b, nil
}

// =============================================================================
// CANCEL + AVAILABILITY
// =============================================================================

// Cancel releases a hold. It is idempotent and unconditional: cancelling an
// absent, expired, or foreign hold is a no-op.
func (m *Manager) Cancel(ctx context.Context, id booking.HoldID, owner booking.ClientID) error {
	now := m.Now()

	hold, err := m.Store.GetHold(ctx, id, now)
	if err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	if hold == nil {
		return nil
	}
	if owner != "" && hold.Owner != owner {
		return nil
	}
	return m.Store.DeleteHold(ctx, id)
}

// Taken returns the slot times on a date that are unavailable due to a
// committed booking or an active hold.
func (m *Manager) Taken(ctx context.Context, date string) (map[string]bool, error) {
	now := m.Now()

	taken := make(map[string]bool)
	bookings, err := m.Store.BookingsByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		taken[b.Slot.Time] = true
	}

	holds, err := m.Store.ActiveHolds(ctx, date, now)
	if err != nil {
		return nil, err
	}
	for _, h := range holds {
		taken[h.Slot.Time] = true
	}
	return taken, nil
}

// Sweep physically deletes expired holds. Cleanup only.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	return m.Store.PurgeExpired(ctx, m.Now())
}
