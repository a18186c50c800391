/*
ledger.go - Membership usage ledger

PURPOSE:
  Appends one usage record per committed membership booking, classifying it
  included/additional by its ordinal position within the billing cycle, and
  flips records to refunded when their booking is cancelled.

INVARIANTS:
  - Active records for a cycle, ordered by appointment (date, time), form a
    contiguous 1..N sequence.
  - type == included iff sequence <= the plan's included-tan count.
  - membership.TansUsed always equals the active record count.
  - refunded is terminal; a refunded record is excluded from the active set
    forever but retained for audit.

CASCADE:
  MarkRefunded always triggers a recalculation - usage mutation and
  reconciliation are not separable steps. Cancelling out of the middle of a
  cycle shifts everything behind it down, and only the engine knows how to
  settle the money that movement frees up.

SEE ALSO:
  - engine.go: The recalculation pass
  - booking/store.go: UsageStore contract
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/lancef37/sunday-tan-website-sub000/booking"
)

// =============================================================================
// USAGE LEDGER
// =============================================================================

type UsageLedger struct {
	Store  booking.Store
	Clock  booking.CycleClock
	Engine *Engine

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

func NewUsageLedger(store booking.Store, clock booking.CycleClock, engine *Engine) *UsageLedger {
	return &UsageLedger{
		Store:  store,
		Clock:  clock,
		Engine: engine,
		Now:    time.Now,
	}
}

// =============================================================================
// APPEND
// =============================================================================

// Append records one usage entry for a committed membership booking.
// Sequence is count-of-active + 1; classification and amount follow from it.
// The cycle window is snapshotted onto the record at creation time and is
// not recomputed later unless reconciliation runs.
//
// Appending twice for the same booking is a no-op returning the existing
// record, so the admin "transition into completed" hook is safe to retry.
func (l *UsageLedger) Append(ctx context.Context, b booking.Booking, m booking.Membership) (*booking.UsageRecord, error) {
	if m.Status != booking.MembershipActive {
		return nil, fmt.Errorf("append usage for %s: %w", m.ID, booking.ErrMembershipInactive)
	}

	// The sequence is count-of-active + 1, so the count and the write must not
	// interleave with another append or a reconciliation pass for this
	// membership.
	unlock := l.Engine.LockMembership(m.ID)
	defer unlock()

	if existing, err := l.Store.UsageByBooking(ctx, b.ID); err != nil {
		return nil, fmt.Errorf("append usage: %w", err)
	} else if existing != nil {
		return existing, nil
	}

	cycle, err := l.Clock.CycleFor(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("append usage: cycle: %w", err)
	}

	active, err := l.Store.ActiveUsage(ctx, m.ID, cycle)
	if err != nil {
		return nil, fmt.Errorf("append usage: %w", err)
	}

	seq := len(active) + 1
	typ, amount := Classify(seq, m.IncludedTans, m.AdditionalPrice)

	now := l.Now()
	rec := booking.UsageRecord{
		ID:           booking.RecordID(booking.NewID("use")),
		MembershipID: m.ID,
		BookingID:    b.ID,
		Sequence:     seq,
		Type:         typ,
		Amount:       amount,
		Status:       booking.UsageUsed,
		CycleStart:   cycle.Start,
		CycleEnd:     cycle.End,
		CreatedAt:    now,
	}
	if err := l.Store.AppendUsage(ctx, rec); err != nil {
		return nil, fmt.Errorf("append usage: %w", err)
	}

	// Bind the booking to the membership and mirror the classification.
	b.MembershipID = m.ID
	b.UsageType = typ
	b.Amount = amount
	b.UpdatedAt = now
	if err := l.Store.UpdateBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("append usage: update booking: %w", err)
	}

	m.TansUsed = seq
	if err := l.Store.SaveMembership(ctx, m); err != nil {
		return nil, fmt.Errorf("append usage: update membership: %w", err)
	}

	return &rec, nil
}

// =============================================================================
// MARK REFUNDED
// =============================================================================

// MarkRefunded flips the booking's active usage record to refunded (terminal)
// and always cascades into a recalculation of the membership's cycle.
// Returns ErrNotFound if the booking has no active record.
func (l *UsageLedger) MarkRefunded(ctx context.Context, id booking.BookingID, reason string) (*booking.UsageRecord, error) {
	rec, err := l.Store.UsageByBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mark refunded: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("mark refunded booking %s: %w", id, booking.ErrNotFound)
	}

	now := l.Now()
	rec.Status = booking.UsageRefunded
	rec.RefundReason = reason
	rec.RefundedAt = &now
	if err := l.Store.UpdateUsage(ctx, *rec); err != nil {
		return nil, fmt.Errorf("mark refunded: %w", err)
	}

	// Not separable: the cycle's remaining records must be re-derived now.
	if _, err := l.Engine.Recalculate(ctx, rec.MembershipID); err != nil {
		return rec, fmt.Errorf("mark refunded: %w", err)
	}
	return rec, nil
}
