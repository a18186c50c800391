/*
engine.go - Reconciliation engine for membership usage

PURPOSE:
  Re-derives the entire active usage set for a membership's current billing
  cycle after any cancellation/refund event, and resolves the refund/charge
  obligations the re-derivation creates.

REFUND POLICY (single pass-scoped flag):
  At most ONE refund is executed per pass, because only one booking's
  cancellation created room for others to shift down. Candidates, in order:
    1. The cancelled additional booking's own captured charge (its record is
       now status=refunded but its money was already taken).
    2. Each additional -> included transition, in appointment order.
  Further candidates in the same pass are logged and skipped.

IDEMPOTENCY:
  Refunds are keyed by the payment row, twice over: only a payment in
  status=captured is ever refunded, and the gateway request carries
  "refund:<paymentID>" as its idempotency key. A retried pass either skips by
  status or replays the same key and gets the original outcome back, so a
  crash between the gateway call and the status write can never
  double-refund.

FAILURE:
  A gateway decline flags the payment status=failed for manual follow-up and
  is logged - it never blocks or rolls back the re-sequencing. A failed
  persistence write is logged and the pass returns ErrPartialReconciliation;
  the caller retries Recalculate, which recomputes from current state.

CONCURRENCY:
  Passes are serialized per membership with a keyed mutex. Usage appends and
  cycle rollovers take the same lock, so the sequence a writer derives from a
  count cannot be invalidated mid-write. Different memberships reconcile
  independently.

SEE ALSO:
  - reassign.go: The pure derivation this engine applies
  - ledger.go: MarkRefunded, which always cascades into Recalculate
*/
package ledger

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lancef37/sunday-tan-website-sub000/booking"
	"github.com/lancef37/sunday-tan-website-sub000/payments"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Store   booking.Store
	Clock   booking.CycleClock
	Refunds payments.Coordinator

	// Now is the clock; overridable in tests.
	Now func() time.Time

	mu    sync.Mutex
	locks map[booking.MembershipID]*sync.Mutex
}

func NewEngine(store booking.Store, clock booking.CycleClock, refunds payments.Coordinator) *Engine {
	return &Engine{
		Store:   store,
		Clock:   clock,
		Refunds: refunds,
		Now:     time.Now,
		locks:   make(map[booking.MembershipID]*sync.Mutex),
	}
}

// Result summarizes one recalculation pass.
type Result struct {
	MembershipID   booking.MembershipID
	ActiveRecords  int
	Reassigned     int  // records whose sequence/type changed
	RefundIssued   bool // the pass's single refund was attempted
	RefundFailed   bool // ...and the gateway declined it
	RefundsSkipped int  // further candidates suppressed by the policy
	ChargesCreated int  // pending obligations from included -> additional
}

// lockFor returns the per-membership mutex, creating it on first use.
func (e *Engine) lockFor(id booking.MembershipID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// LockMembership serializes a caller's membership mutation against
// reconciliation passes and usage appends for the same membership. The
// returned function releases the lock. Do not call from inside a pass.
func (e *Engine) LockMembership(id booking.MembershipID) func() {
	l := e.lockFor(id)
	l.Lock()
	return l.Unlock
}

// =============================================================================
// RECALCULATE
// =============================================================================

// Recalculate re-derives sequence/classification for every active usage
// record in the membership's current cycle, persists the diffs, resolves
// refund/charge obligations, and refreshes the membership's usage counter.
func (e *Engine) Recalculate(ctx context.Context, id booking.MembershipID) (*Result, error) {
	l := e.lockFor(id)
	l.Lock()
	defer l.Unlock()

	m, err := e.Store.GetMembership(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("recalculate: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("recalculate membership %s: %w", id, booking.ErrNotFound)
	}

	// Snapshot the cycle once; the window must stay fixed for the pass.
	cycle, err := e.Clock.CycleFor(ctx, *m)
	if err != nil {
		return nil, fmt.Errorf("recalculate: cycle: %w", err)
	}

	recs, err := e.Store.ActiveUsage(ctx, id, cycle)
	if err != nil {
		return nil, fmt.Errorf("recalculate: load usage: %w", err)
	}

	entries := make([]Entry, 0, len(recs))
	for _, r := range recs {
		b, err := e.Store.GetBooking(ctx, r.BookingID)
		if err != nil {
			return nil, fmt.Errorf("recalculate: load booking %s: %w", r.BookingID, err)
		}
		if b == nil {
			log.Printf("[Reconcile] %s: record %s references missing booking %s, skipping",
				id, r.ID, r.BookingID)
			continue
		}
		entries = append(entries, Entry{Record: r, Slot: b.Slot})
	}

	assigns := Reassign(entries, m.IncludedTans, m.AdditionalPrice)

	res := &Result{MembershipID: id, ActiveRecords: len(entries)}
	partial := false
	refundIssued := false

	// The cancellation that triggered this pass may have left behind a
	// captured charge on the now-refunded record. That recovery takes the
	// pass's single refund slot first.
	if attempted, dirty := e.recoverCancelledCharge(ctx, *m, cycle, res); attempted {
		refundIssued = true
		partial = partial || dirty
	}

	for _, a := range assigns {
		if !a.Changed() {
			continue
		}
		res.Reassigned++

		rec := a.Record
		rec.Sequence = a.Sequence
		rec.Type = a.Type
		rec.Amount = a.Amount
		if err := e.Store.UpdateUsage(ctx, rec); err != nil {
			log.Printf("[Reconcile] %s: update record %s: %v", id, rec.ID, err)
			partial = true
			continue
		}

		// Propagate type/amount onto the linked booking.
		if b, err := e.Store.GetBooking(ctx, rec.BookingID); err == nil && b != nil {
			b.UsageType = a.Type
			b.Amount = a.Amount
			b.UpdatedAt = e.Now()
			if err := e.Store.UpdateBooking(ctx, *b); err != nil {
				log.Printf("[Reconcile] %s: update booking %s: %v", id, b.ID, err)
				partial = true
			}
		}

		switch {
		case a.BecameIncluded():
			if refundIssued {
				// Policy: one refund recovers the whole chain.
				log.Printf("[Reconcile] %s: record %s shifted additional->included, refund already issued this pass, skipping",
					id, rec.ID)
				res.RefundsSkipped++
				continue
			}
			attempted, dirty := e.refundCapturedCharge(ctx, rec.BookingID, "additional tan reclassified as included", res)
			if attempted {
				refundIssued = true
			}
			partial = partial || dirty

		case a.BecameAdditional():
			if err := e.ensurePendingCharge(ctx, *m, rec); err != nil {
				log.Printf("[Reconcile] %s: pending charge for booking %s: %v", id, rec.BookingID, err)
				partial = true
			} else {
				res.ChargesCreated++
			}
		}
	}

	// The counter always equals the active record count for the cycle.
	m.TansUsed = len(entries)
	if err := e.Store.SaveMembership(ctx, *m); err != nil {
		log.Printf("[Reconcile] %s: save membership: %v", id, err)
		partial = true
	}

	res.RefundIssued = refundIssued
	if partial {
		return res, fmt.Errorf("recalculate %s: %w", id, booking.ErrPartialReconciliation)
	}
	return res, nil
}

// =============================================================================
// REFUND / CHARGE RESOLUTION
// =============================================================================

// recoverCancelledCharge looks for refunded-status additional records in the
// cycle whose booking still has a captured per-visit charge, and refunds the
// first one. Reports whether a refund was attempted and whether its
// bookkeeping failed.
func (e *Engine) recoverCancelledCharge(ctx context.Context, m booking.Membership, cycle booking.Cycle, res *Result) (attempted, dirty bool) {
	all, err := e.Store.ListUsage(ctx, m.ID, cycle)
	if err != nil {
		log.Printf("[Reconcile] %s: list usage: %v", m.ID, err)
		return false, false
	}
	for _, r := range all {
		if r.Status != booking.UsageRefunded || r.Type != booking.UsageAdditional {
			continue
		}
		if attempted, dirty = e.refundCapturedCharge(ctx, r.BookingID, "additional tan cancelled", res); attempted {
			return attempted, dirty
		}
	}
	return false, false
}

// refundCapturedCharge refunds the booking's captured payment, if one
// exists. Only a payment in status=captured is a candidate, and the gateway
// call is keyed on the payment row, so a retried pass either skips by status
// or replays the same key and gets the original outcome back.
//
// attempted is true when a refund was sent (a gateway decline still consumes
// the pass's refund slot). dirty is true when the outcome could not be
// written back; the pass must report partial so the caller retries, because
// the payment row no longer reflects what the gateway did.
func (e *Engine) refundCapturedCharge(ctx context.Context, id booking.BookingID, reason string, res *Result) (attempted, dirty bool) {
	pays, err := e.Store.PaymentsByBooking(ctx, id)
	if err != nil {
		log.Printf("[Reconcile] payments for booking %s: %v", id, err)
		return false, false
	}

	var pay *booking.Payment
	for i := range pays {
		if pays[i].Status == booking.PaymentCaptured {
			pay = &pays[i]
			break
		}
	}
	if pay == nil {
		log.Printf("[Reconcile] booking %s: no captured payment to refund", id)
		return false, false
	}

	key := "refund:" + string(pay.ID)
	out, err := e.Refunds.Refund(ctx, pay.GatewayRef, key, pay.Amount, reason)
	now := e.Now()
	if err != nil || !out.Success {
		note := "gateway declined refund"
		if err != nil {
			note = err.Error()
		}
		pay.Status = booking.PaymentFailed
		pay.FailureNote = note
		pay.UpdatedAt = now
		if uerr := e.Store.UpdatePayment(ctx, *pay); uerr != nil {
			log.Printf("[Reconcile] flag failed payment %s: %v", pay.ID, uerr)
			dirty = true
		}
		log.Printf("[Reconcile] refund of %s for booking %s FAILED (%s), flagged for manual follow-up",
			pay.Amount, id, note)
		res.RefundFailed = true
		return true, dirty
	}

	pay.Status = booking.PaymentRefunded
	pay.RefundRef = out.RefundRef
	pay.UpdatedAt = now
	if uerr := e.Store.UpdatePayment(ctx, *pay); uerr != nil {
		log.Printf("[Reconcile] mark payment %s refunded: %v", pay.ID, uerr)
		dirty = true
	}
	log.Printf("[Reconcile] refunded %s for booking %s (%s)", pay.Amount, id, reason)
	return true, dirty
}

// ensurePendingCharge records a pending obligation for a booking that moved
// included -> additional. It is never auto-captured; collection happens
// through the normal payment path.
func (e *Engine) ensurePendingCharge(ctx context.Context, m booking.Membership, rec booking.UsageRecord) error {
	pays, err := e.Store.PaymentsByBooking(ctx, rec.BookingID)
	if err != nil {
		return err
	}
	for _, p := range pays {
		if p.Status == booking.PaymentPending || p.Status == booking.PaymentCaptured {
			return nil // obligation already on file
		}
	}
	now := e.Now()
	return e.Store.CreatePayment(ctx, booking.Payment{
		ID:           booking.PaymentID(booking.NewID("pay")),
		BookingID:    rec.BookingID,
		MembershipID: m.ID,
		Amount:       rec.Amount,
		Status:       booking.PaymentPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}
