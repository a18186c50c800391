/*
reassign.go - Pure re-sequencing of a cycle's active usage records

PURPOSE:
  The core of reconciliation, kept free of persistence so it is
  independently unit-testable. Given the active records of one billing
  cycle, it re-derives sequence numbers and included/additional
  classification from scratch.

RULES:
  - Order is the appointment's (date, time), not creation order: admins
    cancel and approve bookings out of order, so the calendar decides.
  - Sequence numbers are 1..N, contiguous, no gaps or duplicates.
  - A record is included iff its new sequence <= the plan's included count;
    otherwise it is additional and carries the per-visit price.

The engine diffs these assignments against stored state to produce the
minimal set of writes plus refund/charge side effects.

SEE ALSO:
  - engine.go: Applies assignments and resolves refund obligations
*/
package ledger

import (
	"sort"

	"github.com/lancef37/sunday-tan-website-sub000/booking"
)

// Entry pairs an active usage record with its booking's slot, which drives
// the ordering.
type Entry struct {
	Record booking.UsageRecord
	Slot   booking.SlotKey
}

// Assignment is the freshly derived position of one record.
type Assignment struct {
	Record   booking.UsageRecord // stored state, for diffing
	Slot     booking.SlotKey
	Sequence int
	Type     booking.UsageType
	Amount   booking.Money
}

// Changed reports whether the stored record differs from the derivation.
func (a Assignment) Changed() bool {
	return a.Sequence != a.Record.Sequence || a.Type != a.Record.Type
}

// BecameIncluded reports an additional -> included transition, which makes
// the record's prior per-visit charge refundable.
func (a Assignment) BecameIncluded() bool {
	return a.Record.Type == booking.UsageAdditional && a.Type == booking.UsageIncluded
}

// BecameAdditional reports an included -> additional transition, which
// creates a pending charge obligation.
func (a Assignment) BecameAdditional() bool {
	return a.Record.Type == booking.UsageIncluded && a.Type == booking.UsageAdditional
}

// Classify derives type and amount for a 1-based sequence number.
func Classify(sequence, includedTans int, additionalPrice booking.Money) (booking.UsageType, booking.Money) {
	if sequence <= includedTans {
		return booking.UsageIncluded, booking.ZeroMoney()
	}
	return booking.UsageAdditional, additionalPrice
}

// Reassign re-derives the whole active set. The input order is irrelevant;
// the output is in appointment order with contiguous sequences.
func Reassign(entries []Entry, includedTans int, additionalPrice booking.Money) []Assignment {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Slot.Before(sorted[j].Slot)
	})

	out := make([]Assignment, len(sorted))
	for i, e := range sorted {
		seq := i + 1
		typ, amount := Classify(seq, includedTans, additionalPrice)
		out[i] = Assignment{
			Record:   e.Record,
			Slot:     e.Slot,
			Sequence: seq,
			Type:     typ,
			Amount:   amount,
		}
	}
	return out
}
