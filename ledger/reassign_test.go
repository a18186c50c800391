package ledger_test

import (
	"testing"

	"github.com/lancef37/sunday-tan-website-sub000/booking"
	"github.com/lancef37/sunday-tan-website-sub000/ledger"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func entry(recID string, seq int, typ booking.UsageType, date, timeOfDay string) ledger.Entry {
	return ledger.Entry{
		Record: booking.UsageRecord{
			ID:       booking.RecordID(recID),
			Sequence: seq,
			Type:     typ,
			Status:   booking.UsageUsed,
		},
		Slot: booking.SlotKey{Date: date, Time: timeOfDay},
	}
}

var price40 = booking.NewMoney(40)

// =============================================================================
// CLASSIFICATION
// =============================================================================

func TestClassify_WithinAllotment_Included(t *testing.T) {
	typ, amount := ledger.Classify(1, 2, price40)
	assert.Equal(t, booking.UsageIncluded, typ)
	assert.True(t, amount.IsZero())

	typ, amount = ledger.Classify(2, 2, price40)
	assert.Equal(t, booking.UsageIncluded, typ)
	assert.True(t, amount.IsZero())
}

func TestClassify_BeyondAllotment_Additional(t *testing.T) {
	typ, amount := ledger.Classify(3, 2, price40)
	assert.Equal(t, booking.UsageAdditional, typ)
	assert.True(t, amount.Equal(price40))
}

func TestClassify_ZeroAllotment_EverythingAdditional(t *testing.T) {
	typ, amount := ledger.Classify(1, 0, price40)
	assert.Equal(t, booking.UsageAdditional, typ)
	assert.True(t, amount.Equal(price40))
}

// =============================================================================
// REASSIGNMENT
// =============================================================================

func TestReassign_ContiguousSequences(t *testing.T) {
	// GIVEN: Three records with stale sequence numbers after a cancellation
	// WHEN: Reassigning with an allotment of 2
	// THEN: Sequences are 1..3 in appointment order, no gaps

	entries := []ledger.Entry{
		entry("r-wed", 3, booking.UsageAdditional, "2025-09-03", "10:00"),
		entry("r-mon", 2, booking.UsageIncluded, "2025-09-01", "10:00"),
		entry("r-fri", 4, booking.UsageAdditional, "2025-09-05", "10:00"),
	}

	out := ledger.Reassign(entries, 2, price40)

	assert.Len(t, out, 3)
	assert.Equal(t, booking.RecordID("r-mon"), out[0].Record.ID)
	assert.Equal(t, booking.RecordID("r-wed"), out[1].Record.ID)
	assert.Equal(t, booking.RecordID("r-fri"), out[2].Record.ID)
	for i, a := range out {
		assert.Equal(t, i+1, a.Sequence)
	}
}

func TestReassign_OrderedByAppointmentNotCreation(t *testing.T) {
	// GIVEN: A record created later but booked for an earlier slot
	// WHEN: Reassigning
	// THEN: The calendar decides, not creation order

	entries := []ledger.Entry{
		entry("created-first", 1, booking.UsageIncluded, "2025-09-10", "14:00"),
		entry("created-second", 2, booking.UsageAdditional, "2025-09-02", "09:00"),
	}

	out := ledger.Reassign(entries, 1, price40)

	assert.Equal(t, booking.RecordID("created-second"), out[0].Record.ID)
	assert.Equal(t, booking.UsageIncluded, out[0].Type)
	assert.Equal(t, booking.RecordID("created-first"), out[1].Record.ID)
	assert.Equal(t, booking.UsageAdditional, out[1].Type)
}

func TestReassign_SameDateOrderedByTime(t *testing.T) {
	entries := []ledger.Entry{
		entry("late", 1, booking.UsageIncluded, "2025-09-01", "16:00"),
		entry("early", 2, booking.UsageAdditional, "2025-09-01", "09:00"),
	}

	out := ledger.Reassign(entries, 1, price40)

	assert.Equal(t, booking.RecordID("early"), out[0].Record.ID)
	assert.Equal(t, booking.RecordID("late"), out[1].Record.ID)
}

func TestReassign_Empty(t *testing.T) {
	out := ledger.Reassign(nil, 2, price40)
	assert.Empty(t, out)
}

// =============================================================================
// TRANSITION DETECTION
// =============================================================================

func TestAssignment_ChangeDetection(t *testing.T) {
	// GIVEN: Mon/Wed/Fri with allotment 2, Fri stored as additional
	// WHEN: Mon is gone and the set re-derives
	// THEN: Only Fri flips (additional -> included); Wed shifts sequence only

	entries := []ledger.Entry{
		entry("r-wed", 2, booking.UsageIncluded, "2025-09-03", "10:00"),
		entry("r-fri", 3, booking.UsageAdditional, "2025-09-05", "10:00"),
	}

	out := ledger.Reassign(entries, 2, price40)

	wed, fri := out[0], out[1]

	assert.True(t, wed.Changed(), "wed moves from seq 2 to seq 1")
	assert.False(t, wed.BecameIncluded())
	assert.False(t, wed.BecameAdditional())

	assert.True(t, fri.Changed())
	assert.True(t, fri.BecameIncluded(), "fri crosses into the allotment")
	assert.True(t, fri.Amount.IsZero())
}

func TestAssignment_NoChange_NoOps(t *testing.T) {
	entries := []ledger.Entry{
		entry("r-1", 1, booking.UsageIncluded, "2025-09-01", "10:00"),
		entry("r-2", 2, booking.UsageIncluded, "2025-09-03", "10:00"),
	}

	out := ledger.Reassign(entries, 2, price40)

	for _, a := range out {
		assert.False(t, a.Changed())
	}
}

func TestAssignment_BecameAdditional_OnShrunkAllotment(t *testing.T) {
	// An earlier slot inserted before an included record pushes it over
	// the allotment boundary.
	entries := []ledger.Entry{
		entry("r-new", 0, booking.UsageIncluded, "2025-09-01", "09:00"),
		entry("r-old", 1, booking.UsageIncluded, "2025-09-02", "09:00"),
	}

	out := ledger.Reassign(entries, 1, price40)

	assert.True(t, out[1].BecameAdditional())
	assert.True(t, out[1].Amount.Equal(price40))
}
