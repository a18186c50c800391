package booking

import (
	"context"
	"time"
)

// =============================================================================
// CYCLE - The billing window usage records are scoped to
// =============================================================================

// Cycle is a membership's billing window [Start, End]. The window is mutated
// only by rollover and must stay fixed while reconciliation runs against it.
type Cycle struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t falls within the cycle [Start, End].
func (c Cycle) Contains(t time.Time) bool {
	return !t.Before(c.Start) && !t.After(c.End)
}

// Next returns the following cycle of the same calendar length.
func (c Cycle) Next() Cycle {
	return Cycle{
		Start: c.Start.AddDate(0, 1, 0),
		End:   c.End.AddDate(0, 1, 0),
	}
}

func (c Cycle) String() string {
	return "[" + c.Start.Format(DateLayout) + ", " + c.End.Format(DateLayout) + "]"
}

// =============================================================================
// CYCLE CLOCK - Collaborator returning the current cycle for a membership
// =============================================================================

// CycleClock resolves a membership's current billing cycle. The result is
// captured once per reconciliation pass - the engine must not observe a
// rollover mid-calculation.
type CycleClock interface {
	CycleFor(ctx context.Context, m Membership) (Cycle, error)
}

// StoredCycleClock reads the window straight off the membership record,
// which is the source of truth between rollovers.
type StoredCycleClock struct{}

func (StoredCycleClock) CycleFor(_ context.Context, m Membership) (Cycle, error) {
	return Cycle{Start: m.CycleStart, End: m.CycleEnd}, nil
}
