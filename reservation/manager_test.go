package reservation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lancef37/sunday-tan-website-sub000/booking"
	"github.com/lancef37/sunday-tan-website-sub000/reservation"
	"github.com/lancef37/sunday-tan-website-sub000/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestManager(t *testing.T) (*reservation.Manager, *clock) {
	t.Helper()

	c := &clock{now: time.Date(2025, time.September, 1, 9, 0, 0, 0, time.UTC)}
	mgr := reservation.NewManager(memory.New())
	mgr.Now = c.Now
	return mgr, c
}

// clock is a controllable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// =============================================================================
// RESERVE - Mutual exclusion
// =============================================================================

func TestReserve_SecondClientConflicts(t *testing.T) {
	// GIVEN: Client A holds a slot
	// WHEN: Client B tries to reserve the same slot
	// THEN: B gets a conflict and A's hold is untouched

	mgr, _ := newTestManager(t)
	ctx := context.Background()

	holdA, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", nil)
	require.NoError(t, err)

	_, err = mgr.Reserve(ctx, "2025-09-05", "10:00", "client-b", nil)
	assert.Error(t, err)
	assert.True(t, booking.IsConflict(err))

	var conflict *booking.SlotConflictError
	assert.ErrorAs(t, err, &conflict)

	// A can still complete.
	b, err := mgr.Complete(ctx, holdA.ID, "client-a", "")
	require.NoError(t, err)
	assert.Equal(t, booking.ClientID("client-a"), b.Client)
}

func TestReserve_ConcurrentSameSlot_ExactlyOneWins(t *testing.T) {
	// GIVEN: 20 clients racing for one slot
	// WHEN: All reserve concurrently
	// THEN: Exactly one hold is granted

	mgr, _ := newTestManager(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := booking.ClientID(string(rune('a' + i%26)))
			_, errs[i] = mgr.Reserve(ctx, "2025-09-05", "10:00", booking.ClientID("client-"+string(owner)), nil)
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, err := range errs {
		if err == nil {
			granted++
		} else {
			assert.True(t, booking.IsConflict(err))
		}
	}
	assert.Equal(t, 1, granted)
}

func TestReserve_DifferentSlots_NoConflict(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", nil)
	require.NoError(t, err)
	_, err = mgr.Reserve(ctx, "2025-09-05", "11:00", "client-b", nil)
	require.NoError(t, err)
	_, err = mgr.Reserve(ctx, "2025-09-06", "10:00", "client-c", nil)
	require.NoError(t, err)
}

func TestReserve_SameOwnerReplacesHold(t *testing.T) {
	// A client going back and forth in checkout gets a fresh hold on the
	// same slot instead of fighting themselves.
	mgr, c := newTestManager(t)
	ctx := context.Background()

	h1, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", []byte(`{"shade":"medium"}`))
	require.NoError(t, err)

	c.Advance(10 * time.Minute)
	h2, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", []byte(`{"shade":"dark"}`))
	require.NoError(t, err)
	assert.NotEqual(t, h1.ID, h2.ID)
	assert.True(t, h2.ExpiresAt.After(h1.ExpiresAt), "expiry resets on re-reserve")

	// The old hold is gone; only the new one completes.
	_, err = mgr.Complete(ctx, h1.ID, "client-a", "")
	assert.ErrorIs(t, err, booking.ErrHoldExpired)

	b, err := mgr.Complete(ctx, h2.ID, "client-a", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"shade":"dark"}`, string(b.Payload))
}

func TestReserve_InvalidInput(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Reserve(ctx, "09/05/2025", "10:00", "client-a", nil)
	assert.Error(t, err)

	_, err = mgr.Reserve(ctx, "2025-09-05", "10am", "client-a", nil)
	assert.Error(t, err)

	_, err = mgr.Reserve(ctx, "2025-09-05", "10:00", "", nil)
	assert.Error(t, err)
}

// =============================================================================
// EXPIRY - Lazy TTL
// =============================================================================

func TestHoldExpiry_SlotReclaimableWithoutCleanup(t *testing.T) {
	// GIVEN: Client A held a slot and abandoned checkout
	// WHEN: The TTL passes with no sweep running
	// THEN: Client B can take the slot immediately

	mgr, c := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", nil)
	require.NoError(t, err)

	c.Advance(reservation.DefaultTTL + time.Second)

	holdB, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-b", nil)
	require.NoError(t, err, "expired hold must not block the slot")

	b, err := mgr.Complete(ctx, holdB.ID, "client-b", "")
	require.NoError(t, err)
	assert.Equal(t, booking.ClientID("client-b"), b.Client)
}

func TestComplete_ExpiredHold_Rejected(t *testing.T) {
	// GIVEN: A hold past its TTL
	// WHEN: The owner tries to complete checkout
	// THEN: ErrHoldExpired, even if nobody else claimed the slot

	mgr, c := newTestManager(t)
	ctx := context.Background()

	hold, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", nil)
	require.NoError(t, err)

	c.Advance(reservation.DefaultTTL + time.Second)

	_, err = mgr.Complete(ctx, hold.ID, "client-a", "")
	assert.ErrorIs(t, err, booking.ErrHoldExpired)
}

func TestComplete_ExactlyAtExpiry_Rejected(t *testing.T) {
	// Expiry is a hard cutover: at exactly ExpiresAt the hold is gone.
	mgr, c := newTestManager(t)
	ctx := context.Background()

	hold, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", nil)
	require.NoError(t, err)

	c.Advance(reservation.DefaultTTL)

	_, err = mgr.Complete(ctx, hold.ID, "client-a", "")
	assert.ErrorIs(t, err, booking.ErrHoldExpired)
}

func TestHold_ExpiryAfterReclaim_OriginalOwnerLocked(t *testing.T) {
	// Scenario: A abandons, B claims and completes, then A comes back.
	mgr, c := newTestManager(t)
	ctx := context.Background()

	holdA, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", nil)
	require.NoError(t, err)

	c.Advance(reservation.DefaultTTL + time.Minute)

	holdB, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-b", nil)
	require.NoError(t, err)
	_, err = mgr.Complete(ctx, holdB.ID, "client-b", "")
	require.NoError(t, err)

	_, err = mgr.Complete(ctx, holdA.ID, "client-a", "")
	assert.ErrorIs(t, err, booking.ErrHoldExpired)
}

// =============================================================================
// COMPLETE
// =============================================================================

func TestComplete_CreatesConfirmedBooking(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	hold, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", []byte(`{"note":"first visit"}`))
	require.NoError(t, err)

	b, err := mgr.Complete(ctx, hold.ID, "client-a", "ch_123")
	require.NoError(t, err)

	assert.Equal(t, booking.BookingConfirmed, b.Status)
	assert.Equal(t, hold.Slot, b.Slot)
	assert.Equal(t, "ch_123", b.PaymentRef)
	assert.JSONEq(t, `{"note":"first visit"}`, string(b.Payload))
}

func TestComplete_ForeignOwner_ReadsAsExpired(t *testing.T) {
	// A hold ID leaked to another client must not be completable, and the
	// error must not reveal that the hold exists.
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	hold, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", nil)
	require.NoError(t, err)

	_, err = mgr.Complete(ctx, hold.ID, "client-b", "")
	assert.ErrorIs(t, err, booking.ErrHoldExpired)
}

func TestComplete_SlotCommittedMeanwhile_Conflicts(t *testing.T) {
	// The stale-hold race: a booking landed on the slot between hold
	// creation and completion. CreateBooking's conditional insert catches it.
	mgr, c := newTestManager(t)
	ctx := context.Background()

	holdA, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", nil)
	require.NoError(t, err)

	c.Advance(reservation.DefaultTTL + time.Second)

	holdB, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-b", nil)
	require.NoError(t, err)
	_, err = mgr.Complete(ctx, holdB.ID, "client-b", "")
	require.NoError(t, err)

	// A's hold is expired; but even a non-expired stale hold would hit the
	// committed-booking guard inside CreateBooking.
	_, err = mgr.Complete(ctx, holdA.ID, "client-a", "")
	assert.Error(t, err)
}

// =============================================================================
// CANCEL - Idempotency
// =============================================================================

func TestCancel_ReleasesSlot(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	hold, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", nil)
	require.NoError(t, err)

	require.NoError(t, mgr.Cancel(ctx, hold.ID, "client-a"))

	_, err = mgr.Reserve(ctx, "2025-09-05", "10:00", "client-b", nil)
	assert.NoError(t, err, "cancelled hold frees the slot immediately")
}

func TestCancel_Idempotent(t *testing.T) {
	// GIVEN: A hold that has been cancelled, expired, or never existed
	// WHEN: Cancel is called (again)
	// THEN: Always a no-op success

	mgr, c := newTestManager(t)
	ctx := context.Background()

	hold, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", nil)
	require.NoError(t, err)

	assert.NoError(t, mgr.Cancel(ctx, hold.ID, "client-a"))
	assert.NoError(t, mgr.Cancel(ctx, hold.ID, "client-a"), "second cancel is a no-op")
	assert.NoError(t, mgr.Cancel(ctx, "hold-never-existed", "client-a"))

	expired, err := mgr.Reserve(ctx, "2025-09-05", "11:00", "client-a", nil)
	require.NoError(t, err)
	c.Advance(reservation.DefaultTTL + time.Second)
	assert.NoError(t, mgr.Cancel(ctx, expired.ID, "client-a"))
}

func TestCancel_ForeignHold_NoOp(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	hold, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", nil)
	require.NoError(t, err)

	require.NoError(t, mgr.Cancel(ctx, hold.ID, "client-b"))

	// A's hold survives.
	b, err := mgr.Complete(ctx, hold.ID, "client-a", "")
	require.NoError(t, err)
	assert.NotNil(t, b)
}

// =============================================================================
// AVAILABILITY + SWEEP
// =============================================================================

func TestTaken_MergesBookingsAndActiveHolds(t *testing.T) {
	mgr, c := newTestManager(t)
	ctx := context.Background()

	// Committed booking at 10:00.
	h, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", nil)
	require.NoError(t, err)
	_, err = mgr.Complete(ctx, h.ID, "client-a", "")
	require.NoError(t, err)

	// Active hold at 11:00, expired hold at 12:00.
	_, err = mgr.Reserve(ctx, "2025-09-05", "12:00", "client-b", nil)
	require.NoError(t, err)
	c.Advance(reservation.DefaultTTL + time.Second)
	_, err = mgr.Reserve(ctx, "2025-09-05", "11:00", "client-c", nil)
	require.NoError(t, err)

	taken, err := mgr.Taken(ctx, "2025-09-05")
	require.NoError(t, err)

	assert.True(t, taken["10:00"], "committed booking")
	assert.True(t, taken["11:00"], "active hold")
	assert.False(t, taken["12:00"], "expired hold reads as free")
}

func TestSweep_PurgesOnlyExpired(t *testing.T) {
	mgr, c := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", nil)
	require.NoError(t, err)
	c.Advance(reservation.DefaultTTL + time.Second)
	fresh, err := mgr.Reserve(ctx, "2025-09-05", "11:00", "client-b", nil)
	require.NoError(t, err)

	n, err := mgr.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The fresh hold still completes.
	_, err = mgr.Complete(ctx, fresh.ID, "client-b", "")
	assert.NoError(t, err)
}

func TestCancelledBooking_FreesSlot(t *testing.T) {
	// Cancelling a committed booking releases the slot for new holds.
	store := memory.New()
	mgr := reservation.NewManager(store)
	ctx := context.Background()

	h, err := mgr.Reserve(ctx, "2025-09-05", "10:00", "client-a", nil)
	require.NoError(t, err)
	b, err := mgr.Complete(ctx, h.ID, "client-a", "")
	require.NoError(t, err)

	_, err = mgr.Reserve(ctx, "2025-09-05", "10:00", "client-b", nil)
	var conflict *booking.SlotConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, b.ID, conflict.BookedBy)

	b.Status = booking.BookingCancelled
	require.NoError(t, store.UpdateBooking(ctx, *b))

	_, err = mgr.Reserve(ctx, "2025-09-05", "10:00", "client-b", nil)
	assert.NoError(t, err)
}
