// Package memory provides an in-memory booking.Store (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lancef37/sunday-tan-website-sub000/booking"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store keeps everything behind a single mutex, which also gives PutHold and
// CreateBooking their required atomic check-and-insert semantics.
type Store struct {
	mu          sync.RWMutex
	holds       map[booking.HoldID]booking.Hold
	bookings    map[booking.BookingID]booking.Booking
	usage       map[booking.RecordID]booking.UsageRecord
	memberships map[booking.MembershipID]booking.Membership
	payments    map[booking.PaymentID]booking.Payment
}

func New() *Store {
	return &Store{
		holds:       make(map[booking.HoldID]booking.Hold),
		bookings:    make(map[booking.BookingID]booking.Booking),
		usage:       make(map[booking.RecordID]booking.UsageRecord),
		memberships: make(map[booking.MembershipID]booking.Membership),
		payments:    make(map[booking.PaymentID]booking.Payment),
	}
}

// =============================================================================
// HOLD STORE
// =============================================================================

func (s *Store) PutHold(_ context.Context, hold booking.Hold, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Committed booking wins over any new hold.
	if b := s.activeBookingBySlotLocked(hold.Slot); b != nil {
		return &booking.SlotConflictError{Slot: hold.Slot, BookedBy: b.ID}
	}

	for id, h := range s.holds {
		if h.Slot != hold.Slot {
			continue
		}
		if h.Expired(now) {
			delete(s.holds, id) // lazy purge on the way through
			continue
		}
		if h.Owner != hold.Owner {
			return &booking.SlotConflictError{Slot: hold.Slot, HeldBy: h.Owner}
		}
		// Same-owner re-reserve: replace rather than duplicate.
		delete(s.holds, id)
	}

	s.holds[hold.ID] = hold
	return nil
}

func (s *Store) GetHold(_ context.Context, id booking.HoldID, now time.Time) (*booking.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holds[id]
	if !ok || h.Expired(now) {
		return nil, nil
	}
	out := h
	return &out, nil
}

func (s *Store) DeleteHold(_ context.Context, id booking.HoldID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.holds, id)
	return nil
}

func (s *Store) ActiveHolds(_ context.Context, date string, now time.Time) ([]booking.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []booking.Hold
	for _, h := range s.holds {
		if h.Slot.Date == date && !h.Expired(now) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot.Before(out[j].Slot) })
	return out, nil
}

func (s *Store) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, h := range s.holds {
		if h.Expired(now) {
			delete(s.holds, id)
			n++
		}
	}
	return n, nil
}

// =============================================================================
// BOOKING STORE
// =============================================================================

func (s *Store) CreateBooking(_ context.Context, b booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.activeBookingBySlotLocked(b.Slot); existing != nil {
		return &booking.SlotConflictError{Slot: b.Slot, BookedBy: existing.ID}
	}
	s.bookings[b.ID] = b
	return nil
}

func (s *Store) GetBooking(_ context.Context, id booking.BookingID) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, nil
	}
	out := b
	return &out, nil
}

func (s *Store) ActiveBookingBySlot(_ context.Context, slot booking.SlotKey) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeBookingBySlotLocked(slot), nil
}

func (s *Store) activeBookingBySlotLocked(slot booking.SlotKey) *booking.Booking {
	for _, b := range s.bookings {
		if b.Slot == slot && b.Status.Active() {
			out := b
			return &out
		}
	}
	return nil
}

func (s *Store) BookingsByDate(_ context.Context, date string) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []booking.Booking
	for _, b := range s.bookings {
		if b.Slot.Date == date && b.Status.Active() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot.Before(out[j].Slot) })
	return out, nil
}

func (s *Store) UpdateBooking(_ context.Context, b booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[b.ID]; !ok {
		return booking.ErrNotFound
	}
	s.bookings[b.ID] = b
	return nil
}

// =============================================================================
// USAGE STORE
// =============================================================================

func (s *Store) AppendUsage(_ context.Context, rec booking.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[rec.ID] = rec
	return nil
}

func (s *Store) ActiveUsage(_ context.Context, id booking.MembershipID, cycle booking.Cycle) ([]booking.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []booking.UsageRecord
	for _, r := range s.usage {
		if r.MembershipID == id && r.Status == booking.UsageUsed && r.CycleStart.Equal(cycle.Start) {
			out = append(out, r)
		}
	}
	s.sortByBookingSlotLocked(out)
	return out, nil
}

func (s *Store) UsageByBooking(_ context.Context, id booking.BookingID) (*booking.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.usage {
		if r.BookingID == id && r.Status == booking.UsageUsed {
			out := r
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateUsage(_ context.Context, rec booking.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usage[rec.ID]; !ok {
		return booking.ErrNotFound
	}
	s.usage[rec.ID] = rec
	return nil
}

func (s *Store) ListUsage(_ context.Context, id booking.MembershipID, cycle booking.Cycle) ([]booking.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []booking.UsageRecord
	for _, r := range s.usage {
		if r.MembershipID == id && r.CycleStart.Equal(cycle.Start) {
			out = append(out, r)
		}
	}
	s.sortByBookingSlotLocked(out)
	return out, nil
}

// sortByBookingSlotLocked orders records by the underlying booking's slot -
// chronological order of the appointment, not creation order.
func (s *Store) sortByBookingSlotLocked(recs []booking.UsageRecord) {
	slotOf := func(r booking.UsageRecord) booking.SlotKey {
		if b, ok := s.bookings[r.BookingID]; ok {
			return b.Slot
		}
		return booking.SlotKey{}
	}
	sort.Slice(recs, func(i, j int) bool {
		return slotOf(recs[i]).Before(slotOf(recs[j]))
	})
}

// =============================================================================
// MEMBERSHIP STORE
// =============================================================================

func (s *Store) GetMembership(_ context.Context, id booking.MembershipID) (*booking.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memberships[id]
	if !ok {
		return nil, nil
	}
	out := m
	return &out, nil
}

func (s *Store) ActiveMembershipByClient(_ context.Context, client booking.ClientID) (*booking.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.memberships {
		if m.Client == client && m.Status == booking.MembershipActive {
			out := m
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) SaveMembership(_ context.Context, m booking.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[m.ID] = m
	return nil
}

// =============================================================================
// PAYMENT STORE
// =============================================================================

func (s *Store) CreatePayment(_ context.Context, p booking.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
	return nil
}

func (s *Store) GetPayment(_ context.Context, id booking.PaymentID) (*booking.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, nil
	}
	out := p
	return &out, nil
}

func (s *Store) PaymentsByBooking(_ context.Context, id booking.BookingID) ([]booking.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []booking.Payment
	for _, p := range s.payments {
		if p.BookingID == id {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) PaymentsByMembership(_ context.Context, id booking.MembershipID) ([]booking.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []booking.Payment
	for _, p := range s.payments {
		if p.MembershipID == id {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdatePayment(_ context.Context, p booking.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[p.ID]; !ok {
		return booking.ErrNotFound
	}
	s.payments[p.ID] = p
	return nil
}
