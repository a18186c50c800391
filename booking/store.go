/*
store.go - Persistence interfaces for holds, bookings, usage, and payments

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  HoldStore:       Slot holds with lazy TTL expiry
  BookingStore:    Committed bookings (the slot ledger)
  UsageStore:      Membership usage records
  MembershipStore: Membership state
  PaymentStore:    Payment/refund records
  Store:           All of the above, as implemented by the concrete stores

SLOT UNIQUENESS CONTRACT:
  PutHold and CreateBooking are atomic conditional writes. A plain
  read-then-write is a race: implementations must enforce uniqueness with an
  insert-if-absent under a lock or a unique constraint, and return
  ErrSlotConflict (or a SlotConflictError) on violation.

LAZY EXPIRY CONTRACT:
  Every hold read filters by expiry: a hold whose ExpiresAt has passed is
  never returned, whether or not the row has been physically purged.
  PurgeExpired is a cleanup optimization, not a correctness requirement.

SEE ALSO:
  - store/sqlite/sqlite.go: Durable implementation
  - store/memory/memory.go: In-memory implementation for tests
*/
package booking

import (
	"context"
	"time"
)

// =============================================================================
// HOLD STORE
// =============================================================================

type HoldStore interface {
	// PutHold creates a hold on hold.Slot, atomically checking that no
	// committed booking and no other owner's non-expired hold claims the
	// slot. A same-owner active hold on the slot is replaced (payload
	// updated, expiry reset). Returns ErrSlotConflict on contention.
	PutHold(ctx context.Context, hold Hold, now time.Time) error

	// GetHold returns the hold, or nil if it is absent or expired as of now.
	GetHold(ctx context.Context, id HoldID, now time.Time) (*Hold, error)

	// DeleteHold removes a hold. No error if absent.
	DeleteHold(ctx context.Context, id HoldID) error

	// ActiveHolds returns all non-expired holds for a date.
	ActiveHolds(ctx context.Context, date string, now time.Time) ([]Hold, error)

	// PurgeExpired physically deletes expired holds and returns the count.
	// Optional cleanup; reads must not depend on it having run.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// =============================================================================
// BOOKING STORE - The slot ledger
// =============================================================================

type BookingStore interface {
	// CreateBooking commits a booking, atomically enforcing that at most one
	// active booking references the slot. Returns ErrSlotConflict if the
	// slot is already committed.
	CreateBooking(ctx context.Context, b Booking) error

	GetBooking(ctx context.Context, id BookingID) (*Booking, error)

	// ActiveBookingBySlot returns the non-cancelled booking for the slot,
	// or nil if the slot is free.
	ActiveBookingBySlot(ctx context.Context, slot SlotKey) (*Booking, error)

	// BookingsByDate returns all active bookings for a date.
	BookingsByDate(ctx context.Context, date string) ([]Booking, error)

	// UpdateBooking persists status/type/amount mutations.
	UpdateBooking(ctx context.Context, b Booking) error
}

// =============================================================================
// USAGE STORE
// =============================================================================

type UsageStore interface {
	AppendUsage(ctx context.Context, rec UsageRecord) error

	// ActiveUsage returns status=used records for the membership whose cycle
	// window matches, ordered by the underlying booking's (date, time).
	ActiveUsage(ctx context.Context, id MembershipID, cycle Cycle) ([]UsageRecord, error)

	// UsageByBooking returns the active record bound to the booking, or nil.
	UsageByBooking(ctx context.Context, id BookingID) (*UsageRecord, error)

	// UpdateUsage persists sequence/type/amount/status mutations.
	UpdateUsage(ctx context.Context, rec UsageRecord) error

	// ListUsage returns all records for the cycle, refunded included (audit).
	ListUsage(ctx context.Context, id MembershipID, cycle Cycle) ([]UsageRecord, error)
}

// =============================================================================
// MEMBERSHIP + PAYMENT STORES
// =============================================================================

type MembershipStore interface {
	GetMembership(ctx context.Context, id MembershipID) (*Membership, error)

	// ActiveMembershipByClient returns the client's active membership, or nil.
	ActiveMembershipByClient(ctx context.Context, client ClientID) (*Membership, error)

	SaveMembership(ctx context.Context, m Membership) error
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, p Payment) error

	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)

	// PaymentsByBooking returns all payments for a booking, newest first.
	PaymentsByBooking(ctx context.Context, id BookingID) ([]Payment, error)

	// PaymentsByMembership returns all payments across a membership's bookings.
	PaymentsByMembership(ctx context.Context, id MembershipID) ([]Payment, error)

	UpdatePayment(ctx context.Context, p Payment) error
}

// =============================================================================
// AGGREGATE STORE
// =============================================================================

// Store is the full persistence surface. Both concrete stores implement it.
type Store interface {
	HoldStore
	BookingStore
	UsageStore
	MembershipStore
	PaymentStore
}
