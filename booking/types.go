/*
Package booking provides the core domain types for the appointment system.

PURPOSE:
  This package contains the shared vocabulary of the booking engine: slots,
  holds, bookings, memberships, usage records, and payments. Every other
  package (reservation, ledger, stores, api) speaks in these types.

KEY CONCEPTS IN THIS FILE (types.go):
  - SlotKey: a bookable (date, time) unit - the uniqueness key of the system
  - Hold: a time-boxed tentative claim on a slot during checkout
  - Booking: a committed appointment
  - Membership: a subscription entitling included appointments per cycle
  - UsageRecord: one membership appointment, classified included/additional
  - Payment: a charge or refund against a booking
  - Money: a decimal currency amount

DESIGN PRINCIPLES:
  1. Precision: Money uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing hold/booking/record IDs
  3. Lazy expiry: a Hold past its ExpiresAt is treated as absent everywhere,
     regardless of whether the row has been physically purged

SEE ALSO:
  - errors.go: Sentinel and structured error types
  - store.go: Persistence interfaces over these types
  - cycle.go: Billing cycle window calculation
*/
package booking

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal currency amount
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money        { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int) Money     { return Money{Value: decimal.NewFromInt(int64(value))} }
func ZeroMoney() Money                    { return Money{Value: decimal.Zero} }

func (m Money) Add(b Money) Money      { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money      { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Neg() Money             { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool           { return m.Value.IsZero() }
func (m Money) IsPositive() bool       { return m.Value.IsPositive() }
func (m Money) Equal(b Money) bool     { return m.Value.Equal(b.Value) }
func (m Money) String() string         { return m.Value.StringFixed(2) }

// ParseMoney parses a decimal string such as "40.00".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{Value: d}, nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type HoldID string
type BookingID string
type MembershipID string
type RecordID string
type PaymentID string
type ClientID string

// =============================================================================
// SLOT KEY - A bookable (date, time) unit
// =============================================================================

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// SlotKey identifies a bookable slot. Date is "2006-01-02", Time is "15:04".
// Both are zero-padded, so lexicographic order equals chronological order.
type SlotKey struct {
	Date string
	Time string
}

func NewSlotKey(date, timeOfDay string) (SlotKey, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return SlotKey{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if _, err := time.Parse(TimeLayout, timeOfDay); err != nil {
		return SlotKey{}, fmt.Errorf("invalid time %q: %w", timeOfDay, err)
	}
	return SlotKey{Date: date, Time: timeOfDay}, nil
}

// Before reports whether k is chronologically before other.
func (k SlotKey) Before(other SlotKey) bool {
	if k.Date != other.Date {
		return k.Date < other.Date
	}
	return k.Time < other.Time
}

// At returns the slot's wall-clock start in UTC.
func (k SlotKey) At() time.Time {
	t, _ := time.Parse(DateLayout+" "+TimeLayout, k.Date+" "+k.Time)
	return t
}

func (k SlotKey) String() string { return k.Date + " " + k.Time }

// =============================================================================
// HOLD - Time-boxed tentative claim on a slot
// =============================================================================

// Hold is a temporary reservation taken while a client walks through checkout.
// It is never mutated except for a same-owner re-reserve of the same slot,
// which replaces payload and resets expiry.
type Hold struct {
	ID        HoldID
	Owner     ClientID
	Slot      SlotKey
	Payload   json.RawMessage // pending booking details, pricing snapshot
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the hold's TTL has passed. Expiry is a hard
// cutover: a hold at exactly ExpiresAt is already gone.
func (h Hold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// =============================================================================
// BOOKING - Committed appointment
// =============================================================================

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Active reports whether the booking still occupies its slot.
func (s BookingStatus) Active() bool { return s != BookingCancelled }

type Booking struct {
	ID           BookingID
	Slot         SlotKey
	Client       ClientID
	Status       BookingStatus
	MembershipID MembershipID // empty for non-subscriber bookings
	UsageType    UsageType    // mirrors the active usage record, if any
	Amount       Money
	PaymentRef   string // gateway charge reference, if captured at checkout
	Payload      json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// =============================================================================
// USAGE RECORD - One membership appointment within a billing cycle
// =============================================================================

type UsageType string

const (
	UsageIncluded   UsageType = "included"
	UsageAdditional UsageType = "additional"
)

type UsageStatus string

const (
	UsageUsed     UsageStatus = "used"
	UsageRefunded UsageStatus = "refunded" // terminal; kept for audit
)

// UsageRecord classifies a membership booking by its ordinal position in the
// billing cycle. Sequence numbers are 1-based and contiguous across the
// active (status=used) set, ordered by the underlying booking's slot.
type UsageRecord struct {
	ID           RecordID
	MembershipID MembershipID
	BookingID    BookingID
	Sequence     int
	Type         UsageType
	Amount       Money
	Status       UsageStatus
	CycleStart   time.Time
	CycleEnd     time.Time
	RefundReason string
	RefundedAt   *time.Time
	CreatedAt    time.Time
}

// =============================================================================
// MEMBERSHIP
// =============================================================================

type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipPaused    MembershipStatus = "paused"
	MembershipCancelled MembershipStatus = "cancelled"
)

type Membership struct {
	ID              MembershipID
	Client          ClientID
	Status          MembershipStatus
	CycleStart      time.Time
	CycleEnd        time.Time
	TansUsed        int // count of active usage records this cycle
	IncludedTans    int // plan allotment per cycle
	AdditionalPrice Money
}

// =============================================================================
// PAYMENT - Charge/refund state for a booking
// =============================================================================

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"  // obligation recorded, not captured
	PaymentCaptured PaymentStatus = "captured" // charged through the gateway
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed" // refund attempt failed; manual follow-up
)

type Payment struct {
	ID           PaymentID
	BookingID    BookingID
	MembershipID MembershipID
	Amount       Money
	Status       PaymentStatus
	GatewayRef   string
	RefundRef    string
	FailureNote  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
