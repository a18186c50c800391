/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Slots:
    SlotDTO, AvailabilityDTO

  Reservations:
    ReserveRequest, HoldDTO, CompleteRequest, CancelHoldRequest

  Bookings:
    BookingDTO, UpdateStatusRequest

  Memberships:
    MembershipDTO, UsageRecordDTO, ReconcileResultDTO

  Payments:
    PaymentDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/lancef37/sunday-tan-website-sub000/booking"
	"github.com/lancef37/sunday-tan-website-sub000/ledger"
)

// =============================================================================
// SLOTS + AVAILABILITY
// =============================================================================

// SlotDTO is one slot on a date with its availability.
type SlotDTO struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// AvailabilityDTO is the day view: every schedulable slot with state.
type AvailabilityDTO struct {
	Date  string    `json:"date"`
	Slots []SlotDTO `json:"slots"`
}

// =============================================================================
// RESERVATIONS
// =============================================================================

// ReserveRequest asks for a time-boxed hold on a slot.
type ReserveRequest struct {
	Date    string          `json:"date"`
	Time    string          `json:"time"`
	Client  string          `json:"client"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HoldDTO represents an active hold in API responses.
type HoldDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	ExpiresAt string `json:"expires_at"`
}

// CompleteRequest converts a hold into a committed booking.
type CompleteRequest struct {
	HoldID     string `json:"hold_id"`
	Client     string `json:"client"`
	PaymentRef string `json:"payment_ref,omitempty"`
	Amount     string `json:"amount,omitempty"`
}

// CancelHoldRequest releases a hold before it expires.
type CancelHoldRequest struct {
	HoldID string `json:"hold_id"`
	Client string `json:"client"`
}

// =============================================================================
// BOOKINGS
// =============================================================================

// BookingDTO represents a booking in API responses.
type BookingDTO struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Client       string `json:"client"`
	Status       string `json:"status"`
	MembershipID string `json:"membership_id,omitempty"`
	UsageType    string `json:"usage_type,omitempty"`
	Amount       string `json:"amount"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// UpdateStatusRequest moves a booking through its lifecycle.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// =============================================================================
// MEMBERSHIPS + USAGE
// =============================================================================

// MembershipDTO represents a membership in API responses.
type MembershipDTO struct {
	ID              string `json:"id"`
	Client          string `json:"client"`
	Status          string `json:"status"`
	CycleStart      string `json:"cycle_start"`
	CycleEnd        string `json:"cycle_end"`
	TansUsed        int    `json:"tans_used"`
	IncludedTans    int    `json:"included_tans"`
	AdditionalPrice string `json:"additional_price"`
}

// UsageRecordDTO represents one usage record, including refunded audit rows.
type UsageRecordDTO struct {
	ID         string `json:"id"`
	BookingID  string `json:"booking_id"`
	Sequence   int    `json:"sequence"`
	Type       string `json:"type"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	RefundedAt string `json:"refunded_at,omitempty"`
}

// ReconcileResultDTO summarizes a recalculation pass.
type ReconcileResultDTO struct {
	MembershipID   string `json:"membership_id"`
	ActiveRecords  int    `json:"active_records"`
	Reassigned     int    `json:"reassigned"`
	RefundIssued   bool   `json:"refund_issued"`
	RefundFailed   bool   `json:"refund_failed"`
	RefundsSkipped int    `json:"refunds_skipped"`
	ChargesCreated int    `json:"charges_created"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentDTO represents a payment or refund record.
type PaymentDTO struct {
	ID          string `json:"id"`
	BookingID   string `json:"booking_id"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
	RefundRef   string `json:"refund_ref,omitempty"`
	FailureNote string `json:"failure_note,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DTO CONVERTERS
// =============================================================================

func toBookingDTO(b booking.Booking) BookingDTO {
	return BookingDTO{
		ID:           string(b.ID),
		Date:         b.Slot.Date,
		Time:         b.Slot.Time,
		Client:       string(b.Client),
		Status:       string(b.Status),
		MembershipID: string(b.MembershipID),
		UsageType:    string(b.UsageType),
		Amount:       b.Amount.String(),
		CreatedAt:    b.CreatedAt.Format(time.RFC3339),
	}
}

func toHoldDTO(h booking.Hold) HoldDTO {
	return HoldDTO{
		ID:        string(h.ID),
		Date:      h.Slot.Date,
		Time:      h.Slot.Time,
		ExpiresAt: h.ExpiresAt.Format(time.RFC3339),
	}
}

func toMembershipDTO(m booking.Membership) MembershipDTO {
	return MembershipDTO{
		ID:              string(m.ID),
		Client:          string(m.Client),
		Status:          string(m.Status),
		CycleStart:      m.CycleStart.Format(booking.DateLayout),
		CycleEnd:        m.CycleEnd.Format(booking.DateLayout),
		TansUsed:        m.TansUsed,
		IncludedTans:    m.IncludedTans,
		AdditionalPrice: m.AdditionalPrice.String(),
	}
}

func toUsageDTO(rec booking.UsageRecord) UsageRecordDTO {
	dto := UsageRecordDTO{
		ID:        string(rec.ID),
		BookingID: string(rec.BookingID),
		Sequence:  rec.Sequence,
		Type:      string(rec.Type),
		Amount:    rec.Amount.String(),
		Status:    string(rec.Status),
	}
	if rec.RefundedAt != nil {
		dto.RefundedAt = rec.RefundedAt.Format(time.RFC3339)
	}
	return dto
}

func toPaymentDTO(p booking.Payment) PaymentDTO {
	return PaymentDTO{
		ID:          string(p.ID),
		BookingID:   string(p.BookingID),
		Amount:      p.Amount.String(),
		Status:      string(p.Status),
		RefundRef:   p.RefundRef,
		FailureNote: p.FailureNote,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

func toReconcileDTO(res *ledger.Result) ReconcileResultDTO {
	return ReconcileResultDTO{
		MembershipID:   string(res.MembershipID),
		ActiveRecords:  res.ActiveRecords,
		Reassigned:     res.Reassigned,
		RefundIssued:   res.RefundIssued,
		RefundFailed:   res.RefundFailed,
		RefundsSkipped: res.RefundsSkipped,
		ChargesCreated: res.ChargesCreated,
	}
}
