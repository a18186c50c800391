/*
handlers.go - HTTP API handlers for the booking engine

PURPOSE:
  Exposes the reservation and membership-ledger engine via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Availability:
    GET    /api/slots/{date}                    Day view with availability

  Reservations:
    POST   /api/reservations/reserve            Take a 15-minute hold
    POST   /api/reservations/complete           Commit a hold to a booking
    POST   /api/reservations/cancel             Release a hold

  Admin (JWT):
    GET    /api/admin/bookings?date=            Bookings for a date
    GET    /api/admin/bookings/{id}             Booking details
    POST   /api/admin/bookings/{id}/status      Drive the booking lifecycle
    GET    /api/admin/bookings/{id}/payments    Payments for a booking
    GET    /api/admin/memberships/{id}          Membership state
    GET    /api/admin/memberships/{id}/usage    Usage records (audit view)
    POST   /api/admin/memberships/{id}/recalculate  Manual reconciliation
    POST   /api/admin/memberships/{id}/rollover Advance the billing cycle
    PUT    /api/admin/schedule                  Replace the schedule config
    POST   /api/admin/holds/sweep               Purge expired holds

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (reservation manager, usage ledger, engine)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found, expired holds
  - 409: Slot conflict
  - 500: Internal errors, partial reconciliation

LIFECYCLE ORCHESTRATION:
  The status handler is where booking transitions drive the ledger:
  - completed + membership: append a usage record
  - cancelled + usage record: mark refunded, which cascades into a
    reconciliation pass (re-sequencing, refunds, pending charges)
  - cancelled: the slot frees automatically (uniqueness only covers
    non-cancelled bookings)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup, middleware, admin JWT
  - reservation/manager.go: Hold protocol
  - ledger/ledger.go: Usage append and refund cascade
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lancef37/sunday-tan-website-sub000/booking"
	"github.com/lancef37/sunday-tan-website-sub000/ledger"
	"github.com/lancef37/sunday-tan-website-sub000/reservation"
	"github.com/lancef37/sunday-tan-website-sub000/schedule"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// ScheduleStore persists schedule config across restarts. Implemented by the
// sqlite store; optional (nil means config lives only in memory).
type ScheduleStore interface {
	SaveScheduleConfig(ctx context.Context, version int, configJSON []byte) error
	LoadScheduleConfig(ctx context.Context) (int, []byte, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        booking.Store
	Reservations *reservation.Manager
	Ledger       *ledger.UsageLedger
	Engine       *ledger.Engine
	Schedule     *schedule.Registry
	ScheduleDB   ScheduleStore
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(store booking.Store, mgr *reservation.Manager, lg *ledger.UsageLedger, eng *ledger.Engine, reg *schedule.Registry) *Handler {
	return &Handler{
		Store:        store,
		Reservations: mgr,
		Ledger:       lg,
		Engine:       eng,
		Schedule:     reg,
	}
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// GetAvailability returns every schedulable slot for a date with its state.
// Slots covered by an active booking or a non-expired hold read as taken.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(booking.DateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	times, err := h.Schedule.Current().SlotsFor(date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	taken, err := h.Reservations.Taken(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load availability", err)
		return
	}

	slots := make([]SlotDTO, len(times))
	for i, t := range times {
		slots[i] = SlotDTO{Time: t, Available: !taken[t]}
	}

	writeJSON(w, http.StatusOK, AvailabilityDTO{Date: date, Slots: slots})
}

// =============================================================================
// RESERVATIONS
// =============================================================================

// Reserve takes a time-boxed hold on a slot.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Client == "" {
		writeError(w, http.StatusBadRequest, "client is required", nil)
		return
	}

	hold, err := h.Reservations.Reserve(r.Context(), req.Date, req.Time, booking.ClientID(req.Client), req.Payload)
	if err != nil {
		status, msg := classify(err)
		writeError(w, status, msg, err)
		return
	}

	writeJSON(w, http.StatusCreated, toHoldDTO(*hold))
}

// Complete commits a hold into a booking. If the client has an active
// membership, a usage record is appended and the booking priced by its
// ordinal position in the cycle; for a captured additional charge the
// payment is recorded against the gateway reference.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ctx := r.Context()

	b, err := h.Reservations.Complete(ctx, booking.HoldID(req.HoldID), booking.ClientID(req.Client), req.PaymentRef)
	if err != nil {
		status, msg := classify(err)
		writeError(w, status, msg, err)
		return
	}

	if req.Amount != "" {
		amt, err := booking.ParseMoney(req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		b.Amount = amt
		b.UpdatedAt = time.Now().UTC()
		if err := h.Store.UpdateBooking(ctx, *b); err != nil {
			writeError(w, http.StatusInternalServerError, "Booking committed but price not recorded", err)
			return
		}
	}

	m, err := h.Store.ActiveMembershipByClient(ctx, b.Client)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load membership", err)
		return
	}
	if m != nil {
		rec, err := h.Ledger.Append(ctx, *b, *m)
		if err != nil {
			// The slot is committed either way; surface the ledger problem.
			writeError(w, http.StatusInternalServerError, "Booking committed but usage not recorded", err)
			return
		}
		b.MembershipID = m.ID
		b.UsageType = rec.Type
		b.Amount = rec.Amount

		if rec.Type == booking.UsageAdditional {
			if err := h.recordCharge(ctx, b, m.ID, req.PaymentRef); err != nil {
				writeError(w, http.StatusInternalServerError, "Booking committed but charge not recorded", err)
				return
			}
		}
	} else if req.PaymentRef != "" && b.Amount.IsPositive() {
		if err := h.recordCharge(ctx, b, "", req.PaymentRef); err != nil {
			writeError(w, http.StatusInternalServerError, "Booking committed but charge not recorded", err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, toBookingDTO(*b))
}

// recordCharge writes the payment row for a committed booking. With a
// gateway reference the charge is captured; without one it is a pending
// obligation settled in the shop.
func (h *Handler) recordCharge(ctx context.Context, b *booking.Booking, mid booking.MembershipID, gatewayRef string) error {
	now := time.Now().UTC()
	status := booking.PaymentPending
	if gatewayRef != "" {
		status = booking.PaymentCaptured
	}
	return h.Store.CreatePayment(ctx, booking.Payment{
		ID:           booking.PaymentID(booking.NewID("pay")),
		BookingID:    b.ID,
		MembershipID: mid,
		Amount:       b.Amount,
		Status:       status,
		GatewayRef:   gatewayRef,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// CancelHold releases a hold. Idempotent: absent, expired, and foreign
// holds all read as success.
func (h *Handler) CancelHold(w http.ResponseWriter, r *http.Request) {
	var req CancelHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Reservations.Cancel(r.Context(), booking.HoldID(req.HoldID), booking.ClientID(req.Client)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to cancel hold", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN: BOOKINGS
// =============================================================================

// ListBookings returns active bookings for a date.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required", nil)
		return
	}

	bookings, err := h.Store.BookingsByDate(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bookings", err)
		return
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, b := range bookings {
		dtos[i] = toBookingDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBooking returns a single booking.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b, err := h.Store.GetBooking(r.Context(), booking.BookingID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get booking", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "Booking not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toBookingDTO(*b))
}

// UpdateBookingStatus drives the booking lifecycle. Completing a membership
// booking appends its usage record; cancelling one refunds the record and
// triggers reconciliation of the remaining cycle.
func (h *Handler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id := booking.BookingID(chi.URLParam(r, "id"))

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	next := booking.BookingStatus(req.Status)
	switch next {
	case booking.BookingPending, booking.BookingConfirmed, booking.BookingCompleted, booking.BookingCancelled:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status", nil)
		return
	}

	ctx := r.Context()
	b, err := h.Store.GetBooking(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get booking", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "Booking not found", nil)
		return
	}

	if b.Status == next {
		writeJSON(w, http.StatusOK, toBookingDTO(*b))
		return
	}

	b.Status = next
	b.UpdatedAt = time.Now().UTC()
	if err := h.Store.UpdateBooking(ctx, *b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update booking", err)
		return
	}

	switch next {
	case booking.BookingCompleted:
		if b.MembershipID != "" {
			m, err := h.Store.GetMembership(ctx, b.MembershipID)
			if err != nil || m == nil {
				writeError(w, http.StatusInternalServerError, "Failed to load membership", err)
				return
			}
			if _, err := h.Ledger.Append(ctx, *b, *m); err != nil {
				writeError(w, http.StatusInternalServerError, "Status updated but usage not recorded", err)
				return
			}
		}
	case booking.BookingCancelled:
		if b.MembershipID != "" {
			reason := req.Reason
			if reason == "" {
				reason = "booking cancelled"
			}
			if _, err := h.Ledger.MarkRefunded(ctx, b.ID, reason); err != nil && !booking.IsNotFound(err) {
				status := http.StatusInternalServerError
				writeError(w, status, "Cancelled but reconciliation incomplete", err)
				return
			}
		}
	}

	fresh, err := h.Store.GetBooking(ctx, id)
	if err != nil || fresh == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload booking", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(*fresh))
}

// ListPayments returns the payment history for a booking, newest first.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id := booking.BookingID(chi.URLParam(r, "id"))

	pays, err := h.Store.PaymentsByBooking(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(pays))
	for i, p := range pays {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN: MEMBERSHIPS
// =============================================================================

// GetMembership returns membership state.
func (h *Handler) GetMembership(w http.ResponseWriter, r *http.Request) {
	id := booking.MembershipID(chi.URLParam(r, "id"))

	m, err := h.Store.GetMembership(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get membership", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "Membership not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toMembershipDTO(*m))
}

// ListUsage returns all usage records for the current cycle, refunded
// rows included.
func (h *Handler) ListUsage(w http.ResponseWriter, r *http.Request) {
	id := booking.MembershipID(chi.URLParam(r, "id"))
	ctx := r.Context()

	m, err := h.Store.GetMembership(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get membership", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "Membership not found", nil)
		return
	}

	cycle := booking.Cycle{Start: m.CycleStart, End: m.CycleEnd}
	recs, err := h.Store.ListUsage(ctx, id, cycle)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list usage", err)
		return
	}

	dtos := make([]UsageRecordDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toUsageDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Recalculate runs a manual reconciliation pass over the membership's cycle.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	id := booking.MembershipID(chi.URLParam(r, "id"))

	res, err := h.Engine.Recalculate(r.Context(), id)
	if err != nil {
		if booking.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Membership not found", err)
			return
		}
		if errors.Is(err, booking.ErrPartialReconciliation) && res != nil {
			// Partial pass: report what committed; the caller retries.
			writeJSON(w, http.StatusInternalServerError, toReconcileDTO(res))
			return
		}
		writeError(w, http.StatusInternalServerError, "Reconciliation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toReconcileDTO(res))
}

// Rollover advances the membership into its next billing cycle and resets
// the usage counter. Existing usage records keep their old cycle window.
func (h *Handler) Rollover(w http.ResponseWriter, r *http.Request) {
	id := booking.MembershipID(chi.URLParam(r, "id"))
	ctx := r.Context()

	// An in-flight reconciliation pass saves the membership it loaded at
	// pass start; moving the window under it would be silently overwritten.
	unlock := h.Engine.LockMembership(id)
	defer unlock()

	m, err := h.Store.GetMembership(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get membership", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "Membership not found", nil)
		return
	}

	next := booking.Cycle{Start: m.CycleStart, End: m.CycleEnd}.Next()
	m.CycleStart = next.Start
	m.CycleEnd = next.End
	m.TansUsed = 0
	if err := h.Store.SaveMembership(ctx, *m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save membership", err)
		return
	}

	writeJSON(w, http.StatusOK, toMembershipDTO(*m))
}

// =============================================================================
// ADMIN: SCHEDULE + HOLDS
// =============================================================================

// ReplaceSchedule installs a new schedule configuration. The swap is
// versioned and atomic; in-flight requests finish against the old config.
func (h *Handler) ReplaceSchedule(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cfg, err := schedule.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid schedule config", err)
		return
	}

	version := h.Schedule.Replace(cfg)
	if h.ScheduleDB != nil {
		if err := h.ScheduleDB.SaveScheduleConfig(r.Context(), version, raw); err != nil {
			writeError(w, http.StatusInternalServerError, "Schedule applied but not persisted", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]int{"version": version})
}

// SweepHolds physically purges expired holds. Cleanup only; expired holds
// are already invisible to every read path.
func (h *Handler) SweepHolds(w http.ResponseWriter, r *http.Request) {
	n, err := h.Reservations.Sweep(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sweep holds", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"purged": n})
}

// =============================================================================
// HELPERS
// =============================================================================

// classify maps domain errors to HTTP status codes.
func classify(err error) (int, string) {
	switch {
	case booking.IsConflict(err):
		return http.StatusConflict, "Slot is already booked or held"
	case booking.IsNotFound(err):
		return http.StatusNotFound, "Hold not found or expired"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
