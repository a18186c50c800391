/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements booking.Store using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

SLOT UNIQUENESS:
  The two writes that must be atomic conditional inserts are backed by
  unique indexes:
  - idx_holds_slot: one hold row per (date, time). PutHold deletes expired
    and same-owner rows for the slot inside the same transaction, then
    inserts; a constraint violation is a conflict from another owner.
  - idx_bookings_slot_active: one non-cancelled booking per (date, time),
    enforced with a partial unique index. CreateBooking's INSERT either
    lands or conflicts; no read-then-write race window exists.

LAZY EXPIRY:
  Every hold read carries "expires_at > ?now". Expired rows are invisible
  whether or not PurgeExpired has run.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block and there's a single writer at a time.

USAGE:
  store, err := sqlite.New("./data/salon.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - booking/store.go: Interface definitions and contracts
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lancef37/sunday-tan-website-sub000/booking"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// Store implements booking.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection sidesteps SQLITE_BUSY on concurrent writers;
	// database/sql serializes access to it.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Holds (tentative slot claims; rows past expires_at are invisible)
	CREATE TABLE IF NOT EXISTS holds (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		payload TEXT,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);

	-- CRITICAL: at most one hold row per slot. Conflicts from another owner
	-- surface as constraint violations on insert.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_holds_slot ON holds(date, time);
	CREATE INDEX IF NOT EXISTS idx_holds_expiry ON holds(expires_at);

	-- Bookings (the slot ledger)
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		client TEXT NOT NULL,
		status TEXT NOT NULL,
		membership_id TEXT,
		usage_type TEXT,
		amount TEXT NOT NULL DEFAULT '0',
		payment_ref TEXT,
		payload TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one active booking per slot. Cancelled bookings
	-- release the slot because the partial index no longer covers them.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_slot_active
		ON bookings(date, time)
		WHERE status != 'cancelled';

	CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date);
	CREATE INDEX IF NOT EXISTS idx_bookings_membership ON bookings(membership_id)
		WHERE membership_id IS NOT NULL;

	-- Usage records (refunded rows retained for audit)
	CREATE TABLE IF NOT EXISTS usage_records (
		id TEXT PRIMARY KEY,
		membership_id TEXT NOT NULL,
		booking_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		cycle_start TEXT NOT NULL,
		cycle_end TEXT NOT NULL,
		refund_reason TEXT,
		refunded_at TEXT,
		created_at TEXT NOT NULL
	);

	-- One active record per booking.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_usage_booking_active
		ON usage_records(booking_id)
		WHERE status = 'used';

	CREATE INDEX IF NOT EXISTS idx_usage_membership_cycle
		ON usage_records(membership_id, cycle_start, status);

	-- Memberships
	CREATE TABLE IF NOT EXISTS memberships (
		id TEXT PRIMARY KEY,
		client TEXT NOT NULL,
		status TEXT NOT NULL,
		cycle_start TEXT NOT NULL,
		cycle_end TEXT NOT NULL,
		tans_used INTEGER NOT NULL DEFAULT 0,
		included_tans INTEGER NOT NULL,
		additional_price TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_memberships_client ON memberships(client, status);

	-- Payments
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL,
		membership_id TEXT,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		gateway_ref TEXT,
		refund_ref TEXT,
		failure_note TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_booking ON payments(booking_id);
	CREATE INDEX IF NOT EXISTS idx_payments_membership ON payments(membership_id)
		WHERE membership_id IS NOT NULL;

	-- Schedule configuration (raw JSON, versioned replace)
	CREATE TABLE IF NOT EXISTS schedule_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HOLD STORE
// =============================================================================

func (s *Store) PutHold(ctx context.Context, hold booking.Hold, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Committed booking wins over any new hold.
	row := tx.QueryRowContext(ctx,
		`SELECT id FROM bookings WHERE date = ? AND time = ? AND status != 'cancelled'`,
		hold.Slot.Date, hold.Slot.Time)
	var bookedID string
	if err := row.Scan(&bookedID); err == nil {
		return &booking.SlotConflictError{Slot: hold.Slot, BookedBy: booking.BookingID(bookedID)}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	// Clear rows the insert is allowed to displace: expired holds from
	// anyone, and the owner's own prior hold (re-reserve replaces it).
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM holds WHERE date = ? AND time = ? AND (expires_at <= ? OR owner = ?)`,
		hold.Slot.Date, hold.Slot.Time, fmtTime(now), string(hold.Owner)); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO holds (id, owner, date, time, payload, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(hold.ID), string(hold.Owner), hold.Slot.Date, hold.Slot.Time,
		string(hold.Payload), fmtTime(hold.CreatedAt), fmtTime(hold.ExpiresAt))
	if err != nil {
		if isUniqueViolation(err) {
			// The surviving row belongs to another owner with time left.
			return &booking.SlotConflictError{Slot: hold.Slot, HeldBy: "other"}
		}
		return err
	}

	return tx.Commit()
}

func (s *Store) GetHold(ctx context.Context, id booking.HoldID, now time.Time) (*booking.Hold, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner, date, time, payload, created_at, expires_at
		 FROM holds WHERE id = ? AND expires_at > ?`,
		string(id), fmtTime(now))

	h, err := scanHold(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return h, err
}

func (s *Store) DeleteHold(ctx context.Context, id booking.HoldID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM holds WHERE id = ?`, string(id))
	return err
}

func (s *Store) ActiveHolds(ctx context.Context, date string, now time.Time) ([]booking.Hold, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, date, time, payload, created_at, expires_at
		 FROM holds WHERE date = ? AND expires_at > ?
		 ORDER BY time`,
		date, fmtTime(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM holds WHERE expires_at <= ?`, fmtTime(now))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =============================================================================
// BOOKING STORE
// =============================================================================

func (s *Store) CreateBooking(ctx context.Context, b booking.Booking) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings (id, date, time, client, status, membership_id, usage_type,
		                       amount, payment_ref, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(b.ID), b.Slot.Date, b.Slot.Time, string(b.Client), string(b.Status),
		nullable(string(b.MembershipID)), nullable(string(b.UsageType)),
		b.Amount.String(), nullable(b.PaymentRef), string(b.Payload),
		fmtTime(b.CreatedAt), fmtTime(b.UpdatedAt))
	if err != nil && isUniqueViolation(err) {
		return &booking.SlotConflictError{Slot: b.Slot}
	}
	return err
}

func (s *Store) GetBooking(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	row := s.db.QueryRowContext(ctx, selectBooking+` WHERE id = ?`, string(id))
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (s *Store) ActiveBookingBySlot(ctx context.Context, slot booking.SlotKey) (*booking.Booking, error) {
	row := s.db.QueryRowContext(ctx,
		selectBooking+` WHERE date = ? AND time = ? AND status != 'cancelled'`,
		slot.Date, slot.Time)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (s *Store) BookingsByDate(ctx context.Context, date string) ([]booking.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		selectBooking+` WHERE date = ? AND status != 'cancelled' ORDER BY time`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Store) UpdateBooking(ctx context.Context, b booking.Booking) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, membership_id = ?, usage_type = ?, amount = ?,
		                     payment_ref = ?, updated_at = ?
		 WHERE id = ?`,
		string(b.Status), nullable(string(b.MembershipID)), nullable(string(b.UsageType)),
		b.Amount.String(), nullable(b.PaymentRef), fmtTime(b.UpdatedAt), string(b.ID))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return booking.ErrNotFound
	}
	return nil
}

// =============================================================================
// USAGE STORE
// =============================================================================

func (s *Store) AppendUsage(ctx context.Context, rec booking.UsageRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records (id, membership_id, booking_id, seq, type, amount,
		                            status, cycle_start, cycle_end, refund_reason,
		                            refunded_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.ID), string(rec.MembershipID), string(rec.BookingID),
		rec.Sequence, string(rec.Type), rec.Amount.String(), string(rec.Status),
		fmtTime(rec.CycleStart), fmtTime(rec.CycleEnd),
		nullable(rec.RefundReason), fmtTimePtr(rec.RefundedAt), fmtTime(rec.CreatedAt))
	return err
}

const selectUsage = `
	SELECT u.id, u.membership_id, u.booking_id, u.seq, u.type, u.amount, u.status,
	       u.cycle_start, u.cycle_end, u.refund_reason, u.refunded_at, u.created_at
	FROM usage_records u`

func (s *Store) ActiveUsage(ctx context.Context, id booking.MembershipID, cycle booking.Cycle) ([]booking.UsageRecord, error) {
	// Ordered by the underlying booking's slot: chronological order of the
	// appointment, not creation order.
	rows, err := s.db.QueryContext(ctx,
		selectUsage+`
		 JOIN bookings b ON b.id = u.booking_id
		 WHERE u.membership_id = ? AND u.status = 'used' AND u.cycle_start = ?
		 ORDER BY b.date, b.time`,
		string(id), fmtTime(cycle.Start))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsage(rows)
}

func (s *Store) UsageByBooking(ctx context.Context, id booking.BookingID) (*booking.UsageRecord, error) {
	row := s.db.QueryRowContext(ctx,
		selectUsage+` WHERE u.booking_id = ? AND u.status = 'used'`, string(id))
	rec, err := scanUsage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *Store) UpdateUsage(ctx context.Context, rec booking.UsageRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE usage_records SET seq = ?, type = ?, amount = ?, status = ?,
		                          refund_reason = ?, refunded_at = ?
		 WHERE id = ?`,
		rec.Sequence, string(rec.Type), rec.Amount.String(), string(rec.Status),
		nullable(rec.RefundReason), fmtTimePtr(rec.RefundedAt), string(rec.ID))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (s *Store) ListUsage(ctx context.Context, id booking.MembershipID, cycle booking.Cycle) ([]booking.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		selectUsage+`
		 JOIN bookings b ON b.id = u.booking_id
		 WHERE u.membership_id = ? AND u.cycle_start = ?
		 ORDER BY b.date, b.time`,
		string(id), fmtTime(cycle.Start))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsage(rows)
}

// =============================================================================
// MEMBERSHIP STORE
// =============================================================================

const selectMembership = `
	SELECT id, client, status, cycle_start, cycle_end, tans_used, included_tans, additional_price
	FROM memberships`

func (s *Store) GetMembership(ctx context.Context, id booking.MembershipID) (*booking.Membership, error) {
	row := s.db.QueryRowContext(ctx, selectMembership+` WHERE id = ?`, string(id))
	m, err := scanMembership(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (s *Store) ActiveMembershipByClient(ctx context.Context, client booking.ClientID) (*booking.Membership, error) {
	row := s.db.QueryRowContext(ctx,
		selectMembership+` WHERE client = ? AND status = 'active'`, string(client))
	m, err := scanMembership(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (s *Store) SaveMembership(ctx context.Context, m booking.Membership) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (id, client, status, cycle_start, cycle_end,
		                          tans_used, included_tans, additional_price)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   client = excluded.client,
		   status = excluded.status,
		   cycle_start = excluded.cycle_start,
		   cycle_end = excluded.cycle_end,
		   tans_used = excluded.tans_used,
		   included_tans = excluded.included_tans,
		   additional_price = excluded.additional_price`,
		string(m.ID), string(m.Client), string(m.Status),
		fmtTime(m.CycleStart), fmtTime(m.CycleEnd),
		m.TansUsed, m.IncludedTans, m.AdditionalPrice.String())
	return err
}

// =============================================================================
// PAYMENT STORE
// =============================================================================

const selectPayment = `
	SELECT id, booking_id, membership_id, amount, status, gateway_ref, refund_ref,
	       failure_note, created_at, updated_at
	FROM payments`

func (s *Store) CreatePayment(ctx context.Context, p booking.Payment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (id, booking_id, membership_id, amount, status,
		                       gateway_ref, refund_ref, failure_note, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), string(p.BookingID), nullable(string(p.MembershipID)),
		p.Amount.String(), string(p.Status), nullable(p.GatewayRef),
		nullable(p.RefundRef), nullable(p.FailureNote),
		fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt))
	return err
}

func (s *Store) GetPayment(ctx context.Context, id booking.PaymentID) (*booking.Payment, error) {
	row := s.db.QueryRowContext(ctx, selectPayment+` WHERE id = ?`, string(id))
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *Store) PaymentsByBooking(ctx context.Context, id booking.BookingID) ([]booking.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		selectPayment+` WHERE booking_id = ? ORDER BY created_at DESC`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

func (s *Store) PaymentsByMembership(ctx context.Context, id booking.MembershipID) ([]booking.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		selectPayment+` WHERE membership_id = ? ORDER BY created_at DESC`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

func (s *Store) UpdatePayment(ctx context.Context, p booking.Payment) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET amount = ?, status = ?, gateway_ref = ?, refund_ref = ?,
		                     failure_note = ?, updated_at = ?
		 WHERE id = ?`,
		p.Amount.String(), string(p.Status), nullable(p.GatewayRef),
		nullable(p.RefundRef), nullable(p.FailureNote), fmtTime(p.UpdatedAt), string(p.ID))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return booking.ErrNotFound
	}
	return nil
}

// =============================================================================
// SCHEDULE CONFIG
// =============================================================================

// SaveScheduleConfig stores the raw schedule JSON with its version.
func (s *Store) SaveScheduleConfig(ctx context.Context, version int, configJSON []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedule_config (id, version, config_json, updated_at)
		 VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   version = excluded.version,
		   config_json = excluded.config_json,
		   updated_at = excluded.updated_at`,
		version, string(configJSON), fmtTime(time.Now().UTC()))
	return err
}

// LoadScheduleConfig returns the stored schedule JSON and version, or
// (0, nil, nil) if none has been saved yet.
func (s *Store) LoadScheduleConfig(ctx context.Context) (int, []byte, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version, config_json FROM schedule_config WHERE id = 1`)
	var version int
	var raw string
	if err := row.Scan(&version, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, nil
		}
		return 0, nil, err
	}
	return version, []byte(raw), nil
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

const selectBooking = `
	SELECT id, date, time, client, status, membership_id, usage_type, amount,
	       payment_ref, payload, created_at, updated_at
	FROM bookings`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHold(r rowScanner) (*booking.Hold, error) {
	var h booking.Hold
	var id, owner, payload, createdAt, expiresAt string
	if err := r.Scan(&id, &owner, &h.Slot.Date, &h.Slot.Time, &payload, &createdAt, &expiresAt); err != nil {
		return nil, err
	}
	h.ID = booking.HoldID(id)
	h.Owner = booking.ClientID(owner)
	h.Payload = []byte(payload)
	h.CreatedAt = parseTime(createdAt)
	h.ExpiresAt = parseTime(expiresAt)
	return &h, nil
}

func scanBooking(r rowScanner) (*booking.Booking, error) {
	var b booking.Booking
	var id, client, status, amount, payload, createdAt, updatedAt string
	var membershipID, usageType, paymentRef sql.NullString
	if err := r.Scan(&id, &b.Slot.Date, &b.Slot.Time, &client, &status, &membershipID,
		&usageType, &amount, &paymentRef, &payload, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	b.ID = booking.BookingID(id)
	b.Client = booking.ClientID(client)
	b.Status = booking.BookingStatus(status)
	b.MembershipID = booking.MembershipID(membershipID.String)
	b.UsageType = booking.UsageType(usageType.String)
	b.PaymentRef = paymentRef.String
	b.Payload = []byte(payload)
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)

	var err error
	if b.Amount, err = booking.ParseMoney(amount); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanUsage(r rowScanner) (*booking.UsageRecord, error) {
	var rec booking.UsageRecord
	var id, mid, bid, typ, amount, status, cycleStart, cycleEnd, createdAt string
	var refundReason, refundedAt sql.NullString
	if err := r.Scan(&id, &mid, &bid, &rec.Sequence, &typ, &amount, &status,
		&cycleStart, &cycleEnd, &refundReason, &refundedAt, &createdAt); err != nil {
		return nil, err
	}
	rec.ID = booking.RecordID(id)
	rec.MembershipID = booking.MembershipID(mid)
	rec.BookingID = booking.BookingID(bid)
	rec.Type = booking.UsageType(typ)
	rec.Status = booking.UsageStatus(status)
	rec.CycleStart = parseTime(cycleStart)
	rec.CycleEnd = parseTime(cycleEnd)
	rec.RefundReason = refundReason.String
	rec.CreatedAt = parseTime(createdAt)
	if refundedAt.Valid {
		t := parseTime(refundedAt.String)
		rec.RefundedAt = &t
	}

	var err error
	if rec.Amount, err = booking.ParseMoney(amount); err != nil {
		return nil, err
	}
	return &rec, nil
}

func collectUsage(rows *sql.Rows) ([]booking.UsageRecord, error) {
	var out []booking.UsageRecord
	for rows.Next() {
		rec, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanMembership(r rowScanner) (*booking.Membership, error) {
	var m booking.Membership
	var id, client, status, cycleStart, cycleEnd, price string
	if err := r.Scan(&id, &client, &status, &cycleStart, &cycleEnd,
		&m.TansUsed, &m.IncludedTans, &price); err != nil {
		return nil, err
	}
	m.ID = booking.MembershipID(id)
	m.Client = booking.ClientID(client)
	m.Status = booking.MembershipStatus(status)
	m.CycleStart = parseTime(cycleStart)
	m.CycleEnd = parseTime(cycleEnd)

	var err error
	if m.AdditionalPrice, err = booking.ParseMoney(price); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanPayment(r rowScanner) (*booking.Payment, error) {
	var p booking.Payment
	var id, bid, amount, status, createdAt, updatedAt string
	var mid, gatewayRef, refundRef, failureNote sql.NullString
	if err := r.Scan(&id, &bid, &mid, &amount, &status, &gatewayRef, &refundRef,
		&failureNote, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.ID = booking.PaymentID(id)
	p.BookingID = booking.BookingID(bid)
	p.MembershipID = booking.MembershipID(mid.String)
	p.Status = booking.PaymentStatus(status)
	p.GatewayRef = gatewayRef.String
	p.RefundRef = refundRef.String
	p.FailureNote = failureNote.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)

	var err error
	if p.Amount, err = booking.ParseMoney(amount); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPayments(rows *sql.Rows) ([]booking.Payment, error) {
	var out []booking.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
