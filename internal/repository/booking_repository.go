package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lektorek-app/lektorek-api/internal/models"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
)

// uniqueViolation is the Postgres error code raised when the active-slot
// unique index rejects an insert.
const uniqueViolation = "23505"

// BookingRepository owns the durable booking ledger. The partial unique
// index on (teacher_id, day_of_week, time_slot, booking_date) WHERE
// status='active' is the authoritative guard against double booking; the
// service-level pre-checks exist only to fail fast with a friendly error.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// FindByID fetches a booking by id.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	const query = `SELECT id, teacher_id, student_id, day_of_week, time_slot, booking_date, lesson_mode, status, notes,
		price_online, price_in_person, amount, cancellation_reason, created_at, updated_at
		FROM bookings WHERE id = $1 LIMIT 1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// IsSlotTaken reports whether an active booking occupies the exact tuple.
func (r *BookingRepository) IsSlotTaken(ctx context.Context, teacherID string, dayOfWeek int, timeSlot, bookingDate string) (bool, error) {
	const query = `SELECT 1 FROM bookings
		WHERE teacher_id = $1 AND day_of_week = $2 AND time_slot = $3 AND booking_date = $4 AND status = 'active'
		LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, teacherID, dayOfWeek, timeSlot, bookingDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check slot taken: %w", err)
	}
	return true, nil
}

// HasStudentConflict reports whether the student already holds an active
// booking at the same tuple with any teacher. There is no storage backstop
// for this check; it is best-effort by design.
func (r *BookingRepository) HasStudentConflict(ctx context.Context, studentID string, dayOfWeek int, timeSlot, bookingDate string) (bool, error) {
	const query = `SELECT 1 FROM bookings
		WHERE student_id = $1 AND day_of_week = $2 AND time_slot = $3 AND booking_date = $4 AND status = 'active'
		LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, dayOfWeek, timeSlot, bookingDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student conflict: %w", err)
	}
	return true, nil
}

// Create inserts the booking and, when debit > 0, charges the student's
// balance in the same transaction. Either both writes commit or neither
// does; an insufficient balance aborts the booking entirely and a lost
// race against a concurrent insert surfaces as ErrSlotAlreadyBooked.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking, debit float64) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Status = models.StatusActive

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if debit > 0 {
		res, err := tx.ExecContext(ctx,
			`UPDATE user_balances SET balance = balance - $1 WHERE user_id = $2 AND balance >= $1`,
			debit, booking.StudentID)
		if err != nil {
			return fmt.Errorf("debit student balance: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("debit student balance: %w", err)
		}
		// A missing ledger row means a zero balance, which cannot cover
		// a positive debit either.
		if affected == 0 {
			return appErrors.ErrInsufficientFunds
		}
	}

	const insert = `INSERT INTO bookings (id, teacher_id, student_id, day_of_week, time_slot, booking_date, lesson_mode,
		status, notes, price_online, price_in_person, amount, cancellation_reason, created_at, updated_at)
		VALUES (:id, :teacher_id, :student_id, :day_of_week, :time_slot, :booking_date, :lesson_mode,
		:status, :notes, :price_online, :price_in_person, :amount, :cancellation_reason, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, booking); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return appErrors.ErrSlotAlreadyBooked
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking create: %w", err)
	}
	return nil
}

// SettleStatus moves an active booking to a terminal status and applies the
// settlement credit in the same transaction. The status update is guarded
// by status='active', so a concurrent transition loses cleanly with
// ErrInvalidTransition. Pass creditAmount = 0 to skip the ledger effect.
func (r *BookingRepository) SettleStatus(ctx context.Context, bookingID string, target models.BookingStatus, reason string, creditUserID string, creditAmount float64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status settle: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = $2, cancellation_reason = $3, updated_at = $4 WHERE id = $1 AND status = 'active'`,
		bookingID, target, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrInvalidTransition
	}

	if creditAmount > 0 && creditUserID != "" {
		const credit = `INSERT INTO user_balances (user_id, balance) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET balance = user_balances.balance + EXCLUDED.balance`
		if _, err := tx.ExecContext(ctx, credit, creditUserID, creditAmount); err != nil {
			return fmt.Errorf("credit settlement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status settle: %w", err)
	}
	return nil
}

// UpdateNotes replaces the free-text notes on a booking.
func (r *BookingRepository) UpdateNotes(ctx context.Context, bookingID, notes string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET notes = $2, updated_at = $3 WHERE id = $1`,
		bookingID, notes, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update booking notes: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update booking notes: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns bookings matching the filter ordered by date then slot.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	base := `SELECT id, teacher_id, student_id, day_of_week, time_slot, booking_date, lesson_mode, status, notes,
		price_online, price_in_person, amount, cancellation_reason, created_at, updated_at
		FROM bookings WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.DateFrom != "" {
		conditions = append(conditions, fmt.Sprintf("booking_date >= $%d", len(args)+1))
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		conditions = append(conditions, fmt.Sprintf("booking_date <= $%d", len(args)+1))
		args = append(args, filter.DateTo)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	query := base
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY booking_date, time_slot"

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// ListWithStudent returns a teacher's active bookings in a date range with
// the student's identity joined, for CRM week views.
func (r *BookingRepository) ListWithStudent(ctx context.Context, teacherID, from, to string) ([]models.BookingWithStudent, error) {
	const query = `SELECT b.id, b.teacher_id, b.student_id, b.day_of_week, b.time_slot, b.booking_date, b.lesson_mode,
		b.status, b.notes, b.price_online, b.price_in_person, b.amount, b.cancellation_reason, b.created_at, b.updated_at,
		u.full_name AS student_name, u.email AS student_email
		FROM bookings b
		JOIN users u ON u.id = b.student_id
		WHERE b.teacher_id = $1 AND b.status = 'active' AND b.booking_date BETWEEN $2 AND $3
		ORDER BY b.booking_date, b.time_slot`
	var bookings []models.BookingWithStudent
	if err := r.db.SelectContext(ctx, &bookings, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list bookings with student: %w", err)
	}
	return bookings, nil
}

// BookedSlots returns the active booking slots per date for a teacher in a
// range, used to render public availability.
func (r *BookingRepository) BookedSlots(ctx context.Context, teacherID, from, to string) (map[string][]string, error) {
	const query = `SELECT booking_date, time_slot FROM bookings
		WHERE teacher_id = $1 AND status = 'active' AND booking_date BETWEEN $2 AND $3`
	rows := []struct {
		BookingDate string `db:"booking_date"`
		TimeSlot    string `db:"time_slot"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}
	taken := make(map[string][]string, len(rows))
	for _, row := range rows {
		taken[row.BookingDate] = append(taken[row.BookingDate], row.TimeSlot)
	}
	return taken, nil
}

// Stats summarises a teacher's bookings by status.
func (r *BookingRepository) Stats(ctx context.Context, teacherID string) (*models.BookingStats, error) {
	const query = `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'active') AS active,
		COUNT(*) FILTER (WHERE status = 'completed') AS completed,
		COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled
		FROM bookings WHERE teacher_id = $1`
	var stats models.BookingStats
	if err := r.db.GetContext(ctx, &stats, query, teacherID); err != nil {
		return nil, fmt.Errorf("booking stats: %w", err)
	}
	return &stats, nil
}
