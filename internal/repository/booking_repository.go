package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/database"
)

const bookingColumns = `b.id, b.student_id, b.mentor_id, b.thread_id, b.slot, b.duration_minutes, b.notes, b.meeting_url,
b.status, b.cancelled_at, b.cancelled_by, b.cancellation_reason, b.created_at, b.updated_at`

const bookingDetailSelect = `SELECT ` + bookingColumns + `,
s.id AS "student.id", s.name AS "student.name", s.nickname AS "student.nickname", s.profile_photo AS "student.profile_photo", s.role AS "student.role",
o.id AS "mentor.id", o.name AS "mentor.name", o.nickname AS "mentor.nickname", o.profile_photo AS "mentor.profile_photo", o.role AS "mentor.role",
m.id AS meeting_id, m.status AS meeting_status, m.version AS meeting_version,
m.student_terms_accepted, m.obog_terms_accepted, m.student_post_status, m.obog_post_status,
m.student_additional_question_answered
FROM bookings b
JOIN users s ON s.id = b.student_id
JOIN users o ON o.id = b.mentor_id
LEFT JOIN meetings m ON m.booking_id = b.id`

// BookingRepository persists bookings together with their thread and meeting.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// HasActive reports whether a pending or confirmed booking holds (mentorID, slot).
func (r *BookingRepository) HasActive(ctx context.Context, mentorID, slot string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM bookings WHERE mentor_id = $1 AND slot = $2 AND status IN ('pending', 'confirmed'))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, mentorID, slot); err != nil {
		return false, fmt.Errorf("check active booking: %w", err)
	}
	return exists, nil
}

// Create resolves the participants' thread, then inserts the pending booking
// and its unconfirmed meeting, all in one transaction. A concurrent booking
// of the same slot surfaces as ErrActiveSlotTaken.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) (*models.Meeting, error) {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	booking.CreatedAt, booking.UpdatedAt = now, now
	booking.Status = models.BookingStatusPending

	meeting := &models.Meeting{
		BookingID: &booking.ID,
		StudentID: booking.StudentID,
		ObogID:    booking.MentorID,
	}

	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		thread, err := upsertThread(ctx, tx, booking.StudentID, booking.MentorID)
		if err != nil {
			return err
		}
		booking.ThreadID = thread.ID
		meeting.ThreadID = thread.ID

		const insert = `INSERT INTO bookings (id, student_id, mentor_id, thread_id, slot, duration_minutes, notes, meeting_url, status, created_at, updated_at)
VALUES (:id, :student_id, :mentor_id, :thread_id, :slot, :duration_minutes, :notes, :meeting_url, :status, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insert, booking); err != nil {
			if isUniqueViolation(err, constraintActiveSlot) {
				return ErrActiveSlotTaken
			}
			return fmt.Errorf("insert booking: %w", err)
		}
		if err := insertMeeting(ctx, tx, meeting); err != nil {
			return fmt.Errorf("insert booking meeting: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meeting, nil
}

// FindByID returns a booking by identifier.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return &booking, nil
}

// FindDetailByID returns a booking with both profiles and its meeting sub-state.
func (r *BookingRepository) FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error) {
	query := bookingDetailSelect + ` WHERE b.id = $1`
	var detail models.BookingDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find booking detail: %w", err)
	}
	return &detail, nil
}

// List returns enriched bookings matching the filter, newest first, with the total count.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.ParticipantID != "" {
		args = append(args, filter.ParticipantID)
		conditions = append(conditions, fmt.Sprintf("(b.student_id = $%d OR b.mentor_id = $%d)", len(args), len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("b.student_id = $%d", len(args)))
	}
	if filter.MentorID != "" {
		args = append(args, filter.MentorID)
		conditions = append(conditions, fmt.Sprintf("b.mentor_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("%s%s ORDER BY b.created_at DESC LIMIT %d OFFSET %d", bookingDetailSelect, where, pageSize, offset)
	var bookings []models.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, listQuery, args...); err != nil {
		if isNotFound(err) {
			return []models.BookingDetail{}, 0, nil
		}
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM bookings b"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// Confirm moves a pending booking and its terms-accepted meeting to confirmed together.
func (r *BookingRepository) Confirm(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := confirmMeeting(ctx, tx, "booking_id", id); err != nil {
			return err
		}
		affected, err := confirmBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrStateChanged
		}
		return nil
	})
}

// Cancel cancels an active booking and its unreported meeting together.
// by is nil for system cancellations.
func (r *BookingRepository) Cancel(ctx context.Context, id string, by *string, reason *string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		if _, err := cancelMeeting(ctx, tx, "booking_id", id, by, reason, now); err != nil {
			return err
		}
		affected, err := cancelBooking(ctx, tx, id, by, reason, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrStateChanged
		}
		return nil
	})
}

// ListStale returns bookings still pending since before the cutoff.
func (r *BookingRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]models.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM bookings b WHERE b.status = 'pending' AND b.created_at < $1 ORDER BY b.created_at ASC LIMIT %d`, bookingColumns, limit)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, before); err != nil {
		return nil, fmt.Errorf("list stale bookings: %w", err)
	}
	return bookings, nil
}

func confirmBooking(ctx context.Context, ext sqlx.ExecerContext, id string) (int64, error) {
	const query = `UPDATE bookings SET status = 'confirmed', updated_at = $2 WHERE id = $1 AND status = 'pending'`
	res, err := ext.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("confirm booking: %w", err)
	}
	return res.RowsAffected()
}

func cancelBooking(ctx context.Context, ext sqlx.ExecerContext, id string, by, reason *string, at time.Time) (int64, error) {
	const query = `UPDATE bookings SET status = 'cancelled', cancelled_at = $2, cancelled_by = $3, cancellation_reason = $4, updated_at = $2
WHERE id = $1 AND status IN ('pending', 'confirmed')`
	res, err := ext.ExecContext(ctx, query, id, at, by, reason)
	if err != nil {
		return 0, fmt.Errorf("cancel booking: %w", err)
	}
	return res.RowsAffected()
}
