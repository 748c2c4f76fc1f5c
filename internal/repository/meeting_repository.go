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

const meetingColumns = `m.id, m.booking_id, m.thread_id, m.student_id, m.obog_id, m.status, m.version,
m.student_terms_accepted AS "student.terms_accepted", m.student_post_status AS "student.post_status",
m.student_additional_question_answered AS "student.additional_question_answered",
m.obog_terms_accepted AS "obog.terms_accepted", m.obog_post_status AS "obog.post_status",
m.cancelled_at, m.cancelled_by, m.cancellation_reason, m.created_at, m.updated_at`

// Column names each party may write. Nothing else is ever interpolated into SQL.
var (
	termsColumn = map[models.Party]string{
		models.PartyStudent: "student_terms_accepted",
		models.PartyOBOG:    "obog_terms_accepted",
	}
	postStatusColumn = map[models.Party]string{
		models.PartyStudent: "student_post_status",
		models.PartyOBOG:    "obog_post_status",
	}
)

// MeetingRepository persists meetings. Party-scoped writes touch only the
// caller's columns; shared status changes are guarded single-row updates.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

const insertMeetingQuery = `INSERT INTO meetings (id, booking_id, thread_id, student_id, obog_id, status, version,
student_terms_accepted, obog_terms_accepted, student_additional_question_answered, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, FALSE, FALSE, $8, $8)`

func insertMeeting(ctx context.Context, ext sqlx.ExecerContext, m *models.Meeting) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	m.Status = models.MeetingStatusUnconfirmed
	m.Version = 1
	m.Student, m.Obog = models.PartySide{}, models.PartySide{}
	_, err := ext.ExecContext(ctx, insertMeetingQuery, m.ID, m.BookingID, m.ThreadID, m.StudentID, m.ObogID, m.Status, m.Version, now)
	return err
}

// insertOpenMeetingQuery inserts only while the thread has no open meeting,
// booking-owned or not.
const insertOpenMeetingQuery = `INSERT INTO meetings (id, booking_id, thread_id, student_id, obog_id, status, version,
student_terms_accepted, obog_terms_accepted, student_additional_question_answered, created_at, updated_at)
SELECT $1, $2, $3, $4, $5, $6, $7, FALSE, FALSE, FALSE, $8, $8
WHERE NOT EXISTS (SELECT 1 FROM meetings WHERE thread_id = $3 AND status IN ('unconfirmed', 'confirmed'))`

// Create inserts a thread-initiated meeting. It fails with ErrOpenMeetingExists
// while any unconfirmed or confirmed meeting exists on the thread.
func (r *MeetingRepository) Create(ctx context.Context, m *models.Meeting) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	m.Status = models.MeetingStatusUnconfirmed
	m.Version = 1
	m.Student, m.Obog = models.PartySide{}, models.PartySide{}

	res, err := r.db.ExecContext(ctx, insertOpenMeetingQuery, m.ID, m.BookingID, m.ThreadID, m.StudentID, m.ObogID, m.Status, m.Version, now)
	if err != nil {
		if isUniqueViolation(err, constraintOpenMeeting) {
			return ErrOpenMeetingExists
		}
		return fmt.Errorf("create meeting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	if affected == 0 {
		return ErrOpenMeetingExists
	}
	return nil
}

// FindByID returns a meeting by identifier.
func (r *MeetingRepository) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings m WHERE m.id = $1`
	var m models.Meeting
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	return &m, nil
}

// FindLatestByThread returns the most recently created meeting of a thread.
func (r *MeetingRepository) FindLatestByThread(ctx context.Context, threadID string) (*models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings m WHERE m.thread_id = $1 ORDER BY m.created_at DESC LIMIT 1`
	var m models.Meeting
	if err := r.db.GetContext(ctx, &m, query, threadID); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find meeting by thread: %w", err)
	}
	return &m, nil
}

// AcceptTerms sets the party's terms flag. Cancelled meetings are left untouched.
func (r *MeetingRepository) AcceptTerms(ctx context.Context, id string, party models.Party) (*models.Meeting, error) {
	column, ok := termsColumn[party]
	if !ok {
		return nil, fmt.Errorf("accept terms: unknown party %q", party)
	}
	query := fmt.Sprintf(`UPDATE meetings AS m SET %s = TRUE, updated_at = $2
WHERE m.id = $1 AND m.status <> 'cancelled'
RETURNING %s`, column, meetingColumns)
	return r.updateReturning(ctx, "accept terms", query, id, time.Now().UTC())
}

// SetPostStatus records the party's own post-meeting report. A completion
// report moves a confirmed meeting to completed; nothing moves it back.
func (r *MeetingRepository) SetPostStatus(ctx context.Context, id string, party models.Party, status models.PostStatus) (*models.Meeting, error) {
	column, ok := postStatusColumn[party]
	if !ok {
		return nil, fmt.Errorf("set post status: unknown party %q", party)
	}
	query := fmt.Sprintf(`UPDATE meetings AS m SET %s = $2,
status = CASE WHEN m.status = 'confirmed' AND $2 = 'completed' THEN 'completed' ELSE m.status END,
version = CASE WHEN m.status = 'confirmed' AND $2 = 'completed' THEN m.version + 1 ELSE m.version END,
updated_at = $3
WHERE m.id = $1 AND m.status IN ('confirmed', 'completed')
RETURNING %s`, column, meetingColumns)
	return r.updateReturning(ctx, "set post status", query, id, string(status), time.Now().UTC())
}

// MarkAdditionalQuestionAnswered sets the student's one-time flag once their report is completed.
func (r *MeetingRepository) MarkAdditionalQuestionAnswered(ctx context.Context, id string) (*models.Meeting, error) {
	query := `UPDATE meetings AS m SET student_additional_question_answered = TRUE, updated_at = $2
WHERE m.id = $1 AND m.student_post_status = 'completed'
RETURNING ` + meetingColumns
	return r.updateReturning(ctx, "answer additional question", query, id, time.Now().UTC())
}

// Confirm flips an unconfirmed meeting whose terms are both accepted to
// confirmed and moves its pending booking along in the same transaction.
func (r *MeetingRepository) Confirm(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		bookingID, err := confirmMeeting(ctx, tx, "id", id)
		if err != nil {
			return err
		}
		if bookingID != nil {
			if _, err := confirmBooking(ctx, tx, *bookingID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Cancel cancels an open meeting that nobody reported on and its booking.
func (r *MeetingRepository) Cancel(ctx context.Context, id string, by *string, reason *string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		bookingID, err := cancelMeeting(ctx, tx, "id", id, by, reason, now)
		if err != nil {
			return err
		}
		if bookingID != nil {
			if _, err := cancelBooking(ctx, tx, *bookingID, by, reason, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListReports returns meetings with both parties' reports for moderation review.
func (r *MeetingRepository) ListReports(ctx context.Context, filter models.MeetingReportFilter) ([]models.MeetingReport, error) {
	var conditions []string
	var args []interface{}
	if filter.OnlyDisputed {
		conditions = append(conditions, "(m.student_post_status = 'no_show' OR m.obog_post_status = 'no_show')")
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conditions = append(conditions, fmt.Sprintf("m.updated_at >= $%d", len(args)))
	}

	query := `SELECT m.id AS meeting_id, m.booking_id, b.slot, m.student_id, s.name AS student_name,
m.obog_id, o.name AS obog_name, m.status, m.student_post_status, m.obog_post_status,
s.strikes AS student_strikes, m.updated_at
FROM meetings m
JOIN users s ON s.id = m.student_id
JOIN users o ON o.id = m.obog_id
LEFT JOIN bookings b ON b.id = m.booking_id
WHERE (m.student_post_status IS NOT NULL OR m.obog_post_status IS NOT NULL)`
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY m.updated_at DESC"

	var reports []models.MeetingReport
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, fmt.Errorf("list meeting reports: %w", err)
	}
	return reports, nil
}

func (r *MeetingRepository) updateReturning(ctx context.Context, op, query string, args ...interface{}) (*models.Meeting, error) {
	var m models.Meeting
	if err := r.db.GetContext(ctx, &m, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrStateChanged
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &m, nil
}

// confirmMeeting and cancelMeeting address the meeting either by its own id
// or by its booking_id; key is one of those two literal column names.
func confirmMeeting(ctx context.Context, q sqlx.QueryerContext, key, value string) (*string, error) {
	query := fmt.Sprintf(`UPDATE meetings SET status = 'confirmed', version = version + 1, updated_at = $2
WHERE %s = $1 AND status = 'unconfirmed' AND student_terms_accepted AND obog_terms_accepted
RETURNING booking_id`, meetingKey(key))
	var bookingID *string
	if err := sqlx.GetContext(ctx, q, &bookingID, query, value, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrStateChanged
		}
		return nil, fmt.Errorf("confirm meeting: %w", err)
	}
	return bookingID, nil
}

func cancelMeeting(ctx context.Context, q sqlx.QueryerContext, key, value string, by, reason *string, at time.Time) (*string, error) {
	query := fmt.Sprintf(`UPDATE meetings SET status = 'cancelled', version = version + 1,
cancelled_at = $2, cancelled_by = $3, cancellation_reason = $4, updated_at = $2
WHERE %s = $1 AND status IN ('unconfirmed', 'confirmed')
AND student_post_status IS NULL AND obog_post_status IS NULL
RETURNING booking_id`, meetingKey(key))
	var bookingID *string
	if err := sqlx.GetContext(ctx, q, &bookingID, query, value, at, by, reason); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrStateChanged
		}
		return nil, fmt.Errorf("cancel meeting: %w", err)
	}
	return bookingID, nil
}

func meetingKey(key string) string {
	if key == "booking_id" {
		return "booking_id"
	}
	return "id"
}
