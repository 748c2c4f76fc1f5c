package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/database"
)

// ThreadRepository stores two-party message threads, their messages and charge events.
type ThreadRepository struct {
	db *sqlx.DB
}

// NewThreadRepository constructs the repository.
func NewThreadRepository(db *sqlx.DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

const upsertThreadQuery = `INSERT INTO threads (id, participant_low, participant_high, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (participant_low, participant_high) DO UPDATE SET updated_at = threads.updated_at
RETURNING id, participant_low, participant_high, created_at, updated_at`

// upsertThread resolves the thread for an unordered pair, creating it when absent.
// The no-op DO UPDATE makes RETURNING yield the existing row on conflict.
func upsertThread(ctx context.Context, q sqlx.QueryerContext, a, b string) (*models.Thread, error) {
	low, high := models.OrderedPair(a, b)
	var thread models.Thread
	if err := sqlx.GetContext(ctx, q, &thread, upsertThreadQuery, uuid.NewString(), low, high, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("upsert thread: %w", err)
	}
	return &thread, nil
}

// GetOrCreate returns the thread between two users, creating it if needed.
func (r *ThreadRepository) GetOrCreate(ctx context.Context, a, b string) (*models.Thread, error) {
	return upsertThread(ctx, r.db, a, b)
}

// FindByID returns a thread by identifier.
func (r *ThreadRepository) FindByID(ctx context.Context, id string) (*models.Thread, error) {
	const query = `SELECT id, participant_low, participant_high, created_at, updated_at FROM threads WHERE id = $1`
	var thread models.Thread
	if err := r.db.GetContext(ctx, &thread, query, id); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find thread: %w", err)
	}
	return &thread, nil
}

// ListForUser returns the user's threads with the counterpart profile, most recently active first.
func (r *ThreadRepository) ListForUser(ctx context.Context, userID string) ([]models.ThreadSummary, error) {
	const query = `SELECT t.id, t.participant_low, t.participant_high, t.created_at, t.updated_at,
u.id AS "counterpart.id", u.name AS "counterpart.name", u.nickname AS "counterpart.nickname",
u.profile_photo AS "counterpart.profile_photo", u.role AS "counterpart.role",
(SELECT MAX(msg.created_at) FROM messages msg WHERE msg.thread_id = t.id) AS last_message_at
FROM threads t
JOIN users u ON u.id = CASE WHEN t.participant_low = $1 THEN t.participant_high ELSE t.participant_low END
WHERE t.participant_low = $1 OR t.participant_high = $1
ORDER BY t.updated_at DESC`
	var threads []models.ThreadSummary
	if err := r.db.SelectContext(ctx, &threads, query, userID); err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	return threads, nil
}

// CreateMessage appends a message and bumps the thread's activity timestamp.
func (r *ThreadRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const insert = `INSERT INTO messages (id, thread_id, sender_id, content, created_at) VALUES (:id, :thread_id, :sender_id, :content, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insert, msg); err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE threads SET updated_at = $2 WHERE id = $1`, msg.ThreadID, msg.CreatedAt); err != nil {
			return fmt.Errorf("touch thread: %w", err)
		}
		return nil
	})
}

// ListMessages returns a page of a thread's messages in chronological order.
func (r *ThreadRepository) ListMessages(ctx context.Context, threadID string, page, pageSize int) ([]models.Message, int, error) {
	page, pageSize = normalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT id, thread_id, sender_id, content, created_at FROM messages WHERE thread_id = $1 ORDER BY created_at ASC, id ASC LIMIT %d OFFSET %d`, pageSize, offset)
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, threadID); err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM messages WHERE thread_id = $1`, threadID); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	return messages, total, nil
}

// CreateChargeEvent records a billable action for the payment collaborator.
func (r *ThreadRepository) CreateChargeEvent(ctx context.Context, ev *models.ChargeEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO charge_events (id, kind, thread_id, message_id, payer_id, recipient_id, created_at) VALUES (:id, :kind, :thread_id, :message_id, :payer_id, :recipient_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ev); err != nil {
		return fmt.Errorf("create charge event: %w", err)
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
