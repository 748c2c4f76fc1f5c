package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
)

// AvailabilityRepository persists mentors' offered slot tokens.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// Get returns the availability row for a mentor, or sql.ErrNoRows when none was ever saved.
func (r *AvailabilityRepository) Get(ctx context.Context, mentorID string) (*models.Availability, error) {
	const query = `SELECT mentor_id, times_csv, updated_at FROM mentor_availability WHERE mentor_id = $1`
	var a models.Availability
	if err := r.db.GetContext(ctx, &a, query, mentorID); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get availability: %w", err)
	}
	return &a, nil
}

// Upsert replaces a mentor's availability string.
func (r *AvailabilityRepository) Upsert(ctx context.Context, a *models.Availability) error {
	a.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO mentor_availability (mentor_id, times_csv, updated_at) VALUES (:mentor_id, :times_csv, :updated_at)
ON CONFLICT (mentor_id) DO UPDATE SET times_csv = EXCLUDED.times_csv, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("upsert availability: %w", err)
	}
	return nil
}
