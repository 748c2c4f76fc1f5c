package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
)

// ReviewRepository stores one-per-pair user reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review; a second review for the same pair returns ErrDuplicateReview.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO reviews (id, reviewer_id, reviewed_id, rating, comment, created_at) VALUES (:id, :reviewer_id, :reviewed_id, :rating, :comment, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		if isUniqueViolation(err, constraintReviewPair) {
			return ErrDuplicateReview
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// ListByReviewed returns reviews about a user, newest first.
func (r *ReviewRepository) ListByReviewed(ctx context.Context, reviewedID string) ([]models.Review, error) {
	const query = `SELECT id, reviewer_id, reviewed_id, rating, comment, created_at FROM reviews WHERE reviewed_id = $1 ORDER BY created_at DESC`
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, reviewedID); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// Summary returns the review count and average rating about a user.
func (r *ReviewRepository) Summary(ctx context.Context, reviewedID string) (*models.ReviewSummary, error) {
	const query = `SELECT COUNT(*) AS count, COALESCE(AVG(rating), 0)::float8 AS average FROM reviews WHERE reviewed_id = $1`
	var summary models.ReviewSummary
	if err := r.db.GetContext(ctx, &summary, query, reviewedID); err != nil {
		return nil, fmt.Errorf("review summary: %w", err)
	}
	return &summary, nil
}
