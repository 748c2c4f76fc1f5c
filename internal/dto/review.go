package dto

import "github.com/Noah-Truong/Senpai-Career-sub002/internal/models"

// CreateReviewRequest rates another user once.
type CreateReviewRequest struct {
	ReviewedID string  `json:"reviewedId" validate:"required"`
	Rating     int     `json:"rating" validate:"required,min=1,max=5"`
	Comment    *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

// UserReviews lists reviews about a user with their aggregate.
type UserReviews struct {
	UserID  string               `json:"userId"`
	Summary models.ReviewSummary `json:"summary"`
	Reviews []models.Review      `json:"reviews"`
}
