package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/repository"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
)

type reviewStore interface {
	Create(ctx context.Context, review *models.Review) error
	ListByReviewed(ctx context.Context, reviewedID string) ([]models.Review, error)
	Summary(ctx context.Context, reviewedID string) (*models.ReviewSummary, error)
}

// ReviewService records one-time ratings students leave about their counterparts.
type ReviewService struct {
	repo      reviewStore
	users     userReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReviewService constructs a ReviewService.
func NewReviewService(repo reviewStore, users userReader, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{repo: repo, users: users, validator: validate, logger: logger}
}

// Create stores the caller's review. A prior meeting is not required; the
// (reviewer, reviewed) pair is unique.
func (s *ReviewService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateReviewRequest) (*models.Review, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can leave reviews")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid review payload")
	}
	if req.ReviewedID == actor.UserID {
		return nil, appErrors.Validation("invalid review payload", map[string]string{"reviewedId": "cannot review yourself"})
	}

	if _, err := s.users.FindByID(ctx, req.ReviewedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reviewed user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reviewed user")
	}

	review := &models.Review{
		ReviewerID: actor.UserID,
		ReviewedID: req.ReviewedID,
		Rating:     req.Rating,
		Comment:    trimmedOrNil(req.Comment),
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicateReview) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyReviewed, "you already reviewed this user")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create review")
	}
	return review, nil
}

// ListForUser returns the reviews about a user with their aggregate rating.
func (s *ReviewService) ListForUser(ctx context.Context, userID string) (*dto.UserReviews, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	reviews, err := s.repo.ListByReviewed(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	summary, err := s.repo.Summary(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise reviews")
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return &dto.UserReviews{UserID: userID, Summary: *summary, Reviews: reviews}, nil
}
