package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
)

type userDirectory interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type reviewSummarizer interface {
	Summary(ctx context.Context, reviewedID string) (*models.ReviewSummary, error)
}

// UserService serves public profiles and the admin user directory.
type UserService struct {
	repo    userDirectory
	reviews reviewSummarizer
	logger  *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userDirectory, reviews reviewSummarizer, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, reviews: reviews, logger: logger}
}

// List returns paginated users for moderation. Admin only.
func (s *UserService) List(ctx context.Context, actor *models.JWTClaims, filter models.UserFilter) ([]dto.UserSummary, *models.Pagination, error) {
	if !actor.IsAdmin() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may browse users")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page, pageSize := normalizePaging(filter.Page, filter.PageSize)
	items := make([]dto.UserSummary, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserSummary(&users[i]))
	}
	return items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Profile returns the public profile of a user.
func (s *UserService) Profile(ctx context.Context, actor *models.JWTClaims, id string) (*dto.UserProfile, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	profile := &dto.UserProfile{Counterpart: dto.CounterpartFromProfile(user.Public())}
	if summary, err := s.reviews.Summary(ctx, id); err != nil {
		s.logger.Warn("review summary unavailable", zap.String("user_id", id), zap.Error(err))
	} else if summary != nil {
		profile.Reviews = *summary
	}

	if actor.IsAdmin() || (actor != nil && actor.UserID == id) {
		strikes, banned := user.Strikes, user.IsBanned
		profile.Strikes = &strikes
		profile.IsBanned = &banned
	}
	return profile, nil
}
