package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/cache"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
)

type availabilityStore interface {
	Get(ctx context.Context, mentorID string) (*models.Availability, error)
	Upsert(ctx context.Context, a *models.Availability) error
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AvailabilityService reads and maintains mentors' offered slot tokens.
type AvailabilityService struct {
	repo      availabilityStore
	users     userReader
	cache     *CacheService
	ttl       time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs the service. cache may be nil.
func NewAvailabilityService(repo availabilityStore, users userReader, cache *CacheService, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, users: users, cache: cache, ttl: ttl, validator: validate, logger: logger}
}

func availabilityCacheKey(mentorID string) string {
	return cache.Key("availability", mentorID)
}

// Get returns a mentor's availability. A mentor who never saved any gets an empty list.
func (s *AvailabilityService) Get(ctx context.Context, mentorID string) (*dto.AvailabilityView, error) {
	key := availabilityCacheKey(mentorID)
	var cached dto.AvailabilityView
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	if _, err := s.loadMentor(ctx, mentorID); err != nil {
		return nil, err
	}

	view := &dto.AvailabilityView{MentorID: mentorID, Slots: []string{}}
	record, err := s.repo.Get(ctx, mentorID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	default:
		view.TimesCSV = record.TimesCSV
		view.Slots = record.Slots()
		updated := record.UpdatedAt
		view.UpdatedAt = &updated
	}

	_ = s.cache.Set(ctx, key, view, s.ttl)
	return view, nil
}

// Update replaces the mentor's availability. Only the mentor or an admin may do so.
func (s *AvailabilityService) Update(ctx context.Context, actor *models.JWTClaims, mentorID string, req dto.UpdateAvailabilityRequest) (*dto.AvailabilityView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() && actor.UserID != mentorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the mentor may edit their availability")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid availability payload")
	}
	if _, err := s.loadMentor(ctx, mentorID); err != nil {
		return nil, err
	}

	record := &models.Availability{MentorID: mentorID, TimesCSV: strings.Join(models.ParseSlotTokens(req.TimesCSV), ", ")}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability")
	}
	_ = s.cache.Invalidate(ctx, availabilityCacheKey(mentorID))

	updated := record.UpdatedAt
	return &dto.AvailabilityView{MentorID: mentorID, TimesCSV: record.TimesCSV, Slots: record.Slots(), UpdatedAt: &updated}, nil
}

func (s *AvailabilityService) loadMentor(ctx context.Context, mentorID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, mentorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	if user.Role != models.RoleOBOG {
		return nil, appErrors.Clone(appErrors.ErrInvalidTarget, "user is not a mentor")
	}
	return user, nil
}
