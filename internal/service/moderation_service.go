package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/logger"
)

const defaultBanThreshold = 2

type strikeStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	AddStrike(ctx context.Context, userID string, threshold int) (*models.StrikeResult, error)
	RemoveStrike(ctx context.Context, userID string) (*models.StrikeResult, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ModerationService applies the explicit strike actions taken by admins.
// Strikes never accrue automatically from meeting reports.
type ModerationService struct {
	repo         strikeStore
	banThreshold int
	logger       *zap.Logger
}

// NewModerationService constructs a ModerationService. A threshold <= 0 falls back to 2.
func NewModerationService(repo strikeStore, banThreshold int, logger *zap.Logger) *ModerationService {
	if banThreshold <= 0 {
		banThreshold = defaultBanThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModerationService{repo: repo, banThreshold: banThreshold, logger: logger}
}

// AddStrike increments a student's strikes; reaching the threshold bans them in the same write.
func (s *ModerationService) AddStrike(ctx context.Context, actor *models.JWTClaims, userID string) (*models.StrikeResult, error) {
	before, err := s.loadStudent(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	result, err := s.repo.AddStrike(ctx, userID, s.banThreshold)
	if err != nil {
		return nil, s.strikeFailed(err)
	}
	s.audit(ctx, actor, models.AuditActionStrikeAdd, before, result)
	if result.IsBanned && !before.IsBanned {
		logger.FromContext(ctx, s.logger).Info("student banned", zap.String("user_id", userID), zap.Int("strikes", result.Strikes))
	}
	return result, nil
}

// RemoveStrike decrements a student's strikes, clamped at zero. It never lifts a ban.
func (s *ModerationService) RemoveStrike(ctx context.Context, actor *models.JWTClaims, userID string) (*models.StrikeResult, error) {
	before, err := s.loadStudent(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	result, err := s.repo.RemoveStrike(ctx, userID)
	if err != nil {
		return nil, s.strikeFailed(err)
	}
	s.audit(ctx, actor, models.AuditActionStrikeRemove, before, result)
	return result, nil
}

func (s *ModerationService) loadStudent(ctx context.Context, actor *models.JWTClaims, userID string) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can moderate users")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrInvalidTarget, "strikes apply to students only")
	}
	return user, nil
}

func (s *ModerationService) strikeFailed(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update strikes")
}

func (s *ModerationService) audit(ctx context.Context, actor *models.JWTClaims, action string, before *models.User, after *models.StrikeResult) {
	oldValues, _ := json.Marshal(map[string]interface{}{"strikes": before.Strikes, "is_banned": before.IsBanned})
	newValues, _ := json.Marshal(after)
	actorID := actor.UserID
	targetID := before.ID
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "user",
		ResourceID: &targetID,
		OldValues:  oldValues,
		NewValues:  newValues,
	}); err != nil {
		logger.FromContext(ctx, s.logger).Warn("failed to record moderation audit log", zap.String("user_id", targetID), zap.Error(err))
	}
}
