package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
)

// memoryStrikes applies the same arithmetic as the SQL statements.
type memoryStrikes struct {
	memoryUsers
}

func (m memoryStrikes) AddStrike(ctx context.Context, userID string, threshold int) (*models.StrikeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.Role != models.RoleStudent {
		return nil, sql.ErrNoRows
	}
	u.Strikes++
	u.IsBanned = u.IsBanned || u.Strikes >= threshold
	u.UpdatedAt = time.Now().UTC()
	return &models.StrikeResult{UserID: u.ID, Strikes: u.Strikes, IsBanned: u.IsBanned}, nil
}

func (m memoryStrikes) RemoveStrike(ctx context.Context, userID string) (*models.StrikeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.Role != models.RoleStudent {
		return nil, sql.ErrNoRows
	}
	if u.Strikes > 0 {
		u.Strikes--
	}
	return &models.StrikeResult{UserID: u.ID, Strikes: u.Strikes, IsBanned: u.IsBanned}, nil
}

func newModerationFixture() (*ModerationService, *memoryStore) {
	f := newLifecycleFixture()
	return NewModerationService(memoryStrikes{memoryUsers{f.store}}, 0, zap.NewNop()), f.store
}

func TestModerationSecondStrikeBans(t *testing.T) {
	ctx := context.Background()
	svc, store := newModerationFixture()

	first, err := svc.AddStrike(ctx, adminA1, "S1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Strikes)
	assert.False(t, first.IsBanned)

	second, err := svc.AddStrike(ctx, adminA1, "S1")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Strikes)
	assert.True(t, second.IsBanned)

	require.Len(t, store.audits, 2)
	assert.Equal(t, models.AuditActionStrikeAdd, store.audits[1].Action)
	assert.JSONEq(t, `{"strikes":1,"is_banned":false}`, string(store.audits[1].OldValues))
}

func TestModerationRemoveStrikeClampsAndKeepsBan(t *testing.T) {
	ctx := context.Background()
	svc, _ := newModerationFixture()

	cleared, err := svc.RemoveStrike(ctx, adminA1, "S2")
	require.NoError(t, err)
	assert.Equal(t, 0, cleared.Strikes)

	_, err = svc.AddStrike(ctx, adminA1, "S1")
	require.NoError(t, err)
	_, err = svc.AddStrike(ctx, adminA1, "S1")
	require.NoError(t, err)

	after, err := svc.RemoveStrike(ctx, adminA1, "S1")
	require.NoError(t, err)
	assert.Equal(t, 1, after.Strikes)
	assert.True(t, after.IsBanned)
}

func TestModerationTargetsAndPermissions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newModerationFixture()

	_, err := svc.AddStrike(ctx, studentS2, "S1")
	requireAppError(t, err, appErrors.ErrForbidden)
	_, err = svc.AddStrike(ctx, adminA1, "M1")
	requireAppError(t, err, appErrors.ErrInvalidTarget)
	_, err = svc.RemoveStrike(ctx, adminA1, "ghost")
	requireAppError(t, err, appErrors.ErrNotFound)
}
