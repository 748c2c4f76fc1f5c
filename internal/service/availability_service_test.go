package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
)

type cacheRepoStub struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: map[string][]byte{}}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *cacheRepoStub) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.deleted = append(c.deleted, keys...)
	return nil
}

func newAvailabilityFixture(withCache bool) (*AvailabilityService, *memoryStore, *cacheRepoStub) {
	f := newLifecycleFixture()
	var cache *CacheService
	repo := newCacheRepoStub()
	if withCache {
		cache = NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	}
	svc := NewAvailabilityService(memoryAvailability{f.store}, memoryUsers{f.store}, cache, time.Minute, nil, zap.NewNop())
	return svc, f.store, repo
}

func TestAvailabilityGetParsesTokens(t *testing.T) {
	svc, _, _ := newAvailabilityFixture(false)

	view, err := svc.Get(context.Background(), "M1")
	require.NoError(t, err)
	assert.Equal(t, []string{slotA, slotB}, view.Slots)

	empty, err := svc.Get(context.Background(), "M2")
	require.NoError(t, err)
	assert.Empty(t, empty.Slots)
	assert.Nil(t, empty.UpdatedAt)

	_, err = svc.Get(context.Background(), "S1")
	requireAppError(t, err, appErrors.ErrInvalidTarget)
	_, err = svc.Get(context.Background(), "ghost")
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestAvailabilityUpdateNormalisesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	svc, store, cache := newAvailabilityFixture(true)

	_, err := svc.Get(ctx, "M1")
	require.NoError(t, err)
	require.Contains(t, cache.entries, availabilityCacheKey("M1"))

	view, err := svc.Update(ctx, mentorM1, "M1", dto.UpdateAvailabilityRequest{TimesCSV: " Mon 10:00 ,, Tue 11:00 , "})
	require.NoError(t, err)
	assert.Equal(t, "Mon 10:00, Tue 11:00", view.TimesCSV)
	assert.Equal(t, []string{"Mon 10:00", "Tue 11:00"}, view.Slots)
	assert.Contains(t, cache.deleted, availabilityCacheKey("M1"))

	stored, err := memoryAvailability{store}.Get(ctx, "M1")
	require.NoError(t, err)
	assert.True(t, stored.Offers("Tue 11:00"))
	assert.False(t, stored.Offers(slotA))

	fresh, err := svc.Get(ctx, "M1")
	require.NoError(t, err)
	assert.Equal(t, view.Slots, fresh.Slots)
}

func TestAvailabilityUpdatePermissions(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAvailabilityFixture(false)

	_, err := svc.Update(ctx, actorFor("M2", models.RoleOBOG), "M1", dto.UpdateAvailabilityRequest{TimesCSV: "x"})
	requireAppError(t, err, appErrors.ErrForbidden)

	_, err = svc.Update(ctx, adminA1, "M1", dto.UpdateAvailabilityRequest{TimesCSV: "Fri 09:00"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, studentS1, "S1", dto.UpdateAvailabilityRequest{TimesCSV: "Fri 09:00"})
	requireAppError(t, err, appErrors.ErrInvalidTarget)
}
