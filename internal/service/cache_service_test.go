package service

import (
	"context"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

type fakeCacheRepo struct {
	values  map[string]interface{}
	ttls    map[string]time.Duration
	getErr  error
	deleted []string
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{values: map[string]interface{}{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	page, ok := dest.(*models.InboxPage)
	if !ok {
		return errors.New("unexpected destination")
	}
	*page = v.(models.InboxPage)
	return nil
}

func (f *fakeCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.values[key] = *value.(*models.InboxPage)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	f.deleted = append(f.deleted, pattern)
	for k := range f.values {
		if ok, _ := path.Match(pattern, k); ok {
			delete(f.values, k)
		}
	}
	return nil
}

func TestCacheServiceNamespacesKeys(t *testing.T) {
	repo := newFakeCacheRepo()
	cache := NewCacheService(repo, NewMetricsService(), nil, CacheConfig{Enabled: true, DefaultTTL: 30 * time.Second, Namespace: "classroom:"})
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "inbox:bob:1:20", &models.InboxPage{UnreadCount: 2}, 0))
	assert.Contains(t, repo.values, "classroom:inbox:bob:1:20")
	assert.Equal(t, 30*time.Second, repo.ttls["classroom:inbox:bob:1:20"])

	var page models.InboxPage
	hit, err := cache.Get(ctx, "inbox:bob:1:20", &page)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, page.UnreadCount)

	require.NoError(t, cache.Invalidate(ctx, "inbox:bob:*"))
	assert.Equal(t, []string{"classroom:inbox:bob:*"}, repo.deleted)
	hit, err = cache.Get(ctx, "inbox:bob:1:20", &page)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newFakeCacheRepo()
	cache := NewCacheService(repo, nil, nil, CacheConfig{})

	require.NoError(t, cache.Set(context.Background(), "k", &models.InboxPage{}, time.Minute))
	assert.Empty(t, repo.values)
	hit, err := cache.Get(context.Background(), "k", &models.InboxPage{})
	require.NoError(t, err)
	assert.False(t, hit)

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	repo := newFakeCacheRepo()
	repo.getErr = errors.New("connection refused")
	cache := NewCacheService(repo, nil, nil, CacheConfig{Enabled: true})

	hit, err := cache.Get(context.Background(), "k", &models.InboxPage{})
	assert.False(t, hit)
	assert.Error(t, err)
}
