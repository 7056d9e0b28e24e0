package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type cachedCase struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func TestCacheServiceRoundTrip(t *testing.T) {
	metrics := NewMetricsService()
	store := newMemoryCache()
	svc := NewCacheService(store, metrics, 0, zap.NewNop(), true)
	ctx := context.Background()

	var dest cachedCase
	hit, err := svc.Get(ctx, caseDetailKey(1), &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, caseDetailKey(1), cachedCase{ID: 1, Title: "bullying"}, 0))
	hit, err = svc.Get(ctx, caseDetailKey(1), &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "bullying", dest.Title)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
	assert.InDelta(t, 0.5, snapshot.CacheHitRatio, 0.0001)
}

func TestCacheServiceDeleteAndInvalidate(t *testing.T) {
	store := newMemoryCache()
	svc := NewCacheService(store, nil, 0, nil, true)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, svc.Set(ctx, caseDetailKey(id), cachedCase{ID: id}, 0))
	}

	require.NoError(t, svc.Delete(ctx, caseDetailKey(1)))
	assert.False(t, store.has(caseDetailKey(1)))
	assert.True(t, store.has(caseDetailKey(2)))

	require.NoError(t, svc.Invalidate(ctx, "cases:detail:*"))
	assert.False(t, store.has(caseDetailKey(2)))
	assert.False(t, store.has(caseDetailKey(3)))
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	store := newMemoryCache()
	ctx := context.Background()

	for _, svc := range []*CacheService{nil, NewCacheService(store, nil, 0, nil, false)} {
		assert.False(t, svc.Enabled())
		require.NoError(t, svc.Set(ctx, "k", cachedCase{ID: 1}, 0))
		hit, err := svc.Get(ctx, "k", &cachedCase{})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.False(t, store.has("k"))
}
