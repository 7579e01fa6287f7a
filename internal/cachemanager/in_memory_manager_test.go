package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type digest string

func TestNewInMemoryCacheManager(t *testing.T) {
	require.NotPanics(t, func() {
		NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)
	})
}

func TestInMemoryCacheManager_GetExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[digest, string]("renders", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "abc", "<span>x</span>", DefaultExpiration)

	got, ok := cache.Get(context.Background(), "abc")
	require.True(t, ok)
	require.Equal(t, "<span>x</span>", got)
}

func TestInMemoryCacheManager_GetMissing(t *testing.T) {
	cache := NewInMemoryCacheManager[digest, string]("renders", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get(context.Background(), "abc")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_GetWrongType(t *testing.T) {
	cache := NewInMemoryCacheManager[digest, string]("renders", DefaultExpiration, DefaultCleanupInterval)
	cache.cache.Set("abc", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "abc")
	require.False(t, ok)
	require.Empty(t, got)
	require.Equal(t, int64(1), cache.Stats().Misses)
}

func TestInMemoryCacheManager_ZeroTTLUsesDefault(t *testing.T) {
	cache := NewInMemoryCacheManager[digest, string]("renders", time.Hour, DefaultCleanupInterval)
	cache.Set(context.Background(), "abc", "v", 0)

	_, expiry, found := cache.cache.GetWithExpiration("abc")
	require.True(t, found)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiry, time.Minute)
}

func TestInMemoryCacheManager_Expires(t *testing.T) {
	cache := NewInMemoryCacheManager[digest, string]("renders", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "abc", "v", 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := cache.Get(context.Background(), "abc")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestInMemoryCacheManager_GetWithRefresh(t *testing.T) {
	cache := NewInMemoryCacheManager[digest, string]("renders", DefaultExpiration, DefaultCleanupInterval)

	_, ok := cache.GetWithRefresh(context.Background(), "abc", time.Hour)
	require.False(t, ok)

	cache.Set(context.Background(), "abc", "v", time.Minute)
	got, ok := cache.GetWithRefresh(context.Background(), "abc", time.Hour)
	require.True(t, ok)
	require.Equal(t, "v", got)

	_, expiry, _ := cache.cache.GetWithExpiration("abc")
	require.WithinDuration(t, time.Now().Add(time.Hour), expiry, time.Minute)
}

func TestInMemoryCacheManager_Delete(t *testing.T) {
	cache := NewInMemoryCacheManager[digest, string]("renders", DefaultExpiration, DefaultCleanupInterval)
	require.NoError(t, cache.Delete(context.Background()))

	cache.Set(context.Background(), "a", "1", DefaultExpiration)
	cache.Set(context.Background(), "b", "2", DefaultExpiration)
	require.NoError(t, cache.Delete(context.Background(), "a", "missing"))

	_, ok := cache.Get(context.Background(), "a")
	require.False(t, ok)
	_, ok = cache.Get(context.Background(), "b")
	require.True(t, ok)
}

func TestInMemoryCacheManager_FlushAndStats(t *testing.T) {
	cache := NewInMemoryCacheManager[digest, string]("renders", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()

	cache.Set(ctx, "a", "1", DefaultExpiration)
	cache.Set(ctx, "b", "2", DefaultExpiration)
	_, _ = cache.Get(ctx, "a")
	_, _ = cache.Get(ctx, "zzz")

	stats := cache.Stats()
	require.Equal(t, Stats{Hits: 1, Misses: 1, Items: 2}, stats)

	require.NoError(t, cache.Flush(ctx))
	require.Equal(t, Stats{Hits: 1, Misses: 1, Items: 0}, cache.Stats())
}
