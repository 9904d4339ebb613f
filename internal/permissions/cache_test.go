package permissions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/cmsauthz/internal/cache"
	"github.com/charlesng35/cmsauthz/internal/database/testutil"
)

func sampleSet(userID string) *ResolvedSet {
	return &ResolvedSet{
		UserID:          userID,
		Role:            "editor",
		Permissions:     NewSet("content.read"),
		TeamPermissions: map[string]Set{"T1": NewSet("team.manage")},
	}
}

// exerciseCacheContract runs the behaviour every Cache implementation shares.
func exerciseCacheContract(t *testing.T, c Cache, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()
	const ttl = 5 * time.Minute

	_, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok, "empty cache misses")

	require.NoError(t, c.Put(ctx, sampleSet("u1"), ttl))
	require.NoError(t, c.Put(ctx, sampleSet("u2"), ttl))

	clock.Advance(ttl - time.Nanosecond)
	got, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok, "entry is valid just before expiry")
	require.True(t, got.Allows("team.manage", "T1"))

	clock.Advance(time.Nanosecond)
	_, ok, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok, "entry expires exactly at T+TTL")

	require.NoError(t, c.Put(ctx, sampleSet("u1"), ttl))
	require.NoError(t, c.Put(ctx, sampleSet("u2"), ttl))
	require.NoError(t, c.Invalidate(ctx, "u1"))
	_, ok, _ = c.Get(ctx, "u1")
	require.False(t, ok)
	_, ok, _ = c.Get(ctx, "u2")
	require.True(t, ok, "point invalidation leaves other users")

	require.NoError(t, c.Put(ctx, sampleSet("u3"), ttl))
	require.NoError(t, c.InvalidateAll(ctx))
	for _, id := range []string{"u1", "u2", "u3"} {
		_, ok, _ = c.Get(ctx, id)
		require.False(t, ok, "bulk invalidation clears %s", id)
	}
}

func TestMemoryCacheContract(t *testing.T) {
	clock := newFakeClock()
	exerciseCacheContract(t, NewMemoryCache(WithClock(clock.Now)), clock)
}

func TestBoundedCacheContract(t *testing.T) {
	clock := newFakeClock()
	exerciseCacheContract(t, NewBoundedCache(100, time.Hour, WithClock(clock.Now)), clock)
}

func TestSharedCacheContractOnRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := cache.NewRedisStore(context.Background(), cache.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := newFakeClock()
	shared, err := NewSharedCache(store, WithClock(clock.Now))
	require.NoError(t, err)
	exerciseCacheContract(t, shared, clock)
}

func TestSharedCacheContractOnDatabase(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := newFakeClock()
	shared, err := NewSharedCache(cache.NewDatabaseStore(db), WithClock(clock.Now))
	require.NoError(t, err)
	exerciseCacheContract(t, shared, clock)
}

func TestMemoryCachePutDefaultsTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCache(WithClock(clock.Now))
	require.NoError(t, c.Put(context.Background(), sampleSet("u1"), 0))
	require.NoError(t, c.Put(context.Background(), nil, time.Minute))
	require.Equal(t, 1, c.Len())

	clock.Advance(DefaultCacheTTL - time.Second)
	_, ok, _ := c.Get(context.Background(), "u1")
	require.True(t, ok)
	clock.Advance(time.Second)
	_, ok, _ = c.Get(context.Background(), "u1")
	require.False(t, ok)
}

func TestBoundedCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewBoundedCache(2, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, sampleSet("u1"), time.Minute))
	require.NoError(t, c.Put(ctx, sampleSet("u2"), time.Minute))
	_, ok, _ := c.Get(ctx, "u1")
	require.True(t, ok)

	require.NoError(t, c.Put(ctx, sampleSet("u3"), time.Minute))
	require.Equal(t, 2, c.Len())

	_, ok, _ = c.Get(ctx, "u2")
	require.False(t, ok, "u2 was least recently used")
	_, ok, _ = c.Get(ctx, "u1")
	require.True(t, ok)
}

func TestSharedCacheKeysAndForeignEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := cache.NewRedisStore(context.Background(), cache.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	shared, err := NewSharedCache(store)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, shared.Put(ctx, sampleSet("u1"), time.Minute))
	require.True(t, mr.Exists("cmsauthz:"+CacheKey("u1")))
	require.NoError(t, store.Set(ctx, "sessions:abc", []byte("keep"), time.Minute))

	require.NoError(t, shared.InvalidateAll(ctx))
	require.True(t, mr.Exists("cmsauthz:sessions:abc"))

	require.NoError(t, store.Set(ctx, CacheKey("u9"), []byte("not json"), time.Minute))
	_, _, err = shared.Get(ctx, "u9")
	require.Error(t, err)
}

func TestNewSharedCacheRequiresStore(t *testing.T) {
	_, err := NewSharedCache(nil)
	require.Error(t, err)
}

func BenchmarkMemoryCacheGet(b *testing.B) {
	c := NewMemoryCache()
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		_ = c.Put(ctx, sampleSet(fmt.Sprintf("u%d", i)), time.Hour)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = c.Get(ctx, "u500")
	}
}
