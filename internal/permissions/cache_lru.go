package permissions

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMaxEntries caps a BoundedCache when no size is configured.
const DefaultMaxEntries = 10000

// BoundedCache keeps at most size entries, evicting the least recently used.
// Per-entry expiry follows the ttl passed to Put; the LRU's own ttl only
// reclaims memory from entries nobody reads again.
type BoundedCache struct {
	lru *expirable.LRU[string, cacheEntry]
	now func() time.Time
}

// NewBoundedCache constructs a size-limited cache. maxTTL should be at least the
// ttl callers pass to Put.
func NewBoundedCache(size int, maxTTL time.Duration, opts ...CacheOption) *BoundedCache {
	if size <= 0 {
		size = DefaultMaxEntries
	}
	if maxTTL <= 0 {
		maxTTL = DefaultCacheTTL
	}
	cfg := applyCacheOptions(opts)
	return &BoundedCache{
		lru: expirable.NewLRU[string, cacheEntry](size, nil, maxTTL),
		now: cfg.now,
	}
}

func (c *BoundedCache) Get(_ context.Context, userID string) (*ResolvedSet, bool, error) {
	entry, ok := c.lru.Get(userID)
	if !ok || !entry.validAt(c.now()) {
		return nil, false, nil
	}
	return entry.set, true, nil
}

func (c *BoundedCache) Put(_ context.Context, set *ResolvedSet, ttl time.Duration) error {
	if set == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c.lru.Add(set.UserID, cacheEntry{set: set, expiresAt: c.now().Add(ttl)})
	return nil
}

func (c *BoundedCache) Invalidate(_ context.Context, userID string) error {
	c.lru.Remove(userID)
	return nil
}

func (c *BoundedCache) InvalidateAll(context.Context) error {
	c.lru.Purge()
	return nil
}

// Len reports the number of stored entries.
func (c *BoundedCache) Len() int {
	return c.lru.Len()
}
