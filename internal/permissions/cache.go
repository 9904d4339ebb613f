package permissions

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long a resolved set is served before a fresh resolve.
const DefaultCacheTTL = 5 * time.Minute

// Cache stores resolved permission sets keyed by user id. Entries expire lazily:
// Get treats an entry as a miss once its expiry has been reached.
type Cache interface {
	Get(ctx context.Context, userID string) (*ResolvedSet, bool, error)
	Put(ctx context.Context, set *ResolvedSet, ttl time.Duration) error
	Invalidate(ctx context.Context, userID string) error
	InvalidateAll(ctx context.Context) error
}

// CacheOption customises in-process caches.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	now func() time.Time
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) CacheOption {
	return func(o *cacheOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func applyCacheOptions(opts []CacheOption) cacheOptions {
	cfg := cacheOptions{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

type cacheEntry struct {
	set       *ResolvedSet
	expiresAt time.Time
}

func (e cacheEntry) validAt(now time.Time) bool {
	return now.Before(e.expiresAt)
}

// MemoryCache is an unbounded in-process cache. Its key space is the set of
// active users, which keeps it small for single-tenant deployments.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache(opts ...CacheOption) *MemoryCache {
	cfg := applyCacheOptions(opts)
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     cfg.now,
	}
}

func (c *MemoryCache) Get(_ context.Context, userID string) (*ResolvedSet, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok || !entry.validAt(c.now()) {
		return nil, false, nil
	}
	return entry.set, true, nil
}

func (c *MemoryCache) Put(_ context.Context, set *ResolvedSet, ttl time.Duration) error {
	if set == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	c.mu.Lock()
	c.entries[set.UserID] = cacheEntry{set: set, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
