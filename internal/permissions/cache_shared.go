package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charlesng35/cmsauthz/internal/cache"
)

const sharedKeyPrefix = "permissions:"

// SharedCache stores resolved sets in a cache.Store so several instances see
// the same entries and the same invalidations.
type SharedCache struct {
	store cache.Store
	now   func() time.Time
}

type sharedEntry struct {
	Set       *ResolvedSet `json:"set"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// NewSharedCache wraps store.
func NewSharedCache(store cache.Store, opts ...CacheOption) (*SharedCache, error) {
	if store == nil {
		return nil, errors.New("shared permission cache: store is required")
	}
	cfg := applyCacheOptions(opts)
	return &SharedCache{store: store, now: cfg.now}, nil
}

// CacheKey returns the store key for userID.
func CacheKey(userID string) string {
	return sharedKeyPrefix + userID
}

func (c *SharedCache) Get(ctx context.Context, userID string) (*ResolvedSet, bool, error) {
	raw, ok, err := c.store.Get(ctx, CacheKey(userID))
	if err != nil {
		return nil, false, fmt.Errorf("shared permission cache: get: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var entry sharedEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("shared permission cache: decode %s: %w", userID, err)
	}
	if entry.Set == nil || !c.now().Before(entry.ExpiresAt) {
		return nil, false, nil
	}
	return entry.Set, true, nil
}

func (c *SharedCache) Put(ctx context.Context, set *ResolvedSet, ttl time.Duration) error {
	if set == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	payload, err := json.Marshal(sharedEntry{Set: set, ExpiresAt: c.now().Add(ttl)})
	if err != nil {
		return fmt.Errorf("shared permission cache: encode %s: %w", set.UserID, err)
	}
	if err := c.store.Set(ctx, CacheKey(set.UserID), payload, ttl); err != nil {
		return fmt.Errorf("shared permission cache: put: %w", err)
	}
	return nil
}

func (c *SharedCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.store.Delete(ctx, CacheKey(userID)); err != nil {
		return fmt.Errorf("shared permission cache: invalidate: %w", err)
	}
	return nil
}

func (c *SharedCache) InvalidateAll(ctx context.Context) error {
	if err := c.store.DeletePrefix(ctx, sharedKeyPrefix); err != nil {
		return fmt.Errorf("shared permission cache: invalidate all: %w", err)
	}
	return nil
}
