package permissions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/charlesng35/cmsauthz/internal/models"
	"github.com/charlesng35/cmsauthz/pkg/logger"
	"github.com/charlesng35/cmsauthz/pkg/metrics"
)

// Invalidator is implemented by components that cache resolved permissions.
// Writers of role, grant or membership data call it after committing.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
	InvalidateAll(ctx context.Context) error
}

// Manager answers permission questions from the cache, resolving through the
// store on a miss.
type Manager struct {
	store    Store
	resolver *Resolver
	cache    Cache
	ttl      time.Duration
	log      *zap.Logger

	group singleflight.Group
	epoch atomic.Uint64
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithTTL sets how long resolved sets stay cached.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger overrides the manager logger.
func WithLogger(log *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager constructs a Manager. A nil cache falls back to a MemoryCache.
func NewManager(store Store, cache Cache, opts ...ManagerOption) (*Manager, error) {
	resolver, err := NewResolver(store)
	if err != nil {
		return nil, err
	}
	if cache == nil {
		cache = NewMemoryCache()
	}

	m := &Manager{
		store:    store,
		resolver: resolver,
		cache:    cache,
		ttl:      DefaultCacheTTL,
		log:      logger.WithModule("permissions"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// UserPermissions returns the user's resolved set, from cache when fresh.
func (m *Manager) UserPermissions(ctx context.Context, userID string) (*ResolvedSet, error) {
	ctx = ensureContext(ctx)

	userID = normaliseID(userID)
	if userID == "" {
		return nil, ErrUserNotFound
	}

	set, ok, err := m.cache.Get(ctx, userID)
	switch {
	case err != nil:
		metrics.PermissionCacheLookups.WithLabelValues("error").Inc()
		m.log.Warn("permission cache read failed", zap.String("user_id", userID), zap.Error(err))
	case ok:
		metrics.PermissionCacheLookups.WithLabelValues("hit").Inc()
		return set, nil
	default:
		metrics.PermissionCacheLookups.WithLabelValues("miss").Inc()
	}

	// The resolve is shared by every caller waiting on this user, so it must
	// not die with the first caller's request. Keying the flight by epoch keeps
	// callers that arrive after an invalidation off an older resolve.
	detached := context.WithoutCancel(ctx)
	epoch := m.epoch.Load()
	key := userID + "#" + strconv.FormatUint(epoch, 10)
	ch := m.group.DoChan(key, func() (interface{}, error) {
		return m.resolveAndStore(detached, userID, epoch)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ResolvedSet), nil
	}
}

func (m *Manager) resolveAndStore(ctx context.Context, userID string, epoch uint64) (*ResolvedSet, error) {
	start := time.Now()
	set, err := m.resolver.Resolve(ctx, userID)
	metrics.PermissionResolveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if m.epoch.Load() != epoch {
		return set, nil
	}
	if err := m.cache.Put(ctx, set, m.ttl); err != nil {
		m.log.Warn("permission cache write failed", zap.String("user_id", userID), zap.Error(err))
		return set, nil
	}
	if m.epoch.Load() != epoch {
		// An invalidation raced the write; drop what we just stored.
		if err := m.cache.Invalidate(ctx, userID); err != nil {
			m.log.Warn("permission cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return set, nil
}

// HasPermission reports whether userID holds permission, optionally inside teamID.
// Unknown or inactive users hold nothing; store failures are returned as errors.
func (m *Manager) HasPermission(ctx context.Context, userID, permission, teamID string) (bool, error) {
	set, err := m.UserPermissions(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("permissions: check %s: %w", permission, err)
	}
	return set.Allows(Name(permission), teamID), nil
}

// CheckMultiplePermissions evaluates each name independently.
func (m *Manager) CheckMultiplePermissions(ctx context.Context, userID string, names []string, teamID string) (map[string]bool, error) {
	results := make(map[string]bool, len(names))
	for _, name := range names {
		allowed, err := m.HasPermission(ctx, userID, name, teamID)
		if err != nil {
			return nil, err
		}
		results[name] = allowed
	}
	return results, nil
}

// InvalidateUser drops the cached set for userID.
func (m *Manager) InvalidateUser(ctx context.Context, userID string) error {
	userID = normaliseID(userID)
	m.epoch.Add(1)
	metrics.PermissionCacheInvalidations.WithLabelValues("user").Inc()

	if err := m.cache.Invalidate(ensureContext(ctx), userID); err != nil {
		return fmt.Errorf("permissions: invalidate %s: %w", userID, err)
	}
	return nil
}

// InvalidateAll drops every cached set.
func (m *Manager) InvalidateAll(ctx context.Context) error {
	m.epoch.Add(1)
	metrics.PermissionCacheInvalidations.WithLabelValues("all").Inc()

	if err := m.cache.InvalidateAll(ensureContext(ctx)); err != nil {
		return fmt.Errorf("permissions: invalidate all: %w", err)
	}
	return nil
}

// Catalog lists the stored permission definitions.
func (m *Manager) Catalog(ctx context.Context) ([]models.Permission, error) {
	return m.store.Catalog(ensureContext(ctx))
}

// TTL reports the configured cache lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
