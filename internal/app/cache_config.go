package app

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/cmsauthz/internal/cache"
	"github.com/charlesng35/cmsauthz/internal/permissions"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:   strings.TrimSpace(c.Redis.Address),
		Username:  strings.TrimSpace(c.Redis.Username),
		Password:  c.Redis.Password,
		DB:        c.Redis.DB,
		TLS:       c.Redis.TLS,
		Timeout:   c.Redis.Timeout,
		KeyPrefix: strings.TrimSpace(c.Redis.KeyPrefix),
	}
}

// PermissionCache builds the resolved-permission cache selected by
// permissions.cache.backend. redis may be nil unless the backend is redis.
func (c Config) PermissionCache(db *gorm.DB, redis cache.Store) (permissions.Cache, error) {
	settings := c.Permissions.Cache
	switch strings.ToLower(strings.TrimSpace(settings.Backend)) {
	case "", CacheBackendMemory:
		return permissions.NewMemoryCache(), nil
	case CacheBackendLRU:
		return permissions.NewBoundedCache(settings.MaxEntries, settings.TTL), nil
	case CacheBackendRedis:
		if redis == nil {
			return nil, fmt.Errorf("permission cache: redis backend selected but redis is not connected")
		}
		return permissions.NewSharedCache(redis)
	case CacheBackendDatabase:
		if db == nil {
			return nil, fmt.Errorf("permission cache: database backend requires a database handle")
		}
		return permissions.NewSharedCache(cache.NewDatabaseStore(db))
	default:
		return nil, fmt.Errorf("permission cache: unknown backend %q", settings.Backend)
	}
}
