package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauthz/internal/activity"
	"github.com/charlesng35/cmsauthz/internal/api"
	"github.com/charlesng35/cmsauthz/internal/app"
	"github.com/charlesng35/cmsauthz/internal/app/maintenance"
	iauth "github.com/charlesng35/cmsauthz/internal/auth"
	"github.com/charlesng35/cmsauthz/internal/cache"
	"github.com/charlesng35/cmsauthz/internal/database"
	"github.com/charlesng35/cmsauthz/internal/permissions"
	"github.com/charlesng35/cmsauthz/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB          *gorm.DB
	Redis       *cache.RedisStore
	Permissions *permissions.Manager
	Activity    *activity.Recorder
	Cleaner     *maintenance.Cleaner
	Router      *gin.Engine
}

// bootstrapRuntime initialises the database, caches, the permission manager and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is nil")
	}

	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			if shutdownErr := stack.Shutdown(context.Background()); shutdownErr != nil {
				log.Warn("partial bootstrap cleanup failed", zap.Error(shutdownErr))
			}
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	catalog := permissions.DefaultCatalog()
	if cfg.Permissions.SyncOnStart {
		result, err := permissions.Sync(ctx, stack.DB, catalog)
		if err != nil {
			return nil, fmt.Errorf("sync permission catalog: %w", err)
		}
		log.Info("permission catalog synced",
			zap.Int("permissions", result.Permissions),
			zap.Strings("seeded_roles", result.SeededRoles),
		)
	}

	if cfg.Cache.Redis.Enabled {
		stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig())
		switch {
		case err != nil && strings.EqualFold(cfg.Permissions.Cache.Backend, app.CacheBackendRedis):
			return nil, fmt.Errorf("connect redis: %w", err)
		case err != nil:
			log.Warn("redis unavailable; permission cache stays local", zap.Error(err))
			stack.Redis = nil
		default:
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	var shared cache.Store
	if stack.Redis != nil {
		shared = stack.Redis
	}
	permCache, err := cfg.PermissionCache(stack.DB, shared)
	if err != nil {
		return nil, err
	}

	store, err := permissions.NewGormStore(stack.DB)
	if err != nil {
		return nil, err
	}
	stack.Permissions, err = permissions.NewManager(store, permCache, permissions.WithTTL(cfg.Permissions.Cache.TTL))
	if err != nil {
		return nil, fmt.Errorf("initialise permission manager: %w", err)
	}
	log.Info("permission manager ready",
		zap.String("cache_backend", cfg.Permissions.Cache.Backend),
		zap.Duration("ttl", stack.Permissions.TTL()),
	)

	stack.Activity, err = activity.NewRecorder(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise activity recorder: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(stack.Activity, cache.NewDatabaseStore(stack.DB),
		maintenance.WithRetentionDays(cfg.Activity.RetentionDays),
		maintenance.WithActivitySchedule(cfg.Activity.CleanupSchedule),
		maintenance.WithCacheSchedule(cfg.Activity.CacheCleanupSchedule),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:          stack.DB,
		JWT:         jwtSvc,
		Permissions: stack.Permissions,
		Activity:    stack.Activity,
		Catalog:     catalog,
		Monitoring:  cfg.Monitoring,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs and releases resources. It runs a final
// maintenance pass before closing the database.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var err error
	if s.Cleaner != nil {
		s.Cleaner.Stop()
		err = multierr.Append(err, s.Cleaner.RunOnce(ctx))
		s.Cleaner = nil
	}

	if s.Redis != nil {
		err = multierr.Append(err, s.Redis.Close())
		s.Redis = nil
	}

	if s.DB != nil {
		err = multierr.Append(err, closeDatabase(s.DB))
		s.DB = nil
	}
	return err
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseOptions()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = closeDatabase(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("obtain sql db: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
