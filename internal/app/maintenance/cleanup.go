package maintenance

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/cmsauthz/pkg/logger"
)

const (
	defaultRetentionDays = 90
	defaultActivitySpec  = "@daily"
	defaultCacheSpec     = "@hourly"
)

// ActivityPruner deletes activity rows older than a retention window.
type ActivityPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// ExpiredPurger removes expired entries from the SQL cache table.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner coordinates background maintenance: activity log retention and
// purging expired rows from the database-backed cache.
type Cleaner struct {
	activity  ActivityPruner
	cache     ExpiredPurger
	cron      *cron.Cron
	log       *zap.Logger
	retention int

	activitySchedule string
	cacheSchedule    string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithRetentionDays adjusts how long activity entries are kept. Zero disables pruning.
func WithRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days >= 0 {
			cleaner.retention = days
		}
	}
}

// WithActivitySchedule overrides the cron specification for activity retention.
func WithActivitySchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.activitySchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache purging.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// WithLogger replaces the maintenance logger.
func WithLogger(log *zap.Logger) Option {
	return func(cleaner *Cleaner) {
		if log != nil {
			cleaner.log = log
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup job being skipped.
func NewCleaner(activity ActivityPruner, cache ExpiredPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		activity:         activity,
		cache:            cache,
		retention:        defaultRetentionDays,
		activitySchedule: defaultActivitySpec,
		cacheSchedule:    defaultCacheSpec,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

func (c *Cleaner) pruneActivity() bool { return c.activity != nil && c.retention > 0 }

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.pruneActivity() && c.cache == nil {
		return nil
	}

	if c.pruneActivity() {
		if _, err := c.cron.AddFunc(c.activitySchedule, func() {
			removed, err := c.activity.CleanupOlderThan(context.Background(), c.retention)
			if err != nil {
				c.log.Warn("activity cleanup failed", zap.Error(err))
				return
			}
			c.log.Debug("activity cleanup", zap.Int64("removed", removed))
		}); err != nil {
			return fmt.Errorf("maintenance: schedule activity cleanup: %w", err)
		}
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if _, err := c.cache.PurgeExpired(context.Background()); err != nil {
				c.log.Warn("cache purge failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule cache purge: %w", err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.pruneActivity() {
		if _, err := c.activity.CleanupOlderThan(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.cache != nil {
		if _, err := c.cache.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
