package services

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/cmsauthz/internal/activity"
	"github.com/charlesng35/cmsauthz/internal/permissions"
	"github.com/charlesng35/cmsauthz/pkg/logger"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// normaliseNames trims, de-duplicates and sorts permission names.
func normaliseNames(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

// diffNames returns the names present in next but not prev, and the reverse.
func diffNames(prev, next []string) (added, removed []string) {
	before := make(map[string]struct{}, len(prev))
	for _, name := range prev {
		before[name] = struct{}{}
	}
	after := make(map[string]struct{}, len(next))
	for _, name := range next {
		after[name] = struct{}{}
		if _, ok := before[name]; !ok {
			added = append(added, name)
		}
	}
	for _, name := range prev {
		if _, ok := after[name]; !ok {
			removed = append(removed, name)
		}
	}
	return added, removed
}

// recordActivity attributes entry to the request actor and hands it to sink.
func recordActivity(sink activity.Sink, ctx context.Context, action, resourceType, resourceID string, details map[string]any) {
	if sink == nil {
		return
	}
	sink.Record(ctx, activity.EntryFromContext(ctx, action, resourceType, resourceID, details))
}

// invalidateUser drops a user's cached permissions. The write has already
// committed, so a failure only leaves the entry stale until its TTL runs out.
func invalidateUser(inv permissions.Invalidator, ctx context.Context, userID string) {
	if inv == nil {
		return
	}
	if err := inv.InvalidateUser(ctx, userID); err != nil {
		logger.WithModule("services").Warn("permission cache invalidation failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func invalidateAll(inv permissions.Invalidator, ctx context.Context) {
	if inv == nil {
		return
	}
	if err := inv.InvalidateAll(ctx); err != nil {
		logger.WithModule("services").Warn("permission cache flush failed", zap.Error(err))
	}
}
