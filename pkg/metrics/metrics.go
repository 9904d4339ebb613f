package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PermissionChecks counts guard evaluations and their outcome (allowed|denied|error|unauthenticated).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmsauthz_permission_checks_total",
			Help: "Total number of permission checks performed by route guards",
		},
		[]string{"permission", "result"},
	)

	// PermissionCacheLookups counts resolved permission set lookups by result (hit|miss|error).
	PermissionCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmsauthz_permission_cache_lookups_total",
			Help: "Permission cache lookups",
		},
		[]string{"result"},
	)

	// PermissionCacheInvalidations counts explicit invalidations by scope (user|all).
	PermissionCacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmsauthz_permission_cache_invalidations_total",
			Help: "Permission cache invalidations",
		},
		[]string{"scope"},
	)

	// PermissionResolveDuration measures how long resolving a user's permissions from the store takes.
	PermissionResolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cmsauthz_permission_resolve_seconds",
			Help:    "Latency of permission resolution against the store",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ActivityRecordFailures counts activity log writes that failed and were dropped.
	ActivityRecordFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cmsauthz_activity_record_failures_total",
			Help: "Activity log entries that could not be persisted",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cmsauthz_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
