package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks reads served from a fresh on-disk entry.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bp_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	// CacheMisses tracks reads with no entry, or only a stale one.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bp_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"reason"}, // "absent", "stale"
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bp_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "put", "invalidate"
	)

	// CacheInvalidations tracks explicit entry removals.
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bp_cache_invalidations_total",
			Help: "Total number of explicit cache invalidations",
		},
	)
)
