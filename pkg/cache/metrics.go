package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by generation
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecache_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"generation"},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitecache_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitecache_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "put", "delete", "list"
	)

	// GenerationsDeleted tracks generations removed during activation
	GenerationsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitecache_generations_deleted_total",
			Help: "Total number of stale generations deleted at activation",
		},
	)
)
