package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackerkit_cache_hits_total",
		Help: "Response cache lookups served from memory",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackerkit_cache_misses_total",
		Help: "Response cache lookups that were absent or expired",
	})

	cacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackerkit_cache_invalidations_total",
		Help: "Response cache entries removed by invalidation",
	})
)
