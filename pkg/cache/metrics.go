package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hits tracks cache hits by provider.
	Hits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"provider"},
	)

	// Misses tracks cache misses by provider.
	Misses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"provider"},
	)

	// StoredBytes tracks bytes written to the cache by provider.
	StoredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_cache_stored_bytes_total",
			Help: "Total bytes written to the response cache",
		},
		[]string{"provider"},
	)

	// Errors tracks cache operation errors.
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
