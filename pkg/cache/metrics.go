package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LookupHits counts lookups that found a stored entry. The entry only
	// supplies validators, so the request is still sent. Saved transfers are
	// counted by Revalidated.
	LookupHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_lookup_hits_total",
		Help: "Total number of cache lookups that found an entry to revalidate",
	})

	// LookupMisses counts lookups without a usable entry.
	LookupMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_lookup_misses_total",
		Help: "Total number of cache lookups without a usable entry",
	})

	// Revalidated counts 304 responses answered from a cached entry.
	Revalidated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_revalidated_total",
		Help: "Total number of 304 Not Modified responses served from cache",
	})

	// CacheErrors counts Redis failures by operation.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_errors_total",
		Help: "Total number of cache operation errors",
	}, []string{"operation"}) // "get", "set", "delete"
)
