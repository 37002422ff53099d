// Package metrics holds a handful of internal Prometheus counters the core
// updates. No HTTP handler is exposed here — the HTTP surface (and scraping
// it) is an external-collaborator concern per spec.md §1; a collaborator
// that wants /metrics supplies its own registry (New takes any
// prometheus.Registerer) and serves that registry from its own mux.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles the counters/histograms GeoDash registers.
type Collectors struct {
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	SearchLatency   prometheus.Histogram
	RadiusLatency   prometheus.Histogram
	FuzzyCandidates prometheus.Histogram
}

// New builds and registers a fresh set of collectors against reg. Passing a
// non-default registry keeps repeated test-process New() calls from
// panicking on duplicate registration.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geodash_search_cache_hits_total",
			Help: "Number of SearchEngine cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geodash_search_cache_misses_total",
			Help: "Number of SearchEngine cache misses.",
		}),
		SearchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geodash_search_duration_seconds",
			Help:    "SearchEngine.Search latency.",
			Buckets: prometheus.DefBuckets,
		}),
		RadiusLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geodash_radius_search_duration_seconds",
			Help:    "GeoEngine.FindByCoordinates latency.",
			Buckets: prometheus.DefBuckets,
		}),
		FuzzyCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geodash_fuzzy_candidates",
			Help:    "Number of candidates scored by the fuzzy tier per query.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}
	reg.MustRegister(c.CacheHits, c.CacheMisses, c.SearchLatency, c.RadiusLatency, c.FuzzyCandidates)
	return c
}

// NewRegistry is a convenience constructor for a private registry, so
// multiple Facade instances in the same test process don't collide.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
