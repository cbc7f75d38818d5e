package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	CacheStaleServed   prometheus.Counter
	CacheInvalidations prometheus.Counter

	ProviderRequests *prometheus.CounterVec
	SearchResults    *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
		CacheStaleServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_stale_served_total",
			Help:      "Responses served from a stale copy after an upstream failure",
		}),
		CacheInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidated_keys_total",
			Help:      "Cache keys deleted by point mutations",
		}),
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "External place provider calls by outcome",
			},
			[]string{"provider", "endpoint", "outcome"},
		),
		SearchResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results",
				Help:      "Number of merged results per search",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
			[]string{"source"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.CacheHits,
		c.CacheMisses,
		c.CacheStaleServed,
		c.CacheInvalidations,
		c.ProviderRequests,
		c.SearchResults,
	)
	return c
}

// Handler exposes the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) CacheHit() {
	if c != nil {
		c.CacheHits.Inc()
	}
}

func (c *Collector) CacheMiss() {
	if c != nil {
		c.CacheMisses.Inc()
	}
}

func (c *Collector) StaleServed() {
	if c != nil {
		c.CacheStaleServed.Inc()
	}
}

func (c *Collector) Invalidated(n int) {
	if c != nil {
		c.CacheInvalidations.Add(float64(n))
	}
}

func (c *Collector) ProviderCall(provider, endpoint, outcome string) {
	if c != nil {
		c.ProviderRequests.WithLabelValues(provider, endpoint, outcome).Inc()
	}
}

func (c *Collector) SearchMerged(local, external int) {
	if c == nil {
		return
	}
	c.SearchResults.WithLabelValues("local").Observe(float64(local))
	c.SearchResults.WithLabelValues("external").Observe(float64(external))
}
