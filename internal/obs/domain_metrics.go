package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteRequestsTotal counts quote requests by outcome
	// (standard, freight, install_only, invalid, error).
	QuoteRequestsTotal *prometheus.CounterVec
	// QuoteCacheTotal counts quote cache lookups by result (hit, miss, expired, error).
	QuoteCacheTotal *prometheus.CounterVec
	// QuoteStoreWriteTotal counts write-through attempts by result.
	QuoteStoreWriteTotal *prometheus.CounterVec
	// QuoteComputeDuration records end-to-end computation latency on cache misses.
	QuoteComputeDuration prometheus.Histogram
	// CatalogLookupDuration records batched catalog lookups in milliseconds.
	CatalogLookupDuration *prometheus.HistogramVec
	// RateShopperTotal counts rate shopper calls by result.
	RateShopperTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers quote pipeline collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_requests_total",
			Help:      "Count of shipping quote requests by outcome.",
		}, []string{"outcome"})
		QuoteCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_cache_total",
			Help:      "Count of quote cache lookups by result.",
		}, []string{"result"})
		QuoteStoreWriteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_store_write_total",
			Help:      "Count of quote cache write-through attempts by result.",
		}, []string{"result"})
		QuoteComputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_compute_duration_ms",
			Help:      "Latency of quote computation on cache miss in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		})
		CatalogLookupDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_catalog_lookup_duration_ms",
			Help:      "Latency of batched product catalog lookups in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"result"})
		RateShopperTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_rate_shopper_total",
			Help:      "Count of rate shopper calls by result.",
		}, []string{"result"})

		QuoteRequestsTotal = registerOrReuse(reg, QuoteRequestsTotal)
		QuoteCacheTotal = registerOrReuse(reg, QuoteCacheTotal)
		QuoteStoreWriteTotal = registerOrReuse(reg, QuoteStoreWriteTotal)
		QuoteComputeDuration = registerOrReuse(reg, QuoteComputeDuration)
		CatalogLookupDuration = registerOrReuse(reg, CatalogLookupDuration)
		RateShopperTotal = registerOrReuse(reg, RateShopperTotal)
	})
}

// registerOrReuse registers c, returning the already registered collector of
// the same type when an equivalent one exists.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
			return c
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
	return c
}

// IncCounter is a nil-safe helper for optional counter vectors.
func IncCounter(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}
