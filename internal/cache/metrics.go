package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the analysis cache. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry         *prometheus.Registry
	HitsTotal        prometheus.Counter
	MissesTotal      prometheus.Counter
	EvictionsTotal   prometheus.Counter
	ExpirationsTotal prometheus.Counter
	Entries          prometheus.Gauge
	Bytes            prometheus.Gauge
}

// NewMetrics constructs and registers all cache metrics on the given
// registry. When registry is nil a dedicated one is created.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	hits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "a11yscan_cache_hits_total",
			Help: "Total number of analysis cache hits.",
		},
	)
	misses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "a11yscan_cache_misses_total",
			Help: "Total number of analysis cache misses.",
		},
	)
	evictions := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "a11yscan_cache_evictions_total",
			Help: "Total number of entries evicted for capacity.",
		},
	)
	expirations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "a11yscan_cache_expirations_total",
			Help: "Total number of entries removed after TTL expiry.",
		},
	)
	entries := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "a11yscan_cache_entries",
			Help: "Current number of cached analysis results.",
		},
	)
	bytes := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "a11yscan_cache_bytes",
			Help: "Approximate memory held by cached results, as serialized sizes.",
		},
	)

	registry.MustRegister(hits, misses, evictions, expirations, entries, bytes)

	return &Metrics{
		Registry:         registry,
		HitsTotal:        hits,
		MissesTotal:      misses,
		EvictionsTotal:   evictions,
		ExpirationsTotal: expirations,
		Entries:          entries,
		Bytes:            bytes,
	}
}

// IncHit increments the hit counter.
func (m *Metrics) IncHit() {
	if m == nil {
		return
	}
	m.HitsTotal.Inc()
}

// IncMiss increments the miss counter.
func (m *Metrics) IncMiss() {
	if m == nil {
		return
	}
	m.MissesTotal.Inc()
}

// IncEviction increments the capacity eviction counter.
func (m *Metrics) IncEviction() {
	if m == nil {
		return
	}
	m.EvictionsTotal.Inc()
}

// IncExpiration increments the TTL expiry counter.
func (m *Metrics) IncExpiration() {
	if m == nil {
		return
	}
	m.ExpirationsTotal.Inc()
}

// SetEntries updates the entry count gauge.
func (m *Metrics) SetEntries(n int) {
	if m == nil {
		return
	}
	m.Entries.Set(float64(n))
}

// SetBytes updates the approximate memory gauge.
func (m *Metrics) SetBytes(n int64) {
	if m == nil {
		return
	}
	m.Bytes.Set(float64(n))
}
