package refine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the refinement pipeline.
// A nil *Metrics is valid and records nothing, which keeps tests free
// of global registry collisions.
type Metrics struct {
	cacheLookups  *prometheus.CounterVec
	quotaChecks   *prometheus.CounterVec
	failOpens     *prometheus.CounterVec
	aiCalls       *prometheus.CounterVec
	aiCallLatency prometheus.Histogram
}

// NewMetrics creates a Metrics instance registered on the default
// Prometheus registry. Call at most once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		cacheLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refinery_cache_lookups_total",
				Help: "Total refinement cache lookups",
			},
			[]string{"result"},
		),

		quotaChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refinery_quota_checks_total",
				Help: "Total quota admission decisions",
			},
			[]string{"result"},
		),

		failOpens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refinery_fail_open_total",
				Help: "Total store failures resolved by failing open",
			},
			[]string{"operation"},
		),

		aiCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refinery_ai_calls_total",
				Help: "Total AI generation calls",
			},
			[]string{"result"},
		),

		aiCallLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "refinery_ai_call_duration_seconds",
				Help:    "Duration of AI generation calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
			},
		),
	}
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordQuotaCheck records an admission decision.
func (m *Metrics) RecordQuotaCheck(allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.quotaChecks.WithLabelValues(result).Inc()
}

// RecordFailOpen records a store failure that was resolved by failing
// open for the given operation ("consume", "peek").
func (m *Metrics) RecordFailOpen(operation string) {
	if m == nil {
		return
	}
	m.failOpens.WithLabelValues(operation).Inc()
}

// RecordAICall records one AI generation call and its duration.
func (m *Metrics) RecordAICall(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.aiCalls.WithLabelValues(result).Inc()
	m.aiCallLatency.Observe(elapsed.Seconds())
}
