// Package metrics exposes the Prometheus collectors enumerated in §10.4,
// modeled directly on the teacher's internal/metrics collectors.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal        *prometheus.CounterVec
	fetchDurationSecs   *prometheus.HistogramVec
	hostMinIntervalMs   *prometheus.GaugeVec
	cacheHitsTotal      prometheus.Counter
	cacheMissesTotal    prometheus.Counter
	rewritesTotal       *prometheus.CounterVec
	activeRequestsGauge *prometheus.GaugeVec

	once sync.Once
)

// Outcome labels the outcome of one fetch attempt for fetches_total.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeRetryableError Outcome = "retryable_error"
	OutcomeError          Outcome = "error"
	OutcomeInvalidURL     Outcome = "invalid_url"
)

// Init registers every collector. Safe to call multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "media_inliner_fetches_total",
				Help: "Total number of media fetch attempts, labeled by host and outcome.",
			},
			[]string{"host", "outcome"},
		)

		fetchDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "media_inliner_fetch_duration_seconds",
				Help:    "Histogram of media fetch durations, labeled by host.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		)

		hostMinIntervalMs = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "media_inliner_host_min_interval_ms",
				Help: "Current adaptive minimum request interval per host, in milliseconds.",
			},
			[]string{"host"},
		)

		cacheHitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "media_inliner_cache_hits_total",
				Help: "Total number of URL cache hits.",
			},
		)

		cacheMissesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "media_inliner_cache_misses_total",
				Help: "Total number of URL cache misses.",
			},
		)

		rewritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "media_inliner_rewrites_total",
				Help: "Total number of rewritten references, labeled by resource kind.",
			},
			[]string{"resource_kind"},
		)

		activeRequestsGauge = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "media_inliner_active_requests",
				Help: "Number of in-flight fetch requests per host.",
			},
			[]string{"host"},
		)
	})
}

// Handler exposes the registered collectors over HTTP.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one fetch attempt's outcome and duration.
func ObserveFetch(host string, outcome Outcome, duration time.Duration) {
	fetchesTotal.WithLabelValues(host, string(outcome)).Inc()
	fetchDurationSecs.WithLabelValues(host).Observe(duration.Seconds())
}

// SetHostMinInterval samples HostStats.MinRequestInterval for a host.
func SetHostMinInterval(host string, interval time.Duration) {
	hostMinIntervalMs.WithLabelValues(host).Set(float64(interval.Milliseconds()))
}

// IncCacheHit increments the cache hit counter.
func IncCacheHit() {
	cacheHitsTotal.Inc()
}

// IncCacheMiss increments the cache miss counter.
func IncCacheMiss() {
	cacheMissesTotal.Inc()
}

// IncRewrites adds n rewritten references for resourceKind.
func IncRewrites(resourceKind string, n int) {
	if n <= 0 {
		return
	}
	rewritesTotal.WithLabelValues(resourceKind).Add(float64(n))
}

// SetActiveRequests samples ActiveCount for a host.
func SetActiveRequests(host string, active int) {
	activeRequestsGauge.WithLabelValues(host).Set(float64(active))
}
