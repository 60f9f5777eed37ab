package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by the enrichment counters.
const (
	OutcomeSuccess     = "success"
	OutcomeCached      = "cached"
	OutcomeRateLimited = "rate_limited"
	OutcomeMalformed   = "malformed"
	OutcomeError       = "error"
)

var (
	// HTTP request metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goenrich_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goenrich_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Pipeline metrics
	EnrichRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goenrich_enrich_requests_total",
			Help: "Enrichment calls by outcome (success, cached or the failure kind)",
		},
		[]string{"outcome"},
	)

	ExtractionAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goenrich_extraction_attempts_total",
			Help: "Calls to the extraction service by outcome",
		},
		[]string{"outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goenrich_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"stage"},
	)

	FallbackServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goenrich_fallback_served_total",
			Help: "Synthetic results served to callers, by mode (demo or fallback)",
		},
		[]string{"mode"},
	)

	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goenrich_cache_operations_total",
			Help: "Result cache operations by backend, operation and status",
		},
		[]string{"backend", "operation", "status"},
	)

	// Application health metrics
	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "goenrich_application_info",
			Help: "Application information",
		},
		[]string{"version", "provider", "cache_backend"},
	)
)

// Init publishes static build and configuration labels.
func Init(version, provider, cacheBackend string) {
	ApplicationInfo.WithLabelValues(version, provider, cacheBackend).Set(1)
}
