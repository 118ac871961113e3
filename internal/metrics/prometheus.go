package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// External lookup outcomes.
const (
	LookupDisabled  = "disabled"
	LookupSimulated = "simulated"
	LookupLive      = "live"
	LookupFallback  = "fallback"
)

var (
	// RequestCount counts HTTP requests
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration measures HTTP request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	// ScoringCount counts originality scoring runs by outcome
	ScoringCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "originality_scoring_total",
			Help: "Total number of originality scoring runs",
		},
		[]string{"status"},
	)

	// ScoringDuration measures a full scoring run
	ScoringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "originality_scoring_duration_seconds",
			Help:    "Originality scoring duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	// ExternalLookups counts published-material lookups by provider outcome
	ExternalLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_similarity_lookups_total",
			Help: "Published-material similarity lookups by outcome",
		},
		[]string{"outcome"},
	)

	registerOnce sync.Once
)

// InitPrometheus registers the collectors with the default registry. Safe to call more than once.
func InitPrometheus() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCount)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(ScoringCount)
		prometheus.MustRegister(ScoringDuration)
		prometheus.MustRegister(ExternalLookups)
	})
}

// MetricsHandler returns Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
