// Package metrics exposes Prometheus instruments for the reconciliation service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconciler_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint", "status"},
	)
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_decisions_total",
			Help: "Match history entries appended, by action.",
		},
		[]string{"action"},
	)
	suggestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconciler_suggest_duration_seconds",
			Help:    "Time spent computing suggestions for one listing.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)
	ingestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_ingested_listings_total",
			Help: "Scraped listings processed by ingestion, by outcome.",
		},
		[]string{"outcome"},
	)
	duplicateGroups = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconciler_duplicate_groups",
			Help: "Duplicate groups found by the last radar scan.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(decisionsTotal)
	prometheus.MustRegister(suggestDuration)
	prometheus.MustRegister(ingestedTotal)
	prometheus.MustRegister(duplicateGroups)
}

// RecordRequest records one HTTP request.
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordDecision counts an appended history entry.
func RecordDecision(action string) {
	decisionsTotal.WithLabelValues(action).Inc()
}

// ObserveSuggest records the latency of one suggestion computation.
func ObserveSuggest(d time.Duration) {
	suggestDuration.Observe(d.Seconds())
}

// RecordIngested counts ingested listings by outcome.
func RecordIngested(outcome string, n int) {
	if n > 0 {
		ingestedTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// SetDuplicateGroups publishes the size of the last radar scan.
func SetDuplicateGroups(n int) {
	duplicateGroups.Set(float64(n))
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
