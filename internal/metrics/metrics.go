package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the storefront client collectors.
	Registry = prometheus.NewRegistry()

	clientRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total number of backend requests sent, by backend and status.",
		},
		[]string{"backend", "status"},
	)

	clientDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Duration of backend round trips.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"backend"},
	)

	// AuthRefreshes counts 401-triggered refreshes by backend and outcome.
	AuthRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "auth",
			Name:      "refresh_total",
			Help:      "Token refresh attempts triggered by a 401, by outcome.",
		},
		[]string{"backend", "outcome"},
	)

	// FacetSubqueries counts facet value lookups by family and outcome.
	FacetSubqueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "facets",
			Name:      "subqueries_total",
			Help:      "Facet value-phase sub-queries, by outcome.",
		},
		[]string{"family", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		clientRequests,
		clientDuration,
		AuthRefreshes,
		FacetSubqueries,
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordRequest records one backend round trip. status 0 means no response.
func RecordRequest(backend string, status int, duration time.Duration) {
	if backend == "" {
		backend = "unknown"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	clientRequests.WithLabelValues(backend, label).Inc()
	clientDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordRefresh records a 401-triggered refresh attempt.
func RecordRefresh(backend string, success bool) {
	AuthRefreshes.WithLabelValues(backend, Outcome(success)).Inc()
}

// RecordSubquery records a facet value-phase sub-query.
func RecordSubquery(family string, success bool) {
	FacetSubqueries.WithLabelValues(family, Outcome(success)).Inc()
}

// Outcome is the outcome label value for success.
func Outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
