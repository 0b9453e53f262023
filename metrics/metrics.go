/*
metrics.go - Prometheus instrumentation

PURPOSE:
  Central registry of the application's Prometheus metrics. Package
  level collectors keep wiring trivial: callers record observations
  through the helper functions and never touch collector types.

CARDINALITY:
  HTTP metrics are labelled with the chi route pattern, never the raw
  URL, so farm and record IDs cannot blow up the label space.
*/
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "farmengine_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "farmengine_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "farmengine_transitions_total",
		Help: "Count of record state transitions by kind, target state and result",
	}, []string{"kind", "target", "result"})

	authzDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "farmengine_authz_denied_total",
		Help: "Count of denied authorization checks by action",
	}, []string{"action"})

	versionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "farmengine_version_conflicts_total",
		Help: "Count of optimistic lock conflicts that triggered a retry",
	})

	alertsRaisedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "farmengine_alerts_raised_total",
		Help: "Count of efficiency alerts raised by severity",
	}, []string{"severity"})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, path, code).Inc()
	httpRequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

// ObserveTransition records a state transition attempt.
func ObserveTransition(kind, target, result string) {
	transitionsTotal.WithLabelValues(kind, target, result).Inc()
}

// ObserveAuthzDenied increments the denial counter for an action.
func ObserveAuthzDenied(action string) {
	authzDeniedTotal.WithLabelValues(action).Inc()
}

// ObserveVersionConflict records an optimistic lock conflict.
func ObserveVersionConflict() {
	versionConflictsTotal.Inc()
}

// ObserveAlert records a raised alert by severity.
func ObserveAlert(severity string) {
	alertsRaisedTotal.WithLabelValues(severity).Inc()
}
