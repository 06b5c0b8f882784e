// Package telemetry holds the Prometheus collectors scraped from /metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus observability primitives for the HTTP surface.
type Metrics struct {
	apiRequests  *prometheus.CounterVec
	apiDuration  *prometheus.HistogramVec
	authFailures *prometheus.CounterVec
	evaluations  *prometheus.CounterVec
}

// NewMetrics registers and returns Prometheus metrics on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	apiRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "featureflags_http_requests_total",
		Help: "Counts HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "featureflags_http_request_duration_seconds",
		Help:    "HTTP request latency per method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	authFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "featureflags_auth_failures_total",
		Help: "Rejected credentials by scheme and reason.",
	}, []string{"scheme", "reason"})

	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "featureflags_evaluations_total",
		Help: "Flag evaluations by environment, result and reason class.",
	}, []string{"environment", "result", "reason"})

	for _, c := range []prometheus.Collector{apiRequests, apiDuration, authFailures, evaluations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &Metrics{
		apiRequests:  apiRequests,
		apiDuration:  apiDuration,
		authFailures: authFailures,
		evaluations:  evaluations,
	}, nil
}

// ObserveAPIRequest records an API request and latency.
func (m *Metrics) ObserveAPIRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	methodLabel := sanitizeLabel(method)
	routeLabel := sanitizeLabel(route)
	m.apiRequests.WithLabelValues(methodLabel, routeLabel, status).Inc()
	m.apiDuration.WithLabelValues(methodLabel, routeLabel).Observe(duration.Seconds())
}

// ObserveAuthFailure counts a rejected credential.
func (m *Metrics) ObserveAuthFailure(scheme, reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(sanitizeLabel(scheme), sanitizeLabel(reason)).Inc()
}

// ObserveEvaluation counts an evaluation. Bucketed reasons collapse to
// ROLLOUT_BUCKET so the series count stays fixed.
func (m *Metrics) ObserveEvaluation(environment string, enabled bool, reason string) {
	if m == nil {
		return
	}
	result := "off"
	if enabled {
		result = "on"
	}
	m.evaluations.WithLabelValues(sanitizeLabel(environment), result, reasonClass(reason)).Inc()
}

func reasonClass(reason string) string {
	const bucketPrefix = "ROLLOUT_BUCKET_"
	if len(reason) > len(bucketPrefix) && reason[:len(bucketPrefix)] == bucketPrefix {
		return "ROLLOUT_BUCKET"
	}
	return sanitizeLabel(reason)
}

func sanitizeLabel(val string) string {
	if val == "" {
		return "unknown"
	}
	return val
}
