package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveEvaluationCollapsesBuckets(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.ObserveEvaluation("PROD", true, "ROLLOUT_BUCKET_12")
	m.ObserveEvaluation("PROD", false, "ROLLOUT_BUCKET_87")
	m.ObserveEvaluation("PROD", true, "ROLLOUT_BUCKET_3")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.evaluations.WithLabelValues("PROD", "on", "ROLLOUT_BUCKET")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues("PROD", "off", "ROLLOUT_BUCKET")))
}

func TestObserveAPIRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.ObserveAPIRequest("GET", "/api/admin/flags", "200", 5*time.Millisecond)
	m.ObserveAPIRequest("GET", "", "404", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("GET", "/api/admin/flags", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("GET", "unknown", "404")))
}

func TestNewMetricsRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}
