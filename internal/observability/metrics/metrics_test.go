package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("feature_key", "checkout"),
		attribute.String("user_id", "alice"),
		attribute.String("reason", "TARGETED_USER"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "user_id" {
			t.Fatalf("user_id must never become a metric label")
		}
	}
}

func TestRecordEvaluationCountsByOutcome(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "featureflags-test"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordEvaluation(ctx, "checkout", "PROD", true, "TARGETED_USER", 2*time.Millisecond)
	m.RecordEvaluation(ctx, "checkout", "PROD", true, "TARGETED_USER", time.Millisecond)
	m.RecordEvaluation(ctx, "checkout", "PROD", false, "ROLLOUT_0", time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := map[string]int64{}
	var histogramSeen bool
	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				if md.Name != "feature.flag.evaluations" {
					continue
				}
				for _, dp := range data.DataPoints {
					reason, _ := dp.Attributes.Value("reason")
					result, _ := dp.Attributes.Value("result")
					counts[result.AsString()+"/"+reason.AsString()] = dp.Value
				}
			case metricdata.Histogram[float64]:
				if md.Name == "feature.flag.evaluation.duration" {
					histogramSeen = true
					require.Len(t, data.DataPoints, 1)
					require.EqualValues(t, 3, data.DataPoints[0].Count)
				}
			}
		}
	}

	require.Equal(t, int64(2), counts["on/TARGETED_USER"])
	require.Equal(t, int64(1), counts["off/ROLLOUT_0"])
	require.True(t, histogramSeen)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordEvaluation(context.Background(), "k", "DEV", true, "ROLLOUT_100", 0)
	m.RecordAPIKeyValidation(context.Background(), "valid")
	m.RecordRateLimitDenied(context.Background(), "evaluate", "exhausted")
}
