package metricspush

import (
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
)

func buildRemoteWriteSeries(families []*dto.MetricFamily, timestampMs int64) []prompb.TimeSeries {
	series := make([]prompb.TimeSeries, 0, len(families))
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			value, ok := metricValue(family.GetType(), metric)
			if !ok {
				continue
			}
			labels := make([]prompb.Label, 0, len(metric.GetLabel())+1)
			labels = append(labels, prompb.Label{Name: "__name__", Value: family.GetName()})
			for _, label := range metric.GetLabel() {
				labels = append(labels, prompb.Label{Name: label.GetName(), Value: label.GetValue()})
			}
			sort.Slice(labels, func(i, j int) bool {
				return labels[i].Name < labels[j].Name
			})

			series = append(series, prompb.TimeSeries{
				Labels:  labels,
				Samples: []prompb.Sample{{Value: value, Timestamp: timestampMs}},
			})
		}
	}
	return series
}

func buildOTLPMetrics(families []*dto.MetricFamily, nowNano uint64) []*metricspb.Metric {
	out := make([]*metricspb.Metric, 0, len(families))
	for _, family := range families {
		points := make([]*metricspb.NumberDataPoint, 0, len(family.GetMetric()))
		for _, metric := range family.GetMetric() {
			value, ok := metricValue(family.GetType(), metric)
			if !ok {
				continue
			}
			points = append(points, &metricspb.NumberDataPoint{
				Attributes:   otlpAttributes(metric.GetLabel()),
				TimeUnixNano: nowNano,
				Value:        &metricspb.NumberDataPoint_AsDouble{AsDouble: value},
			})
		}
		if len(points) == 0 {
			continue
		}

		m := &metricspb.Metric{Name: family.GetName(), Description: family.GetHelp()}
		if family.GetType() == dto.MetricType_COUNTER {
			m.Data = &metricspb.Metric_Sum{Sum: &metricspb.Sum{
				IsMonotonic:            true,
				AggregationTemporality: metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE,
				DataPoints:             points,
			}}
		} else {
			m.Data = &metricspb.Metric_Gauge{Gauge: &metricspb.Gauge{DataPoints: points}}
		}
		out = append(out, m)
	}
	return out
}

func otlpAttributes(labels []*dto.LabelPair) []*commonpb.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]*commonpb.KeyValue, 0, len(labels))
	for _, label := range labels {
		if label == nil {
			continue
		}
		attrs = append(attrs, stringAttribute(label.GetName(), label.GetValue()))
	}
	return attrs
}

func otlpResource(serviceName, serviceVersion, environment string) *resourcepb.Resource {
	resource := &resourcepb.Resource{}
	for key, value := range map[string]string{
		"service.name":           serviceName,
		"service.version":        serviceVersion,
		"deployment.environment": environment,
	} {
		if value != "" {
			resource.Attributes = append(resource.Attributes, stringAttribute(key, value))
		}
	}
	sort.Slice(resource.Attributes, func(i, j int) bool {
		return resource.Attributes[i].Key < resource.Attributes[j].Key
	})
	return resource
}

func stringAttribute(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}

// metricValue only understands counters and gauges; the inventory has
// nothing else.
func metricValue(metricType dto.MetricType, metric *dto.Metric) (float64, bool) {
	if metric == nil {
		return 0, false
	}
	switch metricType {
	case dto.MetricType_COUNTER:
		if metric.GetCounter() == nil {
			return 0, false
		}
		return metric.GetCounter().GetValue(), true
	case dto.MetricType_GAUGE:
		if metric.GetGauge() == nil {
			return 0, false
		}
		return metric.GetGauge().GetValue(), true
	default:
		return 0, false
	}
}
