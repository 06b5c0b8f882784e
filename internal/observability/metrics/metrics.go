package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	evaluations        metric.Int64Counter
	evaluationDuration metric.Float64Histogram
	apiKeyValidations  metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "featureflags"
	}
	meter := provider.Meter(name)

	evaluations, err := meter.Int64Counter("feature.flag.evaluations",
		metric.WithDescription("Feature flag evaluations by outcome"))
	if err != nil {
		return nil, err
	}
	evaluationDuration, err := meter.Float64Histogram("feature.flag.evaluation.duration",
		metric.WithDescription("Time spent evaluating a feature flag"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	apiKeyValidations, err := meter.Int64Counter("feature.api_key.validations",
		metric.WithDescription("API key validation attempts by outcome"))
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("feature.rate_limit.denied",
		metric.WithDescription("Requests rejected by the per key rate limiter"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		evaluations:        evaluations,
		evaluationDuration: evaluationDuration,
		apiKeyValidations:  apiKeyValidations,
		rateLimitDenied:    rateLimitDenied,
	}, nil
}

// RecordEvaluation counts one evaluation and records how long it took.
func (m *Metrics) RecordEvaluation(ctx context.Context, featureKey, environment string, enabled bool, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "off"
	if enabled {
		result = "on"
	}
	attrs := FilterAttributes(
		attribute.String("feature_key", strings.TrimSpace(featureKey)),
		attribute.String("environment", strings.TrimSpace(environment)),
		attribute.String("result", result),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.evaluations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.evaluationDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond), metric.WithAttributes(attrs[:2]...))
}

// RecordAPIKeyValidation counts API key checks. outcome is one of
// valid, invalid or missing.
func (m *Metrics) RecordAPIKeyValidation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.apiKeyValidations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"feature_key": {},
	"environment": {},
	"result":      {},
	"reason":      {},
	"outcome":     {},
	"endpoint":    {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
