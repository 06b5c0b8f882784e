package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/featureflags/internal/observability/logger"
	"github.com/smallbiznis/featureflags/internal/observability/metrics"
	"github.com/smallbiznis/featureflags/internal/observability/tracing"
	"github.com/smallbiznis/featureflags/pkg/telemetry"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		provideTracingConfig,
		tracing.NewProvider,
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
		providePrometheusRegisterer,
		telemetry.NewMetrics,
	),
	fx.Invoke(ensureTracingProvider),
	fx.Invoke(logConfiguration),
)

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}

func logConfiguration(cfg Config, log *zap.Logger) {
	log.Info("observability configured",
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Environment),
		zap.Bool("otel_enabled", cfg.OtelEnabled),
		zap.Strings("trace_skip_paths", cfg.TraceSkipPaths),
		zap.Bool("flag_cache", cfg.Features.FlagCache),
		zap.Bool("rate_limit", cfg.Features.RateLimit),
		zap.Bool("inventory_push", cfg.Features.InventoryPush),
		zap.String("inventory_exporter", cfg.Features.InventoryExporter),
	)
}

// The default registerer is what promhttp.Handler serves on /metrics.
func providePrometheusRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		Debug:               cfg.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: cfg.Debug(),
	}
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		SamplingRatio:    cfg.OtelSamplingRatio,
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OtelEnabled && cfg.MetricsEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
	}
}
