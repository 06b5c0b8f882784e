package observability

import (
	"strings"

	"github.com/smallbiznis/featureflags/internal/config"
)

// Config is the observability view of the service configuration.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
	MetricsEnabled       bool

	// TraceSkipPaths are request paths the HTTP tracing middleware ignores.
	TraceSkipPaths []string

	Features Features
}

// Features lists the optional subsystems enabled for this process. Cache and
// rate limit only count as enabled when redis is configured.
type Features struct {
	FlagCache         bool
	RateLimit         bool
	InventoryPush     bool
	InventoryExporter string
}

func LoadConfig(cfg config.Config) Config {
	obs := cfg.Observability

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "featureflags"
	}
	environment := strings.TrimSpace(obs.DeploymentEnv)
	if environment == "" {
		environment = strings.TrimSpace(cfg.Environment)
	}

	redis := cfg.Redis.Enabled()
	features := Features{
		FlagCache:     cfg.FlagCache.Enabled && redis,
		RateLimit:     cfg.RateLimit.Enabled && redis,
		InventoryPush: cfg.Metrics.Enabled,
	}
	if features.InventoryPush {
		features.InventoryExporter = strings.ToLower(strings.TrimSpace(cfg.Metrics.Exporter))
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          environment,
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             obs.LogLevel,
		LogFormat:            obs.LogFormat,
		OtelEnabled:          obs.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: obs.OtelProtocol,
		OtelSamplingRatio:    obs.OtelSamplingRatio,
		MetricsEnabled:       obs.MetricsEnabled,
		TraceSkipPaths:       obs.TraceSkipPaths,
		Features:             features,
	}
}

func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
