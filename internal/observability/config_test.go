package observability

import (
	"testing"

	"github.com/smallbiznis/featureflags/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigMapsServiceSettings(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppName:      "featureflags",
		AppVersion:   " 1.4.0 ",
		Environment:  "production",
		OTLPEndpoint: "collector:4317",
		Observability: config.ObservabilityConfig{
			LogLevel:          "info",
			OtelEnabled:       true,
			OtelProtocol:      "grpc",
			OtelSamplingRatio: 0.5,
			TraceSkipPaths:    []string{"/health"},
		},
	})

	assert.Equal(t, "featureflags", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.4.0", cfg.Version)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, []string{"/health"}, cfg.TraceSkipPaths)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigPrefersDeploymentEnv(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment:   "production",
		Observability: config.ObservabilityConfig{DeploymentEnv: "staging"},
	})

	assert.Equal(t, "featureflags", cfg.ServiceName)
	assert.Equal(t, "staging", cfg.Environment)
}

func TestFeaturesRequireRedis(t *testing.T) {
	base := config.Config{
		FlagCache: config.FlagCacheConfig{Enabled: true},
		RateLimit: config.RateLimitConfig{Enabled: true},
		Metrics:   config.MetricsPushConfig{Enabled: true, Exporter: " Pushgateway "},
	}

	without := LoadConfig(base).Features
	assert.False(t, without.FlagCache)
	assert.False(t, without.RateLimit)
	assert.True(t, without.InventoryPush)
	assert.Equal(t, "pushgateway", without.InventoryExporter)

	base.Redis = config.RedisConfig{Addr: "localhost:6379"}
	with := LoadConfig(base).Features
	assert.True(t, with.FlagCache)
	assert.True(t, with.RateLimit)
}

func TestDebugFollowsLevelOrEnvironment(t *testing.T) {
	assert.True(t, Config{LogLevel: "DEBUG", Environment: "production"}.Debug())
	assert.True(t, Config{LogLevel: "info", Environment: "local"}.Debug())
	assert.False(t, Config{LogLevel: "warn", Environment: "production"}.Debug())
}
