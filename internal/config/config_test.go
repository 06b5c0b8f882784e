package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_TYPE", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("FLAG_CACHE_TTL_SECONDS", "")
	t.Setenv("RATE_LIMIT_ENABLED", "")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.FlagCache.TTL)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadObservabilitySettings(t *testing.T) {
	t.Setenv("OTLP_ENDPOINT", "legacy:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP/protobuf")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	t.Setenv("OTEL_TRACE_SKIP_PATHS", "/health, ,/ready")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Load()

	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "http/protobuf", cfg.Observability.OtelProtocol)
	assert.Equal(t, 0.25, cfg.Observability.OtelSamplingRatio)
	assert.Equal(t, []string{"/health", "/ready"}, cfg.Observability.TraceSkipPaths)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestNodeIDPrefersEnvironment(t *testing.T) {
	t.Setenv("SNOWFLAKE_NODE_ID", "")
	assert.EqualValues(t, 2, Load().NodeID(2))

	t.Setenv("SNOWFLAKE_NODE_ID", "17")
	assert.EqualValues(t, 17, Load().NodeID(2))

	t.Setenv("SNOWFLAKE_NODE_ID", "0")
	assert.EqualValues(t, 0, Load().NodeID(2))
}

func TestLoadTraceSkipPathsDefault(t *testing.T) {
	t.Setenv("OTEL_TRACE_SKIP_PATHS", "")

	cfg := Load()

	assert.Equal(t, []string{"/health", "/metrics"}, cfg.Observability.TraceSkipPaths)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_TYPE", "SQLite")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RATE_LIMIT_ENABLED", "yes")
	t.Setenv("RATE_LIMIT_EVALUATE_RATE", "7")
	t.Setenv("METRICS_PUSH_INTERVAL_SECONDS", "15")
	t.Setenv("SEED_DEMO_FLAGS", "on")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBType)
	assert.True(t, cfg.Redis.Enabled())
	assert.True(t, cfg.RateLimit.Enabled)
	assert.EqualValues(t, 7, cfg.RateLimit.EvaluateRate)
	assert.Equal(t, 15*time.Second, cfg.Metrics.Interval)
	assert.True(t, cfg.SeedDemoFlags)
}

func TestAdminUsersHolderReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.yaml")
	body := `admin:
  users:
    - username: ops
      passwordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"
    - username: former
      passwordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"
      disabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	holder, err := NewAdminUsersHolder(Config{Admin: AdminConfig{UsersFile: path}}, zap.NewNop())
	require.NoError(t, err)

	assert.Len(t, holder.Get(), 2)
	_, ok := holder.Lookup("ops")
	assert.True(t, ok)
	_, ok = holder.Lookup("former")
	assert.False(t, ok)
}

func TestAdminUsersHolderRejectsPlaintext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.yaml")
	body := `admin:
  users:
    - username: ops
      passwordHash: hunter2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err := NewAdminUsersHolder(Config{Admin: AdminConfig{UsersFile: path}}, zap.NewNop())
	assert.Error(t, err)
}

func TestAdminUsersHolderWithoutFile(t *testing.T) {
	holder, err := NewAdminUsersHolder(Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, holder.Get())
}

func TestAdminUsersReloadKeepsPreviousSetOnInvalidEdit(t *testing.T) {
	const hash = "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"
	path := filepath.Join(t.TempDir(), "admins.yaml")
	require.NoError(t, os.WriteFile(path, []byte("admin:\n  users:\n    - username: ops\n      passwordHash: \""+hash+"\"\n"), 0o600))

	core, logs := observer.New(zapcore.InfoLevel)
	holder := &AdminUsersHolder{log: zap.New(core)}
	holder.current.Store([]AdminUser{})

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	holder.reload(v, path)

	require.NoError(t, os.WriteFile(path, []byte("admin:\n  users:\n    - username: ops\n      passwordHash: hunter2\n"), 0o600))
	require.NoError(t, v.ReadInConfig())
	holder.reload(v, path)

	_, ok := holder.Lookup("ops")
	assert.True(t, ok)
	require.Equal(t, 1, logs.FilterMessage("invalid admin users file ignored").Len())

	body := "admin:\n  users:\n    - username: ops\n      passwordHash: \"" + hash + "\"\n" +
		"    - username: oncall\n      passwordHash: \"" + hash + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	require.NoError(t, v.ReadInConfig())
	holder.reload(v, path)

	_, ok = holder.Lookup("oncall")
	assert.True(t, ok)
	reloaded := logs.FilterMessage("admin users reloaded").All()
	require.NotEmpty(t, reloaded)
	assert.EqualValues(t, 2, reloaded[len(reloaded)-1].ContextMap()["users"])
}
