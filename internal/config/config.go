package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewAdminUsersHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// SnowflakeNodeID is -1 when SNOWFLAKE_NODE_ID is unset.
	SnowflakeNodeID int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBDSN             string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis         RedisConfig
	FlagCache     FlagCacheConfig
	RateLimit     RateLimitConfig
	Admin         AdminConfig
	Metrics       MetricsPushConfig
	Observability ObservabilityConfig

	SeedDemoFlags bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type FlagCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	EvaluateRate  int64
	EvaluateBurst int64
}

// AdminConfig describes the bootstrap admin account and the optional
// hot-reloaded users file.
type AdminConfig struct {
	Username     string
	Password     string
	PasswordHash string
	UsersFile    string
}

type MetricsPushConfig struct {
	Enabled   bool
	Exporter  string
	Endpoint  string
	AuthToken string
	Interval  time.Duration
}

// ObservabilityConfig carries the logging and OpenTelemetry settings. The
// OTLP endpoint itself is Config.OTLPEndpoint.
type ObservabilityConfig struct {
	DeploymentEnv     string
	LogLevel          string
	LogFormat         string
	OtelEnabled       bool
	OtelProtocol      string
	OtelSamplingRatio float64
	MetricsEnabled    bool
	TraceSkipPaths    []string
}

// NodeID returns the configured snowflake node, or def for a binary whose
// replicas are not given one. Replicas of one binary must each set a
// distinct SNOWFLAKE_NODE_ID.
func (c Config) NodeID(def int64) int64 {
	if c.SnowflakeNodeID >= 0 {
		return c.SnowflakeNodeID
	}
	return def
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "featureflags"),
		AppVersion:   getenv("APP_VERSION", "dev"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317"))),

		SnowflakeNodeID: getenvInt64("SNOWFLAKE_NODE_ID", -1),

		DBType:            strings.ToLower(getenv("DB_TYPE", "postgres")),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "featureflags"),
		DBUser:            getenv("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD", ""),
		DBSSLMode:         getenv("DB_SSL_MODE", "disable"),
		DBDSN:             strings.TrimSpace(getenv("DB_DSN", "")),
		DBMaxOpenConn:     int(getenvInt64("DB_MAX_OPEN_CONNS", 25)),
		DBMaxIdleConn:     int(getenvInt64("DB_MAX_IDLE_CONNS", 10)),
		DBConnMaxLifetime: int(getenvInt64("DB_CONN_MAX_LIFETIME_SECONDS", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		FlagCache: FlagCacheConfig{
			Enabled: getenvBool("FLAG_CACHE_ENABLED", false),
			TTL:     time.Duration(getenvInt64("FLAG_CACHE_TTL_SECONDS", 30)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			EvaluateRate:  getenvInt64("RATE_LIMIT_EVALUATE_RATE", 50),
			EvaluateBurst: getenvInt64("RATE_LIMIT_EVALUATE_BURST", 100),
		},
		Admin: AdminConfig{
			Username:     strings.TrimSpace(getenv("ADMIN_USERNAME", "admin")),
			Password:     os.Getenv("ADMIN_PASSWORD"),
			PasswordHash: strings.TrimSpace(getenv("ADMIN_PASSWORD_HASH", "")),
			UsersFile:    strings.TrimSpace(getenv("ADMIN_USERS_FILE", "")),
		},
		Metrics: MetricsPushConfig{
			Enabled:   getenvBool("METRICS_PUSH_ENABLED", false),
			Exporter:  strings.ToLower(getenv("METRICS_PUSH_EXPORTER", "remote_write")),
			Endpoint:  strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("METRICS_PUSH_AUTH_TOKEN", "")),
			Interval:  time.Duration(getenvInt64("METRICS_PUSH_INTERVAL_SECONDS", 60)) * time.Second,
		},
		Observability: ObservabilityConfig{
			DeploymentEnv:     strings.TrimSpace(os.Getenv("DEPLOYMENT_ENV")),
			LogLevel:          strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:         strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:       getenvBool("OTEL_ENABLED", false),
			OtelProtocol:      otlpProtocol(),
			OtelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
			MetricsEnabled:    getenvBool("METRICS_ENABLED", true),
			TraceSkipPaths:    getenvList("OTEL_TRACE_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		SeedDemoFlags: getenvBool("SEED_DEMO_FLAGS", false),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvList splits a comma separated value, dropping blanks. An empty
// variable yields def.
func getenvList(key string, def []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// otlpProtocol prefers the trace specific protocol variable.
func otlpProtocol() string {
	protocol := getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	if traces := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}
	return strings.ToLower(strings.TrimSpace(protocol))
}
