package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/featureflags/internal/config"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
	"go.uber.org/zap"
)

const flagKeyPrefix = "featureflags:flag:"

// setIfGenerationScript writes the snapshot only while the generation counter
// still holds the value the reader saw before going to the store. A missing
// counter reads as "".
const setIfGenerationScript = `
local current = redis.call("GET", KEYS[2])
if not current then
  current = ""
end
if current ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`

// FlagSnapshot is the part of a flag the evaluation path needs. Targets are
// never cached; they are always read from the store.
type FlagSnapshot struct {
	ID             snowflake.ID `json:"id"`
	Enabled        bool         `json:"enabled"`
	RolloutPercent int          `json:"rolloutPercent"`
}

// Generation identifies the invalidation epoch a cache miss was observed in.
// A Set carrying an older generation than the current one is dropped, so a
// snapshot read before a committed mutation can never be cached after it.
type Generation string

// FlagCache is best-effort: failures degrade to a miss and are logged.
type FlagCache interface {
	Get(ctx context.Context, featureKey string, env flagdomain.Environment) (*FlagSnapshot, Generation, bool)
	Set(ctx context.Context, featureKey string, env flagdomain.Environment, gen Generation, snapshot FlagSnapshot)
	Invalidate(ctx context.Context, featureKey string, env flagdomain.Environment)
}

// NewFlagCache selects the redis cache when enabled and redis is configured.
func NewFlagCache(cfg config.Config, client *redis.Client, log *zap.Logger) FlagCache {
	if !cfg.FlagCache.Enabled || client == nil {
		return NoopFlagCache{}
	}
	return NewRedisFlagCache(client, cfg.FlagCache.TTL, log)
}

// AsInvalidator exposes the cache to the admin service.
func AsInvalidator(c FlagCache) flagdomain.Invalidator {
	return c
}

type NoopFlagCache struct{}

func (NoopFlagCache) Get(context.Context, string, flagdomain.Environment) (*FlagSnapshot, Generation, bool) {
	return nil, "", false
}

func (NoopFlagCache) Set(context.Context, string, flagdomain.Environment, Generation, FlagSnapshot) {}

func (NoopFlagCache) Invalidate(context.Context, string, flagdomain.Environment) {}

type RedisFlagCache struct {
	client *redis.Client
	ttl    time.Duration
	script *redis.Script
	log    *zap.Logger
}

func NewRedisFlagCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisFlagCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisFlagCache{
		client: client,
		ttl:    ttl,
		script: redis.NewScript(setIfGenerationScript),
		log:    log.Named("flag.cache"),
	}
}

func (c *RedisFlagCache) Get(ctx context.Context, featureKey string, env flagdomain.Environment) (*FlagSnapshot, Generation, bool) {
	dataKey, genKey := cacheKeys(featureKey, env)
	values, err := c.client.MGet(ctx, dataKey, genKey).Result()
	if err != nil {
		c.log.Warn("flag cache read failed", zap.String("feature_key", featureKey), zap.Error(err))
		return nil, "", false
	}

	var gen Generation
	if len(values) > 1 {
		if raw, ok := values[1].(string); ok {
			gen = Generation(raw)
		}
	}
	raw, ok := values[0].(string)
	if !ok {
		return nil, gen, false
	}

	var snapshot FlagSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		c.log.Warn("flag cache entry corrupt", zap.String("feature_key", featureKey), zap.Error(err))
		return nil, gen, false
	}
	return &snapshot, gen, true
}

func (c *RedisFlagCache) Set(ctx context.Context, featureKey string, env flagdomain.Environment, gen Generation, snapshot FlagSnapshot) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	dataKey, genKey := cacheKeys(featureKey, env)
	stored, err := c.script.Run(ctx, c.client, []string{dataKey, genKey}, string(gen), raw, c.ttl.Milliseconds()).Int()
	if err != nil {
		c.log.Warn("flag cache write failed", zap.String("feature_key", featureKey), zap.Error(err))
		return
	}
	if stored == 0 {
		c.log.Debug("flag cache write skipped after invalidation", zap.String("feature_key", featureKey))
	}
}

// Invalidate bumps the generation before dropping the entry so in-flight
// readers cannot repopulate it with what they read before the mutation.
func (c *RedisFlagCache) Invalidate(ctx context.Context, featureKey string, env flagdomain.Environment) {
	dataKey, genKey := cacheKeys(featureKey, env)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Del(ctx, dataKey)
		return nil
	})
	if err != nil {
		c.log.Warn("flag cache invalidation failed", zap.String("feature_key", featureKey), zap.Error(err))
	}
}

// cacheKeys share a hash tag so the script and transaction stay on one slot.
func cacheKeys(featureKey string, env flagdomain.Environment) (string, string) {
	base := flagKeyPrefix + "{" + env.String() + ":" + featureKey + "}"
	return base, base + ":gen"
}
