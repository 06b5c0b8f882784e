package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/featureflags/internal/config"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisCache(t *testing.T) (*miniredis.Miniredis, *RedisFlagCache) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, NewRedisFlagCache(client, time.Minute, zap.NewNop())
}

func TestNewFlagCacheFallsBackToNoop(t *testing.T) {
	c := NewFlagCache(config.Config{FlagCache: config.FlagCacheConfig{Enabled: true, TTL: time.Second}}, nil, zap.NewNop())
	_, ok := c.(NoopFlagCache)
	assert.True(t, ok, "cache without redis must be a noop")

	c.Set(context.Background(), "checkout", flagdomain.EnvironmentProd, "", FlagSnapshot{ID: 1, Enabled: true})
	_, _, hit := c.Get(context.Background(), "checkout", flagdomain.EnvironmentProd)
	assert.False(t, hit)
}

func TestCacheKeysIncludeEnvironment(t *testing.T) {
	data, gen := cacheKeys("checkout", flagdomain.EnvironmentProd)
	assert.Equal(t, "featureflags:flag:{PROD:checkout}", data)
	assert.Equal(t, "featureflags:flag:{PROD:checkout}:gen", gen)

	devData, _ := cacheKeys("checkout", flagdomain.EnvironmentDev)
	assert.NotEqual(t, devData, data)
}

func TestRedisFlagCacheRoundTrip(t *testing.T) {
	server, c := newRedisCache(t)
	ctx := context.Background()

	_, gen, hit := c.Get(ctx, "checkout", flagdomain.EnvironmentProd)
	require.False(t, hit)

	c.Set(ctx, "checkout", flagdomain.EnvironmentProd, gen, FlagSnapshot{ID: 7, Enabled: true, RolloutPercent: 40})
	snapshot, _, hit := c.Get(ctx, "checkout", flagdomain.EnvironmentProd)
	require.True(t, hit)
	assert.Equal(t, FlagSnapshot{ID: 7, Enabled: true, RolloutPercent: 40}, *snapshot)

	data, _ := cacheKeys("checkout", flagdomain.EnvironmentProd)
	assert.Equal(t, time.Minute, server.TTL(data))

	server.FastForward(2 * time.Minute)
	_, _, hit = c.Get(ctx, "checkout", flagdomain.EnvironmentProd)
	assert.False(t, hit)
}

func TestRedisFlagCacheDropsWriteFromBeforeInvalidation(t *testing.T) {
	_, c := newRedisCache(t)
	ctx := context.Background()

	_, stale, hit := c.Get(ctx, "checkout", flagdomain.EnvironmentProd)
	require.False(t, hit)

	c.Invalidate(ctx, "checkout", flagdomain.EnvironmentProd)
	c.Set(ctx, "checkout", flagdomain.EnvironmentProd, stale, FlagSnapshot{ID: 7, Enabled: true, RolloutPercent: 100})

	_, current, hit := c.Get(ctx, "checkout", flagdomain.EnvironmentProd)
	assert.False(t, hit)
	assert.NotEqual(t, stale, current)

	c.Set(ctx, "checkout", flagdomain.EnvironmentProd, current, FlagSnapshot{ID: 7, Enabled: false})
	snapshot, _, hit := c.Get(ctx, "checkout", flagdomain.EnvironmentProd)
	require.True(t, hit)
	assert.False(t, snapshot.Enabled)
}

func TestRedisFlagCacheInvalidateRemovesEntry(t *testing.T) {
	_, c := newRedisCache(t)
	ctx := context.Background()

	_, gen, _ := c.Get(ctx, "checkout", flagdomain.EnvironmentDev)
	c.Set(ctx, "checkout", flagdomain.EnvironmentDev, gen, FlagSnapshot{ID: 1, Enabled: true})
	c.Invalidate(ctx, "checkout", flagdomain.EnvironmentDev)

	_, _, hit := c.Get(ctx, "checkout", flagdomain.EnvironmentDev)
	assert.False(t, hit)
}

func TestRedisFlagCacheDegradesToMissWhenRedisIsDown(t *testing.T) {
	server, c := newRedisCache(t)
	server.Close()

	_, _, hit := c.Get(context.Background(), "checkout", flagdomain.EnvironmentProd)
	assert.False(t, hit)
	c.Set(context.Background(), "checkout", flagdomain.EnvironmentProd, "", FlagSnapshot{ID: 1})
	c.Invalidate(context.Background(), "checkout", flagdomain.EnvironmentProd)
}
