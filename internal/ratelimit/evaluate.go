package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/featureflags/internal/config"
	"go.uber.org/zap"
)

const keyEvaluateAPIKey = "featureflags:ratelimit:evaluate:%s"

// EvaluateLimiter throttles evaluation calls per API key. A nil limiter
// allows everything.
type EvaluateLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewEvaluateLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) (*EvaluateLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("rate limiting requires REDIS_ADDR")
	}
	if limitCfg.EvaluateRate <= 0 || limitCfg.EvaluateBurst <= 0 {
		return nil, ErrInvalidLimits
	}

	log.Named("ratelimit").Info("evaluate rate limit enabled",
		zap.Int64("rate", limitCfg.EvaluateRate),
		zap.Int64("burst", limitCfg.EvaluateBurst),
	)
	return &EvaluateLimiter{
		bucket: NewTokenBucket(client),
		rate:   float64(limitCfg.EvaluateRate),
		burst:  int(limitCfg.EvaluateBurst),
	}, nil
}

func (l *EvaluateLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *EvaluateLimiter) Allow(ctx context.Context, apiKeyID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyEvaluateAPIKey, strings.TrimSpace(apiKeyID)), l.rate, l.burst)
}
