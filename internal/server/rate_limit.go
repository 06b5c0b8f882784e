package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/featureflags/internal/observability/logger"
	"go.uber.org/zap"
)

const rateLimitReasonAPIKeyRate = "api-key-rate"

// EvaluateRateLimit applies the per API key token bucket. Limiter errors
// fail open.
func (s *Server) EvaluateRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		apiKeyID := strings.TrimSpace(c.GetString(contextAPIKeyIDKey))
		if apiKeyID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		result, err := s.limiter.Allow(ctx, apiKeyID)
		if err != nil {
			logger.FromContext(ctx).Warn("evaluate rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if result.Allowed {
			c.Next()
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		logger.FromContext(ctx).Warn("evaluate rate limit exceeded",
			zap.String("reason", rateLimitReasonAPIKeyRate),
			zap.String("endpoint", endpoint),
		)
		s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, rateLimitReasonAPIKeyRate)

		retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		AbortWithError(c, ErrRateLimited)
	}
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
