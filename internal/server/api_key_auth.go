package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/featureflags/internal/apikey/domain"
	"github.com/smallbiznis/featureflags/internal/auditcontext"
	authdomain "github.com/smallbiznis/featureflags/internal/auth/domain"
	"github.com/smallbiznis/featureflags/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	HeaderAPIKey       = "X-API-Key"
	contextAPIKeyIDKey = "api_key_id"
	contextAPIKeyKey   = "api_key"
)

const (
	msgMissingAPIKey = "Missing X-API-Key header"
	msgInvalidAPIKey = "Invalid or revoked API key"
)

// APIKeyRequired authenticates evaluation callers by the X-API-Key header.
// Only enabled keys pass; the key record is kept on the gin context for the
// environment scope check.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		raw := strings.TrimSpace(c.GetHeader(HeaderAPIKey))
		if raw == "" {
			s.obsMetrics.RecordAPIKeyValidation(ctx, authFailureMissing)
			s.httpMetrics.ObserveAuthFailure(authSchemeAPIKey, authFailureMissing)
			AbortWithError(c, withMessage(ErrUnauthorized, msgMissingAPIKey))
			return
		}

		key, err := s.apiKeySvc.Validate(ctx, raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if key == nil {
			logger.FromContext(ctx).Warn("api key rejected")
			s.obsMetrics.RecordAPIKeyValidation(ctx, authFailureInvalid)
			s.httpMetrics.ObserveAuthFailure(authSchemeAPIKey, authFailureInvalid)
			AbortWithError(c, withMessage(ErrUnauthorized, msgInvalidAPIKey))
			return
		}
		s.obsMetrics.RecordAPIKeyValidation(ctx, "valid")

		ctx = auditcontext.WithActor(ctx, auditcontext.Actor{
			Type: auditcontext.ActorTypeAPIKey,
			ID:   key.ID.String(),
			Role: authdomain.RoleAPIClient,
		})
		c.Set(contextAPIKeyIDKey, key.ID.String())
		c.Set(contextAPIKeyKey, key)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func apiKeyFromContext(c *gin.Context) (*apikeydomain.APIKey, bool) {
	value, ok := c.Get(contextAPIKeyKey)
	if !ok {
		return nil, false
	}
	key, ok := value.(*apikeydomain.APIKey)
	return key, ok && key != nil
}

func (s *Server) logAPIKeyScopeDenied(c *gin.Context, key *apikeydomain.APIKey, env string) {
	s.httpMetrics.ObserveAuthFailure(authSchemeAPIKey, authFailureForbidden)
	logger.FromContext(c.Request.Context()).Warn("api key environment scope mismatch",
		zap.String("api_key_id", key.ID.String()),
		zap.String("environment", env),
	)
}
