package server

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/featureflags/internal/audit/domain"
	"github.com/smallbiznis/featureflags/internal/auditcontext"
	authdomain "github.com/smallbiznis/featureflags/internal/auth/domain"
	"github.com/smallbiznis/featureflags/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	basicRealm           = `Basic realm="featureflags"`
	contextAdminUserKey  = "admin_username"
	authSchemeBasic      = "basic"
	authSchemeAPIKey     = "api_key"
	authFailureMissing   = "missing"
	authFailureInvalid   = "invalid"
	authFailureForbidden = "forbidden"
)

// AdminAuthRequired authenticates admin callers with HTTP Basic credentials.
func (s *Server) AdminAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			s.httpMetrics.ObserveAuthFailure(authSchemeBasic, authFailureMissing)
			c.Header("WWW-Authenticate", basicRealm)
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		identity, err := s.authn.Authenticate(ctx, username, password)
		if err != nil {
			if !errors.Is(err, authdomain.ErrInvalidCredentials) {
				AbortWithError(c, err)
				return
			}
			logger.FromContext(ctx).Warn("admin authentication failed", zap.String("username", strings.TrimSpace(username)))
			s.httpMetrics.ObserveAuthFailure(authSchemeBasic, authFailureInvalid)
			c.Header("WWW-Authenticate", basicRealm)
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx = auditcontext.WithActor(ctx, auditcontext.Actor{
			Type: auditcontext.ActorTypeAdmin,
			ID:   identity.Username,
			Role: identity.Role,
		})
		c.Set(contextAdminUserKey, identity.Username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// changedBy names the admin responsible for a mutation.
func changedBy(c *gin.Context) string {
	username := strings.TrimSpace(c.GetString(contextAdminUserKey))
	if username == "" {
		return auditdomain.ChangedByAnonymous
	}
	return username
}
