package server

import (
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/featureflags/internal/auditcontext"
)

// authorizeAction checks the authenticated actor against the casbin policy.
// It must run after one of the authentication middlewares.
func (s *Server) authorizeAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		actor, ok := auditcontext.ActorFromContext(ctx)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(ctx, actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
