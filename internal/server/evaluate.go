package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	evaluationdomain "github.com/smallbiznis/featureflags/internal/evaluation/domain"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
)

// EvaluateFlag answers whether a flag is on for the optional user. A missing
// flag is a 200 with reason FLAG_NOT_FOUND.
func (s *Server) EvaluateFlag(c *gin.Context) {
	env, err := flagdomain.ParseEnvironment(string(environmentParam(c)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if key, ok := apiKeyFromContext(c); ok && !key.Allows(env) {
		s.logAPIKeyScopeDenied(c, key, env.String())
		AbortWithError(c, withMessage(ErrForbidden, "API key is not allowed to evaluate this environment"))
		return
	}

	result, err := s.evaluator.Evaluate(c.Request.Context(), evaluationdomain.EvaluateRequest{
		FeatureKey:  featureKeyParam(c),
		Environment: env,
		UserID:      strings.TrimSpace(c.Query("userId")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
