package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
)

// environmentParam reads the environment query parameter. Parsing and
// validation belong to the services.
func environmentParam(c *gin.Context) flagdomain.Environment {
	return flagdomain.Environment(strings.TrimSpace(c.Query("environment")))
}

func featureKeyParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("featureKey"))
}
