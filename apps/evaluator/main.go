package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/featureflags/internal/apikey"
	"github.com/smallbiznis/featureflags/internal/authorization"
	"github.com/smallbiznis/featureflags/internal/cache"
	"github.com/smallbiznis/featureflags/internal/clock"
	"github.com/smallbiznis/featureflags/internal/config"
	"github.com/smallbiznis/featureflags/internal/evaluation"
	flagrepo "github.com/smallbiznis/featureflags/internal/flag/repository"
	"github.com/smallbiznis/featureflags/internal/observability"
	"github.com/smallbiznis/featureflags/internal/ratelimit"
	"github.com/smallbiznis/featureflags/internal/server"
	"github.com/smallbiznis/featureflags/pkg/db"
	"go.uber.org/fx"
)

// The evaluator serves only GET /api/flags/:featureKey/evaluate. Schema
// migrations are left to the admin binary.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		ratelimit.Module,

		// Core dependencies for evaluation
		fx.Provide(flagrepo.Provide),
		evaluation.Module,
		apikey.Module,
		authorization.Module,

		server.Module,
		fx.Invoke(func(s *server.Server) error {
			if err := s.RegisterEvaluateRoutes(); err != nil {
				return err
			}
			s.RegisterFallback()
			return nil
		}),
	)
	app.Run()
}

// RegisterSnowflake uses SNOWFLAKE_NODE_ID when set. Scaled deployments
// must give every replica its own id.
func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID(2))
}
