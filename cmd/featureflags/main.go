package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/featureflags/internal/apikey"
	"github.com/smallbiznis/featureflags/internal/audit"
	"github.com/smallbiznis/featureflags/internal/auth"
	"github.com/smallbiznis/featureflags/internal/authorization"
	"github.com/smallbiznis/featureflags/internal/cache"
	"github.com/smallbiznis/featureflags/internal/clock"
	"github.com/smallbiznis/featureflags/internal/config"
	"github.com/smallbiznis/featureflags/internal/evaluation"
	"github.com/smallbiznis/featureflags/internal/flag"
	"github.com/smallbiznis/featureflags/internal/metricspush"
	"github.com/smallbiznis/featureflags/internal/migration"
	"github.com/smallbiznis/featureflags/internal/observability"
	"github.com/smallbiznis/featureflags/internal/ratelimit"
	"github.com/smallbiznis/featureflags/internal/seed"
	"github.com/smallbiznis/featureflags/internal/server"
	"github.com/smallbiznis/featureflags/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		cache.Module,
		ratelimit.Module,

		// Functional Domains
		audit.Module,
		flag.Module,
		evaluation.Module,
		apikey.Module,
		auth.Module,
		authorization.Module,
		metricspush.Module,
		seed.Module,

		server.Module,
		fx.Invoke(func(s *server.Server) error {
			if err := s.RegisterEvaluateRoutes(); err != nil {
				return err
			}
			if err := s.RegisterAdminRoutes(); err != nil {
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
	return snowflake.NewNode(cfg.NodeID(1))
}
