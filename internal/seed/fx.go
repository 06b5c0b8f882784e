package seed

import (
	"context"

	"github.com/smallbiznis/featureflags/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("seed",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, seeder *Seeder) {
		if !cfg.SeedDemoFlags {
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return seeder.Run(ctx, DemoFlags)
			},
		})
	}),
)
