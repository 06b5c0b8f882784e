package metricspush

import (
	"context"

	"github.com/smallbiznis/featureflags/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("metrics.push",
	fx.Provide(NewInventory),
	fx.Provide(NewPusher),
	fx.Invoke(register),
)

func register(lc fx.Lifecycle, cfg config.Config, inventory *Inventory, pusher Pusher, log *zap.Logger) {
	if pusher == nil {
		return
	}
	worker := NewWorker(inventory, pusher, cfg.Metrics.Interval, log)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting inventory push", zap.Duration("interval", worker.interval))
			worker.Start()
			return nil
		},
		OnStop: worker.Stop,
	})
}
