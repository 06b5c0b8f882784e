package seed

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/featureflags/internal/auditcontext"
	auditdomain "github.com/smallbiznis/featureflags/internal/audit/domain"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
	"github.com/smallbiznis/featureflags/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	lockKey = "featureflags:lock:seed"
	lockTTL = time.Minute
)

type DemoFlag struct {
	FeatureKey     string
	Environment    flagdomain.Environment
	Enabled        bool
	RolloutPercent int
	Targets        []string
}

// DemoFlags is the data set created on an empty store.
var DemoFlags = []DemoFlag{
	{FeatureKey: "new_dashboard", Environment: flagdomain.EnvironmentDev, Enabled: true, RolloutPercent: 50},
	{FeatureKey: "checkout", Environment: flagdomain.EnvironmentProd, Enabled: true, RolloutPercent: 0, Targets: []string{"alice"}},
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Flags  flagdomain.Service
	Locker *ratelimit.Locker `optional:"true"`
}

type Seeder struct {
	log    *zap.Logger
	flags  flagdomain.Service
	locker *ratelimit.Locker
}

func New(p Params) *Seeder {
	return &Seeder{
		log:    p.Log.Named("seed"),
		flags:  p.Flags,
		locker: p.Locker,
	}
}

// Run creates the demo flags that do not exist yet. Flags already present
// are left untouched, targets included.
func (s *Seeder) Run(ctx context.Context, flags []DemoFlag) error {
	token, ok, err := s.locker.TryLock(ctx, lockKey, lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Info("another instance is seeding, skipping")
		return nil
	}
	defer func() { _ = s.locker.Release(context.WithoutCancel(ctx), lockKey, token) }()

	ctx = auditcontext.WithActor(ctx, auditcontext.Actor{
		Type: auditcontext.ActorTypeSystem,
		ID:   auditdomain.ChangedBySystem,
	})

	for _, demo := range flags {
		_, err := s.flags.Create(ctx, flagdomain.CreateRequest{
			FeatureKey:     demo.FeatureKey,
			Environment:    demo.Environment,
			Enabled:        demo.Enabled,
			RolloutPercent: demo.RolloutPercent,
		}, auditdomain.ChangedBySystem)
		if errors.Is(err, flagdomain.ErrAlreadyExists) {
			s.log.Debug("demo flag exists", zap.String("feature_key", demo.FeatureKey))
			continue
		}
		if err != nil {
			return err
		}

		for _, userID := range demo.Targets {
			_, err := s.flags.AddTarget(ctx, flagdomain.TargetRequest{
				FeatureKey:  demo.FeatureKey,
				Environment: demo.Environment,
				UserID:      userID,
			}, auditdomain.ChangedBySystem)
			if err != nil && !errors.Is(err, flagdomain.ErrTargetAlreadyExists) {
				return err
			}
		}
		s.log.Info("seeded demo flag",
			zap.String("feature_key", demo.FeatureKey),
			zap.String("environment", demo.Environment.String()),
		)
	}
	return nil
}
