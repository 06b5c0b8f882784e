package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/featureflags/internal/cache"
	"github.com/smallbiznis/featureflags/internal/evaluation/domain"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
	obsmetrics "github.com/smallbiznis/featureflags/internal/observability/metrics"
	"github.com/smallbiznis/featureflags/internal/observability/tracing"
	"github.com/smallbiznis/featureflags/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      flagdomain.Repository
	Cache     cache.FlagCache     `optional:"true"`
	Metrics   *obsmetrics.Metrics `optional:"true"`
	Telemetry *telemetry.Metrics  `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      flagdomain.Repository
	cache     cache.FlagCache
	metrics   *obsmetrics.Metrics
	telemetry *telemetry.Metrics
	tracer    trace.Tracer
}

func New(p Params) domain.Service {
	flagCache := p.Cache
	if flagCache == nil {
		flagCache = cache.NoopFlagCache{}
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("evaluation.service"),
		repo:      p.Repo,
		cache:     flagCache,
		metrics:   p.Metrics,
		telemetry: p.Telemetry,
		tracer:    otel.Tracer(tracing.InstrumentationName + "/evaluation"),
	}
}

// Evaluate decides whether featureKey is on for userID in the environment.
// Only store failures are returned as errors.
func (s *Service) Evaluate(ctx context.Context, req domain.EvaluateRequest) (domain.Result, error) {
	start := time.Now()

	env, err := flagdomain.ParseEnvironment(string(req.Environment))
	if err != nil {
		return domain.Result{}, err
	}
	featureKey := strings.TrimSpace(req.FeatureKey)
	userID := strings.TrimSpace(req.UserID)

	ctx, span := s.tracer.Start(ctx, "flag.evaluate", trace.WithAttributes(
		attribute.String("feature_key", featureKey),
		attribute.String("environment", env.String()),
	))
	defer span.End()

	snapshot, err := s.lookup(ctx, featureKey, env)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "flag lookup failed")
		return domain.Result{}, fmt.Errorf("lookup flag: %w", err)
	}

	in := &input{
		featureKey: featureKey,
		userID:     userID,
		flag:       snapshot,
	}
	if snapshot != nil {
		flagID := snapshot.ID
		in.targeted = func() (bool, error) {
			return s.repo.TargetExists(ctx, s.db, flagID, userID)
		}
	}

	result, ruleName, err := decide(in)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "rule failed")
		return domain.Result{}, fmt.Errorf("evaluate %s: %w", ruleName, err)
	}

	span.SetAttributes(
		attribute.Bool("enabled", result.Enabled),
		attribute.String("reason", result.Reason),
		attribute.String("rule", ruleName),
	)
	s.metrics.RecordEvaluation(ctx, featureKey, env.String(), result.Enabled, result.Reason, time.Since(start))
	s.telemetry.ObserveEvaluation(env.String(), result.Enabled, result.Reason)

	return result, nil
}

func (s *Service) lookup(ctx context.Context, featureKey string, env flagdomain.Environment) (*cache.FlagSnapshot, error) {
	if featureKey == "" {
		return nil, nil
	}
	snapshot, gen, ok := s.cache.Get(ctx, featureKey, env)
	if ok {
		return snapshot, nil
	}

	flag, err := s.repo.FindByKey(ctx, s.db, featureKey, env)
	if err != nil {
		return nil, err
	}
	if flag == nil {
		return nil, nil
	}

	snapshot = &cache.FlagSnapshot{
		ID:             flag.ID,
		Enabled:        flag.Enabled,
		RolloutPercent: flag.RolloutPercent,
	}
	s.cache.Set(ctx, featureKey, env, gen, *snapshot)
	return snapshot, nil
}
