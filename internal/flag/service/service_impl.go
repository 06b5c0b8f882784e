package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/featureflags/internal/audit/domain"
	"github.com/smallbiznis/featureflags/internal/clock"
	"github.com/smallbiznis/featureflags/internal/flag/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Audit       auditdomain.Service
	Invalidator domain.Invalidator `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	audit       auditdomain.Service
	invalidator domain.Invalidator
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("flag.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		audit:       p.Audit,
		invalidator: p.Invalidator,
	}
}

func (s *Service) Get(ctx context.Context, featureKey string, env domain.Environment) (*domain.Response, error) {
	key, env, err := normalizeScope(featureKey, env)
	if err != nil {
		return nil, err
	}

	flag, err := s.repo.FindByKey(ctx, s.db, key, env)
	if err != nil {
		return nil, err
	}
	if flag == nil {
		return nil, domain.ErrNotFound
	}

	resp := toResponse(flag)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, env domain.Environment) ([]domain.Response, error) {
	env, err := domain.ParseEnvironment(string(env))
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListByEnvironment(ctx, s.db, env)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest, changedBy string) (*domain.Response, error) {
	key, env, err := normalizeScope(req.FeatureKey, req.Environment)
	if err != nil {
		return nil, err
	}
	if err := validateRollout(req.RolloutPercent); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	record := &domain.FeatureFlag{
		ID:             s.genID.Generate(),
		FeatureKey:     key,
		Environment:    env,
		Enabled:        req.Enabled,
		RolloutPercent: req.RolloutPercent,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.transact(ctx, func(tx *gorm.DB) error {
		existing, err := s.repo.FindByKey(ctx, tx, key, env)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyExists
		}

		if err := s.repo.Insert(ctx, tx, record); err != nil {
			return err
		}

		return s.appendLog(ctx, tx, record, auditdomain.ChangeFlagCreated, changedBy,
			fmt.Sprintf("enabled=%t, rolloutPercent=%d", record.Enabled, record.RolloutPercent))
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, key, env)
	s.log.Info("flag created",
		zap.String("feature_key", key),
		zap.String("environment", env.String()),
		zap.Bool("enabled", record.Enabled),
		zap.Int("rollout_percent", record.RolloutPercent),
	)

	resp := toResponse(record)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest, changedBy string) (*domain.Response, error) {
	key, env, err := normalizeScope(req.FeatureKey, req.Environment)
	if err != nil {
		return nil, err
	}
	if req.RolloutPercent != nil {
		if err := validateRollout(*req.RolloutPercent); err != nil {
			return nil, err
		}
	}

	var updated domain.FeatureFlag
	err = s.transact(ctx, func(tx *gorm.DB) error {
		flag, err := s.repo.FindByKeyForUpdate(ctx, tx, key, env)
		if err != nil {
			return err
		}
		if flag == nil {
			return domain.ErrNotFound
		}

		before := *flag
		if req.Enabled != nil {
			flag.Enabled = *req.Enabled
		}
		if req.RolloutPercent != nil {
			flag.RolloutPercent = *req.RolloutPercent
		}
		flag.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, flag); err != nil {
			return err
		}

		details := fmt.Sprintf("enabled: %t -> %t, rolloutPercent: %d -> %d",
			before.Enabled, flag.Enabled, before.RolloutPercent, flag.RolloutPercent)
		if err := s.appendLog(ctx, tx, flag, auditdomain.ChangeFlagUpdated, changedBy, details); err != nil {
			return err
		}

		updated = *flag
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, key, env)
	resp := toResponse(&updated)
	return &resp, nil
}

func (s *Service) AddTarget(ctx context.Context, req domain.TargetRequest, changedBy string) (*domain.TargetResponse, error) {
	key, env, err := normalizeScope(req.FeatureKey, req.Environment)
	if err != nil {
		return nil, err
	}
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return nil, err
	}

	var target domain.FeatureTarget
	err = s.transact(ctx, func(tx *gorm.DB) error {
		flag, err := s.repo.FindByKey(ctx, tx, key, env)
		if err != nil {
			return err
		}
		if flag == nil {
			return domain.ErrNotFound
		}

		target = domain.FeatureTarget{
			ID:        s.genID.Generate(),
			FlagID:    flag.ID,
			UserID:    userID,
			CreatedAt: s.clock.Now(),
		}
		if err := s.repo.InsertTarget(ctx, tx, &target); err != nil {
			return err
		}

		return s.appendLog(ctx, tx, flag, auditdomain.ChangeTargetAdded, changedBy, "userId="+userID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, key, env)
	return &domain.TargetResponse{
		FeatureKey:  key,
		Environment: env,
		UserID:      userID,
		CreatedAt:   target.CreatedAt,
	}, nil
}

// RemoveTarget is a no-op for users that are not targeted but still records
// a TARGET_REMOVED entry.
func (s *Service) RemoveTarget(ctx context.Context, req domain.TargetRequest, changedBy string) error {
	key, env, err := normalizeScope(req.FeatureKey, req.Environment)
	if err != nil {
		return err
	}
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return err
	}

	var deleted int64
	err = s.transact(ctx, func(tx *gorm.DB) error {
		flag, err := s.repo.FindByKey(ctx, tx, key, env)
		if err != nil {
			return err
		}
		if flag == nil {
			return domain.ErrNotFound
		}

		deleted, err = s.repo.DeleteTarget(ctx, tx, flag.ID, userID)
		if err != nil {
			return err
		}

		return s.appendLog(ctx, tx, flag, auditdomain.ChangeTargetRemoved, changedBy, "userId="+userID)
	})
	if err != nil {
		return err
	}

	if deleted == 0 {
		s.log.Debug("target was not present", zap.String("feature_key", key), zap.String("environment", env.String()))
	}
	s.invalidate(ctx, key, env)
	return nil
}

func (s *Service) ListTargets(ctx context.Context, featureKey string, env domain.Environment) ([]domain.TargetResponse, error) {
	key, env, err := normalizeScope(featureKey, env)
	if err != nil {
		return nil, err
	}

	flag, err := s.repo.FindByKey(ctx, s.db, key, env)
	if err != nil {
		return nil, err
	}
	if flag == nil {
		return nil, domain.ErrNotFound
	}

	items, err := s.repo.ListTargets(ctx, s.db, flag.ID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.TargetResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.TargetResponse{
			FeatureKey:  key,
			Environment: env,
			UserID:      item.UserID,
			CreatedAt:   item.CreatedAt,
		})
	}
	return resp, nil
}

// ListHistory returns change log rows newest first. History is kept by
// (featureKey, environment), so it does not require the flag to exist.
func (s *Service) ListHistory(ctx context.Context, req domain.HistoryRequest) (*auditdomain.ListHistoryResponse, error) {
	key, env, err := normalizeScope(req.FeatureKey, req.Environment)
	if err != nil {
		return nil, err
	}

	return s.audit.ListHistory(ctx, auditdomain.ListHistoryRequest{
		Pagination:  req.Pagination,
		FeatureKey:  key,
		Environment: env.String(),
	})
}

// transact runs fn as one unit of work: the flag write and its change log
// row commit together or not at all.
func (s *Service) transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	if err == nil || isDomainErr(err) {
		return err
	}
	s.log.Error("flag mutation failed", zap.Error(err))
	return err
}

func (s *Service) appendLog(ctx context.Context, tx *gorm.DB, flag *domain.FeatureFlag, changeType auditdomain.ChangeType, changedBy, details string) error {
	_, err := s.audit.Append(ctx, tx, auditdomain.AppendRequest{
		FeatureKey:  flag.FeatureKey,
		Environment: flag.Environment.String(),
		ChangeType:  changeType,
		ChangedBy:   changedBy,
		Details:     details,
	})
	if err != nil {
		return fmt.Errorf("append change log: %w", err)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, key string, env domain.Environment) {
	if s.invalidator == nil {
		return
	}
	s.invalidator.Invalidate(ctx, key, env)
}

func normalizeScope(featureKey string, env domain.Environment) (string, domain.Environment, error) {
	key, err := normalizeFeatureKey(featureKey)
	if err != nil {
		return "", "", err
	}
	parsed, err := domain.ParseEnvironment(string(env))
	if err != nil {
		return "", "", err
	}
	return key, parsed, nil
}

func normalizeFeatureKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if key == "" || len(key) > domain.MaxFeatureKeyLength {
		return "", domain.ErrInvalidFeatureKey
	}
	if strings.ContainsFunc(key, func(r rune) bool { return r == '/' || unicode.IsSpace(r) }) {
		return "", domain.ErrInvalidFeatureKey
	}
	return key, nil
}

func normalizeUserID(raw string) (string, error) {
	userID := strings.TrimSpace(raw)
	if userID == "" || len(userID) > domain.MaxUserIDLength {
		return "", domain.ErrInvalidUserID
	}
	return userID, nil
}

func validateRollout(percent int) error {
	if percent < domain.MinRolloutPercent || percent > domain.MaxRolloutPercent {
		return domain.ErrInvalidRolloutPercent
	}
	return nil
}

func isDomainErr(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrAlreadyExists) ||
		errors.Is(err, domain.ErrTargetAlreadyExists)
}

func toResponse(flag *domain.FeatureFlag) domain.Response {
	return domain.Response{
		FeatureKey:     flag.FeatureKey,
		Environment:    flag.Environment,
		Enabled:        flag.Enabled,
		RolloutPercent: flag.RolloutPercent,
		CreatedAt:      flag.CreatedAt,
		UpdatedAt:      flag.UpdatedAt,
	}
}
