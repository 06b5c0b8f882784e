package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/featureflags/internal/apikey/domain"
	"github.com/smallbiznis/featureflags/internal/audit/masking"
	"github.com/smallbiznis/featureflags/internal/clock"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
	"github.com/smallbiznis/featureflags/pkg/keyhash"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	apiKeySecretBytes = 16
	maxNameLength     = 255
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   apikeydomain.Repository
	Random io.Reader `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   apikeydomain.Repository
	genID  *snowflake.Node
	clock  clock.Clock
	random io.Reader
}

func New(p Params) apikeydomain.Service {
	random := p.Random
	if random == nil {
		random = rand.Reader
	}
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("apikey.service"),
		repo:   p.Repo,
		genID:  p.GenID,
		clock:  p.Clock,
		random: random,
	}
}

func (s *Service) Generate() (string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := io.ReadFull(s.random, secret); err != nil {
		return "", fmt.Errorf("read key entropy: %w", err)
	}
	return apikeydomain.KeyPrefix + hex.EncodeToString(secret), nil
}

func (s *Service) Create(ctx context.Context, req apikeydomain.CreateRequest) (*apikeydomain.CreateResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, apikeydomain.ErrInvalidName
	}

	var scope *flagdomain.Environment
	if raw := strings.TrimSpace(req.Environment); raw != "" {
		env, err := flagdomain.ParseEnvironment(raw)
		if err != nil {
			return nil, apikeydomain.ErrInvalidEnvironment
		}
		scope = &env
	}

	plain, err := s.Generate()
	if err != nil {
		return nil, err
	}
	hash, err := keyhash.Digest(plain)
	if err != nil {
		return nil, err
	}

	key := &apikeydomain.APIKey{
		ID:          s.genID.Generate(),
		Name:        name,
		KeyHash:     hash,
		Environment: scope,
		Enabled:     true,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, key); err != nil {
		if errors.Is(err, apikeydomain.ErrKeyHashTaken) {
			// 128 bits of entropy colliding means the random source is broken.
			return nil, fmt.Errorf("api key digest collision: %w", err)
		}
		return nil, err
	}

	s.log.Info("api key created",
		zap.String("api_key_id", key.ID.String()),
		zap.String("name", key.Name),
		zap.String("api_key", masking.MaskSecret(plain)),
	)

	return &apikeydomain.CreateResponse{RawKey: plain, APIKey: toResponse(key)}, nil
}

func (s *Service) Validate(ctx context.Context, raw string) (*apikeydomain.APIKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	hash, err := keyhash.Digest(trimmed)
	if err != nil {
		return nil, err
	}
	return s.repo.FindEnabledByHash(ctx, s.db, hash)
}

func (s *Service) List(ctx context.Context) ([]apikeydomain.Response, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	resp := make([]apikeydomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

// Revoke disables the key. Revoking an already revoked key succeeds.
func (s *Service) Revoke(ctx context.Context, id snowflake.ID) error {
	if id <= 0 {
		return apikeydomain.ErrInvalidID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if key == nil {
			return apikeydomain.ErrNotFound
		}
		if _, err := s.repo.Disable(ctx, tx, id); err != nil {
			return err
		}
		s.log.Info("api key revoked", zap.String("api_key_id", id.String()))
		return nil
	})
}

func toResponse(key *apikeydomain.APIKey) apikeydomain.Response {
	resp := apikeydomain.Response{
		ID:        key.ID.String(),
		Name:      key.Name,
		Enabled:   key.Enabled,
		CreatedAt: key.CreatedAt,
	}
	if key.Environment != nil {
		env := key.Environment.String()
		resp.Environment = &env
	}
	return resp
}
