package domain

import (
	"context"
	"errors"
	"time"

	auditdomain "github.com/smallbiznis/featureflags/internal/audit/domain"
	"github.com/smallbiznis/featureflags/pkg/db/pagination"
)

// Service is the admin surface over flags and their targets. Every
// successful mutation appends exactly one change log row in the same
// transaction.
type Service interface {
	Get(ctx context.Context, featureKey string, env Environment) (*Response, error)
	List(ctx context.Context, env Environment) ([]Response, error)
	Create(ctx context.Context, req CreateRequest, changedBy string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest, changedBy string) (*Response, error)
	AddTarget(ctx context.Context, req TargetRequest, changedBy string) (*TargetResponse, error)
	RemoveTarget(ctx context.Context, req TargetRequest, changedBy string) error
	ListTargets(ctx context.Context, featureKey string, env Environment) ([]TargetResponse, error)
	ListHistory(ctx context.Context, req HistoryRequest) (*auditdomain.ListHistoryResponse, error)
}

type CreateRequest struct {
	FeatureKey     string      `json:"featureKey"`
	Environment    Environment `json:"environment"`
	Enabled        bool        `json:"enabled"`
	RolloutPercent int         `json:"rolloutPercent"`
}

// UpdateRequest overwrites the fields that are set; nil keeps the current value.
type UpdateRequest struct {
	FeatureKey     string      `json:"-"`
	Environment    Environment `json:"-"`
	Enabled        *bool       `json:"enabled"`
	RolloutPercent *int        `json:"rolloutPercent"`
}

type TargetRequest struct {
	FeatureKey  string      `json:"-"`
	Environment Environment `json:"-"`
	UserID      string      `json:"userId"`
}

type HistoryRequest struct {
	pagination.Pagination
	FeatureKey  string
	Environment Environment
}

type Response struct {
	FeatureKey     string      `json:"featureKey"`
	Environment    Environment `json:"environment"`
	Enabled        bool        `json:"enabled"`
	RolloutPercent int         `json:"rolloutPercent"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

type TargetResponse struct {
	FeatureKey  string      `json:"featureKey"`
	Environment Environment `json:"environment"`
	UserID      string      `json:"userId"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Invalidator is told about every committed mutation so read-side caches
// can drop their copy.
type Invalidator interface {
	Invalidate(ctx context.Context, featureKey string, env Environment)
}

var (
	ErrNotFound              = errors.New("not_found")
	ErrAlreadyExists         = errors.New("already_exists")
	ErrTargetAlreadyExists   = errors.New("target_already_exists")
	ErrInvalidFeatureKey     = errors.New("invalid_feature_key")
	ErrInvalidEnvironment    = errors.New("invalid_environment")
	ErrInvalidRolloutPercent = errors.New("invalid_rollout_percent")
	ErrInvalidUserID         = errors.New("invalid_user_id")
)
