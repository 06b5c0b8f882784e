package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/featureflags/pkg/db/pagination"
	"gorm.io/gorm"
)

const (
	ChangedBySystem    = "system"
	ChangedByAnonymous = "anonymous"
)

type Service interface {
	// Append writes one change log row through tx so it commits or rolls
	// back together with the mutation it describes.
	Append(ctx context.Context, tx *gorm.DB, req AppendRequest) (*FlagChangeLog, error)
	ListHistory(ctx context.Context, req ListHistoryRequest) (*ListHistoryResponse, error)
}

type AppendRequest struct {
	FeatureKey  string
	Environment string
	ChangeType  ChangeType
	ChangedBy   string
	Details     string
}

type ListHistoryRequest struct {
	pagination.Pagination
	FeatureKey  string
	Environment string
}

type ListHistoryResponse struct {
	Entries       []EntryResponse
	NextPageToken string
}

type EntryResponse struct {
	FeatureKey  string     `json:"featureKey"`
	Environment string     `json:"environment"`
	ChangeType  ChangeType `json:"changeType"`
	ChangedBy   string     `json:"changedBy"`
	Details     string     `json:"details"`
	CreatedAt   time.Time  `json:"createdAt"`
}

var (
	ErrInvalidChangeType  = errors.New("invalid_change_type")
	ErrInvalidFeatureKey  = errors.New("invalid_feature_key")
	ErrInvalidEnvironment = errors.New("invalid_environment")
	ErrInvalidPageToken   = pagination.ErrInvalidPageToken
)
