package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// KeyPrefix marks raw keys issued by this service.
const KeyPrefix = "fk_"

type Service interface {
	// Generate returns a fresh raw key. It is not stored.
	Generate() (string, error)
	Create(ctx context.Context, req CreateRequest) (*CreateResponse, error)
	// Validate returns the enabled key matching raw, or nil when there is none.
	Validate(ctx context.Context, raw string) (*APIKey, error)
	List(ctx context.Context) ([]Response, error)
	Revoke(ctx context.Context, id snowflake.ID) error
}

type CreateRequest struct {
	Name        string `json:"name"`
	Environment string `json:"environment"`
}

type Response struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Environment *string   `json:"environment"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateResponse is the only place a raw key is ever returned.
type CreateResponse struct {
	RawKey string   `json:"rawKey"`
	APIKey Response `json:"apiKey"`
}

var (
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidEnvironment = errors.New("invalid_environment")
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
	ErrKeyHashTaken       = errors.New("key_hash_taken")
)
