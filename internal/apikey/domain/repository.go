package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*APIKey, error)
	// FindEnabledByHash returns (nil, nil) when no enabled key has the digest.
	FindEnabledByHash(ctx context.Context, db *gorm.DB, keyHash string) (*APIKey, error)
	List(ctx context.Context, db *gorm.DB) ([]APIKey, error)
	Disable(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	CountByEnabled(ctx context.Context, db *gorm.DB) ([]EnabledCount, error)
}
