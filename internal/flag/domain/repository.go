package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the flag store contract. Find methods return (nil, nil)
// when the row does not exist; inserts surface unique violations as-is so
// callers can translate them.
type Repository interface {
	FindByKey(ctx context.Context, db *gorm.DB, featureKey string, env Environment) (*FeatureFlag, error)
	// FindByKeyForUpdate locks the row until tx ends on dialects that
	// support row locks.
	FindByKeyForUpdate(ctx context.Context, tx *gorm.DB, featureKey string, env Environment) (*FeatureFlag, error)
	ListByEnvironment(ctx context.Context, db *gorm.DB, env Environment) ([]FeatureFlag, error)
	Insert(ctx context.Context, db *gorm.DB, flag *FeatureFlag) error
	Update(ctx context.Context, db *gorm.DB, flag *FeatureFlag) error
	CountByEnvironment(ctx context.Context, db *gorm.DB) ([]EnvironmentCount, error)

	TargetExists(ctx context.Context, db *gorm.DB, flagID snowflake.ID, userID string) (bool, error)
	InsertTarget(ctx context.Context, db *gorm.DB, target *FeatureTarget) error
	DeleteTarget(ctx context.Context, db *gorm.DB, flagID snowflake.ID, userID string) (int64, error)
	ListTargets(ctx context.Context, db *gorm.DB, flagID snowflake.ID) ([]FeatureTarget, error)
}

// EnvironmentCount is one row of the flag inventory.
type EnvironmentCount struct {
	Environment Environment
	Enabled     bool
	Total       int64
}
