package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	FeatureKey  string
	Environment string
	// Limit of 0 returns every row.
	Limit int
	// After, when set, returns rows strictly older than the cursor row.
	After *Cursor
}

type Cursor struct {
	CreatedAt time.Time
	ID        snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *FlagChangeLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]FlagChangeLog, error)
}
