package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ChangeType string

const (
	ChangeFlagCreated   ChangeType = "FLAG_CREATED"
	ChangeFlagUpdated   ChangeType = "FLAG_UPDATED"
	ChangeTargetAdded   ChangeType = "TARGET_ADDED"
	ChangeTargetRemoved ChangeType = "TARGET_REMOVED"
)

func (c ChangeType) Valid() bool {
	switch c {
	case ChangeFlagCreated, ChangeFlagUpdated, ChangeTargetAdded, ChangeTargetRemoved:
		return true
	default:
		return false
	}
}

// FlagChangeLog is an append-only record of one admin mutation. Rows point at
// a flag by (feature_key, environment) so history outlives the flag row.
type FlagChangeLog struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	FeatureKey  string            `gorm:"column:feature_key;type:varchar(255);not null;index:ix_flag_change_logs_key_env,priority:1"`
	Environment string            `gorm:"column:environment;type:varchar(16);not null;index:ix_flag_change_logs_key_env,priority:2"`
	ChangeType  ChangeType        `gorm:"column:change_type;type:varchar(32);not null"`
	ChangedBy   string            `gorm:"column:changed_by;type:varchar(255);not null"`
	Details     string            `gorm:"column:details;type:text"`
	Metadata    datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt   time.Time         `gorm:"column:created_at;not null;index:ix_flag_change_logs_created_at"`
}

func (FlagChangeLog) TableName() string { return "flag_change_logs" }
