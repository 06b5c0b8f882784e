package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Environment partitions flag state by deployment scope.
type Environment string

const (
	EnvironmentDev     Environment = "DEV"
	EnvironmentStaging Environment = "STAGING"
	EnvironmentProd    Environment = "PROD"
)

var Environments = []Environment{EnvironmentDev, EnvironmentStaging, EnvironmentProd}

func (e Environment) Valid() bool {
	switch e {
	case EnvironmentDev, EnvironmentStaging, EnvironmentProd:
		return true
	default:
		return false
	}
}

func (e Environment) String() string { return string(e) }

// ParseEnvironment accepts any casing of DEV, STAGING or PROD.
func ParseEnvironment(raw string) (Environment, error) {
	env := Environment(strings.ToUpper(strings.TrimSpace(raw)))
	if !env.Valid() {
		return "", ErrInvalidEnvironment
	}
	return env, nil
}

const (
	MinRolloutPercent = 0
	MaxRolloutPercent = 100

	MaxFeatureKeyLength = 255
	MaxUserIDLength     = 255
)

type FeatureFlag struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	FeatureKey     string       `gorm:"column:feature_key;type:varchar(255);not null;uniqueIndex:ux_feature_flags_key_env,priority:1"`
	Environment    Environment  `gorm:"column:environment;type:varchar(16);not null;uniqueIndex:ux_feature_flags_key_env,priority:2"`
	Enabled        bool         `gorm:"column:enabled;not null;default:false"`
	RolloutPercent int          `gorm:"column:rollout_percent;not null;default:0"`
	CreatedAt      time.Time    `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time    `gorm:"column:updated_at;not null"`
}

func (FeatureFlag) TableName() string { return "feature_flags" }

// FeatureTarget forces a flag on for one user. Rows belong to exactly one
// flag and are looked up by (flag_id, user_id).
type FeatureTarget struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	FlagID    snowflake.ID `gorm:"column:flag_id;not null;uniqueIndex:ux_feature_targets_flag_user,priority:1"`
	UserID    string       `gorm:"column:user_id;type:varchar(255);not null;uniqueIndex:ux_feature_targets_flag_user,priority:2"`
	CreatedAt time.Time    `gorm:"column:created_at;not null"`
}

func (FeatureTarget) TableName() string { return "feature_targets" }
