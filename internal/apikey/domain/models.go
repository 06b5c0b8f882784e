package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
)

// APIKey stores the digest of an evaluation credential. The raw key is
// never persisted. A nil Environment means the key may evaluate any
// environment.
type APIKey struct {
	ID          snowflake.ID            `gorm:"primaryKey"`
	Name        string                  `gorm:"column:name;type:varchar(255);not null"`
	KeyHash     string                  `gorm:"column:key_hash;type:varchar(64);not null;uniqueIndex:ux_api_keys_key_hash"`
	Environment *flagdomain.Environment `gorm:"column:environment;type:varchar(16)"`
	Enabled     bool                    `gorm:"column:enabled;not null;default:true"`
	CreatedAt   time.Time               `gorm:"column:created_at;not null"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

// Allows reports whether the key may evaluate flags in env.
func (k *APIKey) Allows(env flagdomain.Environment) bool {
	return k.Environment == nil || *k.Environment == env
}

// EnabledCount is one row of the key inventory.
type EnabledCount struct {
	Enabled bool
	Total   int64
}
