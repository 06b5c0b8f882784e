package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/featureflags/internal/apikey/domain"
	pkgdb "github.com/smallbiznis/featureflags/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() apikeydomain.Repository {
	return &repo{}
}

var keyHashIndex = pkgdb.UniqueIndex{
	Name:    "ux_api_keys_key_hash",
	Table:   "api_keys",
	Columns: []string{"key_hash"},
}

const keyColumns = `id, name, key_hash, environment, enabled, created_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO api_keys (`+keyColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		key.ID,
		key.Name,
		key.KeyHash,
		key.Environment,
		key.Enabled,
		key.CreatedAt,
	).Error
	if pkgdb.IsUniqueViolation(err, keyHashIndex) {
		return apikeydomain.ErrKeyHashTaken
	}
	return err
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*apikeydomain.APIKey, error) {
	var key apikeydomain.APIKey
	err := db.WithContext(ctx).Raw(
		`SELECT `+keyColumns+` FROM api_keys WHERE id = ?`,
		id,
	).Scan(&key).Error
	if err != nil {
		return nil, err
	}
	if key.ID == 0 {
		return nil, nil
	}
	return &key, nil
}

func (r *repo) FindEnabledByHash(ctx context.Context, db *gorm.DB, keyHash string) (*apikeydomain.APIKey, error) {
	var key apikeydomain.APIKey
	err := db.WithContext(ctx).Raw(
		`SELECT `+keyColumns+` FROM api_keys WHERE key_hash = ? AND enabled = ?`,
		keyHash,
		true,
	).Scan(&key).Error
	if err != nil {
		return nil, err
	}
	if key.ID == 0 {
		return nil, nil
	}
	return &key, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	err := db.WithContext(ctx).Raw(
		`SELECT ` + keyColumns + ` FROM api_keys ORDER BY created_at DESC, id DESC`,
	).Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) Disable(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE api_keys SET enabled = ? WHERE id = ?`,
		false,
		id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) CountByEnabled(ctx context.Context, db *gorm.DB) ([]apikeydomain.EnabledCount, error) {
	var counts []apikeydomain.EnabledCount
	err := db.WithContext(ctx).Raw(
		`SELECT enabled, COUNT(*) AS total FROM api_keys GROUP BY enabled`,
	).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
