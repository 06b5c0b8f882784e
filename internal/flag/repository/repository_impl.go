package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/featureflags/internal/flag/domain"
	"github.com/smallbiznis/featureflags/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

var (
	flagKeyIndex = db.UniqueIndex{
		Name:    "ux_feature_flags_key_env",
		Table:   "feature_flags",
		Columns: []string{"feature_key", "environment"},
	}
	targetUserIndex = db.UniqueIndex{
		Name:    "ux_feature_targets_flag_user",
		Table:   "feature_targets",
		Columns: []string{"flag_id", "user_id"},
	}
)

const flagColumns = `id, feature_key, environment, enabled, rollout_percent, created_at, updated_at`

func (r *repo) FindByKey(ctx context.Context, conn *gorm.DB, featureKey string, env domain.Environment) (*domain.FeatureFlag, error) {
	var flag domain.FeatureFlag
	err := conn.WithContext(ctx).Raw(
		`SELECT `+flagColumns+` FROM feature_flags WHERE feature_key = ? AND environment = ?`,
		featureKey,
		env,
	).Scan(&flag).Error
	if err != nil {
		return nil, err
	}
	if flag.ID == 0 {
		return nil, nil
	}
	return &flag, nil
}

func (r *repo) FindByKeyForUpdate(ctx context.Context, tx *gorm.DB, featureKey string, env domain.Environment) (*domain.FeatureFlag, error) {
	stmt := tx.WithContext(ctx).
		Model(&domain.FeatureFlag{}).
		Where("feature_key = ? AND environment = ?", featureKey, env)
	if db.SupportsRowLocks(tx) {
		stmt = stmt.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}

	var items []domain.FeatureFlag
	if err := stmt.Limit(1).Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) ListByEnvironment(ctx context.Context, conn *gorm.DB, env domain.Environment) ([]domain.FeatureFlag, error) {
	var items []domain.FeatureFlag
	err := conn.WithContext(ctx).
		Model(&domain.FeatureFlag{}).
		Where("environment = ?", env).
		Order("feature_key ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Insert maps a (feature_key, environment) violation to ErrAlreadyExists.
// Any other constraint failure, including a primary key clash, is returned
// as is.
func (r *repo) Insert(ctx context.Context, conn *gorm.DB, flag *domain.FeatureFlag) error {
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO feature_flags (`+flagColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		flag.ID,
		flag.FeatureKey,
		flag.Environment,
		flag.Enabled,
		flag.RolloutPercent,
		flag.CreatedAt,
		flag.UpdatedAt,
	).Error
	if db.IsUniqueViolation(err, flagKeyIndex) {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, flag *domain.FeatureFlag) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE feature_flags SET enabled = ?, rollout_percent = ?, updated_at = ? WHERE id = ?`,
		flag.Enabled,
		flag.RolloutPercent,
		flag.UpdatedAt,
		flag.ID,
	).Error
}

func (r *repo) CountByEnvironment(ctx context.Context, conn *gorm.DB) ([]domain.EnvironmentCount, error) {
	var rows []domain.EnvironmentCount
	err := conn.WithContext(ctx).Raw(
		`SELECT environment, enabled, COUNT(*) AS total
		 FROM feature_flags
		 GROUP BY environment, enabled`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) TargetExists(ctx context.Context, conn *gorm.DB, flagID snowflake.ID, userID string) (bool, error) {
	var count int64
	err := conn.WithContext(ctx).
		Model(&domain.FeatureTarget{}).
		Where("flag_id = ? AND user_id = ?", flagID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) InsertTarget(ctx context.Context, conn *gorm.DB, target *domain.FeatureTarget) error {
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO feature_targets (id, flag_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
		target.ID,
		target.FlagID,
		target.UserID,
		target.CreatedAt,
	).Error
	if db.IsUniqueViolation(err, targetUserIndex) {
		return domain.ErrTargetAlreadyExists
	}
	return err
}

func (r *repo) DeleteTarget(ctx context.Context, conn *gorm.DB, flagID snowflake.ID, userID string) (int64, error) {
	result := conn.WithContext(ctx).Exec(
		`DELETE FROM feature_targets WHERE flag_id = ? AND user_id = ?`,
		flagID,
		userID,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) ListTargets(ctx context.Context, conn *gorm.DB, flagID snowflake.ID) ([]domain.FeatureTarget, error) {
	var items []domain.FeatureTarget
	err := conn.WithContext(ctx).
		Model(&domain.FeatureTarget{}).
		Where("flag_id = ?", flagID).
		Order("user_id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
