package repository

import (
	"context"

	"github.com/smallbiznis/featureflags/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.FlagChangeLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO flag_change_logs (
			id, feature_key, environment, change_type, changed_by, details, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.FeatureKey,
		entry.Environment,
		entry.ChangeType,
		entry.ChangedBy,
		entry.Details,
		entry.Metadata,
		entry.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.FlagChangeLog, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.FlagChangeLog{}).
		Where("feature_key = ? AND environment = ?", filter.FeatureKey, filter.Environment)

	if filter.After != nil {
		stmt = stmt.Where(
			"((created_at < ?) OR (created_at = ? AND id < ?))",
			filter.After.CreatedAt,
			filter.After.CreatedAt,
			filter.After.ID,
		)
	}

	stmt = stmt.Order("created_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var items []domain.FlagChangeLog
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
