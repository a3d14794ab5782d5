package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"gitlab.com/tapfield/rfid-tag-logger/internal/apperrors"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

// --- Settings Repository Methods ---

// FindSetting returns apperrors.ErrNotFound for unknown keys.
func (r *PostgresRepo) FindSetting(ctx context.Context, key string) (*model.Setting, error) {
	var setting model.Setting
	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Where("key = ?", key).Take(&setting).Error)
	}

	if err := r.run(ctx, "find", "setting", readRetryMaxElapsedTime, operation); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to read setting", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	return &setting, nil
}

// UpsertSetting writes value under key.
func (r *PostgresRepo) UpsertSetting(ctx context.Context, key, value string) error {
	setting := model.Setting{Key: key, Value: value, UpdatedAt: utils.Now()}
	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&setting)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := r.run(ctx, "upsert", "setting", commitRetryMaxElapsedTime, operation); err != nil {
		logger.FromContext(ctx).Error("Failed to upsert setting", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// ListSettings returns every stored key.
func (r *PostgresRepo) ListSettings(ctx context.Context) ([]model.Setting, error) {
	var settings []model.Setting
	operation := func() error {
		if err := r.db.WithContext(ctx).Order("key ASC").Find(&settings).Error; err != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, err)
		}
		return nil
	}

	if err := r.run(ctx, "list", "setting", readRetryMaxElapsedTime, operation); err != nil {
		logger.FromContext(ctx).Error("Failed to list settings", zap.Error(err))
		return nil, err
	}
	if settings == nil {
		return []model.Setting{}, nil
	}
	return settings, nil
}
