package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/tapfield/rfid-tag-logger/internal/apperrors"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
)

// --- Webhook Repository Methods ---

// CreateWebhook inserts the webhook and its mappings in one transaction.
func (r *PostgresRepo) CreateWebhook(ctx context.Context, webhook *model.Webhook) error {
	operation := func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit(clause.Associations).Create(webhook).Error; err != nil {
				return checkConstraintViolation(err)
			}
			if len(webhook.Mappings) == 0 {
				return nil
			}
			for i := range webhook.Mappings {
				webhook.Mappings[i].ID = 0
				webhook.Mappings[i].WebhookID = webhook.ID
			}
			if err := tx.Create(&webhook.Mappings).Error; err != nil {
				return checkConstraintViolation(err)
			}
			return nil
		})
	}

	if err := r.run(ctx, "create", "webhook", commitRetryMaxElapsedTime, operation); err != nil {
		logger.FromContext(ctx).Error("Failed to create webhook", zap.String("name", webhook.Name), zap.Error(err))
		return err
	}
	return nil
}

// UpdateWebhook overwrites the scalar fields of an existing webhook. Mappings
// are left untouched; see ReplaceWebhookMappings.
func (r *PostgresRepo) UpdateWebhook(ctx context.Context, webhook *model.Webhook) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Webhook{}).
			Where("id = ?", webhook.ID).
			Updates(map[string]interface{}{
				"name":        webhook.Name,
				"target_url":  webhook.TargetURL,
				"http_method": webhook.HTTPMethod,
				"headers":     webhook.Headers,
				"is_active":   webhook.IsActive,
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: webhook %d", apperrors.ErrNotFound, webhook.ID)
		}
		return nil
	}

	err := r.run(ctx, "update", "webhook", commitRetryMaxElapsedTime, operation)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		logger.FromContext(ctx).Error("Failed to update webhook", zap.Int64("webhook_id", webhook.ID), zap.Error(err))
	}
	return err
}

// DeleteWebhook removes the webhook and its mappings. Queued retries for it
// stay in place and fail on their next attempt.
func (r *PostgresRepo) DeleteWebhook(ctx context.Context, id int64) error {
	operation := func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("webhook_id = ?", id).Delete(&model.WebhookMapping{}).Error; err != nil {
				return checkConstraintViolation(err)
			}
			result := tx.Where("id = ?", id).Delete(&model.Webhook{})
			if result.Error != nil {
				return checkConstraintViolation(result.Error)
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("%w: webhook %d", apperrors.ErrNotFound, id)
			}
			return nil
		})
	}

	err := r.run(ctx, "delete", "webhook", commitRetryMaxElapsedTime, operation)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		logger.FromContext(ctx).Error("Failed to delete webhook", zap.Int64("webhook_id", id), zap.Error(err))
	}
	return err
}

// FindWebhookByID loads the webhook with its mappings.
func (r *PostgresRepo) FindWebhookByID(ctx context.Context, id int64) (*model.Webhook, error) {
	var webhook model.Webhook
	operation := func() error {
		result := r.db.WithContext(ctx).
			Preload("Mappings", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
			Where("id = ?", id).
			Take(&webhook)
		return checkConstraintViolation(result.Error)
	}

	if err := r.run(ctx, "find_by_id", "webhook", readRetryMaxElapsedTime, operation); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find webhook", zap.Int64("webhook_id", id), zap.Error(err))
		return nil, err
	}
	return &webhook, nil
}

// ListWebhooks returns every webhook ordered by id.
func (r *PostgresRepo) ListWebhooks(ctx context.Context) ([]model.Webhook, error) {
	return r.findWebhooks(ctx, "list", false)
}

// FindActiveWebhooks returns webhooks eligible for fan-out.
func (r *PostgresRepo) FindActiveWebhooks(ctx context.Context) ([]model.Webhook, error) {
	return r.findWebhooks(ctx, "find_active", true)
}

func (r *PostgresRepo) findWebhooks(ctx context.Context, opName string, activeOnly bool) ([]model.Webhook, error) {
	var webhooks []model.Webhook
	operation := func() error {
		q := r.db.WithContext(ctx)
		if activeOnly {
			q = q.Where("is_active = ?", true)
		}
		if err := q.Order("id ASC").Find(&webhooks).Error; err != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, err)
		}
		return nil
	}

	if err := r.run(ctx, opName, "webhook", readRetryMaxElapsedTime, operation); err != nil {
		logger.FromContext(ctx).Error("Failed to list webhooks", zap.Bool("active_only", activeOnly), zap.Error(err))
		return nil, err
	}
	if webhooks == nil {
		return []model.Webhook{}, nil
	}
	return webhooks, nil
}

// FindWebhookMappings returns the mapping rules of a webhook in insertion order.
func (r *PostgresRepo) FindWebhookMappings(ctx context.Context, webhookID int64) ([]model.WebhookMapping, error) {
	var mappings []model.WebhookMapping
	operation := func() error {
		result := r.db.WithContext(ctx).Where("webhook_id = ?", webhookID).Order("id ASC").Find(&mappings)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	if err := r.run(ctx, "find_by_webhook", "webhook_mapping", readRetryMaxElapsedTime, operation); err != nil {
		logger.FromContext(ctx).Error("Failed to load webhook mappings", zap.Int64("webhook_id", webhookID), zap.Error(err))
		return nil, err
	}
	if mappings == nil {
		return []model.WebhookMapping{}, nil
	}
	return mappings, nil
}

// ReplaceWebhookMappings swaps the full mapping set atomically.
func (r *PostgresRepo) ReplaceWebhookMappings(ctx context.Context, webhookID int64, mappings []model.WebhookMapping) error {
	operation := func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&model.Webhook{}).Where("id = ?", webhookID).Count(&count).Error; err != nil {
				return checkConstraintViolation(err)
			}
			if count == 0 {
				return fmt.Errorf("%w: webhook %d", apperrors.ErrNotFound, webhookID)
			}
			if err := tx.Where("webhook_id = ?", webhookID).Delete(&model.WebhookMapping{}).Error; err != nil {
				return checkConstraintViolation(err)
			}
			if len(mappings) == 0 {
				return nil
			}
			for i := range mappings {
				mappings[i].ID = 0
				mappings[i].WebhookID = webhookID
			}
			return checkConstraintViolation(tx.Create(&mappings).Error)
		})
	}

	err := r.run(ctx, "replace", "webhook_mapping", commitRetryMaxElapsedTime, operation)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		logger.FromContext(ctx).Error("Failed to replace webhook mappings", zap.Int64("webhook_id", webhookID), zap.Error(err))
	}
	return err
}
