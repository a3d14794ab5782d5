package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/internal/apperrors"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
)

const (
	defaultLogPageSize = 50
	maxLogPageSize     = 500
)

// --- Webhook Log Repository Methods ---

// SaveWebhookLog appends a delivery attempt record.
func (r *PostgresRepo) SaveWebhookLog(ctx context.Context, entry *model.WebhookLog) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Create(entry)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: create operation affected 0 rows", apperrors.ErrDatabase)
		}
		return nil
	}

	if err := r.run(ctx, "save", "webhook_log", commitRetryMaxElapsedTime, operation); err != nil {
		logger.FromContext(ctx).Error("Failed to save webhook log",
			zap.Int64("webhook_id", entry.WebhookID),
			zap.Int("response_status", entry.ResponseStatus),
			zap.Error(err))
		return err
	}
	return nil
}

// FindWebhookLogs lists the attempts for one webhook, newest first.
func (r *PostgresRepo) FindWebhookLogs(ctx context.Context, webhookID int64, limit, offset int) ([]model.WebhookLog, error) {
	limit, offset = normalizePage(limit, offset, defaultLogPageSize, maxLogPageSize)

	var entries []model.WebhookLog
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("webhook_id = ?", webhookID).
			Order("id DESC").
			Limit(limit).
			Offset(offset).
			Find(&entries)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	if err := r.run(ctx, "find_by_webhook", "webhook_log", readRetryMaxElapsedTime, operation); err != nil {
		logger.FromContext(ctx).Error("Failed to list webhook logs", zap.Int64("webhook_id", webhookID), zap.Error(err))
		return nil, err
	}
	if entries == nil {
		return []model.WebhookLog{}, nil
	}
	return entries, nil
}

// DeleteWebhookLogsBefore removes log rows created before cutoff.
func (r *PostgresRepo) DeleteWebhookLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	operation := func() error {
		result := r.db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&model.WebhookLog{})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		deleted = result.RowsAffected
		return nil
	}

	if err := r.run(ctx, "delete_before", "webhook_log", commitRetryMaxElapsedTime, operation); err != nil {
		logger.FromContext(ctx).Error("Failed to delete old webhook logs", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, err
	}
	return deleted, nil
}
