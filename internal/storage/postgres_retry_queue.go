package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/internal/apperrors"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

// --- Retry Queue Repository Methods ---

// EnqueueRetryItem stores a failed delivery for later redelivery.
func (r *PostgresRepo) EnqueueRetryItem(ctx context.Context, item *model.RetryQueueItem) error {
	item.NextRetry = item.NextRetry.UTC()
	operation := func() error {
		result := r.db.WithContext(ctx).Create(item)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := r.run(ctx, "enqueue", "retry_queue", commitRetryMaxElapsedTime, operation); err != nil {
		logger.FromContext(ctx).Error("Failed to enqueue retry item",
			zap.Int64("webhook_id", item.WebhookID),
			zap.Error(err))
		return err
	}
	return nil
}

// FindDueRetryItems selects up to limit items with next_retry <= now and
// retry_count < maxRetries. Order among eligible items is by next_retry.
func (r *PostgresRepo) FindDueRetryItems(ctx context.Context, now time.Time, maxRetries, limit int) ([]model.RetryQueueItem, error) {
	now = now.UTC()

	var items []model.RetryQueueItem
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("next_retry <= ? AND retry_count < ?", now, maxRetries).
			Order("next_retry ASC").
			Limit(limit).
			Find(&items)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	if err := r.run(ctx, "find_due", "retry_queue", readRetryMaxElapsedTime, operation); err != nil {
		logger.FromContext(ctx).Error("Failed to fetch due retry items", zap.Time("now", now), zap.Error(err))
		return nil, err
	}
	if items == nil {
		return []model.RetryQueueItem{}, nil
	}
	return items, nil
}

// DeleteRetryItem removes a delivered item.
func (r *PostgresRepo) DeleteRetryItem(ctx context.Context, id int64) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.RetryQueueItem{})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: retry item %d", apperrors.ErrNotFound, id)
		}
		return nil
	}

	err := r.run(ctx, "delete", "retry_queue", commitRetryMaxElapsedTime, operation)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		logger.FromContext(ctx).Error("Failed to delete retry item", zap.Int64("id", id), zap.Error(err))
	}
	return err
}

// RescheduleRetryItem records a failed redelivery.
func (r *PostgresRepo) RescheduleRetryItem(ctx context.Context, id int64, retryCount int, nextRetry time.Time) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.RetryQueueItem{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"retry_count": retryCount,
				"next_retry":  nextRetry.UTC(),
				"updated_at":  utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: retry item %d", apperrors.ErrNotFound, id)
		}
		return nil
	}

	err := r.run(ctx, "reschedule", "retry_queue", commitRetryMaxElapsedTime, operation)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to reschedule retry item",
			zap.Int64("id", id),
			zap.Int("retry_count", retryCount),
			zap.Error(err))
	}
	return err
}

// ListRetryItems lists queue items, soonest first. Abandoned items are included.
func (r *PostgresRepo) ListRetryItems(ctx context.Context, limit, offset int) ([]model.RetryQueueItem, error) {
	limit, offset = normalizePage(limit, offset, defaultLogPageSize, maxLogPageSize)

	var items []model.RetryQueueItem
	operation := func() error {
		result := r.db.WithContext(ctx).Order("next_retry ASC").Limit(limit).Offset(offset).Find(&items)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	if err := r.run(ctx, "list", "retry_queue", readRetryMaxElapsedTime, operation); err != nil {
		logger.FromContext(ctx).Error("Failed to list retry items", zap.Error(err))
		return nil, err
	}
	if items == nil {
		return []model.RetryQueueItem{}, nil
	}
	return items, nil
}
