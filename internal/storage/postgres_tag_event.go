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
)

const (
	defaultTagEventPageSize = 100
	maxTagEventPageSize     = 1000
)

// --- Tag Event Repository Methods ---

// InsertTagEvent appends a scan and returns its id. A zero EventTime is left
// to the database default (insert time). Lock contention is not retried
// here; it surfaces as apperrors.ErrStoreBusy.
func (r *PostgresRepo) InsertTagEvent(ctx context.Context, event *model.TagEvent) (int64, error) {
	if event.CardUID == "" {
		return 0, fmt.Errorf("%w: card_uid is required", apperrors.ErrValidation)
	}
	if !event.EventTime.IsZero() {
		event.EventTime = event.EventTime.UTC()
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Create(event)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: create operation affected 0 rows", apperrors.ErrDatabase)
		}
		return nil
	}

	if err := r.run(ctx, "insert", "tag_event", commitRetryMaxElapsedTime, operation); err != nil {
		log := logger.FromContext(ctx)
		if apperrors.IsStoreBusyError(err) {
			log.Warn("Tag event insert hit write contention", zap.String("card_uid", event.CardUID), zap.Error(err))
		} else {
			log.Error("Failed to insert tag event", zap.String("card_uid", event.CardUID), zap.Error(err))
		}
		return 0, err
	}
	return event.ID, nil
}

// FindTagEventByID returns apperrors.ErrNotFound when no row has the id.
func (r *PostgresRepo) FindTagEventByID(ctx context.Context, id int64) (*model.TagEvent, error) {
	var event model.TagEvent
	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Where("id = ?", id).Take(&event).Error)
	}

	if err := r.run(ctx, "find_by_id", "tag_event", readRetryMaxElapsedTime, operation); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find tag event by id", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	return &event, nil
}

// FindLatestTagEvent returns the row with the highest id.
func (r *PostgresRepo) FindLatestTagEvent(ctx context.Context) (*model.TagEvent, error) {
	var event model.TagEvent
	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Order("id DESC").Take(&event).Error)
	}

	if err := r.run(ctx, "find_latest", "tag_event", readRetryMaxElapsedTime, operation); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find latest tag event", zap.Error(err))
		return nil, err
	}
	return &event, nil
}

// FindLatestTagEventForCard returns the most recent event for cardUID with
// event_time in [from, to].
func (r *PostgresRepo) FindLatestTagEventForCard(ctx context.Context, cardUID string, from, to time.Time) (*model.TagEvent, error) {
	from, to = from.UTC(), to.UTC()

	var event model.TagEvent
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("card_uid = ? AND event_time >= ? AND event_time <= ?", cardUID, from, to).
			Order("event_time DESC").
			Take(&event)
		return checkConstraintViolation(result.Error)
	}

	if err := r.run(ctx, "find_latest_for_card", "tag_event", readRetryMaxElapsedTime, operation); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find latest tag event for card",
			zap.String("card_uid", cardUID),
			zap.Time("from", from),
			zap.Time("to", to),
			zap.Error(err))
		return nil, err
	}
	return &event, nil
}

// QueryTagEvents lists events newest first.
func (r *PostgresRepo) QueryTagEvents(ctx context.Context, filter model.TagEventFilter) ([]model.TagEvent, error) {
	limit, offset := normalizePage(filter.Limit, filter.Offset, defaultTagEventPageSize, maxTagEventPageSize)

	var events []model.TagEvent
	operation := func() error {
		q := r.db.WithContext(ctx).Model(&model.TagEvent{})
		if filter.CardUID != "" {
			q = q.Where("card_uid = ?", filter.CardUID)
		}
		if filter.From != nil {
			q = q.Where("event_time >= ?", filter.From.UTC())
		}
		if filter.To != nil {
			q = q.Where("event_time <= ?", filter.To.UTC())
		}
		if filter.Processed != nil {
			q = q.Where("processed_flag = ?", *filter.Processed)
		}
		result := q.Order("id DESC").Limit(limit).Offset(offset).Find(&events)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	if err := r.run(ctx, "query", "tag_event", readRetryMaxElapsedTime, operation); err != nil {
		logger.FromContext(ctx).Error("Failed to query tag events", zap.Any("filter", filter), zap.Error(err))
		return nil, err
	}
	if events == nil {
		return []model.TagEvent{}, nil
	}
	return events, nil
}

// SetTagEventProcessed updates processed_flag only.
func (r *PostgresRepo) SetTagEventProcessed(ctx context.Context, id int64, processed bool) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.TagEvent{}).
			Where("id = ?", id).
			Update("processed_flag", processed)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: tag event %d", apperrors.ErrNotFound, id)
		}
		return nil
	}

	err := r.run(ctx, "set_processed", "tag_event", commitRetryMaxElapsedTime, operation)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		logger.FromContext(ctx).Error("Failed to update processed flag", zap.Int64("id", id), zap.Error(err))
	}
	return err
}

// DeleteTagEventsBefore removes events created before cutoff.
func (r *PostgresRepo) DeleteTagEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	operation := func() error {
		result := r.db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&model.TagEvent{})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		deleted = result.RowsAffected
		return nil
	}

	if err := r.run(ctx, "delete_before", "tag_event", commitRetryMaxElapsedTime, operation); err != nil {
		logger.FromContext(ctx).Error("Failed to delete old tag events", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, err
	}
	return deleted, nil
}
