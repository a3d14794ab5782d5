package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/internal/apperrors"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/internal/storage"
	"gitlab.com/tapfield/rfid-tag-logger/internal/validator"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

// MaintenanceService prunes old scans and delivery logs.
type MaintenanceService struct {
	events storage.TagEventRepo
	logs   storage.WebhookLogRepo
	clock  func() time.Time
}

// NewMaintenanceService creates a new maintenance service
func NewMaintenanceService(events storage.TagEventRepo, logs storage.WebhookLogRepo) *MaintenanceService {
	return &MaintenanceService{events: events, logs: logs, clock: utils.Now}
}

// Cleanup deletes tag events and webhook logs created before now minus
// OlderThanDays. Retry queue rows are left alone.
func (s *MaintenanceService) Cleanup(ctx context.Context, payload model.CleanupPayload) (*model.CleanupResult, error) {
	if err := validator.Validate(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	cutoff := s.clock().UTC().AddDate(0, 0, -payload.OlderThanDays)
	result := &model.CleanupResult{Cutoff: cutoff}

	events, err := s.events.DeleteBefore(ctx, cutoff)
	if err != nil {
		return nil, wrapRepoError(err, "delete tag events before %s", utils.FormatISO8601(cutoff))
	}
	result.TagEventsDeleted = events

	logs, err := s.logs.DeleteBefore(ctx, cutoff)
	if err != nil {
		return nil, wrapRepoError(err, "delete webhook logs before %s", utils.FormatISO8601(cutoff))
	}
	result.WebhookLogDeleted = logs

	logger.FromContext(ctx).Info("Cleanup finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("tag_events_deleted", events),
		zap.Int64("webhook_logs_deleted", logs),
	)
	return result, nil
}
