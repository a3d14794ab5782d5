package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/tapfield/rfid-tag-logger/internal/apperrors"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/internal/observer"
	"gitlab.com/tapfield/rfid-tag-logger/internal/settings"
	"gitlab.com/tapfield/rfid-tag-logger/internal/storage"
	"gitlab.com/tapfield/rfid-tag-logger/internal/validator"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

// Tag event outcomes reported to metrics.
const (
	ResultCreated   = "created"
	ResultThrottled = "throttled"
	ResultError     = "error"
)

const (
	defaultBusyAttempts = 3
	defaultBusyDelay    = 100 * time.Millisecond
)

// IngestionOptions tunes the write-contention retry of CreateEvent.
type IngestionOptions struct {
	BusyAttempts int
	BusyDelay    time.Duration
}

// TagEventService records scans and serves the stored event log.
type TagEventService struct {
	events   storage.TagEventRepo
	settings settings.Provider
	opts     IngestionOptions
	clock    func() time.Time
}

// NewTagEventService creates a new tag event service
func NewTagEventService(events storage.TagEventRepo, provider settings.Provider, opts IngestionOptions) *TagEventService {
	if opts.BusyAttempts < 1 {
		opts.BusyAttempts = defaultBusyAttempts
	}
	if opts.BusyDelay <= 0 {
		opts.BusyDelay = defaultBusyDelay
	}
	return &TagEventService{
		events:   events,
		settings: provider,
		opts:     opts,
		clock:    utils.Now,
	}
}

// CreateEvent stores one scan and returns the row as persisted. A nil event
// with a nil error means the scan fell inside the throttle window and nothing
// was written.
func (s *TagEventService) CreateEvent(ctx context.Context, input model.TagEventInput, sourceIPFallback string) (*model.TagEvent, error) {
	log := logger.FromContext(ctx).With(zap.String("card_uid", input.CardUID))
	start := utils.Now()

	event, err := s.buildEvent(input, sourceIPFallback)
	if err != nil {
		log.Warn("Rejected tag event input", zap.Error(err))
		observer.IncTagEvent(ResultError)
		return nil, err
	}

	throttled, err := s.isThrottled(ctx, event.CardUID)
	if err != nil {
		log.Error("Throttle check failed", zap.Error(err))
		observer.IncTagEvent(ResultError)
		return nil, err
	}
	if throttled {
		log.Info("Tag event throttled")
		observer.IncTagEvent(ResultThrottled)
		return nil, nil
	}

	id, err := s.insertWithBusyRetry(ctx, event)
	if err != nil {
		log.Error("Failed to store tag event", zap.Error(err))
		observer.IncTagEvent(ResultError)
		return nil, wrapRepoError(err, "store tag event")
	}

	stored, err := s.readBack(ctx, id)
	if err != nil {
		log.Error("Stored tag event could not be read back", zap.Int64("event_id", id), zap.Error(err))
		observer.IncTagEvent(ResultError)
		return nil, err
	}

	observer.IncTagEvent(ResultCreated)
	log.Info("Tag event recorded",
		zap.Int64("event_id", stored.ID),
		zap.Time("event_time", stored.EventTime),
		zap.Duration("duration", time.Since(start)),
	)
	return stored, nil
}

func (s *TagEventService) buildEvent(input model.TagEventInput, sourceIPFallback string) (*model.TagEvent, error) {
	if err := validator.Validate(input); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	event := &model.TagEvent{
		CardUID:   input.CardUID,
		SourceIP:  input.SourceIP,
		PurposeID: input.PurposeID,
	}
	if event.SourceIP == "" {
		event.SourceIP = sourceIPFallback
	}
	if input.EventTime != "" {
		ts, err := utils.ParseTimestamp(input.EventTime)
		if err != nil {
			return nil, fmt.Errorf("%w: event_time: %v", apperrors.ErrBadRequest, err)
		}
		event.EventTime = ts
	}
	if input.PurposeData != nil {
		raw, err := json.Marshal(input.PurposeData)
		if err != nil {
			return nil, fmt.Errorf("%w: purpose_data: %v", apperrors.ErrBadRequest, err)
		}
		event.PurposeData = datatypes.JSON(raw)
	}
	return event, nil
}

// isThrottled looks for an earlier scan of the same card inside
// [now-window, now]. Both bounds are UTC, as are stored event times.
func (s *TagEventService) isThrottled(ctx context.Context, cardUID string) (bool, error) {
	window, err := s.settings.ThrottleWindow(ctx)
	if err != nil {
		return false, wrapRepoError(err, "read throttle window")
	}
	if window <= 0 {
		return false, nil
	}

	now := s.clock().UTC()
	prior, err := s.events.FindLatestForCard(ctx, cardUID, now.Add(-window), now)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return false, nil
	case err != nil:
		return false, wrapRepoError(err, "look up previous scan")
	}
	return prior != nil, nil
}

// insertWithBusyRetry retries only on write contention, at a constant pace.
func (s *TagEventService) insertWithBusyRetry(ctx context.Context, event *model.TagEvent) (int64, error) {
	var id int64
	operation := func() error {
		row := *event
		newID, err := s.events.Insert(ctx, &row)
		if err != nil {
			if apperrors.IsStoreBusyError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		id = newID
		return nil
	}

	notify := func(err error, d time.Duration) {
		observer.IncStoreBusyRetry()
		logger.FromContext(ctx).Warn("Event store busy, retrying insert",
			zap.String("card_uid", event.CardUID),
			zap.Duration("after", d),
			zap.Error(err),
		)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.BusyDelay), uint64(s.opts.BusyAttempts-1)),
		ctx,
	)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return 0, err
	}
	return id, nil
}

// readBack prefers the row by id and falls back to the newest row.
func (s *TagEventService) readBack(ctx context.Context, id int64) (*model.TagEvent, error) {
	event, err := s.events.GetByID(ctx, id)
	if err == nil && event != nil {
		return event, nil
	}
	logger.FromContext(ctx).Warn("Read-back by id failed, falling back to latest event",
		zap.Int64("event_id", id),
		zap.Error(err),
	)

	latest, latestErr := s.events.GetLatest(ctx)
	if latestErr == nil && latest != nil {
		return latest, nil
	}
	return nil, apperrors.NewFatal(
		errors.Join(apperrors.ErrDatabase, err, latestErr),
		"tag event %d was inserted but cannot be read", id,
	)
}

// GetEvent returns one stored event.
func (s *TagEventService) GetEvent(ctx context.Context, id int64) (*model.TagEvent, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, wrapRepoError(err, "get tag event %d", id)
	}
	return event, nil
}

// QueryEvents lists stored events, newest first.
func (s *TagEventService) QueryEvents(ctx context.Context, filter model.TagEventFilter) ([]model.TagEvent, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, fmt.Errorf("%w: from must not be after to", apperrors.ErrBadRequest)
	}
	events, err := s.events.Query(ctx, filter)
	if err != nil {
		return nil, wrapRepoError(err, "query tag events")
	}
	return events, nil
}

// SetProcessed flips processed_flag and returns the updated row.
func (s *TagEventService) SetProcessed(ctx context.Context, id int64, processed bool) (*model.TagEvent, error) {
	if err := s.events.SetProcessed(ctx, id, processed); err != nil {
		return nil, wrapRepoError(err, "set processed flag on tag event %d", id)
	}
	logger.FromContext(ctx).Info("Tag event processed flag updated",
		zap.Int64("event_id", id),
		zap.Bool("processed", processed),
	)
	return s.GetEvent(ctx, id)
}
