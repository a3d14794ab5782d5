package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/tapfield/rfid-tag-logger/internal/apperrors"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/internal/storage"
	"gitlab.com/tapfield/rfid-tag-logger/internal/validator"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

// WebhookService administers webhooks, their mappings, delivery logs and the
// retry queue.
type WebhookService struct {
	webhooks storage.WebhookRepo
	logs     storage.WebhookLogRepo
	queue    storage.RetryQueueRepo
}

// NewWebhookService creates a new webhook admin service
func NewWebhookService(webhooks storage.WebhookRepo, logs storage.WebhookLogRepo, queue storage.RetryQueueRepo) *WebhookService {
	return &WebhookService{webhooks: webhooks, logs: logs, queue: queue}
}

// Create validates the payload and stores the webhook with its mappings.
// A missing is_active defaults to true.
func (s *WebhookService) Create(ctx context.Context, payload model.WebhookPayload) (*model.Webhook, error) {
	if err := validator.Validate(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	webhook := toWebhook(payload)
	if payload.IsActive == nil {
		webhook.IsActive = true
	}
	webhook.Mappings = toMappings(0, payload.Mappings)

	if err := s.webhooks.Create(ctx, webhook); err != nil {
		return nil, wrapRepoError(err, "create webhook")
	}

	logger.FromContext(ctx).Info("Webhook created",
		zap.Int64("webhook_id", webhook.ID),
		zap.String("name", webhook.Name),
		zap.Int("mappings", len(webhook.Mappings)),
	)
	return webhook, nil
}

// Update replaces the webhook's attributes. Mappings are replaced only when
// the payload carries them.
func (s *WebhookService) Update(ctx context.Context, id int64, payload model.WebhookPayload) (*model.Webhook, error) {
	if err := validator.Validate(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	current, err := s.webhooks.FindByID(ctx, id)
	if err != nil {
		return nil, wrapRepoError(err, "load webhook %d", id)
	}

	webhook := toWebhook(payload)
	webhook.ID = id
	webhook.IsActive = current.IsActive
	if payload.IsActive != nil {
		webhook.IsActive = *payload.IsActive
	}

	if err := s.webhooks.Update(ctx, webhook); err != nil {
		return nil, wrapRepoError(err, "update webhook %d", id)
	}
	if payload.Mappings != nil {
		if err := s.webhooks.ReplaceMappings(ctx, id, toMappings(id, payload.Mappings)); err != nil {
			return nil, wrapRepoError(err, "replace mappings of webhook %d", id)
		}
	}

	logger.FromContext(ctx).Info("Webhook updated", zap.Int64("webhook_id", id))
	return s.Get(ctx, id)
}

// Delete removes a webhook and its mappings.
func (s *WebhookService) Delete(ctx context.Context, id int64) error {
	if err := s.webhooks.Delete(ctx, id); err != nil {
		return wrapRepoError(err, "delete webhook %d", id)
	}
	logger.FromContext(ctx).Info("Webhook deleted", zap.Int64("webhook_id", id))
	return nil
}

// Get returns one webhook with its mappings.
func (s *WebhookService) Get(ctx context.Context, id int64) (*model.Webhook, error) {
	webhook, err := s.webhooks.FindByID(ctx, id)
	if err != nil {
		return nil, wrapRepoError(err, "get webhook %d", id)
	}
	return webhook, nil
}

// List returns every webhook, active or not.
func (s *WebhookService) List(ctx context.Context) ([]model.Webhook, error) {
	webhooks, err := s.webhooks.List(ctx)
	if err != nil {
		return nil, wrapRepoError(err, "list webhooks")
	}
	return webhooks, nil
}

// ReplaceMappings swaps the whole mapping set of a webhook.
func (s *WebhookService) ReplaceMappings(ctx context.Context, id int64, payload model.ReplaceMappingsPayload) ([]model.WebhookMapping, error) {
	if err := validator.Validate(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	mappings := toMappings(id, payload.Mappings)
	if err := s.webhooks.ReplaceMappings(ctx, id, mappings); err != nil {
		return nil, wrapRepoError(err, "replace mappings of webhook %d", id)
	}
	logger.FromContext(ctx).Info("Webhook mappings replaced",
		zap.Int64("webhook_id", id),
		zap.Int("mappings", len(mappings)),
	)
	return s.webhooks.FindMappings(ctx, id)
}

// Logs lists delivery attempts of one webhook, newest first.
func (s *WebhookService) Logs(ctx context.Context, id int64, limit, offset int) ([]model.WebhookLog, error) {
	if _, err := s.webhooks.FindByID(ctx, id); err != nil {
		return nil, wrapRepoError(err, "get webhook %d", id)
	}
	logs, err := s.logs.FindByWebhookID(ctx, id, limit, offset)
	if err != nil {
		return nil, wrapRepoError(err, "list logs of webhook %d", id)
	}
	return logs, nil
}

// RetryQueue lists pending and abandoned redeliveries.
func (s *WebhookService) RetryQueue(ctx context.Context, limit, offset int) ([]model.RetryQueueItem, error) {
	items, err := s.queue.List(ctx, limit, offset)
	if err != nil {
		return nil, wrapRepoError(err, "list retry queue")
	}
	return items, nil
}

func toWebhook(payload model.WebhookPayload) *model.Webhook {
	webhook := &model.Webhook{
		Name:       payload.Name,
		TargetURL:  payload.TargetURL,
		HTTPMethod: payload.HTTPMethod,
	}
	if payload.IsActive != nil {
		webhook.IsActive = *payload.IsActive
	}
	if len(payload.Headers) > 0 {
		webhook.Headers = datatypes.JSON(utils.MustMarshalJSON(payload.Headers))
	}
	return webhook
}

func toMappings(webhookID int64, payload []model.MappingPayload) []model.WebhookMapping {
	mappings := make([]model.WebhookMapping, 0, len(payload))
	for _, m := range payload {
		mappings = append(mappings, model.WebhookMapping{WebhookID: webhookID, FromKey: m.FromKey, ToKey: m.ToKey})
	}
	return mappings
}
