package storage

import (
	"context"
	"time"

	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
)

// TagEventRepo defines event store operations. Write contention surfaces as
// apperrors.ErrStoreBusy; missing rows as apperrors.ErrNotFound.
type TagEventRepo interface {
	Insert(ctx context.Context, event *model.TagEvent) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.TagEvent, error)
	GetLatest(ctx context.Context) (*model.TagEvent, error)
	FindLatestForCard(ctx context.Context, cardUID string, from, to time.Time) (*model.TagEvent, error)
	Query(ctx context.Context, filter model.TagEventFilter) ([]model.TagEvent, error)
	SetProcessed(ctx context.Context, id int64, processed bool) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// WebhookRepo defines webhook and mapping storage operations
type WebhookRepo interface {
	Create(ctx context.Context, webhook *model.Webhook) error
	Update(ctx context.Context, webhook *model.Webhook) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*model.Webhook, error)
	List(ctx context.Context) ([]model.Webhook, error)
	FindActive(ctx context.Context) ([]model.Webhook, error)
	FindMappings(ctx context.Context, webhookID int64) ([]model.WebhookMapping, error)
	ReplaceMappings(ctx context.Context, webhookID int64, mappings []model.WebhookMapping) error
}

// WebhookLogRepo defines delivery log storage operations
type WebhookLogRepo interface {
	Save(ctx context.Context, entry *model.WebhookLog) error
	FindByWebhookID(ctx context.Context, webhookID int64, limit, offset int) ([]model.WebhookLog, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetryQueueRepo defines retry queue storage operations
type RetryQueueRepo interface {
	Enqueue(ctx context.Context, item *model.RetryQueueItem) error
	FindDue(ctx context.Context, now time.Time, maxRetries, limit int) ([]model.RetryQueueItem, error)
	Delete(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, id int64, retryCount int, nextRetry time.Time) error
	List(ctx context.Context, limit, offset int) ([]model.RetryQueueItem, error)
}

// SettingRepo defines key-value settings storage operations
type SettingRepo interface {
	Get(ctx context.Context, key string) (*model.Setting, error)
	Upsert(ctx context.Context, key, value string) error
	List(ctx context.Context) ([]model.Setting, error)
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
