package storage

import (
	"context"
	"time"

	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
)

// TagEventRepoAdapter adapts the PostgresRepo to the TagEventRepo interface
type TagEventRepoAdapter struct {
	postgres *PostgresRepo
}

// NewTagEventRepoAdapter creates a new tag event repository adapter
func NewTagEventRepoAdapter(postgres *PostgresRepo) TagEventRepo {
	return &TagEventRepoAdapter{postgres: postgres}
}

func (a *TagEventRepoAdapter) Insert(ctx context.Context, event *model.TagEvent) (int64, error) {
	return a.postgres.InsertTagEvent(ctx, event)
}

func (a *TagEventRepoAdapter) GetByID(ctx context.Context, id int64) (*model.TagEvent, error) {
	return a.postgres.FindTagEventByID(ctx, id)
}

func (a *TagEventRepoAdapter) GetLatest(ctx context.Context) (*model.TagEvent, error) {
	return a.postgres.FindLatestTagEvent(ctx)
}

func (a *TagEventRepoAdapter) FindLatestForCard(ctx context.Context, cardUID string, from, to time.Time) (*model.TagEvent, error) {
	return a.postgres.FindLatestTagEventForCard(ctx, cardUID, from, to)
}

func (a *TagEventRepoAdapter) Query(ctx context.Context, filter model.TagEventFilter) ([]model.TagEvent, error) {
	return a.postgres.QueryTagEvents(ctx, filter)
}

func (a *TagEventRepoAdapter) SetProcessed(ctx context.Context, id int64, processed bool) error {
	return a.postgres.SetTagEventProcessed(ctx, id, processed)
}

func (a *TagEventRepoAdapter) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return a.postgres.DeleteTagEventsBefore(ctx, cutoff)
}

// WebhookRepoAdapter adapts the PostgresRepo to the WebhookRepo interface
type WebhookRepoAdapter struct {
	postgres *PostgresRepo
}

// NewWebhookRepoAdapter creates a new webhook repository adapter
func NewWebhookRepoAdapter(postgres *PostgresRepo) WebhookRepo {
	return &WebhookRepoAdapter{postgres: postgres}
}

func (a *WebhookRepoAdapter) Create(ctx context.Context, webhook *model.Webhook) error {
	return a.postgres.CreateWebhook(ctx, webhook)
}

func (a *WebhookRepoAdapter) Update(ctx context.Context, webhook *model.Webhook) error {
	return a.postgres.UpdateWebhook(ctx, webhook)
}

func (a *WebhookRepoAdapter) Delete(ctx context.Context, id int64) error {
	return a.postgres.DeleteWebhook(ctx, id)
}

func (a *WebhookRepoAdapter) FindByID(ctx context.Context, id int64) (*model.Webhook, error) {
	return a.postgres.FindWebhookByID(ctx, id)
}

func (a *WebhookRepoAdapter) List(ctx context.Context) ([]model.Webhook, error) {
	return a.postgres.ListWebhooks(ctx)
}

func (a *WebhookRepoAdapter) FindActive(ctx context.Context) ([]model.Webhook, error) {
	return a.postgres.FindActiveWebhooks(ctx)
}

func (a *WebhookRepoAdapter) FindMappings(ctx context.Context, webhookID int64) ([]model.WebhookMapping, error) {
	return a.postgres.FindWebhookMappings(ctx, webhookID)
}

func (a *WebhookRepoAdapter) ReplaceMappings(ctx context.Context, webhookID int64, mappings []model.WebhookMapping) error {
	return a.postgres.ReplaceWebhookMappings(ctx, webhookID, mappings)
}

// WebhookLogRepoAdapter adapts the PostgresRepo to the WebhookLogRepo interface
type WebhookLogRepoAdapter struct {
	postgres *PostgresRepo
}

// NewWebhookLogRepoAdapter creates a new webhook log repository adapter
func NewWebhookLogRepoAdapter(postgres *PostgresRepo) WebhookLogRepo {
	return &WebhookLogRepoAdapter{postgres: postgres}
}

func (a *WebhookLogRepoAdapter) Save(ctx context.Context, entry *model.WebhookLog) error {
	return a.postgres.SaveWebhookLog(ctx, entry)
}

func (a *WebhookLogRepoAdapter) FindByWebhookID(ctx context.Context, webhookID int64, limit, offset int) ([]model.WebhookLog, error) {
	return a.postgres.FindWebhookLogs(ctx, webhookID, limit, offset)
}

func (a *WebhookLogRepoAdapter) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return a.postgres.DeleteWebhookLogsBefore(ctx, cutoff)
}

// RetryQueueRepoAdapter adapts the PostgresRepo to the RetryQueueRepo interface
type RetryQueueRepoAdapter struct {
	postgres *PostgresRepo
}

// NewRetryQueueRepoAdapter creates a new retry queue repository adapter
func NewRetryQueueRepoAdapter(postgres *PostgresRepo) RetryQueueRepo {
	return &RetryQueueRepoAdapter{postgres: postgres}
}

func (a *RetryQueueRepoAdapter) Enqueue(ctx context.Context, item *model.RetryQueueItem) error {
	return a.postgres.EnqueueRetryItem(ctx, item)
}

func (a *RetryQueueRepoAdapter) FindDue(ctx context.Context, now time.Time, maxRetries, limit int) ([]model.RetryQueueItem, error) {
	return a.postgres.FindDueRetryItems(ctx, now, maxRetries, limit)
}

func (a *RetryQueueRepoAdapter) Delete(ctx context.Context, id int64) error {
	return a.postgres.DeleteRetryItem(ctx, id)
}

func (a *RetryQueueRepoAdapter) Reschedule(ctx context.Context, id int64, retryCount int, nextRetry time.Time) error {
	return a.postgres.RescheduleRetryItem(ctx, id, retryCount, nextRetry)
}

func (a *RetryQueueRepoAdapter) List(ctx context.Context, limit, offset int) ([]model.RetryQueueItem, error) {
	return a.postgres.ListRetryItems(ctx, limit, offset)
}

// SettingRepoAdapter adapts the PostgresRepo to the SettingRepo interface
type SettingRepoAdapter struct {
	postgres *PostgresRepo
}

// NewSettingRepoAdapter creates a new settings repository adapter
func NewSettingRepoAdapter(postgres *PostgresRepo) SettingRepo {
	return &SettingRepoAdapter{postgres: postgres}
}

func (a *SettingRepoAdapter) Get(ctx context.Context, key string) (*model.Setting, error) {
	return a.postgres.FindSetting(ctx, key)
}

func (a *SettingRepoAdapter) Upsert(ctx context.Context, key, value string) error {
	return a.postgres.UpsertSetting(ctx, key, value)
}

func (a *SettingRepoAdapter) List(ctx context.Context) ([]model.Setting, error) {
	return a.postgres.ListSettings(ctx)
}

var (
	_ Pinger = (*PostgresRepo)(nil)
)
