package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
)

// --- TagEventRepo Mock ---

// TagEventRepoMock mocks the TagEventRepo interface
type TagEventRepoMock struct {
	mock.Mock
}

func (m *TagEventRepoMock) Insert(ctx context.Context, event *model.TagEvent) (int64, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TagEventRepoMock) GetByID(ctx context.Context, id int64) (*model.TagEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TagEvent), args.Error(1)
}

func (m *TagEventRepoMock) GetLatest(ctx context.Context) (*model.TagEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TagEvent), args.Error(1)
}

func (m *TagEventRepoMock) FindLatestForCard(ctx context.Context, cardUID string, from, to time.Time) (*model.TagEvent, error) {
	args := m.Called(ctx, cardUID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TagEvent), args.Error(1)
}

func (m *TagEventRepoMock) Query(ctx context.Context, filter model.TagEventFilter) ([]model.TagEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TagEvent), args.Error(1)
}

func (m *TagEventRepoMock) SetProcessed(ctx context.Context, id int64, processed bool) error {
	args := m.Called(ctx, id, processed)
	return args.Error(0)
}

func (m *TagEventRepoMock) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// --- WebhookRepo Mock ---

// WebhookRepoMock mocks the WebhookRepo interface
type WebhookRepoMock struct {
	mock.Mock
}

func (m *WebhookRepoMock) Create(ctx context.Context, webhook *model.Webhook) error {
	args := m.Called(ctx, webhook)
	return args.Error(0)
}

func (m *WebhookRepoMock) Update(ctx context.Context, webhook *model.Webhook) error {
	args := m.Called(ctx, webhook)
	return args.Error(0)
}

func (m *WebhookRepoMock) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *WebhookRepoMock) FindByID(ctx context.Context, id int64) (*model.Webhook, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Webhook), args.Error(1)
}

func (m *WebhookRepoMock) List(ctx context.Context) ([]model.Webhook, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Webhook), args.Error(1)
}

func (m *WebhookRepoMock) FindActive(ctx context.Context) ([]model.Webhook, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Webhook), args.Error(1)
}

func (m *WebhookRepoMock) FindMappings(ctx context.Context, webhookID int64) ([]model.WebhookMapping, error) {
	args := m.Called(ctx, webhookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WebhookMapping), args.Error(1)
}

func (m *WebhookRepoMock) ReplaceMappings(ctx context.Context, webhookID int64, mappings []model.WebhookMapping) error {
	args := m.Called(ctx, webhookID, mappings)
	return args.Error(0)
}

// --- WebhookLogRepo Mock ---

// WebhookLogRepoMock mocks the WebhookLogRepo interface
type WebhookLogRepoMock struct {
	mock.Mock
}

func (m *WebhookLogRepoMock) Save(ctx context.Context, entry *model.WebhookLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *WebhookLogRepoMock) FindByWebhookID(ctx context.Context, webhookID int64, limit, offset int) ([]model.WebhookLog, error) {
	args := m.Called(ctx, webhookID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WebhookLog), args.Error(1)
}

func (m *WebhookLogRepoMock) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// --- RetryQueueRepo Mock ---

// RetryQueueRepoMock mocks the RetryQueueRepo interface
type RetryQueueRepoMock struct {
	mock.Mock
}

func (m *RetryQueueRepoMock) Enqueue(ctx context.Context, item *model.RetryQueueItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *RetryQueueRepoMock) FindDue(ctx context.Context, now time.Time, maxRetries, limit int) ([]model.RetryQueueItem, error) {
	args := m.Called(ctx, now, maxRetries, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RetryQueueItem), args.Error(1)
}

func (m *RetryQueueRepoMock) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *RetryQueueRepoMock) Reschedule(ctx context.Context, id int64, retryCount int, nextRetry time.Time) error {
	args := m.Called(ctx, id, retryCount, nextRetry)
	return args.Error(0)
}

func (m *RetryQueueRepoMock) List(ctx context.Context, limit, offset int) ([]model.RetryQueueItem, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RetryQueueItem), args.Error(1)
}

// --- SettingRepo Mock ---

// SettingRepoMock mocks the SettingRepo interface
type SettingRepoMock struct {
	mock.Mock
}

func (m *SettingRepoMock) Get(ctx context.Context, key string) (*model.Setting, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Setting), args.Error(1)
}

func (m *SettingRepoMock) Upsert(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *SettingRepoMock) List(ctx context.Context) ([]model.Setting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Setting), args.Error(1)
}

// --- Pinger Mock ---

// PingerMock mocks the Pinger interface
type PingerMock struct {
	mock.Mock
}

func (m *PingerMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
