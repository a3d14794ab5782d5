package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
)

type eventsMock struct{ mock.Mock }

func (m *eventsMock) CreateEvent(ctx context.Context, input model.TagEventInput, sourceIPFallback string) (*model.TagEvent, error) {
	args := m.Called(ctx, input, sourceIPFallback)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TagEvent), args.Error(1)
}

func (m *eventsMock) GetEvent(ctx context.Context, id int64) (*model.TagEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TagEvent), args.Error(1)
}

func (m *eventsMock) QueryEvents(ctx context.Context, filter model.TagEventFilter) ([]model.TagEvent, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TagEvent), args.Error(1)
}

func (m *eventsMock) SetProcessed(ctx context.Context, id int64, processed bool) (*model.TagEvent, error) {
	args := m.Called(ctx, id, processed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TagEvent), args.Error(1)
}

type webhooksMock struct{ mock.Mock }

func (m *webhooksMock) Create(ctx context.Context, payload model.WebhookPayload) (*model.Webhook, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Webhook), args.Error(1)
}

func (m *webhooksMock) Update(ctx context.Context, id int64, payload model.WebhookPayload) (*model.Webhook, error) {
	args := m.Called(ctx, id, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Webhook), args.Error(1)
}

func (m *webhooksMock) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *webhooksMock) Get(ctx context.Context, id int64) (*model.Webhook, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Webhook), args.Error(1)
}

func (m *webhooksMock) List(ctx context.Context) ([]model.Webhook, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Webhook), args.Error(1)
}

func (m *webhooksMock) ReplaceMappings(ctx context.Context, id int64, payload model.ReplaceMappingsPayload) ([]model.WebhookMapping, error) {
	args := m.Called(ctx, id, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WebhookMapping), args.Error(1)
}

func (m *webhooksMock) Logs(ctx context.Context, id int64, limit, offset int) ([]model.WebhookLog, error) {
	args := m.Called(ctx, id, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WebhookLog), args.Error(1)
}

func (m *webhooksMock) RetryQueue(ctx context.Context, limit, offset int) ([]model.RetryQueueItem, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RetryQueueItem), args.Error(1)
}

type settingsMock struct{ mock.Mock }

func (m *settingsMock) List(ctx context.Context) ([]model.Setting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Setting), args.Error(1)
}

func (m *settingsMock) Set(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

type maintenanceMock struct{ mock.Mock }

func (m *maintenanceMock) Cleanup(ctx context.Context, payload model.CleanupPayload) (*model.CleanupResult, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CleanupResult), args.Error(1)
}

type dispatcherMock struct{ mock.Mock }

func (m *dispatcherMock) DispatchEvent(ctx context.Context, event *model.TagEvent) ([][]byte, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]byte), args.Error(1)
}

type triggerMock struct{ mock.Mock }

func (m *triggerMock) Trigger(ctx context.Context, event *model.TagEvent) error {
	return m.Called(ctx, event).Error(0)
}
