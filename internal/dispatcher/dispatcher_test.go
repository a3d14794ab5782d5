package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/tapfield/rfid-tag-logger/internal/apperrors"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	storagemock "gitlab.com/tapfield/rfid-tag-logger/internal/storage/mock"
)

type executorMock struct {
	mock.Mock
}

func (m *executorMock) ExecuteWebhook(ctx context.Context, webhook model.Webhook, eventData model.Document) ([]byte, error) {
	args := m.Called(ctx, webhook, eventData)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func hooks(ids ...int64) []model.Webhook {
	out := make([]model.Webhook, 0, len(ids))
	for _, id := range ids {
		out = append(out, *model.NewWebhook(&model.Webhook{ID: id}))
	}
	return out
}

func byID(id int64) interface{} {
	return mock.MatchedBy(func(w model.Webhook) bool { return w.ID == id })
}

func TestDispatch_IsolatesFailures(t *testing.T) {
	repo := new(storagemock.WebhookRepoMock)
	exec := new(executorMock)

	repo.On("FindActive", mock.Anything).Return(hooks(1, 2, 3), nil)
	exec.On("ExecuteWebhook", mock.Anything, byID(1), mock.Anything).Return([]byte("one"), nil)
	exec.On("ExecuteWebhook", mock.Anything, byID(2), mock.Anything).
		Run(func(mock.Arguments) { panic("synchronous failure") })
	exec.On("ExecuteWebhook", mock.Anything, byID(3), mock.Anything).Return([]byte("three"), nil)

	d := New(repo, exec, zaptest.NewLogger(t))

	var results [][]byte
	require.NotPanics(t, func() {
		results = d.Dispatch(context.Background(), model.Document{"id": 42, "card_uid": "04A1B2C3"})
	})

	assert.ElementsMatch(t, [][]byte{[]byte("one"), []byte("three")}, results)
	exec.AssertNumberOfCalls(t, "ExecuteWebhook", 3)
}

func TestDispatch_DeliveryErrorsAreDropped(t *testing.T) {
	repo := new(storagemock.WebhookRepoMock)
	exec := new(executorMock)

	repo.On("FindActive", mock.Anything).Return(hooks(1, 2), nil)
	exec.On("ExecuteWebhook", mock.Anything, byID(1), mock.Anything).Return(nil, apperrors.ErrDelivery)
	exec.On("ExecuteWebhook", mock.Anything, byID(2), mock.Anything).Return(nil, errors.New("timeout"))

	results := New(repo, exec, zaptest.NewLogger(t)).Dispatch(context.Background(), model.Document{})

	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestDispatch_RunsConcurrently(t *testing.T) {
	repo := new(storagemock.WebhookRepoMock)
	exec := new(executorMock)

	repo.On("FindActive", mock.Anything).Return(hooks(1, 2, 3, 4), nil)
	exec.On("ExecuteWebhook", mock.Anything, mock.Anything, mock.Anything).
		After(100*time.Millisecond).
		Return([]byte("ok"), nil)

	start := time.Now()
	results := New(repo, exec, zaptest.NewLogger(t)).Dispatch(context.Background(), model.Document{})

	assert.Len(t, results, 4)
	assert.Less(t, time.Since(start), 350*time.Millisecond)
}

func TestDispatch_ListFailure(t *testing.T) {
	repo := new(storagemock.WebhookRepoMock)
	exec := new(executorMock)
	repo.On("FindActive", mock.Anything).Return(nil, apperrors.ErrDatabase)

	results := New(repo, exec, zaptest.NewLogger(t)).Dispatch(context.Background(), model.Document{})

	assert.Empty(t, results)
	exec.AssertNotCalled(t, "ExecuteWebhook", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_DoesNotShareEventMap(t *testing.T) {
	repo := new(storagemock.WebhookRepoMock)
	exec := new(executorMock)

	repo.On("FindActive", mock.Anything).Return(hooks(1), nil)
	exec.On("ExecuteWebhook", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).(model.Document)["card_uid"] = "tampered"
		}).
		Return([]byte("ok"), nil)

	event := model.Document{"card_uid": "04A1B2C3"}
	New(repo, exec, zaptest.NewLogger(t)).Dispatch(context.Background(), event)

	assert.Equal(t, "04A1B2C3", event["card_uid"])
}

func TestDispatchEvent(t *testing.T) {
	repo := new(storagemock.WebhookRepoMock)
	exec := new(executorMock)

	repo.On("FindActive", mock.Anything).Return(hooks(1), nil)
	exec.On("ExecuteWebhook", mock.Anything, mock.Anything, mock.MatchedBy(func(d model.Document) bool {
		return d["card_uid"] == "CAFE0001"
	})).Return([]byte("ok"), nil)

	event := model.NewTagEvent(&model.TagEvent{CardUID: "CAFE0001"})
	results, err := New(repo, exec, zaptest.NewLogger(t)).DispatchEvent(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("ok")}, results)

	_, err = New(repo, exec, zaptest.NewLogger(t)).DispatchEvent(context.Background(), nil)
	assert.Error(t, err)
}
