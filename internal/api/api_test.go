package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/tapfield/rfid-tag-logger/internal/apperrors"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
)

type testServer struct {
	events      *eventsMock
	webhooks    *webhooksMock
	settings    *settingsMock
	maintenance *maintenanceMock
	dispatcher  *dispatcherMock
	trigger     *triggerMock
	router      *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	s := &testServer{
		events:      new(eventsMock),
		webhooks:    new(webhooksMock),
		settings:    new(settingsMock),
		maintenance: new(maintenanceMock),
		dispatcher:  new(dispatcherMock),
		trigger:     new(triggerMock),
	}
	a := New(Deps{
		Events:      s.events,
		Webhooks:    s.webhooks,
		Settings:    s.settings,
		Maintenance: s.maintenance,
		Dispatcher:  s.dispatcher,
		Trigger:     s.trigger,
	}, zaptest.NewLogger(t))
	s.router = a.Router(gin.TestMode)
	return s
}

func (s *testServer) do(method, route, body string) *httptest.ResponseRecorder {
	var payload io.Reader
	if body != "" {
		payload = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, route, payload)
	req.RemoteAddr = "192.0.2.10:41234"
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) APIError {
	var apiErr APIError
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &apiErr))
	return apiErr
}

// --- Tag events --- //

func TestCreateTagEvent_Created(t *testing.T) {
	s := newTestServer(t)
	event := model.NewTagEvent(&model.TagEvent{ID: 12, CardUID: "04A1B2C3"})

	s.events.On("CreateEvent", mock.Anything, model.TagEventInput{CardUID: "04A1B2C3"}, "192.0.2.10").Return(event, nil)
	s.trigger.On("Trigger", mock.Anything, event).Return(nil)

	resp := s.do(http.MethodPost, "/api/tags", `{"card_uid":"04A1B2C3"}`)

	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.NotEmpty(t, resp.Header().Get(RequestIDHeader))
	var got model.TagEvent
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, int64(12), got.ID)
	s.trigger.AssertExpectations(t)
}

func TestCreateTagEvent_Throttled(t *testing.T) {
	s := newTestServer(t)
	s.events.On("CreateEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	resp := s.do(http.MethodPost, "/api/tags", `{"card_uid":"04A1B2C3"}`)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"throttled":true}`, resp.Body.String())
	s.trigger.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything)
}

func TestCreateTagEvent_TriggerFailureStillCreated(t *testing.T) {
	s := newTestServer(t)
	event := model.NewTagEvent(&model.TagEvent{ID: 3})
	s.events.On("CreateEvent", mock.Anything, mock.Anything, mock.Anything).Return(event, nil)
	s.trigger.On("Trigger", mock.Anything, event).Return(apperrors.ErrNATS)

	resp := s.do(http.MethodPost, "/api/tags", `{"card_uid":"`+event.CardUID+`"}`)

	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestCreateTagEvent_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		status   int
		code     ErrorCode
		hidesMsg bool
	}{
		{name: "malformed json", body: `{"card_uid":`, status: http.StatusBadRequest, code: ErrCodeBadRequest},
		{name: "validation", body: `{}`, err: apperrors.ErrValidation, status: http.StatusUnprocessableEntity, code: ErrCodeInvalidInput},
		{name: "bad timestamp", body: `{"card_uid":"x","event_time":"soon"}`, err: apperrors.ErrBadRequest, status: http.StatusBadRequest, code: ErrCodeBadRequest},
		{name: "store busy", body: `{"card_uid":"x"}`, err: apperrors.NewRetryable(apperrors.ErrStoreBusy, "store tag event"), status: http.StatusServiceUnavailable, code: ErrCodeUnavailable, hidesMsg: true},
		{name: "unreadable insert", body: `{"card_uid":"x"}`, err: apperrors.NewFatal(errors.New("gone"), "read back"), status: http.StatusInternalServerError, code: ErrCodeInternal, hidesMsg: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			if tt.err != nil {
				s.events.On("CreateEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			resp := s.do(http.MethodPost, "/api/tags", tt.body)

			assert.Equal(t, tt.status, resp.Code)
			apiErr := decodeError(t, resp)
			assert.Equal(t, tt.code, apiErr.Code)
			if tt.hidesMsg {
				assert.Equal(t, http.StatusText(tt.status), apiErr.Message)
			}
			if tt.status == http.StatusServiceUnavailable {
				assert.Equal(t, "1", resp.Header().Get("Retry-After"))
			} else {
				assert.Empty(t, resp.Header().Get("Retry-After"))
			}
		})
	}
}

func TestQueryTagEvents(t *testing.T) {
	s := newTestServer(t)
	from := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	processed := false
	want := model.TagEventFilter{CardUID: "04A1B2C3", From: &from, Processed: &processed, Limit: 20, Offset: 40}

	s.events.On("QueryEvents", mock.Anything, want).Return([]model.TagEvent{}, nil)

	resp := s.do(http.MethodGet, "/api/tags?card_uid=04A1B2C3&from=2024-03-01T08:00:00%2B02:00&processed=false&limit=20&offset=40", "")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())
}

func TestQueryTagEvents_BadParams(t *testing.T) {
	s := newTestServer(t)

	for _, query := range []string{"from=yesterday", "processed=maybe", "limit=-1", "offset=x"} {
		resp := s.do(http.MethodGet, "/api/tags?"+query, "")
		assert.Equal(t, http.StatusBadRequest, resp.Code, query)
	}
	s.events.AssertNotCalled(t, "QueryEvents", mock.Anything, mock.Anything)
}

func TestGetTagEvent(t *testing.T) {
	s := newTestServer(t)
	s.events.On("GetEvent", mock.Anything, int64(5)).Return(model.NewTagEvent(&model.TagEvent{ID: 5}), nil)
	s.events.On("GetEvent", mock.Anything, int64(6)).Return(nil, apperrors.ErrNotFound)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/tags/5", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/tags/6", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/tags/abc", "").Code)
}

func TestSetTagEventProcessed(t *testing.T) {
	s := newTestServer(t)
	s.events.On("SetProcessed", mock.Anything, int64(5), true).
		Return(model.NewTagEvent(&model.TagEvent{ID: 5, ProcessedFlag: true}), nil)

	resp := s.do(http.MethodPatch, "/api/tags/5/processed", `{"processed":true}`)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = s.do(http.MethodPatch, "/api/tags/5/processed", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDispatchTagEvent(t *testing.T) {
	s := newTestServer(t)
	event := model.NewTagEvent(&model.TagEvent{ID: 8})
	s.events.On("GetEvent", mock.Anything, int64(8)).Return(event, nil)
	s.dispatcher.On("DispatchEvent", mock.Anything, event).
		Return([][]byte{[]byte(`{"employee":"Ada"}`), []byte("OK")}, nil)

	resp := s.do(http.MethodPost, "/api/tags/8/dispatch", "")

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"event_id":8,"results":[{"employee":"Ada"},"OK"]}`, resp.Body.String())
}

// --- Webhooks --- //

func TestCreateWebhook(t *testing.T) {
	s := newTestServer(t)
	created := model.NewWebhook(&model.Webhook{ID: 1, Name: "HR", IsActive: true})
	s.webhooks.On("Create", mock.Anything, mock.MatchedBy(func(p model.WebhookPayload) bool {
		return p.Name == "HR" && len(p.Mappings) == 1
	})).Return(created, nil)

	resp := s.do(http.MethodPost, "/api/webhooks",
		`{"name":"HR","target_url":"https://hr.example.com/hook","http_method":"POST","mappings":[{"from_key":"card_uid","to_key":"badge"}]}`)

	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestWebhookRoutes(t *testing.T) {
	s := newTestServer(t)
	s.webhooks.On("List", mock.Anything).Return([]model.Webhook{*model.NewWebhook()}, nil)
	s.webhooks.On("Get", mock.Anything, int64(2)).Return(nil, apperrors.ErrNotFound)
	s.webhooks.On("Delete", mock.Anything, int64(2)).Return(nil)
	s.webhooks.On("Update", mock.Anything, int64(2), mock.Anything).Return(nil, apperrors.ErrValidation)
	s.webhooks.On("ReplaceMappings", mock.Anything, int64(2), model.ReplaceMappingsPayload{
		Mappings: []model.MappingPayload{{FromKey: "a.b", ToKey: "x.y"}},
	}).Return([]model.WebhookMapping{{ID: 1, WebhookID: 2, FromKey: "a.b", ToKey: "x.y"}}, nil)
	s.webhooks.On("Logs", mock.Anything, int64(2), 10, 0).Return([]model.WebhookLog{}, nil)
	s.webhooks.On("RetryQueue", mock.Anything, 0, 0).Return([]model.RetryQueueItem{}, nil)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/webhooks", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/webhooks/2", "").Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/webhooks/2", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, s.do(http.MethodPut, "/api/webhooks/2", `{"name":"x"}`).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/webhooks/2/mappings", `{"mappings":[{"from_key":"a.b","to_key":"x.y"}]}`).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/webhooks/2/logs?limit=10", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/retry-queue", "").Code)
}

// --- Settings / maintenance --- //

func TestSettingsRoutes(t *testing.T) {
	s := newTestServer(t)
	s.settings.On("List", mock.Anything).Return([]model.Setting{{Key: "throttle_minutes", Value: "5"}}, nil)
	s.settings.On("Set", mock.Anything, "throttle_minutes", "10").Return(nil)
	s.settings.On("Set", mock.Anything, "throttle_minutes", "-1").Return(apperrors.ErrValidation)

	resp := s.do(http.MethodGet, "/api/settings", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "throttle_minutes")

	assert.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/settings/throttle_minutes", `{"value":"10"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, s.do(http.MethodPut, "/api/settings/throttle_minutes", `{"value":"-1"}`).Code)
}

func TestCleanup(t *testing.T) {
	s := newTestServer(t)
	s.maintenance.On("Cleanup", mock.Anything, model.CleanupPayload{OlderThanDays: 30}).
		Return(&model.CleanupResult{TagEventsDeleted: 4, WebhookLogDeleted: 9}, nil)

	resp := s.do(http.MethodPost, "/api/maintenance/cleanup", `{"older_than_days":30}`)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"tag_events_deleted":4`)
}

// --- Middleware --- //

func TestRecovery(t *testing.T) {
	s := newTestServer(t)
	s.webhooks.On("List", mock.Anything).Run(func(mock.Arguments) { panic("boom") })

	resp := s.do(http.MethodGet, "/api/webhooks", "")

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, ErrCodeInternal, decodeError(t, resp).Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newTestServer(t)
	s.settings.On("List", mock.Anything).Return([]model.Setting{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)

	assert.Equal(t, "req-123", resp.Header().Get(RequestIDHeader))
}
