package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
)

// doJSON sends body (marshalled unless it is already a string) and returns
// the status and raw response body.
func doJSON(ctx context.Context, method, url string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	return resp.StatusCode, raw, err
}

// createWebhook registers an active POST webhook through the API.
func (s *BaseIntegrationSuite) createWebhook(app *testApp, name, targetURL string) model.Webhook {
	status, body, err := doJSON(s.Ctx, http.MethodPost, app.URL+"/api/webhooks", model.WebhookPayload{
		Name:       name,
		TargetURL:  targetURL,
		HTTPMethod: model.MethodPost,
	})
	s.Require().NoError(err)
	s.Require().Equal(http.StatusCreated, status, string(body))

	var webhook model.Webhook
	s.Require().NoError(json.Unmarshal(body, &webhook))
	s.Require().NotZero(webhook.ID)
	return webhook
}

// postTag registers a scan and returns the status and body.
func (s *BaseIntegrationSuite) postTag(app *testApp, input model.TagEventInput) (int, []byte) {
	status, body, err := doJSON(s.Ctx, http.MethodPost, app.URL+"/api/tags", input)
	s.Require().NoError(err)
	return status, body
}

// webhookTarget is a receiving endpoint whose response status can be
// switched mid-test. It records every body it is sent.
type webhookTarget struct {
	*httptest.Server
	status atomic.Int32

	mu     sync.Mutex
	bodies [][]byte
}

func newWebhookTarget(status int) *webhookTarget {
	t := &webhookTarget{}
	t.status.Store(int32(status))
	t.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		t.mu.Lock()
		t.bodies = append(t.bodies, raw)
		t.mu.Unlock()
		w.WriteHeader(int(t.status.Load()))
		_, _ = w.Write([]byte(`{"received":true}`))
	}))
	return t
}

func (t *webhookTarget) SetStatus(status int) {
	t.status.Store(int32(status))
}

func (t *webhookTarget) Hits() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.bodies)
}

// Body decodes the nth received payload.
func (t *webhookTarget) Body(n int) (map[string]interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n >= len(t.bodies) {
		return nil, fmt.Errorf("only %d payloads received", len(t.bodies))
	}
	var out map[string]interface{}
	err := json.Unmarshal(t.bodies[n], &out)
	return out, err
}
