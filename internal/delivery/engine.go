// Package delivery executes single webhook calls: it maps and enriches the
// event, performs the HTTP request, records the attempt and queues failed
// calls for redelivery.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/tapfield/rfid-tag-logger/internal/mapper"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/internal/observer"
	"gitlab.com/tapfield/rfid-tag-logger/internal/settings"
	"gitlab.com/tapfield/rfid-tag-logger/internal/storage"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

// DisplayNameKey is the payload key the configured display name is written to.
const DisplayNameKey = "display_name"

const (
	defaultTimeout   = 10 * time.Second
	defaultBaseDelay = time.Minute
	maxResponseBytes = 1 << 20
)

// Executor runs one webhook call. Implemented by *Engine.
type Executor interface {
	ExecuteWebhook(ctx context.Context, webhook model.Webhook, eventData model.Document) ([]byte, error)
}

// Options tunes an Engine. Zero values select the defaults.
type Options struct {
	Timeout        time.Duration
	RetryBaseDelay time.Duration
	HTTPClient     *http.Client
}

// Engine implements Executor.
type Engine struct {
	webhooks  storage.WebhookRepo
	logs      storage.WebhookLogRepo
	queue     storage.RetryQueueRepo
	settings  settings.Provider
	client    *http.Client
	baseDelay time.Duration
	log       *zap.Logger
}

var _ Executor = (*Engine)(nil)

// NewEngine wires the engine to its stores.
func NewEngine(
	webhooks storage.WebhookRepo,
	logs storage.WebhookLogRepo,
	queue storage.RetryQueueRepo,
	provider settings.Provider,
	opts Options,
	log *zap.Logger,
) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = defaultBaseDelay
	}
	client := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		client = &copied
	}
	client.Timeout = opts.Timeout
	if log == nil {
		log = logger.Log
	}

	return &Engine{
		webhooks:  webhooks,
		logs:      logs,
		queue:     queue,
		settings:  provider,
		client:    client,
		baseDelay: opts.RetryBaseDelay,
		log:       log.Named("delivery"),
	}
}

// Backoff returns the delay before attempt number retryCount: 2^retryCount
// times base.
func Backoff(retryCount int, base time.Duration) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	return time.Duration(int64(1)<<uint(retryCount)) * base
}

// ExecuteWebhook delivers eventData to webhook. On success it returns the
// response body. A network failure or a 5xx response queues eventData, not the
// mapped payload, for redelivery.
func (e *Engine) ExecuteWebhook(ctx context.Context, webhook model.Webhook, eventData model.Document) ([]byte, error) {
	return e.execute(ctx, webhook, eventData, true)
}

// Redeliver performs the same call as ExecuteWebhook without queueing on
// failure. The retry worker owns rescheduling of the item it is draining.
func (e *Engine) Redeliver(ctx context.Context, webhook model.Webhook, eventData model.Document) ([]byte, error) {
	return e.execute(ctx, webhook, eventData, false)
}

func (e *Engine) execute(ctx context.Context, webhook model.Webhook, eventData model.Document, enqueueOnFailure bool) ([]byte, error) {
	start := time.Now()
	log := logger.FromContextOr(ctx, e.log).With(
		zap.Int64("webhook_id", webhook.ID),
		zap.String("method", webhook.HTTPMethod),
	)

	payload, err := e.BuildPayload(ctx, webhook, eventData)
	if err != nil {
		// Mapping rules could not be loaded; the attempt never left the process.
		derr := &DeliveryError{WebhookID: webhook.ID, Message: err.Error(), Retryable: true, Err: err}
		return nil, e.fail(ctx, log, webhook, eventData, eventData, derr, enqueueOnFailure, start)
	}

	sent, req, err := e.newRequest(ctx, webhook, payload)
	if err != nil {
		derr := &DeliveryError{WebhookID: webhook.ID, Message: err.Error(), Err: err}
		return nil, e.fail(ctx, log, webhook, payload, eventData, derr, enqueueOnFailure, start)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		derr := &DeliveryError{WebhookID: webhook.ID, Message: err.Error(), Retryable: true, Err: err}
		return nil, e.fail(ctx, log, webhook, sent, eventData, derr, enqueueOnFailure, start)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		log.Warn("Failed to read webhook response body", zap.Error(readErr))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		derr := &DeliveryError{
			WebhookID:  webhook.ID,
			StatusCode: resp.StatusCode,
			Body:       body,
			Message:    failureMessage(resp.StatusCode, body),
			Retryable:  resp.StatusCode >= http.StatusInternalServerError,
		}
		return nil, e.fail(ctx, log, webhook, sent, eventData, derr, enqueueOnFailure, start)
	}

	responseBody := string(body)
	e.record(ctx, log, &model.WebhookLog{
		WebhookID:      webhook.ID,
		Payload:        sent,
		ResponseStatus: resp.StatusCode,
		ResponseBody:   &responseBody,
	})
	observer.ObserveWebhookDelivery(webhook.HTTPMethod, resp.StatusCode, true, false, time.Since(start))
	log.Debug("Webhook delivered", zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))

	return body, nil
}

// BuildPayload applies the webhook's mappings and the settings-driven
// enrichment. eventData is not modified.
func (e *Engine) BuildPayload(ctx context.Context, webhook model.Webhook, eventData model.Document) (model.Document, error) {
	mappings, err := e.webhooks.FindMappings(ctx, webhook.ID)
	if err != nil {
		return nil, fmt.Errorf("load mappings for webhook %d: %w", webhook.ID, err)
	}
	payload := mapper.ApplyMappings(eventData, mappings)

	displayName, err := e.settings.DisplayName(ctx)
	if err != nil || displayName == "" {
		if err != nil {
			e.log.Warn("Display name unavailable, using default", zap.Error(err))
		}
		displayName = settings.DefaultDisplayName
	}
	payload[DisplayNameKey] = displayName

	cardKey, err := e.settings.CardUIDKey(ctx)
	if err != nil {
		e.log.Warn("Card UID key unavailable, keeping default key", zap.Error(err))
		return payload, nil
	}
	if cardKey != "" && cardKey != settings.DefaultCardUIDKey {
		if v, ok := payload[settings.DefaultCardUIDKey]; ok {
			payload[cardKey] = v
			delete(payload, settings.DefaultCardUIDKey)
		}
	}
	return payload, nil
}

// newRequest encodes payload as a JSON body for POST/PUT/PATCH and as query
// parameters otherwise. It returns the JSON form of what was sent.
func (e *Engine) newRequest(ctx context.Context, webhook model.Webhook, payload model.Document) (datatypes.JSON, *http.Request, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("encode payload: %w", err)
	}

	headers, err := webhook.HeaderMap()
	if err != nil {
		return encoded, nil, err
	}

	method := strings.ToUpper(webhook.HTTPMethod)
	if method == "" {
		method = model.MethodPost
	}

	var req *http.Request
	if webhook.SendsBody() {
		req, err = http.NewRequestWithContext(ctx, method, webhook.TargetURL, bytes.NewReader(encoded))
		if err != nil {
			return encoded, nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		target, err := url.Parse(webhook.TargetURL)
		if err != nil {
			return encoded, nil, fmt.Errorf("parse target url: %w", err)
		}
		query := target.Query()
		for k, v := range payload {
			if v == nil {
				continue
			}
			query.Set(k, utils.Stringify(v))
		}
		target.RawQuery = query.Encode()
		req, err = http.NewRequestWithContext(ctx, method, target.String(), nil)
		if err != nil {
			return encoded, nil, fmt.Errorf("build request: %w", err)
		}
	}

	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return encoded, req, nil
}

func (e *Engine) fail(
	ctx context.Context,
	log *zap.Logger,
	webhook model.Webhook,
	sent interface{},
	eventData model.Document,
	derr *DeliveryError,
	enqueueOnFailure bool,
	start time.Time,
) error {
	var payload datatypes.JSON
	switch p := sent.(type) {
	case datatypes.JSON:
		payload = p
	default:
		if data, err := json.Marshal(p); err == nil {
			payload = data
		}
	}

	message := derr.Message
	e.record(ctx, log, &model.WebhookLog{
		WebhookID:      webhook.ID,
		Payload:        payload,
		ResponseStatus: derr.StatusCode,
		ErrorMessage:   &message,
	})

	queued := false
	if derr.Retryable && enqueueOnFailure {
		queued = e.enqueue(ctx, log, webhook.ID, eventData)
	}

	observer.ObserveWebhookDelivery(webhook.HTTPMethod, derr.StatusCode, false, queued, time.Since(start))
	log.Warn("Webhook delivery failed",
		zap.Int("status", derr.StatusCode),
		zap.String("error", derr.Message),
		zap.Bool("retry_queued", queued),
	)
	return derr
}

func (e *Engine) enqueue(ctx context.Context, log *zap.Logger, webhookID int64, eventData model.Document) bool {
	data, err := json.Marshal(eventData)
	if err != nil {
		log.Error("Cannot encode event for retry", zap.Error(err))
		return false
	}
	item := &model.RetryQueueItem{
		WebhookID:  webhookID,
		Payload:    datatypes.JSON(data),
		NextRetry:  utils.Now().Add(Backoff(0, e.baseDelay)),
		RetryCount: 0,
	}
	if err := e.queue.Enqueue(ctx, item); err != nil {
		log.Error("Failed to enqueue webhook retry", zap.Error(err))
		return false
	}
	return true
}

// record persists the attempt. A log write failure never fails the delivery.
func (e *Engine) record(ctx context.Context, log *zap.Logger, entry *model.WebhookLog) {
	if err := e.logs.Save(ctx, entry); err != nil {
		log.Error("Failed to record webhook attempt", zap.Error(err))
	}
}

func failureMessage(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("request failed with status code %d", status)
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		return utils.Stringify(decoded)
	}
	return trimmed
}

// AsDeliveryError extracts a *DeliveryError from err.
func AsDeliveryError(err error) (*DeliveryError, bool) {
	var derr *DeliveryError
	if errors.As(err, &derr) {
		return derr, true
	}
	return nil, false
}
