// Package dispatcher fans a stored tag event out to every active webhook.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/internal/delivery"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/internal/storage"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

// Dispatcher delivers one event to all active webhooks concurrently. Each
// delivery is independent; failures are logged and dropped from the result.
type Dispatcher struct {
	webhooks storage.WebhookRepo
	executor delivery.Executor
	logger   *zap.Logger
}

// New builds a Dispatcher.
func New(webhooks storage.WebhookRepo, executor delivery.Executor, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = logger.Log
	}
	return &Dispatcher{webhooks: webhooks, executor: executor, logger: log.Named("dispatcher")}
}

// Dispatch waits for every delivery and returns the successful response
// bodies in completion order. It never returns an error: a failure to list
// webhooks yields no results.
func (d *Dispatcher) Dispatch(ctx context.Context, eventData model.Document) [][]byte {
	start := time.Now()
	log := logger.FromContextOr(ctx, d.logger).With(zap.Any("event_id", eventData["id"]))

	webhooks, err := d.webhooks.FindActive(ctx)
	if err != nil {
		log.Error("Failed to load active webhooks, skipping fan-out", zap.Error(err))
		return [][]byte{}
	}
	if len(webhooks) == 0 {
		log.Debug("No active webhooks")
		return [][]byte{}
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make([][]byte, 0, len(webhooks))
	)

	for _, webhook := range webhooks {
		wg.Add(1)
		go func(webhook model.Webhook) {
			defer wg.Done()

			// Each goroutine gets its own top-level copy of the event.
			body, err := utils.CallSafely(func() ([]byte, error) {
				return d.executor.ExecuteWebhook(ctx, webhook, eventData.Clone())
			})
			if err != nil {
				log.Warn("Webhook delivery failed during fan-out",
					zap.Int64("webhook_id", webhook.ID),
					zap.String("webhook", webhook.Name),
					zap.Error(err),
				)
				return
			}

			mu.Lock()
			results = append(results, body)
			mu.Unlock()
		}(webhook)
	}
	wg.Wait()

	log.Info("Fan-out finished",
		zap.Int("webhooks", len(webhooks)),
		zap.Int("succeeded", len(results)),
		zap.Duration("took", time.Since(start)),
	)
	return results
}

// DispatchEvent renders a stored event and dispatches it.
func (d *Dispatcher) DispatchEvent(ctx context.Context, event *model.TagEvent) ([][]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("dispatch: nil event")
	}
	doc, err := event.Document()
	if err != nil {
		return nil, fmt.Errorf("dispatch event %d: %w", event.ID, err)
	}
	return d.Dispatch(ctx, doc), nil
}
