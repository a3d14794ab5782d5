// Package retryworker drains the retry queue on a fixed period, redelivering
// failed webhook calls with exponential backoff.
package retryworker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/internal/config"
	"gitlab.com/tapfield/rfid-tag-logger/internal/delivery"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/internal/observer"
	"gitlab.com/tapfield/rfid-tag-logger/internal/storage"
	"gitlab.com/tapfield/rfid-tag-logger/internal/workerpool"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

const itemTimeout = time.Minute

// Sweep item outcomes, also used as metric labels.
const (
	ResultDelivered   = "delivered"
	ResultRescheduled = "rescheduled"
	ResultAbandoned   = "abandoned"
)

// Redeliverer performs a webhook call without queueing on failure.
type Redeliverer interface {
	Redeliver(ctx context.Context, webhook model.Webhook, eventData model.Document) ([]byte, error)
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Selected    int
	Delivered   int
	Rescheduled int
	Abandoned   int
}

// Worker runs the periodic retry sweep. A single instance per deployment is
// assumed: selection takes no row locks.
type Worker struct {
	cfg       config.RetryConfig
	logger    *zap.Logger
	queue     storage.RetryQueueRepo
	webhooks  storage.WebhookRepo
	deliverer Redeliverer
	pool      *ants.Pool
	clock     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	stopWg sync.WaitGroup
}

// NewWorker creates a worker and its item pool.
func NewWorker(cfg config.RetryConfig, log *zap.Logger, queue storage.RetryQueueRepo, webhooks storage.WebhookRepo, deliverer Redeliverer) (*Worker, error) {
	if log == nil {
		log = logger.Log
	}
	pool, err := workerpool.New(cfg.PoolSize, log)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		cfg:       cfg,
		logger:    log.Named("retry_worker"),
		queue:     queue,
		webhooks:  webhooks,
		deliverer: deliverer,
		pool:      pool,
		clock:     utils.Now,
	}
	w.logger.Info("Retry worker initialized",
		zap.Duration("interval", cfg.Interval),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("pool_size", cfg.PoolSize),
	)
	return w, nil
}

// Start sweeps once per interval until ctx is cancelled or Stop is called.
// It blocks.
func (w *Worker) Start(ctx context.Context) error {
	derivedCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.stopWg.Add(1)
	defer w.stopWg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Info("Retry worker started")
	for {
		select {
		case <-derivedCtx.Done():
			w.logger.Info("Retry worker context cancelled, stopping sweep loop")
			return nil
		case <-ticker.C:
			w.Sweep(derivedCtx)
		}
	}
}

// Stop cancels the loop, waits for the current sweep and releases the pool.
func (w *Worker) Stop() {
	w.logger.Info("Stopping retry worker...")
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	w.stopWg.Wait()
	if err := w.pool.ReleaseTimeout(5 * time.Second); err != nil {
		w.logger.Warn("Retry pool release timed out", zap.Error(err))
	}
	w.logger.Info("Retry worker stopped")
}

// Sweep processes up to BatchSize due items concurrently and waits for them.
// Failures are logged, never returned.
func (w *Worker) Sweep(ctx context.Context) SweepResult {
	start := time.Now()
	now := w.clock().UTC()
	var result SweepResult

	defer utils.RecoverWithLog(ctx, "retry_sweep")

	items, err := w.queue.FindDue(ctx, now, w.cfg.MaxRetries, w.cfg.BatchSize)
	if err != nil {
		w.logger.Error("Retry sweep failed to select due items", zap.Error(err))
		observer.ObserveRetrySweep(time.Since(start), err)
		return result
	}
	result.Selected = len(items)
	if len(items) == 0 {
		observer.ObserveRetrySweep(time.Since(start), nil)
		return result
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	tally := func(outcome string) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case ResultDelivered:
			result.Delivered++
		case ResultRescheduled:
			result.Rescheduled++
		case ResultAbandoned:
			result.Abandoned++
		}
		observer.IncRetrySweepItem(outcome)
	}

	for _, item := range items {
		current := item
		wg.Add(1)
		err := w.pool.Submit(func() {
			defer wg.Done()
			taskCtx, taskCancel := context.WithTimeout(context.WithoutCancel(ctx), itemTimeout)
			defer taskCancel()
			tally(w.processItem(taskCtx, current, now))
		})
		if err != nil {
			wg.Done()
			w.logger.Error("Failed to submit retry item to pool; it stays due for the next sweep",
				zap.Int64("item_id", current.ID), zap.Error(err))
		}
	}
	wg.Wait()

	observer.ObserveRetrySweep(time.Since(start), nil)
	w.logger.Info("Retry sweep finished",
		zap.Int("selected", result.Selected),
		zap.Int("delivered", result.Delivered),
		zap.Int("rescheduled", result.Rescheduled),
		zap.Int("abandoned", result.Abandoned),
		zap.Duration("took", time.Since(start)),
	)
	return result
}

// processItem makes one redelivery attempt and updates the queue row.
func (w *Worker) processItem(ctx context.Context, item model.RetryQueueItem, now time.Time) (outcome string) {
	log := w.logger.With(
		zap.Int64("item_id", item.ID),
		zap.Int64("webhook_id", item.WebhookID),
		zap.Int("retry_count", item.RetryCount),
	)
	ctx = logger.WithLogger(ctx, log)

	if err := w.attempt(ctx, item); err != nil {
		return w.reschedule(ctx, log, item, now, err)
	}

	if err := w.queue.Delete(ctx, item.ID); err != nil {
		log.Error("Redelivered but failed to remove queue item", zap.Error(err))
	} else {
		log.Info("Queued webhook call redelivered")
	}
	return ResultDelivered
}

func (w *Worker) attempt(ctx context.Context, item model.RetryQueueItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during redelivery: %v", r)
		}
	}()

	webhook, err := w.webhooks.FindByID(ctx, item.WebhookID)
	if err != nil {
		return fmt.Errorf("load webhook %d: %w", item.WebhookID, err)
	}
	data, err := model.ParseDocument(item.Payload)
	if err != nil {
		return err
	}
	_, err = w.deliverer.Redeliver(ctx, *webhook, data)
	return err
}

func (w *Worker) reschedule(ctx context.Context, log *zap.Logger, item model.RetryQueueItem, now time.Time, cause error) string {
	retryCount := item.RetryCount + 1
	nextRetry := now.Add(delivery.Backoff(retryCount, w.cfg.BaseDelay))

	if err := w.queue.Reschedule(ctx, item.ID, retryCount, nextRetry); err != nil {
		log.Error("Failed to reschedule queue item", zap.Error(err), zap.NamedError("cause", cause))
		return ResultRescheduled
	}

	if retryCount >= w.cfg.MaxRetries {
		log.Warn("Retry limit reached, item abandoned",
			zap.Int("attempts", retryCount),
			zap.Error(cause),
		)
		return ResultAbandoned
	}
	log.Info("Redelivery failed, rescheduled",
		zap.Int("attempts", retryCount),
		zap.Time("next_retry", nextRetry),
		zap.Error(cause),
	)
	return ResultRescheduled
}
