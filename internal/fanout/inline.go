package fanout

import (
	"context"
	"errors"
	"fmt"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/internal/config"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/internal/observer"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

// InlineTrigger runs Dispatch on an ants pool inside this process. The pool
// should be non-blocking so a saturated pool never stalls the caller.
type InlineTrigger struct {
	pool       *ants.Pool
	dispatcher Dispatcher
	logger     *zap.Logger
}

var _ Trigger = (*InlineTrigger)(nil)

// NewInlineTrigger creates an inline trigger backed by pool.
func NewInlineTrigger(pool *ants.Pool, dispatcher Dispatcher, log *zap.Logger) *InlineTrigger {
	if log == nil {
		log = logger.Log
	}
	return &InlineTrigger{pool: pool, dispatcher: dispatcher, logger: log.Named("fanout_inline")}
}

// Trigger renders the event and queues its dispatch. The dispatch outlives
// the caller's context, so request cancellation does not abort deliveries.
func (t *InlineTrigger) Trigger(ctx context.Context, event *model.TagEvent) (err error) {
	defer func() { observer.IncFanoutTrigger(config.FanoutInline, err) }()

	doc, err := event.Document()
	if err != nil {
		return fmt.Errorf("render tag event %d: %w", event.ID, err)
	}

	log := logger.FromContextOr(ctx, t.logger).With(zap.Int64("event_id", event.ID))
	detached := logger.WithLogger(context.WithoutCancel(ctx), log)

	task := func() {
		results := t.dispatcher.Dispatch(detached, doc)
		log.Debug("Inline fan-out completed", zap.Int("succeeded", len(results)))
	}

	err = t.pool.Submit(task)
	if errors.Is(err, ants.ErrPoolOverload) {
		// Every worker is busy; run outside the pool rather than hold the caller.
		log.Warn("Fan-out pool saturated, dispatching on a dedicated goroutine")
		utils.SafeGo(task, nil)
		return nil
	}
	if err != nil {
		log.Error("Failed to submit fan-out task", zap.Error(err))
		return fmt.Errorf("submit fan-out for tag event %d: %w", event.ID, err)
	}
	return nil
}
