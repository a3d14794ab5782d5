package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/internal/config"
	"gitlab.com/tapfield/rfid-tag-logger/internal/jetstream"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/internal/observer"
	"gitlab.com/tapfield/rfid-tag-logger/internal/validator"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

// Action is what the consumer does with a message after handling it.
type Action string

const (
	ActionAck  Action = "ack"  // dispatched; individual delivery failures are the retry queue's job
	ActionTerm Action = "term" // undecodable, never redeliver
	ActionNak  Action = "nak"  // handler panicked, let JetStream redeliver
)

// Consumer reads TagEventCreated messages from the durable consumer and runs
// the dispatcher for each.
type Consumer struct {
	client     jetstream.ClientInterface
	cfg        config.NATSConfig
	dispatcher Dispatcher
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewConsumer creates a fan-out consumer. Call Setup then Start.
func NewConsumer(client jetstream.ClientInterface, cfg config.NATSConfig, dispatcher Dispatcher, log *zap.Logger) *Consumer {
	if log == nil {
		log = logger.Log
	}
	log = log.Named("fanout_consumer").With(zap.String("stream", cfg.Stream), zap.String("consumer", cfg.Consumer))
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		client:     client,
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     log,
		ctx:        logger.WithLogger(ctx, log),
		cancel:     cancel,
	}
}

// ConsumerConfig is the durable push consumer the fan-out subscription binds to.
func (c *Consumer) ConsumerConfig() *nats.ConsumerConfig {
	return &nats.ConsumerConfig{
		Durable:        c.cfg.Consumer,
		DeliverGroup:   c.cfg.Group,
		DeliverSubject: nats.NewInbox(),
		FilterSubject:  c.cfg.Subject,
		AckPolicy:      nats.AckExplicitPolicy,
		AckWait:        c.cfg.AckWait,
		MaxDeliver:     c.cfg.MaxDeliver,
		DeliverPolicy:  nats.DeliverAllPolicy,
		ReplayPolicy:   nats.ReplayInstantPolicy,
	}
}

// Setup ensures the stream and the durable consumer exist.
func (c *Consumer) Setup() error {
	c.logger.Info("Setting up fan-out consumer", zap.String("subject", c.cfg.Subject))

	if err := c.client.SetupStream(c.ctx, StreamConfig(c.cfg)); err != nil {
		return fmt.Errorf("failed to setup stream '%s': %w", c.cfg.Stream, err)
	}
	if err := c.client.SetupConsumer(c.ctx, c.cfg.Stream, c.ConsumerConfig()); err != nil {
		return fmt.Errorf("failed to setup consumer '%s' for stream '%s': %w", c.cfg.Consumer, c.cfg.Stream, err)
	}
	return nil
}

// Start subscribes. Messages are handled on the NATS delivery goroutine.
func (c *Consumer) Start() error {
	sub, err := c.client.SubscribePush(c.cfg.Subject, c.cfg.Consumer, c.cfg.Group, c.cfg.Stream, c.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe fan-out consumer '%s': %w", c.cfg.Consumer, err)
	}
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	c.logger.Info("Fan-out consumer subscribed")
	return nil
}

// Stop drains the subscription and cancels in-flight dispatches' parent context.
func (c *Consumer) Stop() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		if err := sub.Drain(); err != nil {
			c.logger.Error("Error draining fan-out subscription", zap.Error(err))
		}
	}
	c.cancel()
	c.logger.Info("Fan-out consumer stopped")
}

func (c *Consumer) handleMessage(msg *nats.Msg) {
	start := utils.Now()
	log := c.logger.With(zap.String("subject", msg.Subject))
	if msg.Header != nil {
		log = log.With(zap.String("nats_message_id", msg.Header.Get(nats.MsgIdHdr)))
	}
	if meta, err := msg.Metadata(); err == nil {
		log = log.With(zap.Uint64("stream_sequence", meta.Sequence.Stream), zap.Uint64("num_delivered", meta.NumDelivered))
	}

	action := c.process(logger.WithLogger(c.ctx, log), msg.Data)
	observer.IncFanoutMessage(string(action))

	var err error
	switch action {
	case ActionAck:
		err = msg.Ack()
	case ActionTerm:
		err = msg.Term()
	default:
		err = msg.Nak()
	}
	if err != nil {
		log.Error("Failed to settle fan-out message", zap.String("action", string(action)), zap.Error(err))
		return
	}
	log.Debug("Fan-out message settled", zap.String("action", string(action)), zap.Duration("duration", time.Since(start)))
}

// process decodes and dispatches one message body.
func (c *Consumer) process(ctx context.Context, data []byte) (action Action) {
	log := logger.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("[panic] Recovered from panic in fan-out consumer", zap.Any("panic", r), zap.Stack("stack"))
			action = ActionNak
		}
	}()

	var msg model.TagEventCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn("Dropping undecodable fan-out message", zap.Error(err))
		return ActionTerm
	}
	if err := validator.Validate(msg); err != nil {
		log.Warn("Dropping invalid fan-out message", zap.Error(err))
		return ActionTerm
	}

	results := c.dispatcher.Dispatch(ctx, msg.Event)
	log.Info("Fan-out message dispatched",
		zap.Int64("event_id", msg.EventID),
		zap.Int("succeeded", len(results)),
	)
	return ActionAck
}
