package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/internal/config"
	"gitlab.com/tapfield/rfid-tag-logger/internal/jetstream"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/internal/observer"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

// JetStreamTrigger publishes a TagEventCreatedMessage per stored event.
// The event id doubles as the message id, so JetStream drops duplicates
// inside the stream's duplicate window.
type JetStreamTrigger struct {
	client  jetstream.ClientInterface
	subject string
	clock   func() time.Time
}

var _ Trigger = (*JetStreamTrigger)(nil)

// NewJetStreamTrigger creates a trigger publishing on subject.
func NewJetStreamTrigger(client jetstream.ClientInterface, subject string) *JetStreamTrigger {
	return &JetStreamTrigger{client: client, subject: subject, clock: utils.Now}
}

// Trigger publishes the event. Publish failures are returned; the event
// itself stays stored either way.
func (t *JetStreamTrigger) Trigger(ctx context.Context, event *model.TagEvent) (err error) {
	defer func() { observer.IncFanoutTrigger(config.FanoutNATS, err) }()

	doc, err := event.Document()
	if err != nil {
		return fmt.Errorf("render tag event %d: %w", event.ID, err)
	}

	data, err := json.Marshal(model.TagEventCreatedMessage{
		EventID:     event.ID,
		Event:       doc,
		PublishedAt: t.clock(),
	})
	if err != nil {
		return fmt.Errorf("encode tag event %d: %w", event.ID, err)
	}

	headers := map[string]string{nats.MsgIdHdr: strconv.FormatInt(event.ID, 10)}
	if err = t.client.Publish(t.subject, data, headers); err != nil {
		logger.FromContext(ctx).Error("Failed to publish tag event",
			zap.Int64("event_id", event.ID),
			zap.String("subject", t.subject),
			zap.Error(err),
		)
		return err
	}

	logger.FromContext(ctx).Debug("Published tag event", zap.Int64("event_id", event.ID), zap.String("subject", t.subject))
	return nil
}

// StreamConfig is the stream the trigger publishes into.
func StreamConfig(cfg config.NATSConfig) *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{cfg.Subject},
		Storage:    nats.FileStorage,
		Retention:  nats.LimitsPolicy,
		MaxAge:     cfg.MaxAge,
		Duplicates: 2 * time.Minute,
	}
}
