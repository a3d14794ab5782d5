package jetstream

import (
	"context"

	"github.com/nats-io/nats.go"
)

// ClientInterface is the slice of JetStream the fan-out trigger and its
// consumer need.
type ClientInterface interface {
	// SetupStream creates the stream, or updates it when the stored config drifted.
	SetupStream(ctx context.Context, streamConfig *nats.StreamConfig) error

	// SetupConsumer creates the durable consumer on streamName, recreating it on drift.
	SetupConsumer(ctx context.Context, streamName string, consumerConfig *nats.ConsumerConfig) error

	// SubscribePush binds a queue subscription to an existing push consumer.
	SubscribePush(subject, consumer, group, stream string, handler nats.MsgHandler) (*nats.Subscription, error)

	// Publish publishes to JetStream with optional headers.
	Publish(subject string, data []byte, headers map[string]string) error

	// IsConnected reports whether the underlying connection is up.
	IsConnected() bool

	// Close drains and closes the connection.
	Close()
}
