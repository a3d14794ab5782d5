// Package fanout hands newly stored tag events to the dispatcher, either in
// process or through a JetStream subject consumed by the same binary.
package fanout

import (
	"context"

	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
)

// Trigger starts fan-out for a stored event without waiting for deliveries.
type Trigger interface {
	Trigger(ctx context.Context, event *model.TagEvent) error
}

// Dispatcher delivers one event document to every active webhook.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventData model.Document) [][]byte
}
