package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestClientMock(t *testing.T) {
	client := new(ClientMock)
	client.On("SetupStream", mock.Anything, mock.AnythingOfType("*nats.StreamConfig")).Return(nil)
	client.On("SetupConsumer", mock.Anything, "tag_events", mock.AnythingOfType("*nats.ConsumerConfig")).Return(errors.New("boom"))
	client.On("SubscribePush", "v1.tag_events.created", "c", "g", "tag_events", mock.Anything).Return(nil, errors.New("no consumer"))
	client.On("Publish", "v1.tag_events.created", []byte("{}"), map[string]string{nats.MsgIdHdr: "1"}).Return(nil)
	client.On("IsConnected").Return(true)
	client.On("Close").Return()

	assert.NoError(t, client.SetupStream(context.Background(), &nats.StreamConfig{Name: "tag_events"}))
	assert.Error(t, client.SetupConsumer(context.Background(), "tag_events", &nats.ConsumerConfig{Durable: "c"}))

	sub, err := client.SubscribePush("v1.tag_events.created", "c", "g", "tag_events", func(*nats.Msg) {})
	assert.Nil(t, sub)
	assert.Error(t, err)

	assert.NoError(t, client.Publish("v1.tag_events.created", []byte("{}"), map[string]string{nats.MsgIdHdr: "1"}))
	assert.True(t, client.IsConnected())
	client.Close()

	client.AssertExpectations(t)
}
