package integration_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"

	"gitlab.com/tapfield/rfid-tag-logger/internal/config"
	"gitlab.com/tapfield/rfid-tag-logger/internal/delivery"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/internal/settings"
)

// NATSFanoutTestSuite runs the nats fan-out mode: the API publishes to
// JetStream and the durable consumer dispatches webhooks.
type NATSFanoutTestSuite struct {
	BaseIntegrationSuite
}

func TestNATSFanoutSuite(t *testing.T) {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	suite.Run(t, new(NATSFanoutTestSuite))
}

func (s *NATSFanoutTestSuite) TestScanIsDeliveredThroughJetStream() {
	app := s.StartApp(appOptions{FanoutMode: config.FanoutNATS})
	target := newWebhookTarget(http.StatusOK)
	defer target.Close()
	webhook := s.createWebhook(app, "door-sync", target.URL)

	before, err := streamMessageCount(s.NATSURL, testNATSConfig.Stream)
	s.Require().NoError(err)

	status, body := s.postTag(app, model.TagEventInput{
		CardUID:     "04A1B2C3",
		PurposeData: map[string]interface{}{"room": "lab-1"},
	})
	s.Require().Equal(http.StatusCreated, status, string(body))
	var event model.TagEvent
	s.Require().NoError(json.Unmarshal(body, &event))

	s.Eventually(func() bool {
		n, err := streamMessageCount(s.NATSURL, testNATSConfig.Stream)
		return err == nil && n == before+1
	}, 10*time.Second, 100*time.Millisecond, "the created event is published to the stream")

	s.Eventually(func() bool { return target.Hits() == 1 }, 10*time.Second, 100*time.Millisecond)
	s.EventuallyCount("webhook_logs", "webhook_id = $1 AND response_status = 200", 1, webhook.ID)

	payload, err := target.Body(0)
	s.Require().NoError(err)
	s.Equal("04A1B2C3", payload["card_uid"])
	s.Equal(settings.DefaultDisplayName, payload[delivery.DisplayNameKey])
	s.EqualValues(event.ID, payload["id"])
	s.Equal(map[string]interface{}{"room": "lab-1"}, payload["purpose_data"])

	ok, err := s.VerifyPostgresData(s.Ctx, `SELECT COUNT(*) FROM retry_queue`, 0)
	s.Require().NoError(err)
	s.True(ok)

	// The message is acked: nothing is redelivered.
	time.Sleep(500 * time.Millisecond)
	s.Equal(1, target.Hits())
}

func (s *NATSFanoutTestSuite) TestFailedJetStreamDeliveryQueuesRetry() {
	app := s.StartApp(appOptions{FanoutMode: config.FanoutNATS})
	target := newWebhookTarget(http.StatusServiceUnavailable)
	defer target.Close()
	webhook := s.createWebhook(app, "door-sync", target.URL)

	status, _ := s.postTag(app, model.TagEventInput{CardUID: "04A1B2C3"})
	s.Require().Equal(http.StatusCreated, status)

	s.EventuallyCount("webhook_logs", "webhook_id = $1 AND response_status = 503", 1, webhook.ID)
	s.EventuallyCount("retry_queue", "webhook_id = $1", 1, webhook.ID)
}
