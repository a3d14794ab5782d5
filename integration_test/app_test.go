package integration_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"

	"gitlab.com/tapfield/rfid-tag-logger/internal/api"
	"gitlab.com/tapfield/rfid-tag-logger/internal/config"
	"gitlab.com/tapfield/rfid-tag-logger/internal/delivery"
	"gitlab.com/tapfield/rfid-tag-logger/internal/dispatcher"
	"gitlab.com/tapfield/rfid-tag-logger/internal/fanout"
	"gitlab.com/tapfield/rfid-tag-logger/internal/jetstream"
	"gitlab.com/tapfield/rfid-tag-logger/internal/retryworker"
	"gitlab.com/tapfield/rfid-tag-logger/internal/settings"
	"gitlab.com/tapfield/rfid-tag-logger/internal/storage"
	"gitlab.com/tapfield/rfid-tag-logger/internal/usecase"
	"gitlab.com/tapfield/rfid-tag-logger/internal/workerpool"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
)

// Fan-out stream used by the nats mode tests.
var testNATSConfig = config.NATSConfig{
	Stream:     "tag_events_it",
	Subject:    "v1.tag_events.created",
	Consumer:   "tag-event-dispatcher-it",
	Group:      "tag-event-dispatcher-it",
	MaxAge:     time.Hour,
	AckWait:    10 * time.Second,
	MaxDeliver: 3,
}

type appOptions struct {
	FanoutMode      string
	NATSURL         string
	DeliveryTimeout time.Duration
}

// testApp is the service wired the way cmd/main wires it, with the HTTP API
// served by an httptest server. The retry worker is not started; tests call
// Sweep directly.
type testApp struct {
	URL   string
	Retry *retryworker.Worker

	repo     *storage.PostgresRepo
	server   *httptest.Server
	pool     *ants.Pool
	js       *jetstream.Client
	consumer *fanout.Consumer
}

func startTestApp(dsn string, opts appOptions) (app *testApp, err error) {
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 5 * time.Second
	}

	repo, err := storage.NewPostgresRepo(dsn, true)
	if err != nil {
		return nil, fmt.Errorf("init postgres repo: %w", err)
	}
	app = &testApp{repo: repo}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	tagEventRepo := storage.NewTagEventRepoAdapter(repo)
	webhookRepo := storage.NewWebhookRepoAdapter(repo)
	webhookLogRepo := storage.NewWebhookLogRepoAdapter(repo)
	retryQueueRepo := storage.NewRetryQueueRepoAdapter(repo)
	settingsStore := settings.NewStore(storage.NewSettingRepoAdapter(repo), "")

	engine := delivery.NewEngine(webhookRepo, webhookLogRepo, retryQueueRepo, settingsStore, delivery.Options{
		Timeout:        opts.DeliveryTimeout,
		RetryBaseDelay: time.Minute,
	}, logger.Log)
	eventDispatcher := dispatcher.New(webhookRepo, engine, logger.Log)

	var trigger fanout.Trigger
	switch opts.FanoutMode {
	case config.FanoutNATS:
		natsCfg := testNATSConfig
		natsCfg.URL = opts.NATSURL
		app.js, err = jetstream.NewClient(natsCfg.URL)
		if err != nil {
			return app, fmt.Errorf("init jetstream client: %w", err)
		}
		consumer := fanout.NewConsumer(app.js, natsCfg, eventDispatcher, logger.Log)
		if err = consumer.Setup(); err != nil {
			return app, err
		}
		if err = consumer.Start(); err != nil {
			return app, err
		}
		app.consumer = consumer
		trigger = fanout.NewJetStreamTrigger(app.js, natsCfg.Subject)
	default:
		app.pool, err = workerpool.New(4, logger.Log, ants.WithNonblocking(true))
		if err != nil {
			return app, err
		}
		trigger = fanout.NewInlineTrigger(app.pool, eventDispatcher, logger.Log)
	}

	app.Retry, err = retryworker.NewWorker(config.RetryConfig{
		Interval:   time.Hour,
		BatchSize:  10,
		MaxRetries: 3,
		BaseDelay:  time.Minute,
		PoolSize:   2,
	}, logger.Log, retryQueueRepo, webhookRepo, engine)
	if err != nil {
		return app, err
	}

	router := api.New(api.Deps{
		Events:      usecase.NewTagEventService(tagEventRepo, settingsStore, usecase.IngestionOptions{}),
		Webhooks:    usecase.NewWebhookService(webhookRepo, webhookLogRepo, retryQueueRepo),
		Settings:    settingsStore,
		Maintenance: usecase.NewMaintenanceService(tagEventRepo, webhookLogRepo),
		Dispatcher:  eventDispatcher,
		Trigger:     trigger,
	}, logger.Log).Router(gin.TestMode)

	app.server = httptest.NewServer(router)
	app.URL = app.server.URL
	return app, nil
}

// Close stops components in the order cmd/main does: API, fan-out, retry
// worker, then connections.
func (a *testApp) Close() {
	if a.server != nil {
		a.server.Close()
	}
	if a.consumer != nil {
		a.consumer.Stop()
	}
	if a.pool != nil {
		_ = a.pool.ReleaseTimeout(5 * time.Second)
	}
	if a.Retry != nil {
		a.Retry.Stop()
	}
	if a.js != nil {
		a.js.Close()
	}
	if a.repo != nil {
		_ = a.repo.Close(context.Background())
	}
}
