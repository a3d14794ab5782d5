package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/internal/api"
	"gitlab.com/tapfield/rfid-tag-logger/internal/config"
	"gitlab.com/tapfield/rfid-tag-logger/internal/delivery"
	"gitlab.com/tapfield/rfid-tag-logger/internal/dispatcher"
	"gitlab.com/tapfield/rfid-tag-logger/internal/fanout"
	"gitlab.com/tapfield/rfid-tag-logger/internal/healthcheck"
	"gitlab.com/tapfield/rfid-tag-logger/internal/jetstream"
	"gitlab.com/tapfield/rfid-tag-logger/internal/observer"
	"gitlab.com/tapfield/rfid-tag-logger/internal/retryworker"
	"gitlab.com/tapfield/rfid-tag-logger/internal/settings"
	"gitlab.com/tapfield/rfid-tag-logger/internal/storage"
	"gitlab.com/tapfield/rfid-tag-logger/internal/usecase"
	"gitlab.com/tapfield/rfid-tag-logger/internal/workerpool"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

func main() {
	// Timestamps are stored and compared in UTC.
	time.Local = time.UTC

	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	observer.InitMetrics(cfg.Metrics.Enabled)

	logger.Log.Info("Starting RFID tag logger",
		zap.String("environment", cfg.Environment),
		zap.String("fanout_mode", cfg.Fanout.Mode),
		zap.Int("port", cfg.Server.Port),
	)

	postgresRepo, err := initPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	tagEventRepo := storage.NewTagEventRepoAdapter(postgresRepo)
	webhookRepo := storage.NewWebhookRepoAdapter(postgresRepo)
	webhookLogRepo := storage.NewWebhookLogRepoAdapter(postgresRepo)
	retryQueueRepo := storage.NewRetryQueueRepoAdapter(postgresRepo)
	settingRepo := storage.NewSettingRepoAdapter(postgresRepo)

	settingsStore := settings.NewStore(settingRepo, cfg.Delivery.DefaultDisplayName)

	engine := delivery.NewEngine(webhookRepo, webhookLogRepo, retryQueueRepo, settingsStore, delivery.Options{
		Timeout:        cfg.Delivery.Timeout,
		RetryBaseDelay: cfg.Retry.BaseDelay,
	}, logger.Log)
	eventDispatcher := dispatcher.New(webhookRepo, engine, logger.Log)

	tagEventService := usecase.NewTagEventService(tagEventRepo, settingsStore, usecase.IngestionOptions{
		BusyAttempts: cfg.Ingestion.BusyAttempts,
		BusyDelay:    cfg.Ingestion.BusyDelay,
	})
	webhookService := usecase.NewWebhookService(webhookRepo, webhookLogRepo, retryQueueRepo)
	maintenanceService := usecase.NewMaintenanceService(tagEventRepo, webhookLogRepo)

	// Fan-out: in-process pool or JetStream round trip.
	var (
		trigger      fanout.Trigger
		fanoutPool   *ants.Pool
		jsClient     *jetstream.Client
		natsConsumer *fanout.Consumer
	)
	if cfg.NATSEnabled() {
		jsClient, err = jetstream.NewClient(cfg.NATS.URL)
		if err != nil {
			logger.Log.Fatal("Failed to initialize JetStream client", zap.Error(err))
		}
		natsConsumer = fanout.NewConsumer(jsClient, cfg.NATS, eventDispatcher, logger.Log)
		if err := natsConsumer.Setup(); err != nil {
			logger.Log.Fatal("Failed to set up fan-out consumer", zap.Error(err))
		}
		if err := natsConsumer.Start(); err != nil {
			logger.Log.Fatal("Failed to start fan-out consumer", zap.Error(err))
		}
		trigger = fanout.NewJetStreamTrigger(jsClient, cfg.NATS.Subject)
	} else {
		fanoutPool, err = workerpool.New(cfg.Fanout.PoolSize, logger.Log, ants.WithNonblocking(true))
		if err != nil {
			logger.Log.Fatal("Failed to initialize fan-out pool", zap.Error(err))
		}
		trigger = fanout.NewInlineTrigger(fanoutPool, eventDispatcher, logger.Log)
	}

	retryWorker, err := retryworker.NewWorker(cfg.Retry, logger.Log, retryQueueRepo, webhookRepo, engine)
	if err != nil {
		logger.Log.Fatal("Failed to initialize retry worker", zap.Error(err))
	}

	router := api.New(api.Deps{
		Events:      tagEventService,
		Webhooks:    webhookService,
		Settings:    settingsStore,
		Maintenance: maintenanceService,
		Dispatcher:  eventDispatcher,
		Trigger:     trigger,
	}, logger.Log).Router(cfg.Server.GinMode)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthServer := healthcheck.NewServer(cfg.Server.HealthPort, logger.Log)
	healthServer.AddCheck("postgres", postgresRepo.Ping)
	if jsClient != nil {
		healthServer.AddCheck("nats", func(ctx context.Context) error {
			if !jsClient.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		})
	}
	if cfg.Metrics.Enabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
	}
	healthServer.Start()

	logger.Log.Info("Health check endpoints available",
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.HealthPort)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.HealthPort)),
	)

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()
	sigChan := make(chan os.Signal, 1)

	go func() {
		logger.Log.Info("HTTP API listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("HTTP API failed, initiating shutdown...", zap.Error(err))
			select {
			case sigChan <- syscall.SIGTERM:
			default:
			}
		}
	}()

	go func() {
		if err := retryWorker.Start(mainCtx); err != nil {
			logger.Log.Error("Retry worker stopped with error", zap.Error(err))
		}
	}()

	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	mainCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	// The API stops first so no new scans arrive while fan-out drains.
	stopComponent("HTTP API", func() {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping HTTP API", zap.Error(err))
		}
	})

	var wg sync.WaitGroup
	goStop := func(name string, fn func()) {
		wg.Add(1)
		utils.SafeGo(func() {
			defer wg.Done()
			stopComponent(name, fn)
		}, nil)
	}

	if natsConsumer != nil {
		goStop("fan-out consumer", natsConsumer.Stop)
	}
	if fanoutPool != nil {
		goStop("fan-out pool", func() {
			if err := fanoutPool.ReleaseTimeout(cfg.Server.ShutdownTimeout); err != nil {
				logger.Log.Warn("[shutdown] Fan-out pool release timed out", zap.Error(err))
			}
		})
	}
	goStop("retry worker", retryWorker.Stop)
	goStop("health check server", func() {
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping health check server", zap.Error(err))
		}
	})

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] Workers stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	// Connections close last: in-flight deliveries still write logs.
	stopComponent("connections", func() {
		if jsClient != nil {
			jsClient.Close()
		}
		if err := postgresRepo.Close(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
		}
	})

	logger.Log.Info("RFID tag logger shutdown complete")
}

// stopComponent runs fn with timing logs and recovers a panic inside it.
func stopComponent(name string, fn func()) {
	defer utils.RecoverWithLog(context.Background(), "stop "+name)
	logger.Log.Info("[shutdown] Stopping " + name)
	start := time.Now()
	fn()
	logger.Log.Info("[shutdown] Stopped "+name, zap.Duration("duration", time.Since(start)))
}

func initPostgresRepo(dsn string, autoMigrate bool) (*storage.PostgresRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	repo, err := storage.NewPostgresRepo(dsn, autoMigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	logger.Log.Info("Initialized PostgreSQL repository")
	return repo, nil
}
