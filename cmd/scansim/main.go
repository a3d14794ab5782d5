package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Tag logger base URL")
	rate := flag.Int("rate", 20, "Target scans per second (total)")
	duration := flag.Duration("duration", time.Minute, "Simulation duration")
	concurrency := flag.Int("concurrency", 8, "Number of concurrent readers")
	cards := flag.Int("cards", 200, "Number of distinct cards in circulation")
	rescan := flag.Float64("rescan", 0.2, "Fraction of scans that repeat the reader's previous card")
	readers := flag.Int("readers", 4, "Number of simulated reader IPs")
	withPurpose := flag.Bool("purpose-data", true, "Attach random purpose_data to scans")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "RFID scan simulator\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Posts fake card scans to POST /api/tags of a running tag logger.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *rate <= 0 || *concurrency <= 0 || *cards <= 0 || *readers <= 0 {
		fmt.Fprintln(os.Stderr, "rate, concurrency, cards and readers must be positive")
		os.Exit(2)
	}

	if err := logger.Initialize(*logLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	gofakeit.Seed(time.Now().UnixNano())

	sim := NewSimulator(Options{
		BaseURL:     *baseURL,
		Cards:       *cards,
		Readers:     *readers,
		Rescan:      *rescan,
		PurposeData: *withPurpose,
	}, &http.Client{Timeout: 10 * time.Second})

	logger.Log.Info("Starting scan simulator",
		zap.String("url", *baseURL),
		zap.Int("rate_per_sec", *rate),
		zap.Duration("duration", *duration),
		zap.Int("concurrency", *concurrency),
		zap.Int("cards", *cards),
		zap.Float64("rescan", *rescan),
	)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(*concurrency, func(data interface{}) {
		defer wg.Done()
		sim.Send(ctx, data.(Scan))
	})
	if err != nil {
		logger.Log.Fatal("Failed to create worker pool", zap.Error(err))
	}
	defer pool.Release()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Log.Info("Received termination signal, shutting down...", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			wg.Add(1)
			if err := pool.Invoke(sim.Next()); err != nil {
				wg.Done()
				logger.Log.Warn("Failed to submit scan", zap.Error(err))
			}
		}
	}

	logger.Log.Info("Waiting for in-flight scans...")
	wg.Wait()

	stats := sim.Stats()
	logger.Log.Info("Scan simulator finished",
		zap.Int64("sent", stats.Sent),
		zap.Int64("created", stats.Created),
		zap.Int64("throttled", stats.Throttled),
		zap.Int64("failed", stats.Failed),
	)
}
