package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

// Options shapes the generated traffic.
type Options struct {
	BaseURL     string
	Cards       int
	Readers     int
	Rescan      float64
	PurposeData bool
}

// Scan is one generated request body together with the reader it comes from.
type Scan struct {
	Reader string
	Input  model.TagEventInput
}

// Stats counts responses by outcome.
type Stats struct {
	Sent      int64
	Created   int64
	Throttled int64
	Failed    int64
}

// Simulator generates scans from a fixed card population and posts them.
type Simulator struct {
	opts    Options
	client  *http.Client
	cards   []string
	readers []string

	mu       sync.Mutex
	lastCard map[string]string

	sent, created, throttled, failed atomic.Int64
}

// NewSimulator draws the card and reader populations up front.
func NewSimulator(opts Options, client *http.Client) *Simulator {
	s := &Simulator{
		opts:     opts,
		client:   client,
		cards:    make([]string, opts.Cards),
		readers:  make([]string, opts.Readers),
		lastCard: make(map[string]string, opts.Readers),
	}
	for i := range s.cards {
		s.cards[i] = model.RandomCardUID()
	}
	for i := range s.readers {
		s.readers[i] = gofakeit.IPv4Address()
	}
	return s
}

// Next picks a reader and a card. With probability Rescan the reader repeats
// its previous card, which the logger should throttle.
func (s *Simulator) Next() Scan {
	reader := s.readers[gofakeit.Number(0, len(s.readers)-1)]

	s.mu.Lock()
	card, seen := s.lastCard[reader]
	if !seen || gofakeit.Float64Range(0, 1) >= s.opts.Rescan {
		card = s.cards[gofakeit.Number(0, len(s.cards)-1)]
		s.lastCard[reader] = card
	}
	s.mu.Unlock()

	input := model.TagEventInput{
		CardUID:   card,
		EventTime: utils.FormatISO8601(utils.Now()),
		SourceIP:  reader,
	}
	if s.opts.PurposeData {
		input.PurposeData = model.RandomPurposeData()
	}
	return Scan{Reader: reader, Input: input}
}

// Send posts one scan and records its outcome.
func (s *Simulator) Send(ctx context.Context, scan Scan) {
	s.sent.Add(1)
	log := logger.Log.With(zap.String("card_uid", scan.Input.CardUID), zap.String("reader", scan.Reader))

	body, err := json.Marshal(scan.Input)
	if err != nil {
		s.failed.Add(1)
		log.Error("Failed to marshal scan", zap.Error(err))
		return
	}

	url := strings.TrimRight(s.opts.BaseURL, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.failed.Add(1)
		log.Error("Failed to build request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.failed.Add(1)
		log.Warn("Scan request failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch resp.StatusCode {
	case http.StatusCreated:
		s.created.Add(1)
		log.Debug("Scan recorded")
	case http.StatusOK:
		s.throttled.Add(1)
		log.Debug("Scan throttled")
	default:
		s.failed.Add(1)
		log.Warn("Scan rejected", zap.Error(fmt.Errorf("status %d: %s", resp.StatusCode, respBody)))
	}
}

// Stats returns the counters so far.
func (s *Simulator) Stats() Stats {
	return Stats{
		Sent:      s.sent.Load(),
		Created:   s.created.Load(),
		Throttled: s.throttled.Load(),
		Failed:    s.failed.Load(),
	}
}
