// Package settings reads runtime-tunable values from the key-value settings
// table and applies defaults on top of it.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/internal/apperrors"
	"gitlab.com/tapfield/rfid-tag-logger/internal/model"
	"gitlab.com/tapfield/rfid-tag-logger/internal/storage"
	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
)

// Known keys.
const (
	KeyThrottleMinutes = "throttle_minutes"
	KeyDisplayName     = "display_name"
	KeyCardUIDKey      = "card_uid_key"
)

// MaxThrottleMinutes caps throttle_minutes at one year, well inside the
// range time.Duration can hold.
const MaxThrottleMinutes = 365 * 24 * 60

// Defaults applied when a key is absent.
const (
	DefaultDisplayName = "RFID Tag Logger"
	DefaultCardUIDKey  = "card_uid"
)

// Provider is the read side consumed by ingestion and delivery.
type Provider interface {
	// ThrottleWindow is zero when throttling is disabled.
	ThrottleWindow(ctx context.Context) (time.Duration, error)
	DisplayName(ctx context.Context) (string, error)
	CardUIDKey(ctx context.Context) (string, error)
}

// Store implements Provider over a SettingRepo and also serves the admin API.
type Store struct {
	repo               storage.SettingRepo
	defaultDisplayName string
}

var _ Provider = (*Store)(nil)

// NewStore builds a Store. An empty defaultDisplayName falls back to
// DefaultDisplayName.
func NewStore(repo storage.SettingRepo, defaultDisplayName string) *Store {
	if strings.TrimSpace(defaultDisplayName) == "" {
		defaultDisplayName = DefaultDisplayName
	}
	return &Store{repo: repo, defaultDisplayName: defaultDisplayName}
}

// Get returns the raw value and whether the key exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return setting.Value, true, nil
}

// ThrottleWindow reads throttle_minutes.
func (s *Store) ThrottleWindow(ctx context.Context) (time.Duration, error) {
	raw, ok, err := s.Get(ctx, KeyThrottleMinutes)
	if err != nil || !ok {
		return 0, err
	}
	minutes, err := parseMinutes(raw)
	if err != nil {
		logger.FromContext(ctx).Warn("Ignoring malformed throttle setting",
			zap.String("value", raw), zap.Error(err))
		return 0, nil
	}
	return time.Duration(minutes) * time.Minute, nil
}

// DisplayName reads display_name. Blank values count as absent.
func (s *Store) DisplayName(ctx context.Context) (string, error) {
	raw, ok, err := s.Get(ctx, KeyDisplayName)
	if err != nil {
		return s.defaultDisplayName, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return s.defaultDisplayName, nil
	}
	return raw, nil
}

// CardUIDKey reads card_uid_key. Blank values count as absent.
func (s *Store) CardUIDKey(ctx context.Context) (string, error) {
	raw, ok, err := s.Get(ctx, KeyCardUIDKey)
	if err != nil {
		return DefaultCardUIDKey, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return DefaultCardUIDKey, nil
	}
	return strings.TrimSpace(raw), nil
}

// List returns every stored setting.
func (s *Store) List(ctx context.Context) ([]model.Setting, error) {
	return s.repo.List(ctx)
}

// Set validates and stores one value. Unknown keys are accepted as free-form
// strings so operators can stage settings ahead of a rollout.
func (s *Store) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: setting key is required", apperrors.ErrValidation)
	}
	if key == KeyThrottleMinutes {
		if _, err := parseMinutes(value); err != nil {
			return fmt.Errorf("%w: %s: %v", apperrors.ErrValidation, key, err)
		}
	}
	return s.repo.Upsert(ctx, key, value)
}

func parseMinutes(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	if minutes < 0 {
		return 0, fmt.Errorf("must not be negative: %d", minutes)
	}
	if minutes > MaxThrottleMinutes {
		return 0, fmt.Errorf("must not exceed %d: %d", MaxThrottleMinutes, minutes)
	}
	return minutes, nil
}
