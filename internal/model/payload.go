package model

import (
	"time"
)

// --- Tag event payloads --- //

// TagEventInput is what a caller supplies to record a scan.
type TagEventInput struct {
	CardUID     string                 `json:"card_uid" validate:"required"`
	EventTime   string                 `json:"event_time,omitempty" validate:"omitempty"`
	SourceIP    string                 `json:"source_ip,omitempty" validate:"omitempty,ip"`
	PurposeID   *int64                 `json:"purpose_id,omitempty" validate:"omitempty,gt=0"`
	PurposeData map[string]interface{} `json:"purpose_data,omitempty"`
}

// SetProcessedPayload flips processed_flag on a stored event.
type SetProcessedPayload struct {
	Processed *bool `json:"processed" validate:"required"`
}

// --- Webhook payloads --- //

// MappingPayload is one mapping rule in an admin request.
type MappingPayload struct {
	FromKey string `json:"from_key" validate:"required"`
	ToKey   string `json:"to_key" validate:"required"`
}

// WebhookPayload creates or replaces a webhook.
type WebhookPayload struct {
	Name       string            `json:"name" validate:"required,max=255"`
	TargetURL  string            `json:"target_url" validate:"required,url"`
	HTTPMethod string            `json:"http_method" validate:"required,oneof=GET POST PUT PATCH DELETE"`
	Headers    map[string]string `json:"headers,omitempty"`
	IsActive   *bool             `json:"is_active,omitempty"`
	Mappings   []MappingPayload  `json:"mappings,omitempty" validate:"omitempty,dive"`
}

// ReplaceMappingsPayload replaces the whole mapping set of a webhook.
type ReplaceMappingsPayload struct {
	Mappings []MappingPayload `json:"mappings" validate:"dive"`
}

// --- Settings / maintenance payloads --- //

// SettingPayload updates one settings key.
type SettingPayload struct {
	Value string `json:"value"`
}

// CleanupPayload requests deletion of data older than the given age.
type CleanupPayload struct {
	OlderThanDays int `json:"older_than_days" validate:"required,gte=1"`
}

// CleanupResult reports how many rows a cleanup removed.
type CleanupResult struct {
	Cutoff            time.Time `json:"cutoff"`
	TagEventsDeleted  int64     `json:"tag_events_deleted"`
	WebhookLogDeleted int64     `json:"webhook_logs_deleted"`
}

// --- Messaging --- //

// TagEventCreatedMessage is published on the fan-out subject after a scan
// was stored.
type TagEventCreatedMessage struct {
	EventID     int64     `json:"event_id" validate:"required"`
	Event       Document  `json:"event" validate:"required"`
	PublishedAt time.Time `json:"published_at"`
}
