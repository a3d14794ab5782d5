package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/datatypes"

	"gitlab.com/tapfield/rfid-tag-logger/pkg/utils"
)

// Factories used by tests and the scan simulator.

// RandomCardUID returns an 8 character upper-case hex card identifier.
func RandomCardUID() string {
	return strings.ToUpper(gofakeit.HexUint32()[2:])
}

// RandomJSONBMap encodes data as a jsonb value.
func RandomJSONBMap(data map[string]interface{}) datatypes.JSON {
	bytes, _ := json.Marshal(data)
	return datatypes.JSON(bytes)
}

// RandomPurposeData returns a small purpose_data object.
func RandomPurposeData() map[string]interface{} {
	return map[string]interface{}{
		"room":     gofakeit.RandomString([]string{"lab-1", "lab-2", "gym", "library"}),
		"employee": map[string]interface{}{"name": gofakeit.Name(), "dept": gofakeit.JobTitle()},
	}
}

// NewTagEvent creates a TagEvent with fake data. Non-zero fields of the
// override replace the defaults.
func NewTagEvent(override ...*TagEvent) *TagEvent {
	now := utils.Now()
	e := &TagEvent{
		ID:          int64(gofakeit.Number(1, 1_000_000)),
		CardUID:     RandomCardUID(),
		EventTime:   now.Add(-time.Duration(gofakeit.Number(1, 600)) * time.Second),
		SourceIP:    gofakeit.IPv4Address(),
		PurposeData: RandomJSONBMap(RandomPurposeData()),
		CreatedAt:   now,
	}
	if len(override) > 0 && override[0] != nil {
		o := override[0]
		if o.ID != 0 {
			e.ID = o.ID
		}
		if o.CardUID != "" {
			e.CardUID = o.CardUID
		}
		if !o.EventTime.IsZero() {
			e.EventTime = o.EventTime
		}
		if o.SourceIP != "" {
			e.SourceIP = o.SourceIP
		}
		if o.PurposeID != nil {
			e.PurposeID = o.PurposeID
		}
		if o.PurposeData != nil {
			e.PurposeData = o.PurposeData
		}
		e.ProcessedFlag = o.ProcessedFlag
	}
	return e
}

// NewWebhook creates an active POST webhook with fake data.
func NewWebhook(override ...*Webhook) *Webhook {
	w := &Webhook{
		ID:         int64(gofakeit.Number(1, 1_000_000)),
		Name:       gofakeit.AppName(),
		TargetURL:  gofakeit.URL(),
		HTTPMethod: MethodPost,
		Headers:    RandomJSONBMap(map[string]interface{}{"X-Api-Key": gofakeit.UUID()}),
		IsActive:   true,
	}
	if len(override) > 0 && override[0] != nil {
		o := override[0]
		if o.ID != 0 {
			w.ID = o.ID
		}
		if o.Name != "" {
			w.Name = o.Name
		}
		if o.TargetURL != "" {
			w.TargetURL = o.TargetURL
		}
		if o.HTTPMethod != "" {
			w.HTTPMethod = o.HTTPMethod
		}
		if o.Headers != nil {
			w.Headers = o.Headers
		}
		if o.Mappings != nil {
			w.Mappings = o.Mappings
		}
		w.IsActive = o.IsActive
	}
	return w
}

// NewRetryQueueItem creates a due queue item for the given webhook.
func NewRetryQueueItem(webhookID int64, payload Document) *RetryQueueItem {
	if payload == nil {
		payload = Document{"card_uid": RandomCardUID()}
	}
	data, _ := json.Marshal(payload)
	return &RetryQueueItem{
		ID:        int64(gofakeit.Number(1, 1_000_000)),
		WebhookID: webhookID,
		Payload:   datatypes.JSON(data),
		NextRetry: utils.Now().Add(-time.Second),
	}
}
