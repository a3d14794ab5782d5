package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// HTTP methods a webhook may be configured with.
const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodPatch  = "PATCH"
	MethodDelete = "DELETE"
)

// Webhook is an outbound delivery target.
type Webhook struct {
	ID         int64            `json:"id" gorm:"primaryKey;autoIncrement"`
	Name       string           `json:"name" gorm:"column:name;not null"`
	TargetURL  string           `json:"target_url" gorm:"column:target_url;not null"`
	HTTPMethod string           `json:"http_method" gorm:"column:http_method;not null"`
	Headers    datatypes.JSON   `json:"headers,omitempty" gorm:"type:jsonb;column:headers"`
	IsActive   bool             `json:"is_active" gorm:"column:is_active;not null;index"`
	Mappings   []WebhookMapping `json:"mappings,omitempty" gorm:"foreignKey:WebhookID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time        `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (Webhook) TableName() string {
	return "webhooks"
}

// HeaderMap decodes the stored headers. An empty column yields an empty map.
func (w Webhook) HeaderMap() (map[string]string, error) {
	headers := map[string]string{}
	if len(w.Headers) == 0 || string(w.Headers) == "null" {
		return headers, nil
	}
	if err := json.Unmarshal(w.Headers, &headers); err != nil {
		return nil, fmt.Errorf("webhook %d headers: %w", w.ID, err)
	}
	return headers, nil
}

// SendsBody reports whether the payload travels in the request body rather
// than the query string.
func (w Webhook) SendsBody() bool {
	switch w.HTTPMethod {
	case MethodPost, MethodPut, MethodPatch:
		return true
	}
	return false
}

// WebhookMapping copies the value at FromKey in the event to ToKey in the
// outgoing payload. Both keys are dot-delimited paths.
type WebhookMapping struct {
	ID        int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	WebhookID int64  `json:"webhook_id" gorm:"column:webhook_id;not null;index"`
	FromKey   string `json:"from_key" gorm:"column:from_key;not null"`
	ToKey     string `json:"to_key" gorm:"column:to_key;not null"`
}

// TableName pins the table name.
func (WebhookMapping) TableName() string {
	return "webhook_mappings"
}
