package model

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookLog records one delivery attempt. ResponseStatus is 0 when no
// response was received.
type WebhookLog struct {
	ID             int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	WebhookID      int64          `json:"webhook_id" gorm:"column:webhook_id;not null;index"`
	Payload        datatypes.JSON `json:"payload" gorm:"type:jsonb;column:payload"`
	ResponseStatus int            `json:"response_status" gorm:"column:response_status;not null"`
	ResponseBody   *string        `json:"response_body,omitempty" gorm:"column:response_body;type:text"`
	ErrorMessage   *string        `json:"error_message,omitempty" gorm:"column:error_message;type:text"`
	CreatedAt      time.Time      `json:"created_at" gorm:"column:created_at;type:timestamptz;autoCreateTime;index"`
}

// TableName pins the table name.
func (WebhookLog) TableName() string {
	return "webhook_logs"
}

// Succeeded reports whether the attempt got a response without an error.
func (l WebhookLog) Succeeded() bool {
	return l.ErrorMessage == nil && l.ResponseStatus > 0
}
