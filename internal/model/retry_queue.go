package model

import (
	"time"

	"gorm.io/datatypes"
)

// RetryQueueItem is a failed delivery waiting for redelivery. Payload holds
// the event data before mappings were applied.
type RetryQueueItem struct {
	ID         int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	WebhookID  int64          `json:"webhook_id" gorm:"column:webhook_id;not null;index"`
	Payload    datatypes.JSON `json:"payload" gorm:"type:jsonb;column:payload;not null"`
	NextRetry  time.Time      `json:"next_retry" gorm:"column:next_retry;type:timestamptz;not null;index:idx_retry_queue_due,priority:1"`
	RetryCount int            `json:"retry_count" gorm:"column:retry_count;not null;index:idx_retry_queue_due,priority:2"`
	CreatedAt  time.Time      `json:"created_at" gorm:"column:created_at;type:timestamptz;autoCreateTime"`
	UpdatedAt  time.Time      `json:"updated_at" gorm:"column:updated_at;type:timestamptz;autoUpdateTime"`
}

// TableName pins the table name.
func (RetryQueueItem) TableName() string {
	return "retry_queue"
}
