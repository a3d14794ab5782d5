package model

import (
	"time"

	"gorm.io/datatypes"
)

// TagEvent is one recorded card scan. CardUID and EventTime never change
// after insert; ProcessedFlag is only flipped by external consumers.
type TagEvent struct {
	ID            int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	CardUID       string         `json:"card_uid" gorm:"column:card_uid;not null;index:idx_tag_events_card_time,priority:1"`
	EventTime     time.Time      `json:"event_time" gorm:"column:event_time;type:timestamptz;not null;default:CURRENT_TIMESTAMP;index:idx_tag_events_card_time,priority:2"`
	SourceIP      string         `json:"source_ip,omitempty" gorm:"column:source_ip"`
	ProcessedFlag bool           `json:"processed_flag" gorm:"column:processed_flag;not null;default:false"`
	PurposeID     *int64         `json:"purpose_id,omitempty" gorm:"column:purpose_id;index"`
	PurposeData   datatypes.JSON `json:"purpose_data,omitempty" gorm:"type:jsonb;column:purpose_data"`
	CreatedAt     time.Time      `json:"created_at" gorm:"column:created_at;type:timestamptz;autoCreateTime;index"`
}

// TableName pins the table name.
func (TagEvent) TableName() string {
	return "tag_events"
}

// Document renders the event as the object handed to webhook delivery, with
// purpose_data expanded into a nested object.
func (e TagEvent) Document() (Document, error) {
	e.EventTime = e.EventTime.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	return ToDocument(e)
}

// TagEventFilter narrows Query results. Zero values are ignored.
type TagEventFilter struct {
	CardUID   string
	From      *time.Time
	To        *time.Time
	Processed *bool
	Limit     int
	Offset    int
}
