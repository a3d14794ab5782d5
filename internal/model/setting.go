package model

import (
	"time"
)

// Setting is one row of the key-value settings table.
type Setting struct {
	Key       string    `json:"key" gorm:"column:key;primaryKey"`
	Value     string    `json:"value" gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (Setting) TableName() string {
	return "settings"
}
