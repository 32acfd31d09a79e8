package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is one append-only entry describing a change to business data.
// Entries are never updated or deleted by the application.
type AuditLog struct {
	ID         snowflake.ID   `gorm:"column:id;primaryKey" json:"id"`
	UserID     *int64         `gorm:"column:user_id" json:"user_id,omitempty"`
	Action     string         `gorm:"column:action" json:"action"`
	TableName  string         `gorm:"column:table_name" json:"table_name"`
	RecordID   *int64         `gorm:"column:record_id" json:"record_id,omitempty"`
	Details    *string        `gorm:"column:details" json:"details,omitempty"`
	BeforeData datatypes.JSON `gorm:"column:before_data" json:"before_data,omitempty"`
	AfterData  datatypes.JSON `gorm:"column:after_data" json:"after_data,omitempty"`
	Timestamp  time.Time      `gorm:"column:timestamp" json:"timestamp"`
}

// Entry is the caller-facing shape of a record request. Snapshots are plain
// maps; the service masks sensitive keys and serializes them. A zero RecordID
// means the target has no numeric identity (counters, for example).
type Entry struct {
	Action     string
	TableName  string
	RecordID   int64
	Details    string
	BeforeData map[string]any
	AfterData  map[string]any
}
