package domain

import (
	"context"
	"errors"
	"time"

	"github.com/logiport/logiport/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	UserID    *int64
	Action    string
	TableName string
	RecordID  *int64
	Search    string
	StartAt   *time.Time
	EndAt     *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

// Service records and queries the audit trail. Record and RecordChange are
// best effort: failures are logged and counted, never returned, so a lost
// audit entry cannot fail the operation being audited.
type Service interface {
	Record(ctx context.Context, entry Entry)
	RecordChange(ctx context.Context, action, tableName string, recordID int64, before, after map[string]any)
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

type ListFilter struct {
	UserID    *int64
	Action    string
	TableName string
	RecordID  *int64
	Search    string
	StartAt   *time.Time
	EndAt     *time.Time
	Offset    int
	Limit     int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AuditLog, int64, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)
