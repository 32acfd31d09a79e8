package repository

import (
	"context"
	"strings"

	"github.com/logiport/logiport/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO audit_logs (
			id, user_id, action, table_name, record_id, details,
			before_data, after_data, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.TableName,
		entry.RecordID,
		entry.Details,
		entry.BeforeData,
		entry.AfterData,
		entry.Timestamp,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.AuditLog, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.AuditLog{})

	if filter.UserID != nil {
		stmt = stmt.Where("user_id = ?", *filter.UserID)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		stmt = stmt.Where("action = ?", action)
	}
	if tableName := strings.TrimSpace(filter.TableName); tableName != "" {
		stmt = stmt.Where("table_name = ?", tableName)
	}
	if filter.RecordID != nil {
		stmt = stmt.Where("record_id = ?", *filter.RecordID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		stmt = stmt.Where("details LIKE ?", "%"+search+"%")
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("timestamp >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("timestamp <= ?", filter.EndAt.UTC())
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	stmt = stmt.Order("timestamp desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit).Offset(filter.Offset)
	}

	var logs []domain.AuditLog
	if err := stmt.Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
