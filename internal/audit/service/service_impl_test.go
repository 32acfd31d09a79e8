package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/logiport/logiport/internal/actorctx"
	auditdomain "github.com/logiport/logiport/internal/audit/domain"
	"github.com/logiport/logiport/internal/audit/masking"
	"github.com/logiport/logiport/internal/audit/repository"
	"github.com/logiport/logiport/internal/clock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAuditService(t *testing.T, repo auditdomain.Repository) (auditdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if err := db.AutoMigrate(&auditdomain.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	fakeClock := clock.NewFakeClock(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	service := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
		Repo:  repo,
	})

	return service, db, fakeClock
}

func TestRecordCapturesActorAndSnapshots(t *testing.T) {
	service, _, _ := setupAuditService(t, repository.Provide())

	ctx := actorctx.WithActor(context.Background(), actorctx.Actor{
		ID:       snowflake.ID(42),
		Username: "jana",
		Role:     "admin",
	})
	service.Record(ctx, auditdomain.Entry{
		Action:    "update",
		TableName: "users",
		RecordID:  7,
		AfterData: map[string]any{
			"username":      "jana",
			"password_hash": "argon2id$...",
		},
	})

	resp, err := service.List(context.Background(), auditdomain.ListAuditLogRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.AuditLogs) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(resp.AuditLogs))
	}

	entry := resp.AuditLogs[0]
	if entry.UserID == nil || *entry.UserID != 42 {
		t.Fatalf("expected user_id 42, got %v", entry.UserID)
	}
	if entry.RecordID == nil || *entry.RecordID != 7 {
		t.Fatalf("expected record_id 7, got %v", entry.RecordID)
	}

	var after map[string]any
	if err := json.Unmarshal(entry.AfterData, &after); err != nil {
		t.Fatalf("decode after_data: %v", err)
	}
	if after["password_hash"] != masking.Masked {
		t.Fatalf("expected password_hash masked, got %v", after["password_hash"])
	}
	if after["username"] != "jana" {
		t.Fatalf("expected username preserved, got %v", after["username"])
	}
}

func TestRecordWithoutActorLeavesUserNull(t *testing.T) {
	service, _, _ := setupAuditService(t, repository.Provide())

	service.Record(context.Background(), auditdomain.Entry{
		Action:    "counter_sync",
		TableName: "counters",
		Details:   "transaction_last_number",
	})

	resp, err := service.List(context.Background(), auditdomain.ListAuditLogRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.AuditLogs) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(resp.AuditLogs))
	}
	entry := resp.AuditLogs[0]
	if entry.UserID != nil {
		t.Fatalf("expected null user_id, got %v", *entry.UserID)
	}
	if entry.RecordID != nil {
		t.Fatalf("expected null record_id, got %v", *entry.RecordID)
	}
	if entry.Details == nil || *entry.Details != "transaction_last_number" {
		t.Fatalf("expected details preserved, got %v", entry.Details)
	}
}

func TestRecordDropsEmptyAction(t *testing.T) {
	service, db, _ := setupAuditService(t, repository.Provide())

	service.Record(context.Background(), auditdomain.Entry{TableName: "users"})

	var count int64
	if err := db.Raw(`SELECT COUNT(1) FROM audit_logs`).Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rows for empty action, got %d", count)
	}
}

type failingRepo struct{}

func (failingRepo) Insert(ctx context.Context, db *gorm.DB, entry *auditdomain.AuditLog) error {
	return errors.New("disk full")
}

func (failingRepo) List(ctx context.Context, db *gorm.DB, filter auditdomain.ListFilter) ([]auditdomain.AuditLog, int64, error) {
	return nil, 0, nil
}

func TestRecordSwallowsWriteFailures(t *testing.T) {
	service, _, _ := setupAuditService(t, failingRepo{})

	// Record has no error return by contract; the assertion is simply that a
	// broken store does not panic or block the caller.
	service.Record(context.Background(), auditdomain.Entry{
		Action:    "create",
		TableName: "transactions",
		RecordID:  1,
	})
	service.RecordChange(context.Background(), "update", "transactions", 1,
		map[string]any{"status": "draft"},
		map[string]any{"status": "active"},
	)
}

func TestListFilters(t *testing.T) {
	service, _, fakeClock := setupAuditService(t, repository.Provide())
	ctx := context.Background()

	service.Record(ctx, auditdomain.Entry{Action: "create", TableName: "transactions", RecordID: 1})
	fakeClock.Advance(time.Hour)
	service.Record(ctx, auditdomain.Entry{Action: "closed", TableName: "transactions", RecordID: 1})
	fakeClock.Advance(time.Hour)
	service.Record(ctx, auditdomain.Entry{Action: "create", TableName: "users", RecordID: 9})

	resp, err := service.List(ctx, auditdomain.ListAuditLogRequest{Action: "create"})
	if err != nil {
		t.Fatalf("list by action: %v", err)
	}
	if len(resp.AuditLogs) != 2 {
		t.Fatalf("expected 2 create entries, got %d", len(resp.AuditLogs))
	}

	resp, err = service.List(ctx, auditdomain.ListAuditLogRequest{TableName: "users"})
	if err != nil {
		t.Fatalf("list by table: %v", err)
	}
	if len(resp.AuditLogs) != 1 || resp.AuditLogs[0].Action != "create" {
		t.Fatalf("expected the users entry, got %d rows", len(resp.AuditLogs))
	}

	recordID := int64(1)
	cutoff := time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC)
	resp, err = service.List(ctx, auditdomain.ListAuditLogRequest{RecordID: &recordID, StartAt: &cutoff})
	if err != nil {
		t.Fatalf("list by record and time: %v", err)
	}
	if len(resp.AuditLogs) != 1 || resp.AuditLogs[0].Action != "closed" {
		t.Fatalf("expected only the later transactions entry, got %d rows", len(resp.AuditLogs))
	}

	// Newest first.
	resp, err = service.List(ctx, auditdomain.ListAuditLogRequest{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(resp.AuditLogs) != 3 || resp.AuditLogs[0].TableName != "users" {
		t.Fatalf("expected newest entry first, got %+v", resp.AuditLogs)
	}
}

func TestListRejectsInvertedTimeRange(t *testing.T) {
	service, _, _ := setupAuditService(t, repository.Provide())

	start := time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	if _, err := service.List(context.Background(), auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end}); err != auditdomain.ErrInvalidTimeRange {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
}
