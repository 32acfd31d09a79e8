package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/logiport/logiport/internal/audit/domain"
	"github.com/logiport/logiport/internal/clock"
	"github.com/logiport/logiport/internal/config"
	"github.com/logiport/logiport/internal/docgroup/domain"
	"github.com/logiport/logiport/internal/docgroup/repository"
	transactiondomain "github.com/logiport/logiport/internal/transaction/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type auditStub struct {
	mu      sync.Mutex
	entries []auditdomain.Entry
}

func (a *auditStub) Record(ctx context.Context, entry auditdomain.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *auditStub) RecordChange(ctx context.Context, action, tableName string, recordID int64, before, after map[string]any) {
	a.Record(ctx, auditdomain.Entry{Action: action, TableName: tableName, RecordID: recordID, BeforeData: before, AfterData: after})
}

func (a *auditStub) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type fixture struct {
	service domain.Service
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
}

func setupDocGroupService(t *testing.T) fixture {
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
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	if err := db.AutoMigrate(&transactiondomain.Transaction{}, &domain.DocGroup{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	holder := &config.NumberingConfigHolder{}
	holder.Set(config.DefaultNumberingConfig())

	fakeClock := clock.NewFakeClock(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	service := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     fakeClock,
		Repo:      repository.Provide(),
		Numbering: holder,
		Audit:     &auditStub{},
	})

	return fixture{service: service, db: db, node: node, clock: fakeClock}
}

func (f fixture) seedTransaction(t *testing.T, transactionNo string) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	err := f.db.Exec(
		`INSERT INTO transactions (id, transaction_no, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		int64(id), transactionNo, "active", time.Now().UTC(), time.Now().UTC(),
	).Error
	if err != nil {
		t.Fatalf("seed transaction %s: %v", transactionNo, err)
	}
	return id
}

func TestEnsureIsIdempotent(t *testing.T) {
	f := setupDocGroupService(t)
	ctx := context.Background()
	txnID := f.seedTransaction(t, "T7")

	first, err := f.service.Ensure(ctx, txnID, "invoice.commercial")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first.DocNo != "INV-COM-T7" {
		t.Fatalf("expected INV-COM-T7, got %s", first.DocNo)
	}
	if first.Seq != 1 || first.Year != 2025 || first.Month != 3 {
		t.Fatalf("unexpected seq bucket: %d/%d seq %d", first.Year, first.Month, first.Seq)
	}

	again, err := f.service.Ensure(ctx, txnID, "invoice.commercial")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if again.ID != first.ID || again.Seq != first.Seq {
		t.Fatalf("expected the same group back, got %v vs %v", again.ID, first.ID)
	}
}

func TestEnsureIncrementsMonthlySequence(t *testing.T) {
	f := setupDocGroupService(t)
	ctx := context.Background()
	txnID := f.seedTransaction(t, "T7")

	first, err := f.service.Ensure(ctx, txnID, "invoice.commercial")
	if err != nil {
		t.Fatalf("ensure invoice: %v", err)
	}
	second, err := f.service.Ensure(ctx, txnID, "cmr")
	if err != nil {
		t.Fatalf("ensure cmr: %v", err)
	}
	if second.DocNo != "CMR-T7" {
		t.Fatalf("expected CMR-T7, got %s", second.DocNo)
	}
	if second.Seq != first.Seq+1 {
		t.Fatalf("expected seq %d, got %d", first.Seq+1, second.Seq)
	}

	// A new month starts its own sequence.
	f.clock.Advance(31 * 24 * time.Hour)
	otherTxn := f.seedTransaction(t, "T8")
	third, err := f.service.Ensure(ctx, otherTxn, "cmr")
	if err != nil {
		t.Fatalf("ensure next month: %v", err)
	}
	if third.Month != 4 || third.Seq != 1 {
		t.Fatalf("expected month 4 seq 1, got month %d seq %d", third.Month, third.Seq)
	}
}

func TestEnsurePrefixFallback(t *testing.T) {
	f := setupDocGroupService(t)
	ctx := context.Background()
	txnID := f.seedTransaction(t, "T9")

	group, err := f.service.Ensure(ctx, txnID, "special.report")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if group.DocNo != "REPORT-T9" {
		t.Fatalf("expected fallback prefix REPORT, got %s", group.DocNo)
	}
}

func TestEnsureSanitizesManualNumbers(t *testing.T) {
	f := setupDocGroupService(t)
	ctx := context.Background()
	txnID := f.seedTransaction(t, "10/2025")

	group, err := f.service.Ensure(ctx, txnID, "packing_list")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if group.DocNo != "PKL-10-2025" {
		t.Fatalf("expected PKL-10-2025, got %s", group.DocNo)
	}
}

func TestEnsureUnknownTransaction(t *testing.T) {
	f := setupDocGroupService(t)
	ctx := context.Background()

	if _, err := f.service.Ensure(ctx, f.node.Generate(), "cmr"); err != transactiondomain.ErrTransactionNotFound {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
	txnID := f.seedTransaction(t, "T1")
	if _, err := f.service.Ensure(ctx, txnID, "  "); err != domain.ErrInvalidDocCode {
		t.Fatalf("expected ErrInvalidDocCode, got %v", err)
	}
}

func TestFileName(t *testing.T) {
	f := setupDocGroupService(t)

	group := &domain.DocGroup{DocNo: "INV-COM-T7"}
	if got := f.service.FileName(group, "invoice.commercial"); got != "INV-COM-T7_invoice-commercial.pdf" {
		t.Fatalf("unexpected file name %s", got)
	}
	if got := f.service.FileName(nil, "cmr"); got != "" {
		t.Fatalf("expected empty name for nil group, got %s", got)
	}
}

func TestListByTransaction(t *testing.T) {
	f := setupDocGroupService(t)
	ctx := context.Background()
	txnID := f.seedTransaction(t, "T7")

	if _, err := f.service.Ensure(ctx, txnID, "invoice.commercial"); err != nil {
		t.Fatalf("ensure invoice: %v", err)
	}
	if _, err := f.service.Ensure(ctx, txnID, "certificate_of_origin"); err != nil {
		t.Fatalf("ensure coo: %v", err)
	}

	groups, err := f.service.ListByTransaction(ctx, txnID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
}
