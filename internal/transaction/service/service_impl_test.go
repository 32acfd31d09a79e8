package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/logiport/logiport/internal/actorctx"
	auditdomain "github.com/logiport/logiport/internal/audit/domain"
	"github.com/logiport/logiport/internal/clock"
	"github.com/logiport/logiport/internal/config"
	numberingdomain "github.com/logiport/logiport/internal/numbering/domain"
	numberingrepository "github.com/logiport/logiport/internal/numbering/repository"
	numberingservice "github.com/logiport/logiport/internal/numbering/service"
	"github.com/logiport/logiport/internal/transaction/domain"
	"github.com/logiport/logiport/internal/transaction/repository"
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
	a.Record(ctx, auditdomain.Entry{
		Action:     action,
		TableName:  tableName,
		RecordID:   recordID,
		BeforeData: before,
		AfterData:  after,
	})
}

func (a *auditStub) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func (a *auditStub) LastAction() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) == 0 {
		return ""
	}
	return a.entries[len(a.entries)-1].Action
}

func setupTransactionService(t *testing.T) (domain.Service, *gorm.DB, *auditStub) {
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
	if err := db.AutoMigrate(&numberingdomain.Counter{}, &domain.Transaction{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	holder := &config.NumberingConfigHolder{}
	holder.Set(config.DefaultNumberingConfig())

	audit := &auditStub{}
	fakeClock := clock.NewFakeClock(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))

	numberingSvc := numberingservice.NewService(numberingservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     fakeClock,
		Repo:      numberingrepository.Provide(),
		Numbering: holder,
		Audit:     audit,
	})

	service := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     fakeClock,
		Repo:      repository.Provide(),
		Numbering: numberingSvc,
		Audit:     audit,
	})

	return service, db, audit
}

func TestCreateAllocatesSequentialNumbers(t *testing.T) {
	service, _, _ := setupTransactionService(t)
	ctx := context.Background()

	first, err := service.Create(ctx, domain.CreateTransactionRequest{TransactionType: domain.TypeExport})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if first.TransactionNo != "T1" {
		t.Fatalf("expected T1, got %s", first.TransactionNo)
	}
	if first.Status != domain.StatusDraft {
		t.Fatalf("expected draft default, got %s", first.Status)
	}

	second, err := service.Create(ctx, domain.CreateTransactionRequest{TransactionType: domain.TypeImport})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if second.TransactionNo != "T2" {
		t.Fatalf("expected T2, got %s", second.TransactionNo)
	}
}

func TestCreateManualNumberRejectsDuplicate(t *testing.T) {
	service, _, _ := setupTransactionService(t)
	ctx := context.Background()

	if _, err := service.Create(ctx, domain.CreateTransactionRequest{TransactionNo: "MAN-2025/1"}); err != nil {
		t.Fatalf("create manual: %v", err)
	}
	if _, err := service.Create(ctx, domain.CreateTransactionRequest{TransactionNo: "MAN-2025/1"}); err != domain.ErrDuplicateNumber {
		t.Fatalf("expected ErrDuplicateNumber, got %v", err)
	}
}

func TestFailedInsertBurnsNumber(t *testing.T) {
	service, _, _ := setupTransactionService(t)
	ctx := context.Background()

	// Manually claim the number the allocator would hand out next, so the
	// insert collides on the unique index rather than the pre-check.
	if _, err := service.Create(ctx, domain.CreateTransactionRequest{TransactionNo: "T1"}); err != nil {
		t.Fatalf("create manual: %v", err)
	}

	if _, err := service.Create(ctx, domain.CreateTransactionRequest{}); err != domain.ErrDuplicateNumber {
		t.Fatalf("expected ErrDuplicateNumber, got %v", err)
	}

	// The failed attempt burned 1; the next automatic number moves on to 2.
	next, err := service.Create(ctx, domain.CreateTransactionRequest{})
	if err != nil {
		t.Fatalf("create after burn: %v", err)
	}
	if next.TransactionNo != "T2" {
		t.Fatalf("expected burned allocation to advance to T2, got %s", next.TransactionNo)
	}
}

func TestTransitionMatrix(t *testing.T) {
	statuses := []domain.Status{domain.StatusDraft, domain.StatusActive, domain.StatusClosed, domain.StatusArchived}
	allowed := map[domain.Status][]domain.Status{
		domain.StatusDraft:    {domain.StatusActive},
		domain.StatusActive:   {domain.StatusClosed},
		domain.StatusClosed:   {domain.StatusActive, domain.StatusArchived},
		domain.StatusArchived: {},
	}

	service, db, _ := setupTransactionService(t)
	ctx := context.Background()

	for _, from := range statuses {
		for _, to := range statuses {
			created, err := service.Create(ctx, domain.CreateTransactionRequest{})
			if err != nil {
				t.Fatalf("create for %s->%s: %v", from, to, err)
			}
			if err := db.Exec(`UPDATE transactions SET status = ? WHERE id = ?`, string(from), int64(created.ID)).Error; err != nil {
				t.Fatalf("force status %s: %v", from, err)
			}

			_, err = service.ChangeStatus(ctx, created.ID, to)
			wantAllowed := false
			for _, target := range allowed[from] {
				if target == to {
					wantAllowed = true
				}
			}

			if wantAllowed && err != nil {
				t.Fatalf("%s->%s should be allowed, got %v", from, to, err)
			}
			if !wantAllowed && err != domain.ErrTransitionNotAllowed {
				t.Fatalf("%s->%s should be rejected, got %v", from, to, err)
			}
		}
	}
}

func TestLifecycleAuditActions(t *testing.T) {
	service, _, audit := setupTransactionService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, domain.CreateTransactionRequest{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	steps := []struct {
		apply  func(context.Context, snowflake.ID) (*domain.Transaction, error)
		action string
	}{
		{service.Activate, "activated"},
		{service.Close, "closed"},
		{service.Reopen, "reopened"},
		{service.Close, "closed"},
		{service.Archive, "archived"},
	}
	for _, step := range steps {
		if _, err := step.apply(ctx, created.ID); err != nil {
			t.Fatalf("step %s: %v", step.action, err)
		}
		if got := audit.LastAction(); got != step.action {
			t.Fatalf("expected audit action %s, got %s", step.action, got)
		}
	}
}

func TestLockedTransactionRejectsChanges(t *testing.T) {
	service, _, _ := setupTransactionService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, domain.CreateTransactionRequest{Status: domain.StatusActive})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.Close(ctx, created.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	notes := "late edit"
	if _, err := service.Update(ctx, created.ID, domain.UpdateTransactionRequest{Notes: &notes}); err != domain.ErrTransactionLocked {
		t.Fatalf("expected ErrTransactionLocked on update, got %v", err)
	}
	if err := service.Delete(ctx, created.ID); err != domain.ErrTransactionLocked {
		t.Fatalf("expected ErrTransactionLocked on delete, got %v", err)
	}

	// Reopening unlocks the record again.
	if _, err := service.Reopen(ctx, created.ID); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	updated, err := service.Update(ctx, created.ID, domain.UpdateTransactionRequest{Notes: &notes})
	if err != nil {
		t.Fatalf("update after reopen: %v", err)
	}
	if updated.Notes == nil || *updated.Notes != notes {
		t.Fatalf("expected notes applied after reopen")
	}
}

func TestDeleteRealignsCounter(t *testing.T) {
	service, _, audit := setupTransactionService(t)
	ctx := context.Background()

	if _, err := service.Create(ctx, domain.CreateTransactionRequest{}); err != nil {
		t.Fatalf("create first: %v", err)
	}
	tail, err := service.Create(ctx, domain.CreateTransactionRequest{})
	if err != nil {
		t.Fatalf("create tail: %v", err)
	}
	if tail.TransactionNo != "T2" {
		t.Fatalf("expected tail T2, got %s", tail.TransactionNo)
	}

	if err := service.Delete(ctx, tail.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := audit.LastAction(); got != "counter_sync" {
		t.Fatalf("expected counter_sync after delete, got %s", got)
	}

	reissued, err := service.Create(ctx, domain.CreateTransactionRequest{})
	if err != nil {
		t.Fatalf("create after delete: %v", err)
	}
	if reissued.TransactionNo != "T2" {
		t.Fatalf("expected deleted tail number T2 reissued, got %s", reissued.TransactionNo)
	}
}

func TestActorStampsRecordedOnCreate(t *testing.T) {
	service, _, _ := setupTransactionService(t)

	ctx := actorctx.WithActor(context.Background(), actorctx.Actor{
		ID:       snowflake.ID(42),
		Username: "jana",
		Role:     "operator",
	})

	created, err := service.Create(ctx, domain.CreateTransactionRequest{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.CreatedBy == nil || *created.CreatedBy != 42 {
		t.Fatalf("expected created_by 42, got %v", created.CreatedBy)
	}
}

func TestGetAndChangeStatusNotFound(t *testing.T) {
	service, _, _ := setupTransactionService(t)
	ctx := context.Background()

	if _, err := service.Get(ctx, snowflake.ID(999)); err != domain.ErrTransactionNotFound {
		t.Fatalf("expected ErrTransactionNotFound on get, got %v", err)
	}
	if _, err := service.ChangeStatus(ctx, snowflake.ID(999), domain.StatusActive); err != domain.ErrTransactionNotFound {
		t.Fatalf("expected ErrTransactionNotFound on change, got %v", err)
	}
	if _, err := service.ChangeStatus(ctx, snowflake.ID(999), domain.Status("bogus")); err != domain.ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	service, _, _ := setupTransactionService(t)
	ctx := context.Background()

	if _, err := service.Create(ctx, domain.CreateTransactionRequest{TransactionType: domain.TypeExport}); err != nil {
		t.Fatalf("create export: %v", err)
	}
	active, err := service.Create(ctx, domain.CreateTransactionRequest{Status: domain.StatusActive, TransactionType: domain.TypeImport})
	if err != nil {
		t.Fatalf("create import: %v", err)
	}

	resp, err := service.List(ctx, domain.ListTransactionRequest{Status: domain.StatusActive})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.Transactions) != 1 || resp.Transactions[0].ID != active.ID {
		t.Fatalf("expected only the active transaction, got %d rows", len(resp.Transactions))
	}
	if resp.TotalCount != 1 {
		t.Fatalf("expected total 1, got %d", resp.TotalCount)
	}

	resp, err = service.List(ctx, domain.ListTransactionRequest{Search: "T1"})
	if err != nil {
		t.Fatalf("list search: %v", err)
	}
	if len(resp.Transactions) != 1 || resp.Transactions[0].TransactionNo != "T1" {
		t.Fatalf("expected search to match T1, got %d rows", len(resp.Transactions))
	}
}
