package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	auditdomain "github.com/logiport/logiport/internal/audit/domain"
	"github.com/logiport/logiport/internal/clock"
	"github.com/logiport/logiport/internal/config"
	numberingdomain "github.com/logiport/logiport/internal/numbering/domain"
	"github.com/logiport/logiport/internal/numbering/repository"
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

func (a *auditStub) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	actions := make([]string, 0, len(a.entries))
	for _, entry := range a.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

func setupNumberingService(t *testing.T) (numberingdomain.Service, *gorm.DB, *auditStub) {
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
	if err := db.AutoMigrate(&numberingdomain.Counter{}, &transactiondomain.Transaction{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.DefaultNumberingConfig()
	cfg.CounterKeys = append(cfg.CounterKeys, "invoice_last_number")
	holder := &config.NumberingConfigHolder{}
	holder.Set(cfg)

	audit := &auditStub{}
	service := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     clock.NewFakeClock(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)),
		Repo:      repository.Provide(),
		Numbering: holder,
		Audit:     audit,
	})

	return service, db, audit
}

func TestNextStartsAtOne(t *testing.T) {
	service, _, _ := setupNumberingService(t)
	ctx := context.Background()

	first, err := service.Next(ctx, numberingdomain.CounterTransactionLastNumber)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if first != 1 {
		t.Fatalf("expected first allocation 1, got %d", first)
	}

	second, err := service.Next(ctx, numberingdomain.CounterTransactionLastNumber)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if second != 2 {
		t.Fatalf("expected second allocation 2, got %d", second)
	}
}

func TestNextContinuesFromSetCounter(t *testing.T) {
	service, _, audit := setupNumberingService(t)
	ctx := context.Background()

	if err := service.SetCounter(ctx, numberingdomain.CounterTransactionLastNumber, 1000); err != nil {
		t.Fatalf("set counter: %v", err)
	}

	first, err := service.Next(ctx, numberingdomain.CounterTransactionLastNumber)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	second, err := service.Next(ctx, numberingdomain.CounterTransactionLastNumber)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if first != 1001 || second != 1002 {
		t.Fatalf("expected 1001 then 1002, got %d then %d", first, second)
	}

	actions := audit.Actions()
	if len(actions) != 1 || actions[0] != "counter_set" {
		t.Fatalf("expected one counter_set audit entry, got %v", actions)
	}
}

func TestPeekDoesNotReserve(t *testing.T) {
	service, _, _ := setupNumberingService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		peeked, err := service.Peek(ctx, numberingdomain.CounterTransactionLastNumber)
		if err != nil {
			t.Fatalf("peek: %v", err)
		}
		if peeked != 1 {
			t.Fatalf("peek %d: expected 1, got %d", i, peeked)
		}
	}

	allocated, err := service.Next(ctx, numberingdomain.CounterTransactionLastNumber)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if allocated != 1 {
		t.Fatalf("expected allocation 1 after peeks, got %d", allocated)
	}
}

func TestPreviewAllocateRoundTrip(t *testing.T) {
	service, _, _ := setupNumberingService(t)
	ctx := context.Background()

	if err := service.SetCounter(ctx, numberingdomain.CounterTransactionLastNumber, 1023); err != nil {
		t.Fatalf("set counter: %v", err)
	}

	preview, err := service.PreviewTransactionNumber(ctx)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview != "T1024" {
		t.Fatalf("expected preview T1024, got %s", preview)
	}

	allocated, err := service.NextTransactionNumber(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if allocated != preview {
		t.Fatalf("expected allocation %s to match preview, got %s", preview, allocated)
	}
}

func TestConcurrentAllocationsAreUnique(t *testing.T) {
	service, _, _ := setupNumberingService(t)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers)
	errs := make([]error, 0)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := service.Next(ctx, numberingdomain.CounterTransactionLastNumber)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			seen[value] = struct{}{}
		}()
	}
	wg.Wait()

	if len(errs) != 0 {
		t.Fatalf("allocation errors: %v", errs)
	}
	if len(seen) != workers {
		t.Fatalf("expected %d unique numbers, got %d", workers, len(seen))
	}
}

func TestSyncLastNumberIgnoresManualNumbers(t *testing.T) {
	service, db, audit := setupNumberingService(t)
	ctx := context.Background()

	if err := service.SetCounter(ctx, numberingdomain.CounterTransactionLastNumber, 500); err != nil {
		t.Fatalf("set counter: %v", err)
	}

	numbers := []string{"T7", "T12", "MAN/2025", "T-99", "T 5", "X44"}
	for i, number := range numbers {
		err := db.Exec(
			`INSERT INTO transactions (id, transaction_no, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			int64(i+1), number, "draft", time.Now().UTC(), time.Now().UTC(),
		).Error
		if err != nil {
			t.Fatalf("seed transaction %s: %v", number, err)
		}
	}

	value, err := service.SyncLastNumber(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if value != 12 {
		t.Fatalf("expected counter rewound to 12, got %d", value)
	}

	peeked, err := service.Peek(ctx, numberingdomain.CounterTransactionLastNumber)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if peeked != 13 {
		t.Fatalf("expected next value 13 after sync, got %d", peeked)
	}

	actions := audit.Actions()
	if len(actions) != 2 || actions[1] != "counter_sync" {
		t.Fatalf("expected counter_set then counter_sync audit entries, got %v", actions)
	}
}

func TestSyncLastNumberNoChangeSkipsAudit(t *testing.T) {
	service, db, audit := setupNumberingService(t)
	ctx := context.Background()

	err := db.Exec(
		`INSERT INTO transactions (id, transaction_no, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		int64(1), "T3", "draft", time.Now().UTC(), time.Now().UTC(),
	).Error
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	if err := service.SetCounter(ctx, numberingdomain.CounterTransactionLastNumber, 3); err != nil {
		t.Fatalf("set counter: %v", err)
	}

	value, err := service.SyncLastNumber(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if value != 3 {
		t.Fatalf("expected 3, got %d", value)
	}

	actions := audit.Actions()
	if len(actions) != 1 {
		t.Fatalf("expected no counter_sync entry when nothing changed, got %v", actions)
	}
}

func TestCounterValidation(t *testing.T) {
	service, _, _ := setupNumberingService(t)
	ctx := context.Background()

	if _, err := service.Next(ctx, "  "); err != numberingdomain.ErrInvalidCounterKey {
		t.Fatalf("expected ErrInvalidCounterKey, got %v", err)
	}
	if err := service.SetCounter(ctx, numberingdomain.CounterTransactionLastNumber, -1); err != numberingdomain.ErrInvalidCounterValue {
		t.Fatalf("expected ErrInvalidCounterValue, got %v", err)
	}
}

func TestUnknownCounterKeyRejected(t *testing.T) {
	service, _, _ := setupNumberingService(t)
	ctx := context.Background()

	if _, err := service.Next(ctx, "mystery_counter"); err != numberingdomain.ErrInvalidCounterKey {
		t.Fatalf("next: expected ErrInvalidCounterKey, got %v", err)
	}
	if _, err := service.Peek(ctx, "mystery_counter"); err != numberingdomain.ErrInvalidCounterKey {
		t.Fatalf("peek: expected ErrInvalidCounterKey, got %v", err)
	}
	if err := service.SetCounter(ctx, "mystery_counter", 5); err != numberingdomain.ErrInvalidCounterKey {
		t.Fatalf("set: expected ErrInvalidCounterKey, got %v", err)
	}
}

// pausingRepo blocks the first number scan until released, exposing the
// window between SyncLastNumber's scan and its counter write.
type pausingRepo struct {
	numberingdomain.Repository
	scanned chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausingRepo) ListTransactionNumbers(ctx context.Context, db *gorm.DB) ([]string, error) {
	numbers, err := p.Repository.ListTransactionNumbers(ctx, db)
	p.once.Do(func() {
		close(p.scanned)
		<-p.release
	})
	return numbers, err
}

func TestSyncDoesNotRewindConcurrentAllocation(t *testing.T) {
	service, db, audit := setupNumberingService(t)
	ctx := context.Background()

	// Counter at 4 with only T1..T3 assigned, as if T4 had been deleted.
	for i := 1; i <= 3; i++ {
		err := db.Exec(
			`INSERT INTO transactions (id, transaction_no, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			int64(i), fmt.Sprintf("T%d", i), "draft", time.Now().UTC(), time.Now().UTC(),
		).Error
		if err != nil {
			t.Fatalf("seed transaction %d: %v", i, err)
		}
	}
	if err := service.SetCounter(ctx, numberingdomain.CounterTransactionLastNumber, 4); err != nil {
		t.Fatalf("set counter: %v", err)
	}

	paused := &pausingRepo{
		Repository: repository.Provide(),
		scanned:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	holder := &config.NumberingConfigHolder{}
	holder.Set(config.DefaultNumberingConfig())
	syncService := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     clock.NewFakeClock(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)),
		Repo:      paused,
		Numbering: holder,
		Audit:     audit,
	})

	done := make(chan error, 1)
	var synced int64
	go func() {
		value, err := syncService.SyncLastNumber(ctx)
		synced = value
		done <- err
	}()

	// While the sync sits between its scan and its write, an allocation
	// commits and claims T5.
	<-paused.scanned
	allocated, err := service.Next(ctx, numberingdomain.CounterTransactionLastNumber)
	if err != nil {
		t.Fatalf("concurrent next: %v", err)
	}
	if allocated != 5 {
		t.Fatalf("expected concurrent allocation 5, got %d", allocated)
	}
	err = db.Exec(
		`INSERT INTO transactions (id, transaction_no, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		int64(99), fmt.Sprintf("T%d", allocated), "draft", time.Now().UTC(), time.Now().UTC(),
	).Error
	if err != nil {
		t.Fatalf("insert allocated transaction: %v", err)
	}
	close(paused.release)

	if err := <-done; err != nil {
		t.Fatalf("sync: %v", err)
	}
	if synced != 5 {
		t.Fatalf("expected sync to settle on 5, got %d", synced)
	}

	// The committed allocation survives: the counter was not rewound and the
	// next number does not collide with T5.
	next, err := service.NextTransactionNumber(ctx)
	if err != nil {
		t.Fatalf("next after sync: %v", err)
	}
	if next != "T6" {
		t.Fatalf("expected T6 after sync, got %s", next)
	}
	for _, action := range audit.Actions() {
		if action == "counter_sync" {
			t.Fatalf("sync that lost the race must not audit an adjustment, got %v", audit.Actions())
		}
	}
}

func TestCountersAreIndependent(t *testing.T) {
	service, _, _ := setupNumberingService(t)
	ctx := context.Background()

	if _, err := service.Next(ctx, numberingdomain.CounterTransactionLastNumber); err != nil {
		t.Fatalf("next: %v", err)
	}
	other, err := service.Next(ctx, "invoice_last_number")
	if err != nil {
		t.Fatalf("next other: %v", err)
	}
	if other != 1 {
		t.Fatalf("expected independent counter to start at 1, got %d", other)
	}
}
