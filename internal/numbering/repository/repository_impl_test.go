package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/logiport/logiport/internal/numbering/domain"
	"gorm.io/gorm"
)

func TestIncrementSQLPerDialect(t *testing.T) {
	stmt, returning := incrementSQL("mysql")
	if returning {
		t.Fatal("mysql upsert cannot carry RETURNING")
	}
	if !strings.Contains(stmt, "ON DUPLICATE KEY UPDATE") || strings.Contains(stmt, "ON CONFLICT") {
		t.Fatalf("unexpected mysql increment statement: %s", stmt)
	}

	for _, dialect := range []string{"postgres", "sqlite"} {
		stmt, returning := incrementSQL(dialect)
		if !returning {
			t.Fatalf("%s increment should return the new value", dialect)
		}
		if !strings.Contains(stmt, "ON CONFLICT (counter_key) DO UPDATE") || !strings.Contains(stmt, "RETURNING value") {
			t.Fatalf("unexpected %s increment statement: %s", dialect, stmt)
		}
	}
}

func TestUpsertSQLPerDialect(t *testing.T) {
	if stmt := upsertSQL("mysql"); !strings.Contains(stmt, "ON DUPLICATE KEY UPDATE") {
		t.Fatalf("unexpected mysql upsert statement: %s", stmt)
	}
	if stmt := upsertSQL("postgres"); !strings.Contains(stmt, "ON CONFLICT (counter_key) DO UPDATE") {
		t.Fatalf("unexpected postgres upsert statement: %s", stmt)
	}
	if stmt := insertIfAbsentSQL("mysql"); !strings.HasPrefix(stmt, "INSERT IGNORE") {
		t.Fatalf("unexpected mysql insert-if-absent statement: %s", stmt)
	}
	if stmt := insertIfAbsentSQL("sqlite"); !strings.Contains(stmt, "DO NOTHING") {
		t.Fatalf("unexpected sqlite insert-if-absent statement: %s", stmt)
	}
}

func setupCounterDB(t *testing.T) *gorm.DB {
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
	if err := db.AutoMigrate(&domain.Counter{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCompareAndSwap(t *testing.T) {
	db := setupCounterDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	if err := r.Set(ctx, db, "k", 3, now); err != nil {
		t.Fatalf("set: %v", err)
	}

	swapped, err := r.CompareAndSwap(ctx, db, "k", 2, 9, now)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if swapped {
		t.Fatal("stale expected value must not win the swap")
	}

	swapped, err = r.CompareAndSwap(ctx, db, "k", 3, 9, now)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if !swapped {
		t.Fatal("matching expected value should win the swap")
	}
	value, err := r.Get(ctx, db, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != 9 {
		t.Fatalf("expected 9 after swap, got %d", value)
	}
}

func TestCompareAndSwapCreatesMissingRow(t *testing.T) {
	db := setupCounterDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	swapped, err := r.CompareAndSwap(ctx, db, "fresh", 0, 7, now)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if !swapped {
		t.Fatal("missing row with zero expected value should be created")
	}
	value, err := r.Get(ctx, db, "fresh")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != 7 {
		t.Fatalf("expected 7, got %d", value)
	}
}
