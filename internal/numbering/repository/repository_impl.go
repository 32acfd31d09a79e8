package repository

import (
	"context"
	"errors"
	"time"

	"github.com/logiport/logiport/internal/numbering/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// incrementSQL picks the upsert form per dialect. Postgres and SQLite return
// the new value from the same statement; MySQL has no RETURNING, so the
// caller follows up with a locked read inside the same transaction.
func incrementSQL(dialect string) (stmt string, returning bool) {
	if dialect == "mysql" {
		return "INSERT INTO counters (counter_key, value, updated_at) VALUES (?, 1, ?)" +
			" ON DUPLICATE KEY UPDATE value = value + 1, updated_at = VALUES(updated_at)", false
	}
	return `INSERT INTO counters (counter_key, value, updated_at)
		VALUES (?, 1, ?)
		ON CONFLICT (counter_key) DO UPDATE
		SET value = counters.value + 1, updated_at = excluded.updated_at
		RETURNING value`, true
}

func upsertSQL(dialect string) string {
	if dialect == "mysql" {
		return "INSERT INTO counters (counter_key, value, updated_at) VALUES (?, ?, ?)" +
			" ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)"
	}
	return `INSERT INTO counters (counter_key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (counter_key) DO UPDATE
		SET value = excluded.value, updated_at = excluded.updated_at`
}

func insertIfAbsentSQL(dialect string) string {
	if dialect == "mysql" {
		return "INSERT IGNORE INTO counters (counter_key, value, updated_at) VALUES (?, ?, ?)"
	}
	return `INSERT INTO counters (counter_key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (counter_key) DO NOTHING`
}

// IncrementAndGet reserves the next counter value. The upsert makes the read
// and the write indivisible, so concurrent sessions serialize on the row
// instead of racing a read. On MySQL the upserted row stays exclusively
// locked until the transaction commits, so the follow-up read is stable.
func (r *repo) IncrementAndGet(ctx context.Context, tx *gorm.DB, key string, now time.Time) (int64, error) {
	stmt, returning := incrementSQL(tx.Dialector.Name())

	var value int64
	if returning {
		if err := tx.WithContext(ctx).Raw(stmt, key, now).Scan(&value).Error; err != nil {
			return 0, err
		}
		return value, nil
	}

	if err := tx.WithContext(ctx).Exec(stmt, key, now).Error; err != nil {
		return 0, err
	}
	err := tx.WithContext(ctx).
		Raw(`SELECT value FROM counters WHERE counter_key = ? FOR UPDATE`, key).
		Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (r *repo) Get(ctx context.Context, db *gorm.DB, key string) (int64, error) {
	var counter domain.Counter
	err := db.WithContext(ctx).
		Where("counter_key = ?", key).
		First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return counter.Value, nil
}

func (r *repo) Set(ctx context.Context, db *gorm.DB, key string, value int64, now time.Time) error {
	return db.WithContext(ctx).Exec(upsertSQL(db.Dialector.Name()), key, value, now).Error
}

// CompareAndSwap writes value only if the counter still holds oldValue,
// reporting whether the write landed. With oldValue zero a missing row counts
// as a match and is created.
func (r *repo) CompareAndSwap(ctx context.Context, db *gorm.DB, key string, oldValue, newValue int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE counters SET value = ?, updated_at = ? WHERE counter_key = ? AND value = ?`,
		newValue, now, key, oldValue,
	)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	if oldValue != 0 {
		return false, nil
	}

	ins := db.WithContext(ctx).Exec(insertIfAbsentSQL(db.Dialector.Name()), key, newValue, now)
	if ins.Error != nil {
		return false, ins.Error
	}
	return ins.RowsAffected > 0, nil
}

func (r *repo) ListTransactionNumbers(ctx context.Context, db *gorm.DB) ([]string, error) {
	var numbers []string
	err := db.WithContext(ctx).
		Raw(`SELECT transaction_no FROM transactions WHERE transaction_no IS NOT NULL`).
		Scan(&numbers).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}
