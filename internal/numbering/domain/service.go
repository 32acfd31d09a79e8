package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Service hands out transaction numbers. Allocated numbers that never reach a
// committed transaction stay burned; gaps are acceptable, duplicates are not.
type Service interface {
	// Next atomically reserves and returns the next value of a counter.
	Next(ctx context.Context, key string) (int64, error)
	// NextTransactionNumber reserves the next value and formats it.
	NextTransactionNumber(ctx context.Context) (string, error)
	// Peek returns the value Next would hand out, without reserving it.
	Peek(ctx context.Context, key string) (int64, error)
	// PreviewTransactionNumber formats Peek's value for display.
	PreviewTransactionNumber(ctx context.Context) (string, error)
	// SetCounter overwrites a counter value. Audited.
	SetCounter(ctx context.Context, key string, value int64) error
	// FormatNumber renders a raw counter value as a transaction number.
	FormatNumber(value int64) string
	// SyncLastNumber recomputes the transaction counter from assigned
	// numbers after deletes, so freed tails can be reused.
	SyncLastNumber(ctx context.Context) (int64, error)
}

type Repository interface {
	IncrementAndGet(ctx context.Context, tx *gorm.DB, key string, now time.Time) (int64, error)
	Get(ctx context.Context, db *gorm.DB, key string) (int64, error)
	Set(ctx context.Context, db *gorm.DB, key string, value int64, now time.Time) error
	CompareAndSwap(ctx context.Context, db *gorm.DB, key string, oldValue, newValue int64, now time.Time) (bool, error)
	ListTransactionNumbers(ctx context.Context, db *gorm.DB) ([]string, error)
}

var (
	ErrInvalidCounterKey   = errors.New("invalid_counter_key")
	ErrInvalidCounterValue = errors.New("invalid_counter_value")
	ErrAllocationExhausted = errors.New("allocation_retries_exhausted")
	ErrSyncContention      = errors.New("counter_sync_contention")
)
