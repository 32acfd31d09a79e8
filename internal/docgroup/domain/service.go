package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Service issues document numbers tied to transactions.
type Service interface {
	// Ensure returns the existing group for (transaction, doc code) or
	// allocates a new one with the next free sequence of the current month.
	Ensure(ctx context.Context, transactionID snowflake.ID, docCode string) (*DocGroup, error)
	// ListByTransaction returns all groups issued for a transaction.
	ListByTransaction(ctx context.Context, transactionID snowflake.ID) ([]DocGroup, error)
	// FileName renders the on-disk name for a generated document.
	FileName(group *DocGroup, docCode string) string
}

type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, group *DocGroup) error
	FindByTransactionAndDocNo(ctx context.Context, db *gorm.DB, transactionID snowflake.ID, docNo string) (*DocGroup, error)
	ListByTransaction(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) ([]DocGroup, error)
	MaxSeq(ctx context.Context, tx *gorm.DB, year, month int) (int, error)
	TransactionNumber(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (string, error)
}

var (
	ErrInvalidDocCode = errors.New("invalid_doc_code")
	ErrDuplicateSeq   = errors.New("duplicate_doc_seq")
)
