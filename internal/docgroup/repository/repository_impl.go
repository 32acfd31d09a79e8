package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/logiport/logiport/internal/docgroup/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, group *domain.DocGroup) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO doc_groups (id, transaction_id, doc_no, year, month, seq, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID,
		group.TransactionID,
		group.DocNo,
		group.Year,
		group.Month,
		group.Seq,
		group.CreatedBy,
		group.CreatedAt,
	).Error
}

func (r *repo) FindByTransactionAndDocNo(ctx context.Context, db *gorm.DB, transactionID snowflake.ID, docNo string) (*domain.DocGroup, error) {
	var group domain.DocGroup
	err := db.WithContext(ctx).
		Where("transaction_id = ? AND doc_no = ?", transactionID, docNo).
		First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

func (r *repo) ListByTransaction(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) ([]domain.DocGroup, error) {
	var groups []domain.DocGroup
	err := db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at asc, id asc").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// MaxSeq reads the highest sequence of the month inside the caller's
// transaction, so the subsequent insert races only on the unique index.
func (r *repo) MaxSeq(ctx context.Context, tx *gorm.DB, year, month int) (int, error) {
	var max *int
	err := tx.WithContext(ctx).Raw(
		`SELECT MAX(seq) FROM doc_groups WHERE year = ? AND month = ?`,
		year, month,
	).Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *repo) TransactionNumber(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (string, error) {
	var transactionNo string
	err := db.WithContext(ctx).Raw(
		`SELECT transaction_no FROM transactions WHERE id = ?`,
		transactionID,
	).Scan(&transactionNo).Error
	if err != nil {
		return "", err
	}
	return transactionNo, nil
}
