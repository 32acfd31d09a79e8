package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/logiport/logiport/internal/transaction/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `id, transaction_no, status, transaction_type, transaction_date,
	client_id, exporter_company_id, importer_company_id, origin_country_id,
	dest_country_id, currency_id, notes, total_amount,
	created_by, created_at, updated_by, updated_at`

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, transaction *domain.Transaction) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, transaction_no, status, transaction_type, transaction_date,
			client_id, exporter_company_id, importer_company_id, origin_country_id,
			dest_country_id, currency_id, notes, total_amount,
			created_by, created_at, updated_by, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		transaction.ID,
		transaction.TransactionNo,
		transaction.Status,
		transaction.TransactionType,
		transaction.TransactionDate,
		transaction.ClientID,
		transaction.ExporterCompanyID,
		transaction.ImporterCompanyID,
		transaction.OriginCountryID,
		transaction.DestCountryID,
		transaction.CurrencyID,
		transaction.Notes,
		transaction.TotalAmount,
		transaction.CreatedBy,
		transaction.CreatedAt,
		transaction.UpdatedBy,
		transaction.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	var transaction domain.Transaction
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

// lockClause returns the row-lock suffix for dialects whose transactions read
// without locking by default. SQLite serializes writers on its own; postgres
// and MySQL (InnoDB consistent reads) both need FOR UPDATE.
func lockClause(dialect string) string {
	switch dialect {
	case "postgres", "mysql":
		return " FOR UPDATE"
	}
	return ""
}

// FindByIDForUpdate reads the row with a write lock so the lifecycle
// check-and-apply can't race.
func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	query := `SELECT ` + selectColumns + ` FROM transactions WHERE id = ?` + lockClause(tx.Dialector.Name())

	var transaction domain.Transaction
	err := tx.WithContext(ctx).Raw(query, id).Scan(&transaction).Error
	if err != nil {
		return nil, err
	}
	if transaction.ID == 0 {
		return nil, nil
	}
	return &transaction, nil
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, transactionNo string) (*domain.Transaction, error) {
	var transaction domain.Transaction
	err := db.WithContext(ctx).
		Where("transaction_no = ?", transactionNo).
		First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *repo) Update(ctx context.Context, tx *gorm.DB, transaction *domain.Transaction) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE transactions SET
			transaction_type = ?, transaction_date = ?, client_id = ?,
			exporter_company_id = ?, importer_company_id = ?, origin_country_id = ?,
			dest_country_id = ?, currency_id = ?, notes = ?, total_amount = ?,
			updated_by = ?, updated_at = ?
		WHERE id = ?`,
		transaction.TransactionType,
		transaction.TransactionDate,
		transaction.ClientID,
		transaction.ExporterCompanyID,
		transaction.ImporterCompanyID,
		transaction.OriginCountryID,
		transaction.DestCountryID,
		transaction.CurrencyID,
		transaction.Notes,
		transaction.TotalAmount,
		transaction.UpdatedBy,
		transaction.UpdatedAt,
		transaction.ID,
	).Error
}

func (r *repo) UpdateLifecycle(ctx context.Context, tx *gorm.DB, transaction *domain.Transaction) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE transactions SET status = ?, updated_by = ?, updated_at = ? WHERE id = ?`,
		transaction.Status,
		transaction.UpdatedBy,
		transaction.UpdatedAt,
		transaction.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	return tx.WithContext(ctx).Exec(`DELETE FROM transactions WHERE id = ?`, id).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Transaction, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Transaction{})

	if filter.ClientID != nil {
		stmt = stmt.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.TransactionType != "" {
		stmt = stmt.Where("transaction_type = ?", filter.TransactionType)
	}
	if filter.StartDate != nil {
		stmt = stmt.Where("transaction_date >= ?", filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		stmt = stmt.Where("transaction_date <= ?", filter.EndDate.UTC())
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		stmt = stmt.Where("transaction_no LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit).Offset(filter.Offset)
	}

	var transactions []domain.Transaction
	if err := stmt.Find(&transactions).Error; err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}
