package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/logiport/logiport/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateTransactionRequest struct {
	// TransactionNo, when set, is a manually chosen number. Left empty the
	// service allocates the next sequential one.
	TransactionNo     string          `json:"transaction_no"`
	Status            Status          `json:"status"`
	TransactionType   TransactionType `json:"transaction_type"`
	TransactionDate   *time.Time      `json:"transaction_date,omitempty"`
	ClientID          *int64          `json:"client_id,omitempty"`
	ExporterCompanyID *int64          `json:"exporter_company_id,omitempty"`
	ImporterCompanyID *int64          `json:"importer_company_id,omitempty"`
	OriginCountryID   *int64          `json:"origin_country_id,omitempty"`
	DestCountryID     *int64          `json:"dest_country_id,omitempty"`
	CurrencyID        *int64          `json:"currency_id,omitempty"`
	Notes             *string         `json:"notes,omitempty"`
	TotalAmount       *float64        `json:"total_amount,omitempty"`
}

// UpdateTransactionRequest applies only the fields that are set. The
// transaction number and status are never touched here; status moves through
// ChangeStatus only.
type UpdateTransactionRequest struct {
	TransactionType   *TransactionType `json:"transaction_type,omitempty"`
	TransactionDate   *time.Time       `json:"transaction_date,omitempty"`
	ClientID          *int64           `json:"client_id,omitempty"`
	ExporterCompanyID *int64           `json:"exporter_company_id,omitempty"`
	ImporterCompanyID *int64           `json:"importer_company_id,omitempty"`
	OriginCountryID   *int64           `json:"origin_country_id,omitempty"`
	DestCountryID     *int64           `json:"dest_country_id,omitempty"`
	CurrencyID        *int64           `json:"currency_id,omitempty"`
	Notes             *string          `json:"notes,omitempty"`
	TotalAmount       *float64         `json:"total_amount,omitempty"`
}

type ListTransactionRequest struct {
	pagination.Pagination
	ClientID        *int64
	Status          Status
	TransactionType TransactionType
	StartDate       *time.Time
	EndDate         *time.Time
	Search          string
}

type ListTransactionResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

type Service interface {
	Create(ctx context.Context, req CreateTransactionRequest) (*Transaction, error)
	Get(ctx context.Context, id snowflake.ID) (*Transaction, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateTransactionRequest) (*Transaction, error)
	Delete(ctx context.Context, id snowflake.ID) error
	List(ctx context.Context, req ListTransactionRequest) (ListTransactionResponse, error)

	ChangeStatus(ctx context.Context, id snowflake.ID, target Status) (*Transaction, error)
	Activate(ctx context.Context, id snowflake.ID) (*Transaction, error)
	Close(ctx context.Context, id snowflake.ID) (*Transaction, error)
	Reopen(ctx context.Context, id snowflake.ID) (*Transaction, error)
	Archive(ctx context.Context, id snowflake.ID) (*Transaction, error)
}

type ListFilter struct {
	ClientID        *int64
	Status          Status
	TransactionType TransactionType
	StartDate       *time.Time
	EndDate         *time.Time
	Search          string
	Offset          int
	Limit           int
}

type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, transaction *Transaction) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Transaction, error)
	FindByNumber(ctx context.Context, db *gorm.DB, transactionNo string) (*Transaction, error)
	Update(ctx context.Context, tx *gorm.DB, transaction *Transaction) error
	UpdateLifecycle(ctx context.Context, tx *gorm.DB, transaction *Transaction) error
	Delete(ctx context.Context, tx *gorm.DB, id snowflake.ID) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Transaction, int64, error)
}

var (
	ErrTransactionNotFound  = errors.New("transaction_not_found")
	ErrTransitionNotAllowed = errors.New("transition_not_allowed")
	ErrDuplicateNumber      = errors.New("duplicate_transaction_number")
	ErrTransactionLocked    = errors.New("transaction_locked")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidType          = errors.New("invalid_transaction_type")
)
