package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusClosed   Status = "closed"
	StatusArchived Status = "archived"
)

type TransactionType string

const (
	TypeExport  TransactionType = "export"
	TypeImport  TransactionType = "import"
	TypeTransit TransactionType = "transit"
)

// Transaction is one export/import/transit deal. TransactionNo is assigned at
// creation and never changes afterwards; FK columns are opaque references
// into sibling systems and are not validated here.
type Transaction struct {
	ID                snowflake.ID    `gorm:"column:id;primaryKey" json:"id"`
	TransactionNo     string          `gorm:"column:transaction_no;uniqueIndex;size:64" json:"transaction_no"`
	Status            Status          `gorm:"column:status" json:"status"`
	TransactionType   TransactionType `gorm:"column:transaction_type" json:"transaction_type"`
	TransactionDate   *time.Time      `gorm:"column:transaction_date" json:"transaction_date,omitempty"`
	ClientID          *int64          `gorm:"column:client_id" json:"client_id,omitempty"`
	ExporterCompanyID *int64          `gorm:"column:exporter_company_id" json:"exporter_company_id,omitempty"`
	ImporterCompanyID *int64          `gorm:"column:importer_company_id" json:"importer_company_id,omitempty"`
	OriginCountryID   *int64          `gorm:"column:origin_country_id" json:"origin_country_id,omitempty"`
	DestCountryID     *int64          `gorm:"column:dest_country_id" json:"dest_country_id,omitempty"`
	CurrencyID        *int64          `gorm:"column:currency_id" json:"currency_id,omitempty"`
	Notes             *string         `gorm:"column:notes" json:"notes,omitempty"`
	TotalAmount       *float64        `gorm:"column:total_amount" json:"total_amount,omitempty"`
	CreatedBy         *int64          `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt         time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedBy         *int64          `gorm:"column:updated_by" json:"updated_by,omitempty"`
	UpdatedAt         time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Locked reports whether the record refuses updates and deletes.
func (t Transaction) Locked() bool {
	return t.Status == StatusClosed || t.Status == StatusArchived
}

func ValidStatus(status Status) bool {
	switch status {
	case StatusDraft, StatusActive, StatusClosed, StatusArchived:
		return true
	default:
		return false
	}
}

func ValidType(transactionType TransactionType) bool {
	switch transactionType {
	case TypeExport, TypeImport, TypeTransit:
		return true
	default:
		return false
	}
}

// TransitionAllowed encodes the lifecycle table. Same-state "transitions" are
// rejected; close a draft by activating it first.
func TransitionAllowed(current, target Status) bool {
	switch current {
	case StatusDraft:
		return target == StatusActive
	case StatusActive:
		return target == StatusClosed
	case StatusClosed:
		return target == StatusActive || target == StatusArchived
	default:
		return false
	}
}

// TransitionAction names an allowed transition for the audit trail.
func TransitionAction(current, target Status) string {
	switch {
	case target == StatusActive && current == StatusClosed:
		return "reopened"
	case target == StatusActive:
		return "activated"
	case target == StatusClosed:
		return "closed"
	case target == StatusArchived:
		return "archived"
	default:
		return "status_changed"
	}
}
