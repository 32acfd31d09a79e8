package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DocGroup ties one issued document number to a transaction. Seq is unique
// within its (year, month) bucket; DocNo is unique per transaction, which is
// what makes Ensure idempotent.
type DocGroup struct {
	ID            snowflake.ID `gorm:"column:id;primaryKey" json:"id"`
	TransactionID snowflake.ID `gorm:"column:transaction_id;uniqueIndex:ux_doc_groups_txn_doc" json:"transaction_id"`
	DocNo         string       `gorm:"column:doc_no;uniqueIndex:ux_doc_groups_txn_doc;size:128" json:"doc_no"`
	Year          int          `gorm:"column:year;uniqueIndex:ux_doc_groups_month_seq" json:"year"`
	Month         int          `gorm:"column:month;uniqueIndex:ux_doc_groups_month_seq" json:"month"`
	Seq           int          `gorm:"column:seq;uniqueIndex:ux_doc_groups_month_seq" json:"seq"`
	CreatedBy     *int64       `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time    `gorm:"column:created_at" json:"created_at"`
}

func (DocGroup) TableName() string {
	return "doc_groups"
}
