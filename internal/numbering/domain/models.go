package domain

import "time"

// CounterTransactionLastNumber is the counter backing transaction numbers.
const CounterTransactionLastNumber = "transaction_last_number"

// Counter is one named monotonic sequence. Value is the last allocated
// number; allocation is an atomic upsert so two sessions can never read the
// same value. The column avoids the name "key", reserved in MySQL.
type Counter struct {
	Key       string    `gorm:"column:counter_key;primaryKey;size:64" json:"key"`
	Value     int64     `gorm:"column:value" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Counter) TableName() string {
	return "counters"
}
