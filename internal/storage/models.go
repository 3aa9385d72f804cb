package storage

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

type RecurringTemplate struct {
	ID             int64
	ProjectID      int64
	Description    string
	Kind           string
	Amount         decimal.Decimal
	Category       string
	SupplierID     sql.NullInt64
	Notes          string
	DayOfMonth     int64
	StartDate      string
	EndType        string
	MaxOccurrences sql.NullInt64
	EndDate        sql.NullString
	IsActive       bool
	CreatedAt      string
	UpdatedAt      string
}

type Transaction struct {
	ID                  int64
	ProjectID           int64
	RecurringTemplateID sql.NullInt64
	TxDate              string
	PeriodYear          int64
	PeriodMonth         int64
	Kind                string
	Amount              decimal.Decimal
	Description         string
	Category            string
	SupplierID          sql.NullInt64
	Notes               string
	OccurrenceIndex     int64
	IsGenerated         bool
	CreatedAt           string
	UpdatedAt           string
	DeletedAt           sql.NullString
}

// OccurrenceStat summarises the instances of one template relative to a month.
type OccurrenceStat struct {
	TemplateID    int64
	Before        int64
	ExistsInMonth bool
}
