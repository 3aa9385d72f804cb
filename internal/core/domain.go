package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "Income"
	Expense Kind = "Expense"
)

const (
	EndNever            EndType = "No End"
	EndAfterOccurrences EndType = "After Occurrences"
	EndOnDate           EndType = "On Date"
)

const (
	MaxDescriptionLength = 500
	MinDayOfMonth        = 1
	MaxDayOfMonth        = 31
)

type (
	Kind    string
	EndType string

	Date struct {
		time.Time
	}

	// EndCondition is a tagged union: only the field matching Type is meaningful.
	EndCondition struct {
		Type           EndType
		MaxOccurrences int
		EndDate        Date
	}

	RecurringTemplate struct {
		ID          int64
		ProjectID   int64
		Description string
		Kind        Kind
		Amount      decimal.Decimal
		Category    string // empty when unset
		SupplierID  *int64
		Notes       string
		DayOfMonth  int
		StartDate   Date
		End         EndCondition
		IsActive    bool
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// TransactionInstance is a transaction generated from a template. After creation
	// it is an independent record: only TemplateID links it back.
	TransactionInstance struct {
		ID              int64
		TemplateID      int64
		ProjectID       int64
		TxDate          Date
		PeriodYear      int
		PeriodMonth     int
		Kind            Kind
		Amount          decimal.Decimal
		Description     string
		Category        string
		SupplierID      *int64
		Notes           string
		OccurrenceIndex int
		IsGenerated     bool
		CreatedAt       time.Time
		UpdatedAt       time.Time
		DeletedAt       *time.Time
	}

	// NewInstanceRequest is what the engine emits for the caller to persist.
	NewInstanceRequest struct {
		TemplateID      int64
		ProjectID       int64
		TxDate          Date
		Year            int
		Month           int
		Kind            Kind
		Amount          decimal.Decimal
		Description     string
		Category        string
		SupplierID      *int64
		Notes           string
		OccurrenceIndex int
	}
)

// NoEnd returns an end condition that never terminates.
func NoEnd() EndCondition {
	return EndCondition{Type: EndNever}
}

// AfterOccurrences returns an end condition that stops after max instances.
func AfterOccurrences(max int) EndCondition {
	return EndCondition{Type: EndAfterOccurrences, MaxOccurrences: max}
}

// OnDate returns an end condition that stops after the given date (inclusive).
func OnDate(d Date) EndCondition {
	return EndCondition{Type: EndOnDate, EndDate: d}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar date in t's location and returns it as a UTC date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

func (e EndType) Valid() bool {
	switch e {
	case EndNever, EndAfterOccurrences, EndOnDate:
		return true
	}
	return false
}

// Validate checks the end condition against the template start date.
func (c EndCondition) Validate(start Date) error {
	switch c.Type {
	case EndNever:
		return nil
	case EndAfterOccurrences:
		if c.MaxOccurrences < 1 {
			return invalid("max_occurrences", "must be a positive integer")
		}
		return nil
	case EndOnDate:
		if c.EndDate.IsZero() {
			return invalid("end_date", "is required when end type is On Date")
		}
		if !start.IsZero() && c.EndDate.Before(start) {
			return invalid("end_date", "must not be before start date")
		}
		return nil
	default:
		return invalid("end_type", "must be one of No End, After Occurrences, On Date")
	}
}

// ValidateAmount requires a strictly positive amount with at most two decimals.
func ValidateAmount(a decimal.Decimal) error {
	if !a.IsPositive() {
		return invalid("amount", "must be positive")
	}
	if !a.Equal(a.Round(2)) {
		return invalid("amount", "must have at most 2 decimal places")
	}
	return nil
}

// Validate enforces the write-time rules for a template, including the
// supplier and two-decimal rules the schedule engine does not look at.
func (t RecurringTemplate) Validate() error {
	if t.ProjectID <= 0 {
		return invalid("project_id", "is required")
	}
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		return invalid("description", "cannot be empty")
	}
	if len(desc) > MaxDescriptionLength {
		return invalid("description", "too long (max 500 characters)")
	}
	if !t.Kind.Valid() {
		return invalid("type", "must be Income or Expense")
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if t.DayOfMonth < MinDayOfMonth || t.DayOfMonth > MaxDayOfMonth {
		return invalid("day_of_month", "must be between 1 and 31")
	}
	if t.StartDate.IsZero() {
		return invalid("start_date", "is required")
	}
	if t.SupplierID != nil && *t.SupplierID <= 0 {
		return invalid("supplier_id", "must reference a supplier")
	}
	// Income may come from no supplier; expenses are always paid to one.
	if t.Kind == Expense && t.SupplierID == nil {
		return invalid("supplier_id", "is required for expense templates")
	}
	return t.End.Validate(t.StartDate)
}

// Validate checks the fields an instance edit may change.
func (i TransactionInstance) Validate() error {
	if i.TxDate.IsZero() {
		return invalid("tx_date", "is required")
	}
	if err := ValidateAmount(i.Amount); err != nil {
		return err
	}
	if !i.Kind.Valid() {
		return invalid("type", "must be Income or Expense")
	}
	return nil
}

// Ended reports whether the end condition rules out any occurrence after the
// given number of already generated instances, as of the given date.
func (t RecurringTemplate) Ended(generated int, asOf Date) bool {
	switch t.End.Type {
	case EndAfterOccurrences:
		return generated >= t.End.MaxOccurrences
	case EndOnDate:
		return asOf.After(t.End.EndDate)
	}
	return false
}
