package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TemplatePatch is a partial update; nil fields are left untouched.
type TemplatePatch struct {
	Description *string
	Amount      *decimal.Decimal
	Category    *string
	SupplierID  *int64
	Notes       *string
	DayOfMonth  *int
	StartDate   *Date
	End         *EndCondition
	IsActive    *bool
}

// Apply returns a copy of t with the patch applied. Instances already generated
// from t are never touched by a patch; it only shapes future generation.
func (p TemplatePatch) Apply(t RecurringTemplate) RecurringTemplate {
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.SupplierID != nil {
		id := *p.SupplierID
		t.SupplierID = &id
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.DayOfMonth != nil {
		t.DayOfMonth = *p.DayOfMonth
	}
	if p.StartDate != nil {
		t.StartDate = *p.StartDate
	}
	if p.End != nil {
		t.End = *p.End
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	return t
}

// Empty reports whether the patch changes nothing.
func (p TemplatePatch) Empty() bool {
	return p == TemplatePatch{}
}

// InstancePatch edits a single generated transaction.
type InstancePatch struct {
	TxDate   *Date
	Amount   *decimal.Decimal
	Category *string
	Notes    *string
}

// Apply returns a copy of i with the patch applied. The period the instance was
// generated for stays the same even when TxDate moves.
func (p InstancePatch) Apply(i TransactionInstance) TransactionInstance {
	if p.TxDate != nil {
		i.TxDate = *p.TxDate
	}
	if p.Amount != nil {
		i.Amount = *p.Amount
	}
	if p.Category != nil {
		i.Category = strings.TrimSpace(*p.Category)
	}
	if p.Notes != nil {
		i.Notes = *p.Notes
	}
	return i
}
