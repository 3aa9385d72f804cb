package schedule

import (
	"errors"
	"fmt"
	"sort"

	"propledger/internal/core"
)

// Reason explains a generation decision.
type Reason string

const (
	ReasonDue              Reason = "due"
	ReasonInactive         Reason = "inactive"
	ReasonBeforeStart      Reason = "before_start"
	ReasonPastEndDate      Reason = "past_end_date"
	ReasonMaxOccurrences   Reason = "max_occurrences_reached"
	ReasonAlreadyGenerated Reason = "already_generated"
	ReasonInvalid          Reason = "invalid_template"
)

// Terminal reports whether no later month can be due either, for the same
// template definition.
func (r Reason) Terminal() bool {
	return r == ReasonPastEndDate || r == ReasonMaxOccurrences
}

// History is what the caller knows about instances of one template.
type History struct {
	// Count of instances generated strictly before the target month.
	Count int
	// ExistsInMonth is set when an instance for the target month is already stored.
	ExistsInMonth bool
}

// Decision is the outcome of evaluating a template for one month.
type Decision struct {
	Generate bool
	Reason   Reason
	Date     core.Date // candidate date, zero when the template is inactive
}

// Evaluate applies the generation rule, in order: active flag, candidate date,
// start date, end condition, then the once-per-month guard. An inactive
// template is reported as inactive even when its schedule fields are
// malformed; only active templates are validated.
func Evaluate(t core.RecurringTemplate, p Period, h History) (Decision, error) {
	if err := p.Validate(); err != nil {
		return Decision{Reason: ReasonInvalid}, err
	}
	if !t.IsActive {
		return Decision{Reason: ReasonInactive}, nil
	}
	if err := validateSchedule(t); err != nil {
		return Decision{Reason: ReasonInvalid}, err
	}

	candidate := DayOfMonthClamp(t.DayOfMonth, p.Year, p.Month)
	if candidate.Before(t.StartDate) {
		return Decision{Reason: ReasonBeforeStart, Date: candidate}, nil
	}

	term, err := GetTerminator(t.End.Type)
	if err != nil {
		return Decision{Reason: ReasonInvalid}, core.Invalid("end_type", err.Error())
	}
	if ok, reason := term.Permits(t.End, candidate, h.Count); !ok {
		return Decision{Reason: reason, Date: candidate}, nil
	}

	if h.ExistsInMonth {
		return Decision{Reason: ReasonAlreadyGenerated, Date: candidate}, nil
	}
	return Decision{Generate: true, Reason: ReasonDue, Date: candidate}, nil
}

// ShouldGenerate reports whether t produces an instance for (year, month)
// given existingCount instances generated strictly before that month.
// A malformed template or period never generates.
func ShouldGenerate(t core.RecurringTemplate, year, month, existingCount int) bool {
	d, err := Evaluate(t, Period{Year: year, Month: month}, History{Count: existingCount})
	return err == nil && d.Generate
}

// Skip records a template that produced nothing for the planned month.
type Skip struct {
	TemplateID int64
	Reason     Reason
}

// PlanResult is the outcome of planning one month.
type PlanResult struct {
	Period   Period
	Requests []core.NewInstanceRequest
	Skipped  []Skip
}

// Plan evaluates every template for p with Evaluate, so a template yields a
// request exactly when ShouldGenerate would say so. Requests come out
// ascending by template id. Templates Evaluate rejects are skipped and
// reported in the returned error (joined *core.ValidationError values); the
// remaining templates are still planned. A template id that appears twice is only
// planned once.
//
// Plan does not make generation idempotent on its own: the caller persisting
// the requests must enforce uniqueness of (template id, year, month).
func Plan(templates []core.RecurringTemplate, p Period, histories map[int64]History) (PlanResult, error) {
	res := PlanResult{Period: p}
	if err := p.Validate(); err != nil {
		return res, err
	}

	sorted := make([]core.RecurringTemplate, len(templates))
	copy(sorted, templates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var errs []error
	seen := make(map[int64]struct{}, len(sorted))
	for _, t := range sorted {
		if _, dup := seen[t.ID]; dup {
			res.Skipped = append(res.Skipped, Skip{TemplateID: t.ID, Reason: ReasonAlreadyGenerated})
			continue
		}
		seen[t.ID] = struct{}{}

		h := histories[t.ID]
		d, err := Evaluate(t, p, h)
		if err != nil {
			errs = append(errs, fmt.Errorf("template %d: %w", t.ID, err))
			res.Skipped = append(res.Skipped, Skip{TemplateID: t.ID, Reason: ReasonInvalid})
			continue
		}
		if !d.Generate {
			res.Skipped = append(res.Skipped, Skip{TemplateID: t.ID, Reason: d.Reason})
			continue
		}
		res.Requests = append(res.Requests, newRequest(t, p, d.Date, h.Count+1))
	}

	return res, errors.Join(errs...)
}

// GenerateForMonth returns one request per template due in (year, month).
// occurrenceCounts holds, per template id, the instances generated strictly
// before that month; a missing entry means none.
func GenerateForMonth(templates []core.RecurringTemplate, year, month int, occurrenceCounts map[int64]int) ([]core.NewInstanceRequest, error) {
	histories := make(map[int64]History, len(occurrenceCounts))
	for id, n := range occurrenceCounts {
		histories[id] = History{Count: n}
	}
	res, err := Plan(templates, Period{Year: year, Month: month}, histories)
	return res.Requests, err
}

func newRequest(t core.RecurringTemplate, p Period, date core.Date, index int) core.NewInstanceRequest {
	var supplier *int64
	if t.SupplierID != nil {
		id := *t.SupplierID
		supplier = &id
	}
	return core.NewInstanceRequest{
		TemplateID:      t.ID,
		ProjectID:       t.ProjectID,
		TxDate:          date,
		Year:            p.Year,
		Month:           p.Month,
		Kind:            t.Kind,
		Amount:          t.Amount,
		Description:     t.Description,
		Category:        t.Category,
		SupplierID:      supplier,
		Notes:           t.Notes,
		OccurrenceIndex: index,
	}
}

// validateSchedule checks only the fields the engine reads: the schedule and
// the amount copied into every request. Supplier, category and description
// are opaque here; storage and the HTTP layer enforce them with
// RecurringTemplate.Validate.
func validateSchedule(t core.RecurringTemplate) error {
	if !t.Amount.IsPositive() {
		return core.Invalid("amount", "must be positive")
	}
	if t.DayOfMonth < core.MinDayOfMonth || t.DayOfMonth > core.MaxDayOfMonth {
		return core.Invalid("day_of_month", "must be between 1 and 31")
	}
	if t.StartDate.IsZero() {
		return core.Invalid("start_date", "is required")
	}
	return t.End.Validate(t.StartDate)
}
