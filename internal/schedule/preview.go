package schedule

import (
	"github.com/shopspring/decimal"

	"propledger/internal/core"
)

const (
	DefaultMonthsAhead = 12
	MaxMonthsAhead     = 24
)

// Occurrence is a projected, not yet generated, instance.
type Occurrence struct {
	Date            core.Date
	OccurrenceIndex int
	Amount          decimal.Decimal
	Description     string
	Category        string
}

// FutureOccurrences projects the next occurrences of t over monthsAhead
// months starting with the month of from. An occurrence dated before from is
// left out. generated is the number of instances stored before that first
// month; months listed in existing already hold an instance, so they are not
// projected again but still count toward AfterOccurrences.
func FutureOccurrences(t core.RecurringTemplate, from core.Date, monthsAhead, generated int, existing map[Period]bool) ([]Occurrence, error) {
	if monthsAhead < 1 || monthsAhead > MaxMonthsAhead {
		return nil, core.Invalid("months_ahead", "must be between 1 and 24")
	}
	if from.IsZero() {
		return nil, core.Invalid("start_date", "is required")
	}
	if err := validateSchedule(t); err != nil {
		return nil, err
	}

	var out []Occurrence
	count := generated
	p := PeriodOf(from)
	for i := 0; i < monthsAhead; i, p = i+1, p.Next() {
		if existing[p] {
			count++
			continue
		}
		d, err := Evaluate(t, p, History{Count: count})
		if err != nil {
			return nil, err
		}
		if d.Reason.Terminal() || d.Reason == ReasonInactive {
			break
		}
		if !d.Generate || d.Date.Before(from) {
			continue
		}
		count++
		out = append(out, Occurrence{
			Date:            d.Date,
			OccurrenceIndex: count,
			Amount:          t.Amount,
			Description:     t.Description,
			Category:        t.Category,
		})
	}
	return out, nil
}
