package schedule

import (
	"fmt"

	"propledger/internal/core"
)

// Terminator decides whether an end condition still permits an occurrence.
// Each end type has its own implementation.
type Terminator interface {
	// Permits reports whether an occurrence dated candidate may be generated
	// when generated instances already exist before it. When it returns false
	// the reason says why.
	Permits(end core.EndCondition, candidate core.Date, generated int) (bool, Reason)
}

// NeverEnds implements Terminator for templates without an end condition.
type NeverEnds struct{}

func (NeverEnds) Permits(core.EndCondition, core.Date, int) (bool, Reason) {
	return true, ReasonDue
}

// EndsAfterOccurrences stops once MaxOccurrences instances exist. The count is
// of instances actually generated, not of elapsed months, so gaps in
// generation neither consume nor add occurrences.
type EndsAfterOccurrences struct{}

func (EndsAfterOccurrences) Permits(end core.EndCondition, _ core.Date, generated int) (bool, Reason) {
	if generated+1 > end.MaxOccurrences {
		return false, ReasonMaxOccurrences
	}
	return true, ReasonDue
}

// EndsOnDate stops for candidates strictly after EndDate.
type EndsOnDate struct{}

func (EndsOnDate) Permits(end core.EndCondition, candidate core.Date, _ int) (bool, Reason) {
	if candidate.After(end.EndDate) {
		return false, ReasonPastEndDate
	}
	return true, ReasonDue
}

var terminators = map[core.EndType]Terminator{
	core.EndNever:            NeverEnds{},
	core.EndAfterOccurrences: EndsAfterOccurrences{},
	core.EndOnDate:           EndsOnDate{},
}

// GetTerminator returns the terminator for an end type.
func GetTerminator(t core.EndType) (Terminator, error) {
	term, ok := terminators[t]
	if !ok {
		return nil, fmt.Errorf("unknown end type: %q", t)
	}
	return term, nil
}
