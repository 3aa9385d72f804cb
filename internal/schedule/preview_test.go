package schedule

import (
	"errors"
	"testing"

	"propledger/internal/core"
)

func dates(occ []Occurrence) []core.Date {
	out := make([]core.Date, len(occ))
	for i, o := range occ {
		out[i] = o.Date
	}
	return out
}

func TestFutureOccurrences_NoEnd(t *testing.T) {
	tmpl := template(1, 31, core.NewDate(2024, 1, 1), core.NoEnd())
	occ, err := FutureOccurrences(tmpl, core.NewDate(2024, 1, 1), 4, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []core.Date{
		core.NewDate(2024, 1, 31),
		core.NewDate(2024, 2, 29),
		core.NewDate(2024, 3, 31),
		core.NewDate(2024, 4, 30),
	}
	got := dates(occ)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("occurrence %d = %s, want %s", i, got[i], want[i])
		}
		if occ[i].OccurrenceIndex != i+1 {
			t.Errorf("occurrence %d index = %d", i, occ[i].OccurrenceIndex)
		}
	}
}

func TestFutureOccurrences_SkipsDateBeforeFrom(t *testing.T) {
	tmpl := template(1, 5, core.NewDate(2024, 1, 1), core.NoEnd())
	occ, err := FutureOccurrences(tmpl, core.NewDate(2024, 3, 10), 2, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occ) != 1 || occ[0].Date != core.NewDate(2024, 4, 5) {
		t.Errorf("got %v", dates(occ))
	}
}

func TestFutureOccurrences_StopsAtMaxOccurrences(t *testing.T) {
	tmpl := template(1, 1, core.NewDate(2024, 1, 1), core.AfterOccurrences(3))
	existing := map[Period]bool{{Year: 2024, Month: 1}: true}
	occ, err := FutureOccurrences(tmpl, core.NewDate(2024, 1, 1), 12, 0, existing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occ) != 2 {
		t.Fatalf("got %d occurrences, want 2: %v", len(occ), dates(occ))
	}
	if occ[0].OccurrenceIndex != 2 || occ[1].OccurrenceIndex != 3 {
		t.Errorf("indexes = %d, %d", occ[0].OccurrenceIndex, occ[1].OccurrenceIndex)
	}
}

func TestFutureOccurrences_StopsAtEndDate(t *testing.T) {
	tmpl := template(1, 20, core.NewDate(2024, 1, 1), core.OnDate(core.NewDate(2024, 6, 15)))
	occ, err := FutureOccurrences(tmpl, core.NewDate(2024, 4, 1), 12, 3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := dates(occ)
	if len(got) != 2 || got[0] != core.NewDate(2024, 4, 20) || got[1] != core.NewDate(2024, 5, 20) {
		t.Errorf("got %v", got)
	}
}

func TestFutureOccurrences_Inactive(t *testing.T) {
	tmpl := template(1, 20, core.NewDate(2024, 1, 1), core.NoEnd())
	tmpl.IsActive = false
	occ, err := FutureOccurrences(tmpl, core.NewDate(2024, 1, 1), 6, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(occ) != 0 {
		t.Errorf("inactive template projected %v", dates(occ))
	}
}

func TestFutureOccurrences_InvalidInput(t *testing.T) {
	tmpl := template(1, 20, core.NewDate(2024, 1, 1), core.NoEnd())
	tests := []struct {
		name        string
		from        core.Date
		monthsAhead int
		field       string
	}{
		{"zero months", core.NewDate(2024, 1, 1), 0, "months_ahead"},
		{"too many months", core.NewDate(2024, 1, 1), MaxMonthsAhead + 1, "months_ahead"},
		{"missing start", core.Date{}, 3, "start_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FutureOccurrences(tmpl, tt.from, tt.monthsAhead, 0, nil)
			var verr *core.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}
