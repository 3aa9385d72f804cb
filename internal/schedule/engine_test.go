package schedule

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/shopspring/decimal"

	"propledger/internal/core"
)

func template(id int64, day int, start core.Date, end core.EndCondition) core.RecurringTemplate {
	supplier := int64(4)
	return core.RecurringTemplate{
		ID:          id,
		ProjectID:   1,
		Description: "Elevator maintenance",
		Kind:        core.Expense,
		Amount:      decimal.RequireFromString("1200.50"),
		Category:    "Maintenance",
		SupplierID:  &supplier,
		DayOfMonth:  day,
		StartDate:   start,
		End:         end,
		IsActive:    true,
	}
}

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		year, month, want int
	}{
		{2024, 1, 31},
		{2024, 2, 29},
		{2023, 2, 28},
		{1900, 2, 28},
		{2000, 2, 29},
		{2024, 4, 30},
		{2024, 12, 31},
	}
	for _, tt := range tests {
		if got := DaysInMonth(tt.year, tt.month); got != tt.want {
			t.Errorf("DaysInMonth(%d, %d) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestDayOfMonthClamp(t *testing.T) {
	tests := []struct {
		name             string
		day, year, month int
		want             core.Date
	}{
		{"31 in leap february", 31, 2024, 2, core.NewDate(2024, 2, 29)},
		{"31 in february", 31, 2023, 2, core.NewDate(2023, 2, 28)},
		{"30 in february", 30, 2025, 2, core.NewDate(2025, 2, 28)},
		{"29 in leap february", 29, 2024, 2, core.NewDate(2024, 2, 29)},
		{"31 in april", 31, 2024, 4, core.NewDate(2024, 4, 30)},
		{"31 in june", 31, 2024, 6, core.NewDate(2024, 6, 30)},
		{"31 in september", 31, 2024, 9, core.NewDate(2024, 9, 30)},
		{"31 in november", 31, 2024, 11, core.NewDate(2024, 11, 30)},
		{"31 in december", 31, 2024, 12, core.NewDate(2024, 12, 31)},
		{"15 unchanged", 15, 2024, 2, core.NewDate(2024, 2, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DayOfMonthClamp(tt.day, tt.year, tt.month); got != tt.want {
				t.Errorf("DayOfMonthClamp(%d, %d, %d) = %s, want %s", tt.day, tt.year, tt.month, got, tt.want)
			}
		})
	}
}

func TestShouldGenerate_NoEndEveryMonth(t *testing.T) {
	tmpl := template(1, 15, core.NewDate(2024, 1, 1), core.NoEnd())
	p := Period{Year: 2024, Month: 1}
	for i := 0; i < 24; i++ {
		if !ShouldGenerate(tmpl, p.Year, p.Month, i) {
			t.Fatalf("expected generation for %s", p)
		}
		p = p.Next()
	}
}

func TestShouldGenerate_Inactive(t *testing.T) {
	tmpl := template(1, 15, core.NewDate(2024, 1, 1), core.NoEnd())
	tmpl.IsActive = false
	if ShouldGenerate(tmpl, 2024, 3, 0) {
		t.Error("inactive templates generate nothing")
	}
}

func TestShouldGenerate_BeforeStart(t *testing.T) {
	tmpl := template(1, 1, core.NewDate(2024, 3, 15), core.NoEnd())
	if ShouldGenerate(tmpl, 2024, 2, 0) {
		t.Error("month before start must not generate")
	}
	if ShouldGenerate(tmpl, 2024, 3, 0) {
		t.Error("candidate 2024-03-01 falls before start 2024-03-15")
	}
	if !ShouldGenerate(tmpl, 2024, 4, 0) {
		t.Error("first month fully after start must generate")
	}
}

func TestShouldGenerate_CandidateDate(t *testing.T) {
	tmpl := template(1, 31, core.NewDate(2023, 1, 1), core.NoEnd())
	tests := []struct {
		year, month int
		want        core.Date
	}{
		{2023, 2, core.NewDate(2023, 2, 28)},
		{2024, 2, core.NewDate(2024, 2, 29)},
		{2024, 4, core.NewDate(2024, 4, 30)},
		{2024, 6, core.NewDate(2024, 6, 30)},
		{2024, 9, core.NewDate(2024, 9, 30)},
		{2024, 11, core.NewDate(2024, 11, 30)},
	}
	for _, tt := range tests {
		d, err := Evaluate(tmpl, Period{Year: tt.year, Month: tt.month}, History{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Generate || d.Date != tt.want {
			t.Errorf("%d-%02d: got generate=%v date=%s, want %s", tt.year, tt.month, d.Generate, d.Date, tt.want)
		}
	}
}

func TestShouldGenerate_AfterOccurrences(t *testing.T) {
	tmpl := template(1, 5, core.NewDate(2024, 1, 1), core.AfterOccurrences(3))
	want := []bool{true, true, true, false}
	p := Period{Year: 2024, Month: 1}
	for count, w := range want {
		if got := ShouldGenerate(tmpl, p.Year, p.Month, count); got != w {
			t.Errorf("count=%d: got %v, want %v", count, got, w)
		}
		p = p.Next()
	}
}

func TestShouldGenerate_AfterOccurrencesCountsInstancesNotMonths(t *testing.T) {
	tmpl := template(1, 5, core.NewDate(2024, 1, 1), core.AfterOccurrences(3))
	// Generation skipped for most of the year: only one instance exists.
	if !ShouldGenerate(tmpl, 2024, 11, 1) {
		t.Error("gap months must not consume occurrences")
	}
}

func TestShouldGenerate_OnDate(t *testing.T) {
	tmpl := template(1, 20, core.NewDate(2024, 1, 1), core.OnDate(core.NewDate(2024, 6, 15)))
	if ShouldGenerate(tmpl, 2024, 6, 5) {
		t.Error("2024-06-20 is past end date 2024-06-15")
	}
	if !ShouldGenerate(tmpl, 2024, 5, 4) {
		t.Error("2024-05-20 is before end date")
	}

	onEnd := template(2, 15, core.NewDate(2024, 1, 1), core.OnDate(core.NewDate(2024, 6, 15)))
	if !ShouldGenerate(onEnd, 2024, 6, 0) {
		t.Error("candidate equal to end date is still generated")
	}
}

func TestShouldGenerate_Pure(t *testing.T) {
	tmpl := template(1, 10, core.NewDate(2024, 1, 1), core.AfterOccurrences(2))
	first := ShouldGenerate(tmpl, 2024, 2, 1)
	second := ShouldGenerate(tmpl, 2024, 2, 1)
	if first != second {
		t.Errorf("same inputs gave %v then %v", first, second)
	}
}

func TestShouldGenerate_MalformedNeverGenerates(t *testing.T) {
	tmpl := template(1, 42, core.NewDate(2024, 1, 1), core.NoEnd())
	if ShouldGenerate(tmpl, 2024, 2, 0) {
		t.Error("day 42 is malformed")
	}
	if ShouldGenerate(template(1, 5, core.NewDate(2024, 1, 1), core.NoEnd()), 2024, 13, 0) {
		t.Error("month 13 is malformed")
	}
}

func TestEvaluate_Reasons(t *testing.T) {
	start := core.NewDate(2024, 1, 1)
	inactive := template(1, 5, start, core.NoEnd())
	inactive.IsActive = false

	tests := []struct {
		name   string
		tmpl   core.RecurringTemplate
		period Period
		hist   History
		want   Reason
	}{
		{"due", template(1, 5, start, core.NoEnd()), Period{2024, 2}, History{}, ReasonDue},
		{"inactive", inactive, Period{2024, 2}, History{}, ReasonInactive},
		{"before start", template(1, 5, start, core.NoEnd()), Period{2023, 12}, History{}, ReasonBeforeStart},
		{"past end", template(1, 5, start, core.OnDate(core.NewDate(2024, 3, 1))), Period{2024, 3}, History{}, ReasonPastEndDate},
		{"exhausted", template(1, 5, start, core.AfterOccurrences(1)), Period{2024, 2}, History{Count: 1}, ReasonMaxOccurrences},
		{"already generated", template(1, 5, start, core.NoEnd()), Period{2024, 2}, History{ExistsInMonth: true}, ReasonAlreadyGenerated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Evaluate(tt.tmpl, tt.period, tt.hist)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Reason != tt.want {
				t.Errorf("reason = %s, want %s", d.Reason, tt.want)
			}
			if d.Generate != (tt.want == ReasonDue) {
				t.Errorf("generate = %v for reason %s", d.Generate, d.Reason)
			}
		})
	}
}

func TestGenerateForMonth_OrderedByTemplateID(t *testing.T) {
	start := core.NewDate(2024, 1, 1)
	templates := []core.RecurringTemplate{
		template(5, 1, start, core.NoEnd()),
		template(2, 1, start, core.NoEnd()),
		template(9, 1, start, core.NoEnd()),
	}
	reqs, err := GenerateForMonth(templates, 2024, 3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ids []int64
	for _, r := range reqs {
		ids = append(ids, r.TemplateID)
	}
	want := []int64{2, 5, 9}
	if len(ids) != len(want) {
		t.Fatalf("got ids %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got ids %v, want %v", ids, want)
		}
	}
	if templates[0].ID != 5 {
		t.Error("input slice must not be reordered")
	}
}

func TestGenerateForMonth_LeapYearScenario(t *testing.T) {
	tmpl := template(1, 31, core.NewDate(2024, 1, 1), core.NoEnd())
	reqs, err := GenerateForMonth([]core.RecurringTemplate{tmpl}, 2024, 2, map[int64]int{1: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	r := reqs[0]
	if r.TxDate != core.NewDate(2024, 2, 29) {
		t.Errorf("tx date = %s, want 2024-02-29", r.TxDate)
	}
	if r.OccurrenceIndex != 2 {
		t.Errorf("occurrence index = %d, want 2", r.OccurrenceIndex)
	}
	if r.Year != 2024 || r.Month != 2 {
		t.Errorf("period = %d-%d", r.Year, r.Month)
	}
	if !r.Amount.Equal(tmpl.Amount) || r.Kind != tmpl.Kind || r.Category != tmpl.Category || *r.SupplierID != *tmpl.SupplierID {
		t.Errorf("request does not copy the template: %+v", r)
	}
}

func TestGenerateForMonth_AfterTwoOccurrencesScenario(t *testing.T) {
	tmpl := template(1, 1, core.NewDate(2024, 3, 1), core.AfterOccurrences(2))
	steps := []struct {
		month     int
		count     int
		wantIndex int // 0 means nothing generated
	}{
		{3, 0, 1},
		{4, 1, 2},
		{5, 2, 0},
	}
	for _, s := range steps {
		reqs, err := GenerateForMonth([]core.RecurringTemplate{tmpl}, 2024, s.month, map[int64]int{1: s.count})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.wantIndex == 0 {
			if len(reqs) != 0 {
				t.Errorf("month %d: expected nothing, got %+v", s.month, reqs)
			}
			continue
		}
		if len(reqs) != 1 || reqs[0].OccurrenceIndex != s.wantIndex {
			t.Errorf("month %d: got %+v, want occurrence %d", s.month, reqs, s.wantIndex)
		}
	}
}

func TestGenerateForMonth_RejectsMalformedKeepsOthers(t *testing.T) {
	start := core.NewDate(2024, 1, 1)
	bad := template(3, 1, start, core.AfterOccurrences(0))
	good := template(4, 1, start, core.NoEnd())

	reqs, err := GenerateForMonth([]core.RecurringTemplate{bad, good}, 2024, 2, nil)
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(reqs) != 1 || reqs[0].TemplateID != 4 {
		t.Errorf("valid templates must still generate, got %+v", reqs)
	}
}

func TestGenerateForMonth_InvalidPeriod(t *testing.T) {
	_, err := GenerateForMonth(nil, 2024, 0, nil)
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestPlan_IdempotenceGuard(t *testing.T) {
	start := core.NewDate(2024, 1, 1)
	templates := []core.RecurringTemplate{
		template(1, 10, start, core.NoEnd()),
		template(2, 10, start, core.NoEnd()),
	}
	res, err := Plan(templates, Period{2024, 5}, map[int64]History{
		1: {Count: 4, ExistsInMonth: true},
		2: {Count: 4},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Requests) != 1 || res.Requests[0].TemplateID != 2 {
		t.Fatalf("got %+v", res.Requests)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != (Skip{TemplateID: 1, Reason: ReasonAlreadyGenerated}) {
		t.Errorf("skipped = %+v", res.Skipped)
	}
}

func TestPlan_DuplicateTemplateIDPlannedOnce(t *testing.T) {
	start := core.NewDate(2024, 1, 1)
	tmpl := template(1, 10, start, core.NoEnd())
	res, err := Plan([]core.RecurringTemplate{tmpl, tmpl}, Period{2024, 2}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Requests) != 1 {
		t.Errorf("got %d requests, want 1", len(res.Requests))
	}
}

func TestPeriod(t *testing.T) {
	if got := (Period{2024, 12}).Next(); got != (Period{2025, 1}) {
		t.Errorf("Next = %v", got)
	}
	if got := (Period{2024, 1}).Prev(); got != (Period{2023, 12}) {
		t.Errorf("Prev = %v", got)
	}
	if !(Period{2023, 12}).Before(Period{2024, 1}) || (Period{2024, 1}).Before(Period{2024, 1}) {
		t.Error("Before is strict and ordered by year then month")
	}
	if s := (Period{2024, 3}).String(); s != "2024-03" {
		t.Errorf("String = %q", s)
	}
}

func TestGetTerminator(t *testing.T) {
	for _, et := range []core.EndType{core.EndNever, core.EndAfterOccurrences, core.EndOnDate} {
		if _, err := GetTerminator(et); err != nil {
			t.Errorf("GetTerminator(%q): %v", et, err)
		}
	}
	if _, err := GetTerminator("Weekly"); err == nil {
		t.Error("expected error for unknown end type")
	}
}

func TestGenerateForMonth_AgreesWithShouldGenerate(t *testing.T) {
	start := core.NewDate(2024, 1, 1)

	noSupplier := template(3, 1, start, core.NoEnd())
	noSupplier.SupplierID = nil
	noSupplier.Amount = decimal.RequireFromString("10.005")

	noCategory := template(4, 10, start, core.NoEnd())
	noCategory.Category = ""
	noCategory.Description = ""

	zeroAmount := template(5, 10, start, core.NoEnd())
	zeroAmount.Amount = decimal.Zero

	inactive := template(6, 10, start, core.NoEnd())
	inactive.IsActive = false

	inactiveMalformed := template(11, 40, start, core.NoEnd())
	inactiveMalformed.IsActive = false

	templates := []core.RecurringTemplate{
		template(9, 31, start, core.NoEnd()),
		noSupplier,
		noCategory,
		zeroAmount,
		inactive,
		template(7, 15, core.NewDate(2024, 3, 1), core.NoEnd()),
		template(8, 15, start, core.OnDate(core.NewDate(2024, 2, 1))),
		template(10, 42, start, core.NoEnd()),
		inactiveMalformed,
		template(2, 1, start, core.AfterOccurrences(2)),
	}
	counts := map[int64]int{2: 1}

	var want []int64
	for _, tmpl := range templates {
		if ShouldGenerate(tmpl, 2024, 2, counts[tmpl.ID]) {
			want = append(want, tmpl.ID)
		}
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	reqs, _ := GenerateForMonth(templates, 2024, 2, counts)
	var got []int64
	for _, r := range reqs {
		got = append(got, r.TemplateID)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GenerateForMonth emitted %v, ShouldGenerate accepts %v", got, want)
	}
	if !reflect.DeepEqual(got, []int64{2, 3, 4, 9}) {
		t.Errorf("unexpected due set %v", got)
	}
}

func TestEvaluate_InactiveBeforeValidation(t *testing.T) {
	tmpl := template(1, 40, core.NewDate(2024, 1, 1), core.NoEnd())
	tmpl.IsActive = false

	d, err := Evaluate(tmpl, Period{2024, 2}, History{})
	if err != nil {
		t.Fatalf("inactive template should not be validated, got %v", err)
	}
	if d.Reason != ReasonInactive || d.Generate {
		t.Errorf("decision = %+v, want inactive", d)
	}

	tmpl.IsActive = true
	if _, err := Evaluate(tmpl, Period{2024, 2}, History{}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("active malformed template: expected validation error, got %v", err)
	}
}

func TestEvaluate_RequiresPositiveAmount(t *testing.T) {
	tmpl := template(1, 5, core.NewDate(2024, 1, 1), core.NoEnd())
	tmpl.Amount = decimal.RequireFromString("-3")

	_, err := Evaluate(tmpl, Period{2024, 2}, History{})
	var verr *core.ValidationError
	if !errors.As(err, &verr) || verr.Field != "amount" {
		t.Errorf("expected amount validation error, got %v", err)
	}
}
