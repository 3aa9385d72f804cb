// Package schedule implements the recurring transaction schedule: when a
// template is due in a given month, which date the occurrence lands on, and
// when a template stops producing occurrences.
//
// Everything in this package is pure. Nothing here reads a clock, touches
// storage or keeps state between calls, so every function is safe to call
// concurrently from any goroutine.
package schedule

import (
	"fmt"
	"time"

	"propledger/internal/core"
)

// Period identifies a calendar month.
type Period struct {
	Year  int
	Month int // 1-12
}

// PeriodOf returns the period containing d.
func PeriodOf(d core.Date) Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

// Validate rejects months outside 1-12 and years outside 1-9999.
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return core.Invalid("month", "must be between 1 and 12")
	}
	if p.Year < 1 || p.Year > 9999 {
		return core.Invalid("year", "must be between 1 and 9999")
	}
	return nil
}

// Next returns the following month.
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Prev returns the preceding month.
func (p Period) Prev() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// DaysInMonth returns 28-31 for the given month, accounting for leap years.
func DaysInMonth(year, month int) int {
	// Day 0 of the next month normalises to the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DayOfMonthClamp returns the date for day in (year, month), moved back to the
// last day of the month when the month is shorter than day.
func DayOfMonthClamp(day, year, month int) core.Date {
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return core.NewDate(year, month, day)
}
