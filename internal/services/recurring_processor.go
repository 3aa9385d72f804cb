package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"propledger/internal/core"
	"propledger/internal/schedule"
)

// MonthGenerator generates the due instances for one month.
type MonthGenerator interface {
	GenerateForMonth(ctx context.Context, year, month int) (GenerationResult, error)
}

// RecurringProcessor handles the automatic generation of transactions from
// recurring templates on a schedule.
type RecurringProcessor struct {
	generator     MonthGenerator
	catchUpMonths int
}

// NewRecurringProcessor creates a processor. catchUpMonths previous months are
// regenerated on every run so months missed while the worker was down get
// filled in; generation is idempotent so this is safe.
func NewRecurringProcessor(generator MonthGenerator, catchUpMonths int) *RecurringProcessor {
	if catchUpMonths < 0 {
		catchUpMonths = 0
	}
	return &RecurringProcessor{
		generator:     generator,
		catchUpMonths: catchUpMonths,
	}
}

// ProcessDue generates every instance due up to the month containing now,
// oldest month first, and returns how many were created.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.generator == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	current := schedule.PeriodOf(core.DateOf(now))
	periods := make([]schedule.Period, 0, p.catchUpMonths+1)
	for i, period := 0, current; i <= p.catchUpMonths; i, period = i+1, period.Prev() {
		periods = append(periods, period)
	}

	slog.InfoContext(ctx, "Processing recurring templates",
		"from", periods[len(periods)-1].String(),
		"to", current.String(),
		"processing_date", now.Format(time.DateOnly))

	generated := 0
	var errs []error
	for i := len(periods) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return generated, err
		}
		res, err := p.generator.GenerateForMonth(ctx, periods[i].Year, periods[i].Month)
		generated += res.GeneratedCount
		if err != nil {
			slog.ErrorContext(ctx, "Failed to generate recurring transactions",
				"period", periods[i].String(),
				"error", err)
			errs = append(errs, fmt.Errorf("%s: %w", periods[i], err))
		}
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"generated", generated,
		"months", len(periods))

	return generated, errors.Join(errs...)
}
