package main

import (
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"propledger/internal/cli"
	"propledger/internal/log"
	"propledger/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentProcessor)
	logger.Info("Starting recurring-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	publisher, closePublisher := cli.InitPublisher(logger, cfg)
	defer closePublisher()

	svc := services.NewRecurringService(repo, publisher)
	processor := services.NewRecurringProcessor(svc, cfg.RecurringCatchUpMonths)

	interval := cfg.RecurringProcessorInterval
	logger.Info("Recurring processor configured",
		"interval", interval,
		"catch_up_months", cfg.RecurringCatchUpMonths,
		"sqlite_db", cfg.SQLiteDBPath)

	ctx, stop := cli.SignalContext(logger)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	run := func(now time.Time) {
		count, err := processor.ProcessDue(ctx, now)
		if err != nil {
			logger.ErrorContext(ctx, "Recurring processing failed", log.FieldError, err, "generated", count)
			return
		}
		logger.InfoContext(ctx, "Recurring processing complete",
			"generated", count,
			"next_check", now.Add(interval).Format(time.TimeOnly))
	}

	g.Go(func() error {
		run(time.Now())

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				run(now)
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Recurring-worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Recurring-worker shutdown complete")
}
