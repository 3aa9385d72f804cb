package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"propledger/internal/amqp"
	"propledger/internal/cache"
	"propledger/internal/cli"
	"propledger/internal/config"
	"propledger/internal/log"
	ports "propledger/internal/sheets"
	gsheet "propledger/internal/sheets/google"
	mem "propledger/internal/sheets/memory"
	"propledger/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the sync worker")
		os.Exit(1)
	}
	logger.Info("Starting sync-worker", "mirror_backend", cfg.MirrorBackend)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	var mirror ports.InstanceWriter
	switch cfg.MirrorBackend {
	case config.MirrorSheets:
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror initialized",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	default:
		mirror = mem.New()
		logger.Info("Using in-memory mirror")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, mirror)
	janitor := cache.NewJanitor(syncWorker.Recent())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeInstanceGenerated(ctx, syncWorker.HandleInstanceGenerated)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return janitor.Run(ctx, 10*time.Minute)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Sync-worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Sync-worker shutdown complete")
}
