package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"propledger/internal/amqp"
	"propledger/internal/cache"
	"propledger/internal/core"
	plog "propledger/internal/log"
	"propledger/internal/sheets"
	"propledger/internal/storage"
)

// InstanceLoader reads generated transactions. *storage.SQLiteRepository satisfies it.
type InstanceLoader interface {
	GetInstance(ctx context.Context, id int64) (core.TransactionInstance, error)
}

// SyncWorker mirrors generated transactions from SQLite to an external ledger.
type SyncWorker struct {
	storage InstanceLoader
	sheets  sheets.InstanceWriter
	// recent guards against appending the same transaction twice when the
	// broker redelivers a message.
	recent *cache.LRU[int64, string]
}

func NewSyncWorker(storage InstanceLoader, writer sheets.InstanceWriter) *SyncWorker {
	return &SyncWorker{
		storage: storage,
		sheets:  writer,
		recent:  cache.NewLRU[int64, string](4096, 24*time.Hour),
	}
}

// Recent exposes the redelivery cache so it can be registered with a janitor.
func (w *SyncWorker) Recent() cache.Cleaner {
	return w.recent
}

// HandleInstanceGenerated processes a single generated-instance message from AMQP.
func (w *SyncWorker) HandleInstanceGenerated(ctx context.Context, msg *amqp.InstanceGeneratedMessage) error {
	slog.InfoContext(ctx, "Processing instance generated message",
		"id", msg.ID,
		"template_id", msg.TemplateID,
		"year", msg.Year,
		"month", msg.Month)

	if ref, ok := w.recent.Get(msg.ID); ok {
		slog.InfoContext(ctx, "Transaction already mirrored, skipping", "id", msg.ID, "sheets_ref", ref)
		return nil
	}

	inst, err := w.storage.GetInstance(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// Nothing to mirror; acknowledging keeps the queue moving.
		slog.WarnContext(ctx, "Transaction no longer exists, skipping", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	if inst.DeletedAt != nil {
		slog.InfoContext(ctx, "Transaction deleted before sync, skipping", "id", msg.ID)
		return nil
	}

	ref, err := w.sheets.AppendInstance(ctx, inst)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}
	w.recent.Set(inst.ID, ref)

	plog.NewStructuredLogger(plog.FromContext(ctx)).
		LogInstanceSynced(ctx, inst.ID, inst.TemplateID, inst.PeriodYear, inst.PeriodMonth, ref)

	return nil
}
