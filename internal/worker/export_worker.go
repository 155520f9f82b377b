package worker

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"

	"github.com/google/uuid"
)

// LedgerReader is the store surface the worker needs.
type LedgerReader interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (core.Transaction, error)
	GetAccount(ctx context.Context, id uuid.UUID) (core.Account, error)
	CategoryNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error)
}

// ExportWorker copies created transactions to a spreadsheet.
type ExportWorker struct {
	store    LedgerReader
	exporter sheets.Exporter
	logger   *log.Logger
	metrics  *metrics.Collector
}

func NewExportWorker(store LedgerReader, exporter sheets.Exporter, logger *log.Logger, m *metrics.Collector) *ExportWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ExportWorker{
		store:    store,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
		metrics:  m,
	}
}

// Start prepares the sheet header. Call it once before consuming.
func (w *ExportWorker) Start(ctx context.Context) error {
	if err := w.exporter.EnsureHeader(ctx); err != nil {
		return fmt.Errorf("ensure sheet header: %w", err)
	}
	return nil
}

// HandleEvent processes a single ledger event from AMQP. Only
// transaction.created produces a row; a returned error requeues the message.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	if ev.Kind != amqp.TransactionCreated {
		w.logger.DebugContext(ctx, "Skipping ledger event", "kind", ev.Kind, log.FieldEntityID, ev.ID)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing ledger event", "kind", ev.Kind, log.FieldEntityID, ev.ID)

	tx, err := w.store.GetTransaction(ctx, ev.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Nothing will ever make this event succeed; requeueing would loop.
		w.logger.WarnContext(ctx, "Transaction from event no longer exists", log.FieldEntityID, ev.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", ev.ID, err)
	}

	ref, err := w.export(ctx, tx)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Exported transaction", log.FieldEntityID, tx.ID, "row", ref)
	return nil
}

// Backfill exports every transaction matching f, oldest first, and returns
// how many rows were written. It stops at the first failure.
func (w *ExportWorker) Backfill(ctx context.Context, f storage.TransactionFilter) (int, error) {
	txs, err := w.store.ListTransactions(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	w.logger.InfoContext(ctx, "Backfilling transactions", "count", len(txs))

	exported := 0
	for i := len(txs) - 1; i >= 0; i-- {
		if _, err := w.export(ctx, txs[i]); err != nil {
			return exported, err
		}
		exported++
	}
	return exported, nil
}

func (w *ExportWorker) export(ctx context.Context, tx core.Transaction) (string, error) {
	account, err := w.store.GetAccount(ctx, tx.AccountID)
	if err != nil {
		return "", fmt.Errorf("get account %s: %w", tx.AccountID, err)
	}

	var categoryName string
	if tx.CategoryID != nil {
		names, err := w.store.CategoryNames(ctx, []uuid.UUID{*tx.CategoryID})
		if err != nil {
			return "", fmt.Errorf("resolve category %s: %w", *tx.CategoryID, err)
		}
		categoryName = names[*tx.CategoryID]
	}

	ref, err := w.exporter.AppendRow(ctx, sheets.NewRow(tx, account, categoryName))
	if err != nil {
		return "", fmt.Errorf("append row for %s: %w", tx.ID, err)
	}
	w.metrics.RowExported()
	return ref, nil
}
