// Package worker exports paid bills from SQLite to the external ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bollette/internal/amqp"
	"bollette/internal/core"
	"bollette/internal/sheets"
	"bollette/internal/storage"
)

// ExportWorker copies paid bills into the ledger. It is driven by bill events
// from AMQP, with a periodic scan over pending rows as a backup in case
// messages are lost.
type ExportWorker struct {
	storage   *storage.SQLiteRepository
	ledger    sheets.LedgerWriter
	batchSize int
}

func NewExportWorker(storage *storage.SQLiteRepository, ledger sheets.LedgerWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		ledger:    ledger,
		batchSize: batchSize,
	}
}

// HandleBillEvent processes a single bill event from AMQP. Only paid events
// trigger an export; created and deleted events are acknowledged and dropped.
func (w *ExportWorker) HandleBillEvent(ctx context.Context, msg *amqp.BillEventMessage) error {
	if msg.Type != amqp.EventBillPaid {
		slog.DebugContext(ctx, "Ignoring bill event", "type", msg.Type, "bill_id", msg.BillID)
		return nil
	}

	slog.InfoContext(ctx, "Processing bill paid event", "bill_id", msg.BillID, "month", msg.Month)

	bill, err := w.storage.GetBill(ctx, msg.BillID)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted between the event and now; nothing left to export.
		slog.WarnContext(ctx, "Bill gone before export", "bill_id", msg.BillID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get bill from storage: %w", err)
	}
	if !bill.IsPaid {
		// Unpaid again since the event fired. The toggle already reset the
		// export state, so there is nothing to do.
		slog.InfoContext(ctx, "Bill no longer paid, skipping export", "bill_id", msg.BillID)
		return nil
	}

	if err := w.exportBill(ctx, bill); err != nil {
		return fmt.Errorf("export bill: %w", err)
	}
	return nil
}

// ProcessPendingExports exports any paid bills the event path missed.
func (w *ExportWorker) ProcessPendingExports(ctx context.Context) error {
	pending, err := w.storage.ListPendingExportBills(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending exports: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))
	for _, bill := range pending {
		if err := w.exportBill(ctx, bill); err != nil {
			slog.ErrorContext(ctx, "Failed to export bill", "bill_id", bill.ID, "error", err)
			continue
		}
	}
	return nil
}

// StartupExportCheck drains the pending backlog once at worker startup,
// recovering from missed events or worker downtime.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) error {
	pending, err := w.storage.ListPendingExportBills(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending exports for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing...", "count", len(pending))
	successCount := 0
	errorCount := 0
	for _, bill := range pending {
		if err := w.exportBill(ctx, bill); err != nil {
			slog.ErrorContext(ctx, "Failed to export bill during startup", "bill_id", bill.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)
	return nil
}

func (w *ExportWorker) exportBill(ctx context.Context, bill core.Bill) error {
	entry, err := w.buildEntry(ctx, bill)
	if err != nil {
		if markErr := w.storage.MarkBillExportError(ctx, bill.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "bill_id", bill.ID, "error", markErr)
		}
		return err
	}

	ref, err := w.ledger.Append(ctx, entry)
	if err != nil {
		if markErr := w.storage.MarkBillExportError(ctx, bill.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "bill_id", bill.ID, "error", markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	if err := w.storage.MarkBillExported(ctx, bill.ID); err != nil {
		// The row is in the ledger; the periodic scan may export it again,
		// which is preferable to losing it.
		slog.ErrorContext(ctx, "Failed to mark as exported", "bill_id", bill.ID, "error", err)
	}

	slog.InfoContext(ctx, "Exported paid bill",
		"bill_id", bill.ID,
		"ledger_ref", ref,
		"name", bill.Name,
		"amount", bill.AmountDue.StringFixed(2))
	return nil
}

func (w *ExportWorker) buildEntry(ctx context.Context, bill core.Bill) (sheets.LedgerEntry, error) {
	categoryName := ""
	category, err := w.storage.GetCategory(ctx, bill.CategoryID)
	switch {
	case err == nil:
		categoryName = category.Name
	case errors.Is(err, storage.ErrNotFound):
		slog.WarnContext(ctx, "Category missing for exported bill",
			"bill_id", bill.ID, "category_id", bill.CategoryID)
	default:
		return sheets.LedgerEntry{}, fmt.Errorf("get category: %w", err)
	}

	return sheets.LedgerEntry{
		Month:       string(bill.Month),
		DueDate:     bill.DueDate.Format("2006-01-02"),
		Name:        bill.Name,
		Amount:      bill.AmountDue.StringFixed(2),
		Category:    categoryName,
		BankAccount: bill.BankAccount,
		PaidAt:      time.Now().Format(time.RFC3339),
	}, nil
}
