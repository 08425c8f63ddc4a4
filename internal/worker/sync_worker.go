// Package worker mirrors document changes announced on the broker into
// outbound sinks.
package worker

import (
	"context"
	"fmt"
	"time"

	"yeardash/internal/aggregate"
	"yeardash/internal/amqp"
	"yeardash/internal/core"
	"yeardash/internal/log"
	"yeardash/internal/metrics"
	"yeardash/internal/services"
	"yeardash/internal/sheets"
	"yeardash/internal/store"
)

// SyncWorker appends newly created transactions to a spreadsheet. The sheet
// is append-only: updates and deletes are not mirrored.
type SyncWorker struct {
	store   services.Lister
	sheets  sheets.TransactionAppender
	loc     *time.Location
	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewSyncWorker(s services.Lister, appender sheets.TransactionAppender, loc *time.Location, logger *log.Logger, m *metrics.Metrics) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SyncWorker{
		store:   s,
		sheets:  appender,
		loc:     loc,
		logger:  logger.WithComponent(log.ComponentSheets),
		metrics: m,
	}
}

// HandleChange processes a single change message from AMQP
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	if msg.Collection != core.CollectionTransactions || msg.Op != string(store.ChangeCreate) || msg.DocID == "" {
		return nil
	}

	w.logger.DebugContext(ctx, "Processing transaction created",
		log.FieldUserID, msg.UserID, log.FieldDocumentID, msg.DocID)

	tx, found, err := w.transaction(ctx, msg.Path(), msg.DocID)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	if !found {
		// Deleted before we got to it.
		w.logger.InfoContext(ctx, "Transaction no longer exists, skipping",
			log.FieldDocumentID, msg.DocID)
		return nil
	}

	return w.syncTransactionToSheets(ctx, tx)
}

func (w *SyncWorker) transaction(ctx context.Context, path store.Path, id string) (core.Transaction, bool, error) {
	docs, err := w.store.List(ctx, path, nil)
	if err != nil {
		return core.Transaction{}, false, err
	}
	for _, d := range docs {
		if d.ID == id {
			return core.DecodeTransaction(d), true, nil
		}
	}
	return core.Transaction{}, false, nil
}

func (w *SyncWorker) syncTransactionToSheets(ctx context.Context, tx core.Transaction) error {
	date, ok := tx.Date.ResolveIn(w.loc)
	if !ok {
		w.logger.WarnContext(ctx, "Transaction has no usable date, skipping",
			log.FieldDocumentID, tx.ID, "date", tx.Date.String())
		return nil
	}
	period := aggregate.MonthOf(date.In(w.loc))

	ref, err := w.sheets.AppendTransactions(ctx, period, []core.Transaction{tx})
	w.metrics.Export("sheets", err)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	w.logger.InfoContext(ctx, "Successfully synced transaction",
		log.FieldDocumentID, tx.ID,
		log.FieldSheetsRef, ref,
		log.FieldMonth, period.String())
	return nil
}
