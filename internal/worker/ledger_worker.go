// Package worker consumes item events and mirrors purchases into an external
// ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"shoplist/internal/amqp"
	"shoplist/internal/core"
	"shoplist/internal/log"
	"shoplist/internal/sheets"
	"shoplist/internal/store"
)

// LedgerWorker appends a ledger row for every item.purchased event.
type LedgerWorker struct {
	items  store.ItemRepository
	ledger sheets.LedgerWriter
}

func NewLedgerWorker(items store.ItemRepository, ledger sheets.LedgerWriter) *LedgerWorker {
	return &LedgerWorker{items: items, ledger: ledger}
}

// HandleEvent is the amqp consumer callback. Returning an error requeues the
// delivery; events that can never succeed return nil so they are acked.
func (w *LedgerWorker) HandleEvent(ctx context.Context, ev *amqp.Event) error {
	if ev.Type != amqp.ItemPurchased {
		slog.DebugContext(ctx, "Ignoring event", log.FieldEventType, ev.Type, log.FieldEventID, ev.ID)
		return nil
	}

	item, err := w.items.GetItem(ctx, ev.ItemID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Purchased item no longer exists, skipping ledger row",
			log.FieldItemID, ev.ItemID, log.FieldEventID, ev.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get item %d: %w", ev.ItemID, err)
	}
	if !item.IsPurchased {
		slog.InfoContext(ctx, "Item was un-purchased before sync, skipping ledger row",
			log.FieldItemID, item.ID, log.FieldEventID, ev.ID)
		return nil
	}

	ref, err := w.ledger.AppendPurchase(ctx, item)
	if err != nil {
		return fmt.Errorf("append purchase %d: %w", item.ID, err)
	}

	slog.InfoContext(ctx, "Purchase recorded in ledger",
		log.FieldComponent, log.ComponentWorker,
		log.FieldItemID, item.ID,
		log.FieldItemName, item.Name,
		log.FieldEventID, ev.ID,
		"sheets_ref", ref)
	return nil
}
