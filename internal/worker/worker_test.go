package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"shoplist/internal/amqp"
	"shoplist/internal/core"
	"shoplist/internal/services"
	"shoplist/internal/store/memory"
)

type fakeLedger struct {
	rows []core.ShoppingItem
	err  error
}

func (f *fakeLedger) AppendPurchase(_ context.Context, item core.ShoppingItem) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.rows = append(f.rows, item)
	return "Purchases!A2:F2", nil
}

func seedPurchased(t *testing.T, st *memory.Store, purchased bool) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := st.InsertItem(ctx, core.ShoppingItem{Name: "Crib", Quantity: 1})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if purchased {
		if err := st.MarkPurchased(ctx, id, core.Money{Cents: 9900}, time.Now()); err != nil {
			t.Fatalf("mark purchased: %v", err)
		}
	}
	return id
}

func TestHandleEventAppendsPurchase(t *testing.T) {
	st := memory.New()
	ledger := &fakeLedger{}
	w := NewLedgerWorker(st, ledger)
	id := seedPurchased(t, st, true)

	if err := w.HandleEvent(context.Background(), &amqp.Event{Type: amqp.ItemPurchased, ItemID: id}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(ledger.rows) != 1 || ledger.rows[0].ActualPrice.Cents != 9900 {
		t.Fatalf("unexpected ledger rows %+v", ledger.rows)
	}
}

func TestHandleEventSkips(t *testing.T) {
	st := memory.New()
	ledger := &fakeLedger{}
	w := NewLedgerWorker(st, ledger)
	unpurchased := seedPurchased(t, st, false)

	events := []*amqp.Event{
		{Type: amqp.ItemCreated, ItemID: unpurchased},
		{Type: amqp.ItemPurchased, ItemID: 404},
		{Type: amqp.ItemPurchased, ItemID: unpurchased},
	}
	for _, ev := range events {
		if err := w.HandleEvent(context.Background(), ev); err != nil {
			t.Errorf("HandleEvent(%+v) = %v, want nil", ev, err)
		}
	}
	if len(ledger.rows) != 0 {
		t.Errorf("expected no ledger rows, got %d", len(ledger.rows))
	}
}

func TestHandleEventRequeuesOnLedgerFailure(t *testing.T) {
	st := memory.New()
	boom := errors.New("quota exceeded")
	w := NewLedgerWorker(st, &fakeLedger{err: boom})
	id := seedPurchased(t, st, true)

	err := w.HandleEvent(context.Background(), &amqp.Event{Type: amqp.ItemPurchased, ItemID: id})
	if !errors.Is(err, boom) {
		t.Fatalf("expected ledger error, got %v", err)
	}
}

type staticSource []string

func (s staticSource) ListLabels(context.Context) ([]string, error) { return s, nil }

func TestImportLabels(t *testing.T) {
	st := memory.New("Nursery")
	labels := services.NewLabelService(st, services.NewSynchronizer(st, nil), nil)

	res, err := ImportLabels(context.Background(), staticSource{"Nursery", "Car", "bad,name", "Toys"}, labels)
	if err != nil {
		t.Fatalf("ImportLabels: %v", err)
	}
	want := ImportResult{Created: 2, Existing: 1, Invalid: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	all, _ := labels.List(context.Background())
	if len(all) != 3 {
		t.Errorf("expected 3 labels, got %+v", all)
	}
}
