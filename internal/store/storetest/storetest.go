// Package storetest holds the behavioural contract every store.Store
// backend must satisfy. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"shoplist/internal/core"
	"shoplist/internal/store"
)

// Factory returns an empty store; Run closes it.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("ItemsNewestFirst", func(t *testing.T) { testItemsNewestFirst(t, newStore(t)) })
	t.Run("ItemRoundTrip", func(t *testing.T) { testItemRoundTrip(t, newStore(t)) })
	t.Run("MissingItem", func(t *testing.T) { testMissingItem(t, newStore(t)) })
	t.Run("SearchUnpurchased", func(t *testing.T) { testSearchUnpurchased(t, newStore(t)) })
	t.Run("MarkPurchased", func(t *testing.T) { testMarkPurchased(t, newStore(t)) })
	t.Run("DeleteItemsWhere", func(t *testing.T) { testDeleteItemsWhere(t, newStore(t)) })
	t.Run("Labels", func(t *testing.T) { testLabels(t, newStore(t)) })
	t.Run("TxCommit", func(t *testing.T) { testTxCommit(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("WatchEmitsAfterWrite", func(t *testing.T) { testWatch(t, newStore(t)) })
}

var base = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func mustInsert(t *testing.T, s store.Store, item core.ShoppingItem) int64 {
	t.Helper()
	id, err := s.InsertItem(context.Background(), item)
	if err != nil {
		t.Fatalf("insert %q: %v", item.Name, err)
	}
	return id
}

func names(items []core.ShoppingItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func item(name string, offset time.Duration, labels ...string) core.ShoppingItem {
	return core.ShoppingItem{
		Name:           name,
		Quantity:       1,
		EstimatedPrice: core.Money{Cents: 1000},
		Labels:         core.NewLabelSet(labels...),
		CreatedAt:      base.Add(offset),
	}
}

func testItemsNewestFirst(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	mustInsert(t, s, item("first", 0))
	mustInsert(t, s, item("third", 2*time.Minute))
	mustInsert(t, s, item("second", time.Minute))

	got, err := s.ListItems(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{"third", "second", "first"}, names(got)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func testItemRoundTrip(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	in := item("Car seat", 0, "Car", "Baby gear")
	in.Quantity = 2
	in.EstimatedPrice = core.Money{Cents: 12999}
	id := mustInsert(t, s, in)

	got, err := s.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	in.ID = id
	if diff := cmp.Diff(in, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	price := core.Money{Cents: 11000}
	at := base.Add(time.Hour)
	got.IsPurchased = true
	got.ActualPrice = &price
	got.PurchasedAt = &at
	got.Labels = core.NewLabelSet("Car")
	if err := s.UpdateItem(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, err := s.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if diff := cmp.Diff(got, again); diff != "" {
		t.Fatalf("update mismatch (-want +got):\n%s", diff)
	}
}

func testMissingItem(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	if _, err := s.GetItem(ctx, 404); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateItem(ctx, core.ShoppingItem{ID: 404, Name: "x", Quantity: 1}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteItem(ctx, 404); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("delete: expected ErrNotFound, got %v", err)
	}
	if err := s.MarkPurchased(ctx, 404, core.Money{Cents: 1}, base); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("mark purchased: expected ErrNotFound, got %v", err)
	}
}

func testSearchUnpurchased(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	mustInsert(t, s, item("Baby Monitor", 0))
	mustInsert(t, s, item("baby bath", time.Minute))
	mustInsert(t, s, item("Stroller", 2*time.Minute))
	bought := item("Baby carrier", 3*time.Minute)
	bought.IsPurchased = true
	mustInsert(t, s, bought)
	mustInsert(t, s, item("100% cotton bib", 4*time.Minute))

	got, err := s.SearchUnpurchased(ctx, "BABY")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if diff := cmp.Diff([]string{"Baby Monitor", "baby bath"}, names(got)); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}

	got, err = s.SearchUnpurchased(ctx, "%")
	if err != nil {
		t.Fatalf("search %%: %v", err)
	}
	if diff := cmp.Diff([]string{"100% cotton bib"}, names(got)); diff != "" {
		t.Fatalf("wildcard must match literally (-want +got):\n%s", diff)
	}
}

func testMarkPurchased(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	id := mustInsert(t, s, item("Crib", 0))
	at := base.Add(48 * time.Hour)
	if err := s.MarkPurchased(ctx, id, core.Money{Cents: 8950}, at); err != nil {
		t.Fatalf("mark purchased: %v", err)
	}
	got, err := s.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsPurchased || got.ActualPrice == nil || got.ActualPrice.Cents != 8950 {
		t.Fatalf("unexpected purchase state: %+v", got)
	}
	if got.PurchasedAt == nil || !got.PurchasedAt.Equal(at) {
		t.Fatalf("purchasedAt = %v, want %v", got.PurchasedAt, at)
	}
}

func testDeleteItemsWhere(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	mustInsert(t, s, item("a", 0, "X"))
	mustInsert(t, s, item("b", time.Minute, "X", "Y"))
	mustInsert(t, s, item("c", 2*time.Minute, "Y"))

	n, err := s.DeleteItemsWhere(ctx, func(it core.ShoppingItem) bool { return it.Labels.Contains("X") })
	if err != nil || n != 2 {
		t.Fatalf("delete where: n=%d err=%v", n, err)
	}
	left, _ := s.ListItems(ctx)
	if diff := cmp.Diff([]string{"c"}, names(left)); diff != "" {
		t.Fatalf("remaining mismatch (-want +got):\n%s", diff)
	}

	if err := s.DeleteAllItems(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	left, _ = s.ListItems(ctx)
	if len(left) != 0 {
		t.Fatalf("expected empty store, got %v", names(left))
	}
}

func testLabels(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	for _, name := range []string{"Nursery", "Baby", "car"} {
		if _, err := s.InsertLabel(ctx, core.Label{Name: name, Color: core.DefaultLabelColor}); err != nil {
			t.Fatalf("insert label %q: %v", name, err)
		}
	}
	labels, err := s.ListLabels(ctx)
	if err != nil {
		t.Fatalf("list labels: %v", err)
	}
	var got []string
	for _, l := range labels {
		got = append(got, l.Name)
	}
	if diff := cmp.Diff([]string{"Baby", "Nursery", "car"}, got); diff != "" {
		t.Fatalf("label order mismatch (-want +got):\n%s", diff)
	}

	if n, _ := s.CountByName(ctx, "Baby"); n != 1 {
		t.Fatalf("CountByName(Baby) = %d", n)
	}
	if n, _ := s.CountByName(ctx, "baby"); n != 0 {
		t.Fatalf("CountByName is case-sensitive, got %d", n)
	}

	baby := labels[0]
	baby.Color = "#20B2AA"
	if err := s.UpdateLabel(ctx, baby); err != nil {
		t.Fatalf("update label: %v", err)
	}
	reloaded, err := s.GetLabel(ctx, baby.ID)
	if err != nil || reloaded.Color != "#20B2AA" {
		t.Fatalf("get label: %+v err=%v", reloaded, err)
	}
	if err := s.DeleteLabel(ctx, baby.ID); err != nil {
		t.Fatalf("delete label: %v", err)
	}
	if _, err := s.GetLabel(ctx, baby.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func testTxCommit(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	id, _ := s.InsertLabel(ctx, core.Label{Name: "Old", Color: core.DefaultLabelColor})
	mustInsert(t, s, item("keep", 0, "Other"))
	mustInsert(t, s, item("gone", time.Minute, "Old"))

	err := s.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.DeleteItemsWhere(ctx, func(it core.ShoppingItem) bool { return it.Labels.Contains("Old") }); err != nil {
			return err
		}
		return tx.DeleteLabel(ctx, id)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	left, _ := s.ListItems(ctx)
	if diff := cmp.Diff([]string{"keep"}, names(left)); diff != "" {
		t.Fatalf("remaining mismatch (-want +got):\n%s", diff)
	}
	if n, _ := s.CountByName(ctx, "Old"); n != 0 {
		t.Fatalf("label not deleted")
	}
}

func testTxRollback(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	mustInsert(t, s, item("survivor", 0, "Old"))
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx store.Tx) error {
		items, err := tx.ListItems(ctx)
		if err != nil {
			return err
		}
		items[0].Labels = core.NewLabelSet("New")
		if err := tx.UpdateItem(ctx, items[0]); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	left, _ := s.ListItems(ctx)
	if len(left) != 1 || !left[0].Labels.Equal(core.NewLabelSet("Old")) {
		t.Fatalf("rollback left partial write: %+v", left)
	}
}

func testWatch(t *testing.T, s store.Store) {
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := s.WatchItems(ctx)

	mustInsert(t, s, item("Bottle", 0))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if len(snap) == 1 && snap[0].Name == "Bottle" {
				return
			}
		case <-deadline:
			t.Fatal("watcher never observed the insert")
		}
	}
}
