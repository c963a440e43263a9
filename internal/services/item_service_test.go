package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"shoplist/internal/amqp"
	"shoplist/internal/cache"
	"shoplist/internal/core"
)

func TestItemCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.items.Create(ctx, core.ShoppingItem{
		Name:     "  Crib ",
		Quantity: 1,
		Labels:   core.LabelSet{"Nursery", " Nursery", "Big"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := f.items.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Crib" || !got.CreatedAt.Equal(f.clock) {
		t.Errorf("unexpected item %+v", got)
	}
	if diff := cmp.Diff(core.LabelSet{"Nursery", "Big"}, got.Labels); diff != "" {
		t.Errorf("labels not normalized (-want +got):\n%s", diff)
	}

	_, err = f.items.Create(ctx, core.ShoppingItem{Name: "x", Quantity: 0})
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "quantity" {
		t.Errorf("expected quantity validation error, got %v", err)
	}
}

func TestItemListNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "first")
	f.addItem(t, "second")
	f.addItem(t, "third")

	items, _ := f.items.List(context.Background())
	var names []string
	for _, it := range items {
		names = append(names, it.Name)
	}
	if diff := cmp.Diff([]string{"third", "second", "first"}, names); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestItemMissingIDIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.items.Update(ctx, core.ShoppingItem{ID: 404, Name: "ghost", Quantity: 1}); err != nil {
		t.Errorf("update: %v", err)
	}
	if err := f.items.Delete(ctx, 404); err != nil {
		t.Errorf("delete: %v", err)
	}
	if err := f.items.MarkPurchased(ctx, 404, core.Money{Cents: 100}); err != nil {
		t.Errorf("mark purchased: %v", err)
	}
	if got := f.events.types(); len(got) != 0 {
		t.Errorf("no-ops should not publish, got %v", got)
	}
}

func TestMarkPurchasedAndToggleBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stroller := f.addItem(t, "stroller")
	f.addItem(t, "bottle")

	if err := f.items.MarkPurchased(ctx, stroller, core.Money{Cents: 0}); !core.IsValidation(err) {
		t.Fatalf("zero price: expected validation error, got %v", err)
	}

	if err := f.items.MarkPurchased(ctx, stroller, core.Money{Cents: 450}); err != nil {
		t.Fatalf("mark purchased: %v", err)
	}
	purchasedAt := f.clock
	got, _ := f.items.Get(ctx, stroller)
	if !got.IsPurchased || got.ActualPrice == nil || got.ActualPrice.Cents != 450 {
		t.Fatalf("unexpected purchase state %+v", got)
	}
	if got.PurchasedAt == nil || !got.PurchasedAt.Equal(purchasedAt) {
		t.Errorf("purchasedAt = %v, want %v", got.PurchasedAt, purchasedAt)
	}
	if ev := f.events.last(); ev.Type != amqp.ItemPurchased || ev.ItemID != stroller {
		t.Errorf("unexpected event %+v", ev)
	}

	items, _ := f.items.List(ctx)
	if b := core.Summarize(items); b.TotalActual.Cents != 450 || b.PurchasedCount != 1 || b.ProgressPercentage != 50 {
		t.Errorf("budget after purchase = %+v", b)
	}

	// un-purchase through the generic update path; the stale price stays
	got.IsPurchased = false
	if err := f.items.Update(ctx, got); err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	again, _ := f.items.Get(ctx, stroller)
	if again.IsPurchased || again.ActualPrice == nil || again.PurchasedAt == nil {
		t.Errorf("expected last purchase data retained, got %+v", again)
	}
	items, _ = f.items.List(ctx)
	if b := core.Summarize(items); b.TotalActual.Cents != 0 || b.PurchasedCount != 0 || b.ProgressPercentage != 0 {
		t.Errorf("budget after toggle = %+v", b)
	}
}

func TestDeleteAll(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "a")
	f.addItem(t, "b")
	if err := f.items.DeleteAll(context.Background()); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if items, _ := f.items.List(context.Background()); len(items) != 0 {
		t.Errorf("expected empty list, got %d items", len(items))
	}
	if ev := f.events.last(); ev.Type != amqp.ItemsCleared {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestSearchBlankQueryIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "Baby monitor")

	for _, q := range []string{"", "   ", "\t"} {
		got, err := f.items.SearchUnpurchased(context.Background(), q)
		if err != nil || got == nil || len(got) != 0 {
			t.Errorf("SearchUnpurchased(%q) = %v, %v; want empty", q, got, err)
		}
	}
}

func TestSearchUsesAndInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	lru := cache.NewLRUCache[[]core.ShoppingItem](8, time.Hour)
	f.items.search = lru
	f.addItem(t, "Baby monitor")
	f.addItem(t, "Baby bath")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		f.items.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return f.items.searchGen.Load() > 0 })

	first, err := f.items.SearchUnpurchased(ctx, "BABY")
	if err != nil || len(first) != 2 {
		t.Fatalf("search = %v, %v", first, err)
	}
	if _, ok := lru.Get("baby"); !ok {
		t.Fatal("result should be cached under the lowercased query")
	}

	gen := f.items.searchGen.Load()
	f.addItem(t, "Baby carrier")
	waitFor(t, func() bool { return f.items.searchGen.Load() > gen })

	second, err := f.items.SearchUnpurchased(ctx, "baby")
	if err != nil || len(second) != 3 {
		t.Fatalf("search after insert = %d items, %v; want 3", len(second), err)
	}
	if second[0].Name != "Baby bath" || second[2].Name != "Baby monitor" {
		t.Errorf("results should be sorted by name: %v", second)
	}

	cancel()
	<-done
}

func TestSearchCacheDroppedByWrites(t *testing.T) {
	ctx := context.Background()
	searchNames := func(f *fixture, q string) []string {
		t.Helper()
		found, err := f.items.SearchUnpurchased(ctx, q)
		if err != nil {
			t.Fatalf("search %q: %v", q, err)
		}
		out := []string{}
		for _, it := range found {
			out = append(out, it.Name)
		}
		return out
	}
	withCache := func(t *testing.T) *fixture {
		f := newFixture(t)
		f.items.search = cache.NewLRUCache[[]core.ShoppingItem](8, time.Hour)
		f.labels.InvalidatesSearch(f.items)
		return f
	}

	tests := []struct {
		name  string
		write func(t *testing.T, f *fixture, diapers int64)
		want  []string
	}{
		{
			name: "mark purchased",
			write: func(t *testing.T, f *fixture, id int64) {
				if err := f.items.MarkPurchased(ctx, id, core.Money{Cents: 1299}); err != nil {
					t.Fatalf("mark purchased: %v", err)
				}
			},
			want: []string{"Diaper cream"},
		},
		{
			name: "toggle back to unpurchased",
			write: func(t *testing.T, f *fixture, id int64) {
				if err := f.items.MarkPurchased(ctx, id, core.Money{Cents: 1299}); err != nil {
					t.Fatalf("mark purchased: %v", err)
				}
				searchNames(f, "diap")
				item, _ := f.items.Get(ctx, id)
				item.IsPurchased = false
				if err := f.items.Update(ctx, item); err != nil {
					t.Fatalf("update: %v", err)
				}
			},
			want: []string{"Diaper cream", "Diapers"},
		},
		{
			name: "create",
			write: func(t *testing.T, f *fixture, _ int64) {
				f.addItem(t, "Diaper bag")
			},
			want: []string{"Diaper bag", "Diaper cream", "Diapers"},
		},
		{
			name: "delete",
			write: func(t *testing.T, f *fixture, id int64) {
				if err := f.items.Delete(ctx, id); err != nil {
					t.Fatalf("delete: %v", err)
				}
			},
			want: []string{"Diaper cream"},
		},
		{
			name: "delete all",
			write: func(t *testing.T, f *fixture, _ int64) {
				if err := f.items.DeleteAll(ctx); err != nil {
					t.Fatalf("delete all: %v", err)
				}
			},
			want: []string{},
		},
		{
			name: "label cascade delete",
			write: func(t *testing.T, f *fixture, _ int64) {
				if _, err := f.labels.Delete(ctx, f.label(t, "Hygiene")); err != nil {
					t.Fatalf("delete label: %v", err)
				}
			},
			want: []string{"Diapers"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := withCache(t)
			if _, err := f.labels.Create(ctx, "Hygiene", ""); err != nil {
				t.Fatalf("create label: %v", err)
			}
			diapers := f.addItem(t, "Diapers")
			f.addItem(t, "Diaper cream", "Hygiene")

			if diff := cmp.Diff([]string{"Diaper cream", "Diapers"}, searchNames(f, "diap")); diff != "" {
				t.Fatalf("initial search mismatch (-want +got):\n%s", diff)
			}
			tt.write(t, f, diapers)
			if diff := cmp.Diff(tt.want, searchNames(f, "diap")); diff != "" {
				t.Fatalf("search right after write mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLabelRenameDropsCachedLabels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.items.search = cache.NewLRUCache[[]core.ShoppingItem](8, time.Hour)
	f.labels.InvalidatesSearch(f.items)
	if _, err := f.labels.Create(ctx, "Hygiene", ""); err != nil {
		t.Fatalf("create label: %v", err)
	}
	f.addItem(t, "Diapers", "Hygiene")
	if _, err := f.items.SearchUnpurchased(ctx, "diap"); err != nil {
		t.Fatalf("search: %v", err)
	}

	if _, err := f.labels.Rename(ctx, f.label(t, "Hygiene"), "Care"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	found, err := f.items.SearchUnpurchased(ctx, "diap")
	if err != nil || len(found) != 1 {
		t.Fatalf("search = %v, %v", found, err)
	}
	if diff := cmp.Diff(core.NewLabelSet("Care"), found[0].Labels); diff != "" {
		t.Fatalf("cached labels survived rename (-want +got):\n%s", diff)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")
	if _, err := f.items.Create(context.Background(), core.ShoppingItem{Name: "x", Quantity: 1}); err != nil {
		t.Fatalf("create should succeed despite broker failure: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
