package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"shoplist/internal/amqp"
	"shoplist/internal/cache"
	"shoplist/internal/core"
	"shoplist/internal/log"
	"shoplist/internal/store"
)

// ItemService orchestrates item writes, purchase events and the
// search-result cache.
type ItemService struct {
	items  store.ItemRepository
	events EventPublisher
	search cache.Cache[[]core.ShoppingItem]
	now    func() time.Time

	// searchGen advances on every cache clear so a search racing a write
	// does not repopulate the cache with a stale result. searchMu makes the
	// generation check and the cache fill one step.
	searchMu  sync.Mutex
	searchGen atomic.Uint64
}

var _ SearchInvalidator = (*ItemService)(nil)

// NewItemService wires an item repository. events and search may be nil.
func NewItemService(items store.ItemRepository, events EventPublisher, search cache.Cache[[]core.ShoppingItem]) *ItemService {
	return &ItemService{
		items:  items,
		events: events,
		search: search,
		now:    time.Now,
	}
}

// Run clears the search cache on every item emission until ctx is done.
func (s *ItemService) Run(ctx context.Context) error {
	if s.search == nil {
		<-ctx.Done()
		return nil
	}
	cache.ClearOn(ctx, s.items.WatchItems(ctx), clearFunc(s.InvalidateSearch), nil)
	return nil
}

type clearFunc func()

func (f clearFunc) Clear() { f() }

// InvalidateSearch drops every cached search result. Writes call it before
// returning, so a search issued after a write never sees the old result. The
// stream-driven clear in Run covers writers outside this service.
func (s *ItemService) InvalidateSearch() {
	if s.search == nil {
		return
	}
	s.searchMu.Lock()
	defer s.searchMu.Unlock()
	s.searchGen.Add(1)
	s.search.Clear()
}

// Create validates and stores a new item, stamping its creation time.
func (s *ItemService) Create(ctx context.Context, item core.ShoppingItem) (int64, error) {
	item = normalize(item)
	item.ID = 0
	item.CreatedAt = s.now()
	if err := item.Validate(); err != nil {
		return 0, err
	}

	id, err := s.items.InsertItem(ctx, item)
	if err != nil {
		return 0, fmt.Errorf("create item: %w", err)
	}
	s.InvalidateSearch()

	slog.InfoContext(ctx, "Item created",
		log.FieldComponent, log.ComponentItems,
		log.FieldItemID, id,
		log.FieldItemName, item.Name,
		log.FieldLabels, item.Labels.Format())
	publish(ctx, s.events, amqp.NewItemEvent(amqp.ItemCreated, id))
	return id, nil
}

// Update replaces a stored item. An unknown id is ignored.
func (s *ItemService) Update(ctx context.Context, item core.ShoppingItem) error {
	item = normalize(item)
	if err := item.Validate(); err != nil {
		return err
	}
	err := s.items.UpdateItem(ctx, item)
	if errors.Is(err, core.ErrNotFound) {
		slog.DebugContext(ctx, "Update of missing item ignored", log.FieldItemID, item.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("update item %d: %w", item.ID, err)
	}
	s.InvalidateSearch()
	publish(ctx, s.events, amqp.NewItemEvent(amqp.ItemUpdated, item.ID))
	return nil
}

// Delete removes an item. An unknown id is ignored.
func (s *ItemService) Delete(ctx context.Context, id int64) error {
	err := s.items.DeleteItem(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.DebugContext(ctx, "Delete of missing item ignored", log.FieldItemID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	s.InvalidateSearch()
	publish(ctx, s.events, amqp.NewItemEvent(amqp.ItemDeleted, id))
	return nil
}

// DeleteAll clears the list.
func (s *ItemService) DeleteAll(ctx context.Context) error {
	if err := s.items.DeleteAllItems(ctx); err != nil {
		return fmt.Errorf("delete all items: %w", err)
	}
	s.InvalidateSearch()
	slog.InfoContext(ctx, "Item list cleared", log.FieldComponent, log.ComponentItems)
	publish(ctx, s.events, amqp.NewItemEvent(amqp.ItemsCleared, 0))
	return nil
}

// MarkPurchased records the actual price and the purchase time. The price
// must be positive; an unknown id is ignored.
func (s *ItemService) MarkPurchased(ctx context.Context, id int64, price core.Money) error {
	if price.Cents <= 0 {
		return &core.ValidationError{Field: "actual_price", Reason: "must be greater than zero"}
	}
	if price.Cents > core.MaxPriceCents {
		return &core.ValidationError{Field: "actual_price", Reason: "must be at most 1000000000.00"}
	}
	err := s.items.MarkPurchased(ctx, id, price, s.now())
	if errors.Is(err, core.ErrNotFound) {
		slog.DebugContext(ctx, "Purchase of missing item ignored", log.FieldItemID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark item %d purchased: %w", id, err)
	}
	s.InvalidateSearch()

	slog.DebugContext(ctx, "Purchase stored",
		log.FieldComponent, log.ComponentItems,
		log.FieldItemID, id,
		log.FieldPriceCents, price.Cents)
	publish(ctx, s.events, amqp.NewItemEvent(amqp.ItemPurchased, id))
	return nil
}

func (s *ItemService) Get(ctx context.Context, id int64) (core.ShoppingItem, error) {
	return s.items.GetItem(ctx, id)
}

// List returns a snapshot, newest first.
func (s *ItemService) List(ctx context.Context) ([]core.ShoppingItem, error) {
	return s.items.ListItems(ctx)
}

func (s *ItemService) Watch(ctx context.Context) <-chan []core.ShoppingItem {
	return s.items.WatchItems(ctx)
}

// SearchUnpurchased matches unpurchased item names case-insensitively. A
// blank query matches nothing.
func (s *ItemService) SearchUnpurchased(ctx context.Context, query string) ([]core.ShoppingItem, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []core.ShoppingItem{}, nil
	}
	key := strings.ToLower(q)

	if s.search != nil {
		if hit, ok := s.search.Get(key); ok {
			return cloneItems(hit), nil
		}
	}

	gen := s.searchGen.Load()
	found, err := s.items.SearchUnpurchased(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	if found == nil {
		found = []core.ShoppingItem{}
	}
	if s.search != nil {
		s.searchMu.Lock()
		if s.searchGen.Load() == gen {
			s.search.Set(key, cloneItems(found))
		}
		s.searchMu.Unlock()
	}
	return found, nil
}

func normalize(item core.ShoppingItem) core.ShoppingItem {
	item.Name = strings.TrimSpace(item.Name)
	item.Labels = core.NewLabelSet(item.Labels...)
	return item
}

func cloneItems(in []core.ShoppingItem) []core.ShoppingItem {
	out := make([]core.ShoppingItem, len(in))
	for i, it := range in {
		out[i] = it.Clone()
	}
	return out
}
