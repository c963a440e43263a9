// Package store declares the persistent store collaborator the shopping core
// depends on. A backend implements Store; streams emit only after a write
// has been committed.
package store

import (
	"context"
	"time"

	"shoplist/internal/core"
)

// ItemPredicate selects items for bulk deletion.
type ItemPredicate func(core.ShoppingItem) bool

type (
	ItemRepository interface {
		// WatchItems streams full snapshots ordered by creation time, newest first.
		WatchItems(ctx context.Context) <-chan []core.ShoppingItem
		ListItems(ctx context.Context) ([]core.ShoppingItem, error)
		// GetItem returns core.ErrNotFound for unknown ids.
		GetItem(ctx context.Context, id int64) (core.ShoppingItem, error)
		InsertItem(ctx context.Context, item core.ShoppingItem) (int64, error)
		// UpdateItem and DeleteItem return core.ErrNotFound for unknown ids.
		UpdateItem(ctx context.Context, item core.ShoppingItem) error
		DeleteItem(ctx context.Context, id int64) error
		DeleteItemsWhere(ctx context.Context, pred ItemPredicate) (int, error)
		DeleteAllItems(ctx context.Context) error
		// SearchUnpurchased is a one-shot, case-insensitive name substring
		// query over unpurchased items, ordered by name ascending.
		SearchUnpurchased(ctx context.Context, text string) ([]core.ShoppingItem, error)
		// MarkPurchased returns core.ErrNotFound for unknown ids.
		MarkPurchased(ctx context.Context, id int64, price core.Money, at time.Time) error
	}

	LabelRepository interface {
		// WatchLabels streams full snapshots ordered by name ascending.
		WatchLabels(ctx context.Context) <-chan []core.Label
		ListLabels(ctx context.Context) ([]core.Label, error)
		GetLabel(ctx context.Context, id int64) (core.Label, error)
		InsertLabel(ctx context.Context, label core.Label) (int64, error)
		UpdateLabel(ctx context.Context, label core.Label) error
		DeleteLabel(ctx context.Context, id int64) error
		CountByName(ctx context.Context, name string) (int, error)
	}

	// Tx is the view of the store available inside a transaction.
	Tx interface {
		ListItems(ctx context.Context) ([]core.ShoppingItem, error)
		UpdateItem(ctx context.Context, item core.ShoppingItem) error
		DeleteItemsWhere(ctx context.Context, pred ItemPredicate) (int, error)
		UpdateLabel(ctx context.Context, label core.Label) error
		DeleteLabel(ctx context.Context, id int64) error
	}

	// Transactor runs fn atomically: either every write in fn is committed
	// or none is. Watchers observe the result only after commit.
	Transactor interface {
		InTx(ctx context.Context, fn func(tx Tx) error) error
	}

	Store interface {
		ItemRepository
		LabelRepository
		Transactor
		Close() error
	}
)
