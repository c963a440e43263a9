package services

import (
	"context"
	"fmt"
	"log/slog"

	"shoplist/internal/amqp"
	"shoplist/internal/core"
	"shoplist/internal/log"
	"shoplist/internal/store"
)

// Synchronizer keeps the label names stored on items consistent with the
// label table. Every operation runs in a single store transaction.
type Synchronizer struct {
	tx     store.Transactor
	events EventPublisher
}

func NewSynchronizer(tx store.Transactor, events EventPublisher) *Synchronizer {
	return &Synchronizer{tx: tx, events: events}
}

// RenameLabel replaces label.Name with newName on every item that carries it
// and renames the label row. It returns the number of items rewritten.
func (s *Synchronizer) RenameLabel(ctx context.Context, label core.Label, newName string) (int, error) {
	updated := label
	updated.Name = newName
	n, err := s.rewrite(ctx, label, updated)
	if err != nil {
		return 0, err
	}
	publish(ctx, s.events, amqp.NewLabelEvent(amqp.LabelRenamed, label.ID, newName, n))
	return n, nil
}

// UpdateLabel applies a new name and color together. The item rewrite is
// skipped when the name is unchanged.
func (s *Synchronizer) UpdateLabel(ctx context.Context, label, updated core.Label) (int, error) {
	n, err := s.rewrite(ctx, label, updated)
	if err != nil {
		return 0, err
	}
	publish(ctx, s.events, amqp.NewLabelEvent(amqp.LabelUpdated, label.ID, updated.Name, n))
	return n, nil
}

func (s *Synchronizer) rewrite(ctx context.Context, label, updated core.Label) (int, error) {
	rewritten := 0
	err := s.tx.InTx(ctx, func(tx store.Tx) error {
		rewritten = 0
		if updated.Name != label.Name {
			items, err := tx.ListItems(ctx)
			if err != nil {
				return err
			}
			for _, it := range items {
				labels, changed := it.Labels.Replace(label.Name, updated.Name)
				if !changed {
					continue
				}
				it.Labels = labels
				if err := tx.UpdateItem(ctx, it); err != nil {
					return fmt.Errorf("rewrite item %d: %w", it.ID, err)
				}
				rewritten++
			}
		}
		return tx.UpdateLabel(ctx, updated)
	})
	if err != nil {
		return 0, fmt.Errorf("rename label %q: %w", label.Name, err)
	}

	slog.InfoContext(ctx, "Label references rewritten",
		log.FieldComponent, log.ComponentSync,
		log.FieldLabelID, label.ID,
		log.FieldLabelName, updated.Name,
		log.FieldCount, rewritten)
	return rewritten, nil
}

// DeleteLabel removes every item carrying the label, whatever its other
// labels, then the label itself. It returns the number of items removed.
func (s *Synchronizer) DeleteLabel(ctx context.Context, label core.Label) (int, error) {
	removed := 0
	err := s.tx.InTx(ctx, func(tx store.Tx) error {
		n, err := tx.DeleteItemsWhere(ctx, func(it core.ShoppingItem) bool {
			return it.Labels.Contains(label.Name)
		})
		if err != nil {
			return err
		}
		removed = n
		return tx.DeleteLabel(ctx, label.ID)
	})
	if err != nil {
		return 0, fmt.Errorf("delete label %q: %w", label.Name, err)
	}

	slog.InfoContext(ctx, "Label deleted with its items",
		log.FieldComponent, log.ComponentSync,
		log.FieldLabelID, label.ID,
		log.FieldLabelName, label.Name,
		log.FieldCount, removed)
	publish(ctx, s.events, amqp.NewLabelEvent(amqp.LabelDeleted, label.ID, label.Name, removed))
	return removed, nil
}
