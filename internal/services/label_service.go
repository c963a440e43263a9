package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"shoplist/internal/amqp"
	"shoplist/internal/core"
	"shoplist/internal/log"
	"shoplist/internal/store"
)

// LabelService owns label lifecycle. Renames and deletes go through the
// Synchronizer so items never reference a stale name.
//
// The duplicate-name check and the insert are separate statements, so two
// concurrent creates of the same name can both succeed.
type LabelService struct {
	labels store.LabelRepository
	sync   *Synchronizer
	events EventPublisher
	search SearchInvalidator
}

// SearchInvalidator is satisfied by *ItemService. Label renames and deletes
// rewrite items behind its back, so they drop its cached searches.
type SearchInvalidator interface {
	InvalidateSearch()
}

func NewLabelService(labels store.LabelRepository, sync *Synchronizer, events EventPublisher) *LabelService {
	return &LabelService{labels: labels, sync: sync, events: events}
}

// InvalidatesSearch makes cascading label writes clear inv's search cache.
func (s *LabelService) InvalidatesSearch(inv SearchInvalidator) *LabelService {
	s.search = inv
	return s
}

func (s *LabelService) itemsChanged() {
	if s.search != nil {
		s.search.InvalidateSearch()
	}
}

// Create adds a label. An empty color selects core.DefaultLabelColor.
func (s *LabelService) Create(ctx context.Context, name, color string) (core.Label, error) {
	label := core.Label{Name: strings.TrimSpace(name), Color: strings.TrimSpace(color)}
	if label.Color == "" {
		label.Color = core.DefaultLabelColor
	}
	if err := label.Validate(); err != nil {
		return core.Label{}, err
	}
	if err := s.ensureUnique(ctx, label.Name); err != nil {
		return core.Label{}, err
	}

	id, err := s.labels.InsertLabel(ctx, label)
	if err != nil {
		return core.Label{}, fmt.Errorf("create label: %w", err)
	}
	label.ID = id

	slog.InfoContext(ctx, "Label created",
		log.FieldComponent, log.ComponentLabels,
		log.FieldLabelID, id,
		log.FieldLabelName, label.Name)
	publish(ctx, s.events, amqp.NewLabelEvent(amqp.LabelCreated, id, label.Name, 0))
	return label, nil
}

// Rename changes a label's name and every item reference to it. Renaming to
// the current name is a no-op. A label that no longer exists is left alone.
func (s *LabelService) Rename(ctx context.Context, label core.Label, newName string) (core.Label, error) {
	newName = strings.TrimSpace(newName)
	if newName == label.Name {
		return label, nil
	}
	updated := label
	updated.Name = newName
	if err := updated.Validate(); err != nil {
		return label, err
	}
	if err := s.ensureUnique(ctx, newName); err != nil {
		return label, err
	}

	_, err := s.sync.RenameLabel(ctx, label, newName)
	s.itemsChanged()
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			slog.DebugContext(ctx, "Rename of missing label ignored", log.FieldLabelID, label.ID)
			return label, nil
		}
		return label, err
	}
	return updated, nil
}

// Update is the edit flow: name and color change together.
func (s *LabelService) Update(ctx context.Context, label core.Label, newName, newColor string) (core.Label, error) {
	updated := core.Label{
		ID:    label.ID,
		Name:  strings.TrimSpace(newName),
		Color: strings.TrimSpace(newColor),
	}
	if updated.Color == "" {
		updated.Color = label.Color
	}
	if updated == label {
		return label, nil
	}
	if err := updated.Validate(); err != nil {
		return label, err
	}
	if updated.Name != label.Name {
		if err := s.ensureUnique(ctx, updated.Name); err != nil {
			return label, err
		}
	}

	_, err := s.sync.UpdateLabel(ctx, label, updated)
	s.itemsChanged()
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			slog.DebugContext(ctx, "Update of missing label ignored", log.FieldLabelID, label.ID)
			return label, nil
		}
		return label, err
	}
	return updated, nil
}

// Delete removes the label and every item that carries it. It returns the
// number of items removed.
func (s *LabelService) Delete(ctx context.Context, label core.Label) (int, error) {
	n, err := s.sync.DeleteLabel(ctx, label)
	s.itemsChanged()
	if errors.Is(err, core.ErrNotFound) {
		slog.DebugContext(ctx, "Delete of missing label ignored", log.FieldLabelID, label.ID)
		return 0, nil
	}
	return n, err
}

// List returns labels sorted by name.
func (s *LabelService) List(ctx context.Context) ([]core.Label, error) {
	return s.labels.ListLabels(ctx)
}

func (s *LabelService) Get(ctx context.Context, id int64) (core.Label, error) {
	return s.labels.GetLabel(ctx, id)
}

func (s *LabelService) Watch(ctx context.Context) <-chan []core.Label {
	return s.labels.WatchLabels(ctx)
}

func (s *LabelService) CountByName(ctx context.Context, name string) (int, error) {
	return s.labels.CountByName(ctx, name)
}

func (s *LabelService) ensureUnique(ctx context.Context, name string) error {
	n, err := s.labels.CountByName(ctx, name)
	if err != nil {
		return fmt.Errorf("check label name: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%q: %w", name, core.ErrDuplicateName)
	}
	return nil
}
