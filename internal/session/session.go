// Package session derives the live filtered view and its budget for one user
// session. A Session owns its FilterState; nothing here is persisted.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"shoplist/internal/core"
	"shoplist/internal/log"
	"shoplist/internal/stream"
)

// ItemSource is satisfied by store.ItemRepository and services.ItemService.
type ItemSource interface {
	WatchItems(ctx context.Context) <-chan []core.ShoppingItem
}

// View is one recomputation of the filtered list. Items alias the store
// snapshot and must be treated as read-only.
type View struct {
	Items      []core.ShoppingItem
	Budget     core.BudgetInfo
	Filter     core.FilterState
	Generation uint64
}

// ErrClosed is returned by Await once the session has stopped.
var ErrClosed = errors.New("session closed")

// Reflects reports whether v was computed from filter state f.
func (v View) Reflects(f core.FilterState) bool {
	if v.Filter.Mode != f.Mode || v.Filter.ShowPurchased != f.ShowPurchased {
		return false
	}
	if len(v.Filter.SelectedLabels) != len(f.SelectedLabels) {
		return false
	}
	for k := range f.SelectedLabels {
		if _, ok := v.Filter.SelectedLabels[k]; !ok {
			return false
		}
	}
	return true
}

type Session struct {
	id     string
	source ItemSource

	mu     sync.Mutex
	filter core.FilterState

	changed chan struct{}
	views   *stream.Subject[View]
}

func New(source ItemSource) *Session {
	return &Session{
		id:      uuid.NewString(),
		source:  source,
		filter:  core.NewFilterState(),
		changed: make(chan struct{}, 1),
		views:   stream.NewSubject[View](),
	}
}

func (s *Session) ID() string { return s.id }

// Views streams every published View, replaying the latest to new
// subscribers.
func (s *Session) Views(ctx context.Context) <-chan View {
	return s.views.Subscribe(ctx)
}

// Current returns the latest published view, if any.
func (s *Session) Current() (View, bool) {
	return s.views.Latest()
}

// Await blocks until a published view satisfies ok. A nil ok accepts the
// first view.
func (s *Session) Await(ctx context.Context, ok func(View) bool) (View, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for v := range s.views.Subscribe(ctx) {
		if ok == nil || ok(v) {
			return v, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return View{}, err
	}
	return View{}, ErrClosed
}

// Filter returns a copy of the current filter state.
func (s *Session) Filter() core.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter.Clone()
}

// ToggleLabel adds name to the selection, or removes it if already selected.
func (s *Session) ToggleLabel(name string) {
	s.update(func(f *core.FilterState) {
		if _, ok := f.SelectedLabels[name]; ok {
			delete(f.SelectedLabels, name)
			return
		}
		f.SelectedLabels[name] = struct{}{}
	})
}

func (s *Session) ClearLabels() {
	s.update(func(f *core.FilterState) { f.SelectedLabels = map[string]struct{}{} })
}

func (s *Session) SetMode(mode core.FilterMode) {
	s.update(func(f *core.FilterState) { f.Mode = mode })
}

func (s *Session) SetShowPurchased(show bool) {
	s.update(func(f *core.FilterState) { f.ShowPurchased = show })
}

func (s *Session) ToggleShowPurchased() {
	s.update(func(f *core.FilterState) { f.ShowPurchased = !f.ShowPurchased })
}

// Replace swaps in a whole filter state, as the API's filter endpoint does.
func (s *Session) Replace(f core.FilterState) {
	next := f.Clone()
	if next.Mode == "" {
		next.Mode = core.FilterAND
	}
	s.update(func(cur *core.FilterState) { *cur = next })
}

func (s *Session) update(fn func(*core.FilterState)) {
	s.mu.Lock()
	fn(&s.filter)
	s.mu.Unlock()
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

type result struct {
	gen  uint64
	view View
}

// Run recomputes the view on every item emission and filter change until
// ctx is done. Each recomputation runs off the loop with a generation
// number; a result is published only while it is the newest generation and
// ctx is live, so superseded or cancelled work is discarded.
func (s *Session) Run(ctx context.Context) error {
	defer s.views.Close()

	itemsCh := s.source.WatchItems(ctx)
	results := make(chan result)

	var (
		items     []core.ShoppingItem
		haveItems bool
		gen       uint64
		wg        sync.WaitGroup
	)
	defer wg.Wait()
	stop := make(chan struct{})
	defer close(stop)

	start := func() {
		gen++
		g := gen
		snapshot := items
		f := s.Filter()
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := compute(snapshot, f, g)
			select {
			case results <- result{gen: g, view: v}:
			case <-stop:
			}
		}()
	}

	slog.DebugContext(ctx, "Session started", log.FieldSessionID, s.id)
	for {
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "Session stopped", log.FieldSessionID, s.id)
			return nil
		case snap, ok := <-itemsCh:
			if !ok {
				return nil
			}
			items, haveItems = snap, true
			start()
		case <-s.changed:
			if haveItems {
				start()
			}
		case r := <-results:
			if r.gen != gen || ctx.Err() != nil {
				continue
			}
			s.views.Publish(r.view)
		}
	}
}

func compute(items []core.ShoppingItem, f core.FilterState, gen uint64) View {
	visible := core.Filter(items, f)
	return View{
		Items:      visible,
		Budget:     core.Summarize(visible),
		Filter:     f,
		Generation: gen,
	}
}
