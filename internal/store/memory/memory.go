// Package memory is a process-local Store. Transactions run against a copy
// of the state that replaces the live state only when fn succeeds.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"shoplist/internal/core"
	"shoplist/internal/store"
	"shoplist/internal/stream"
)

var _ store.Store = (*Store)(nil)

type state struct {
	items       []core.ShoppingItem
	labels      []core.Label
	nextItemID  int64
	nextLabelID int64
}

func (s state) clone() state {
	out := s
	out.items = make([]core.ShoppingItem, len(s.items))
	for i, it := range s.items {
		out.items[i] = it.Clone()
	}
	out.labels = append([]core.Label(nil), s.labels...)
	return out
}

type Store struct {
	mu     sync.Mutex
	st     state
	items  *stream.Subject[[]core.ShoppingItem]
	labels *stream.Subject[[]core.Label]
}

// New creates a store seeded with the given label names in the default color.
func New(labelNames ...string) *Store {
	s := &Store{
		st:     state{nextItemID: 1, nextLabelID: 1},
		items:  stream.NewSubject[[]core.ShoppingItem](),
		labels: stream.NewSubject[[]core.Label](),
	}
	for _, name := range dedupe(labelNames) {
		s.st.labels = append(s.st.labels, core.Label{ID: s.st.nextLabelID, Name: name, Color: core.DefaultLabelColor})
		s.st.nextLabelID++
	}
	s.publishLocked()
	return s
}

// NewFromFiles seeds labels from base/seed_labels.txt when present.
func NewFromFiles(base string) *Store {
	return New(readLines(filepath.Join(base, "seed_labels.txt"))...)
}

func (s *Store) Close() error {
	s.items.Close()
	s.labels.Close()
	return nil
}

// publishLocked emits fresh snapshots; callers hold s.mu so emissions keep
// commit order.
func (s *Store) publishLocked() {
	s.items.Publish(sortedItems(s.st.items))
	s.labels.Publish(sortedLabels(s.st.labels))
}

func sortedItems(in []core.ShoppingItem) []core.ShoppingItem {
	out := make([]core.ShoppingItem, len(in))
	for i, it := range in {
		out[i] = it.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func sortedLabels(in []core.Label) []core.Label {
	out := append([]core.Label(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// mutate applies fn to the live state under the lock and publishes on success.
func (s *Store) mutate(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(&s.st); err != nil {
		return err
	}
	s.publishLocked()
	return nil
}

// Items

func (s *Store) WatchItems(ctx context.Context) <-chan []core.ShoppingItem {
	return s.items.Subscribe(ctx)
}

func (s *Store) ListItems(_ context.Context) ([]core.ShoppingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedItems(s.st.items), nil
}

func (s *Store) GetItem(_ context.Context, id int64) (core.ShoppingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.st.itemIndex(id); i >= 0 {
		return s.st.items[i].Clone(), nil
	}
	return core.ShoppingItem{}, core.ErrNotFound
}

func (s *Store) InsertItem(_ context.Context, item core.ShoppingItem) (int64, error) {
	var id int64
	err := s.mutate(func(st *state) error {
		id = st.nextItemID
		st.nextItemID++
		item = item.Clone()
		item.ID = id
		if item.CreatedAt.IsZero() {
			item.CreatedAt = time.Now()
		}
		st.items = append(st.items, item)
		return nil
	})
	return id, err
}

func (s *Store) UpdateItem(_ context.Context, item core.ShoppingItem) error {
	return s.mutate(func(st *state) error { return st.updateItem(item) })
}

func (s *Store) DeleteItem(_ context.Context, id int64) error {
	return s.mutate(func(st *state) error {
		i := st.itemIndex(id)
		if i < 0 {
			return core.ErrNotFound
		}
		st.items = append(st.items[:i], st.items[i+1:]...)
		return nil
	})
}

func (s *Store) DeleteItemsWhere(_ context.Context, pred store.ItemPredicate) (int, error) {
	var n int
	err := s.mutate(func(st *state) error {
		n = st.deleteWhere(pred)
		return nil
	})
	return n, err
}

func (s *Store) DeleteAllItems(_ context.Context) error {
	return s.mutate(func(st *state) error {
		st.items = nil
		return nil
	})
}

func (s *Store) SearchUnpurchased(_ context.Context, text string) ([]core.ShoppingItem, error) {
	needle := strings.ToLower(text)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ShoppingItem
	for _, it := range s.st.items {
		if it.IsPurchased {
			continue
		}
		if strings.Contains(strings.ToLower(it.Name), needle) {
			out = append(out, it.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) MarkPurchased(_ context.Context, id int64, price core.Money, at time.Time) error {
	return s.mutate(func(st *state) error {
		i := st.itemIndex(id)
		if i < 0 {
			return core.ErrNotFound
		}
		p := price
		t := at
		st.items[i].IsPurchased = true
		st.items[i].ActualPrice = &p
		st.items[i].PurchasedAt = &t
		return nil
	})
}

// Labels

func (s *Store) WatchLabels(ctx context.Context) <-chan []core.Label {
	return s.labels.Subscribe(ctx)
}

func (s *Store) ListLabels(_ context.Context) ([]core.Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedLabels(s.st.labels), nil
}

func (s *Store) GetLabel(_ context.Context, id int64) (core.Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.st.labelIndex(id); i >= 0 {
		return s.st.labels[i], nil
	}
	return core.Label{}, core.ErrNotFound
}

func (s *Store) InsertLabel(_ context.Context, label core.Label) (int64, error) {
	var id int64
	err := s.mutate(func(st *state) error {
		id = st.nextLabelID
		st.nextLabelID++
		label.ID = id
		st.labels = append(st.labels, label)
		return nil
	})
	return id, err
}

func (s *Store) UpdateLabel(_ context.Context, label core.Label) error {
	return s.mutate(func(st *state) error { return st.updateLabel(label) })
}

func (s *Store) DeleteLabel(_ context.Context, id int64) error {
	return s.mutate(func(st *state) error { return st.deleteLabel(id) })
}

func (s *Store) CountByName(_ context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.st.labels {
		if l.Name == name {
			n++
		}
	}
	return n, nil
}

// InTx runs fn against a private copy of the state and swaps it in on success.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(&txView{st: &work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	s.publishLocked()
	return nil
}

type txView struct {
	st *state
}

func (t *txView) ListItems(_ context.Context) ([]core.ShoppingItem, error) {
	return sortedItems(t.st.items), nil
}

func (t *txView) UpdateItem(_ context.Context, item core.ShoppingItem) error {
	return t.st.updateItem(item)
}

func (t *txView) DeleteItemsWhere(_ context.Context, pred store.ItemPredicate) (int, error) {
	return t.st.deleteWhere(pred), nil
}

func (t *txView) UpdateLabel(_ context.Context, label core.Label) error {
	return t.st.updateLabel(label)
}

func (t *txView) DeleteLabel(_ context.Context, id int64) error {
	return t.st.deleteLabel(id)
}

// state helpers, callers hold the lock or own the copy

func (st *state) itemIndex(id int64) int {
	for i, it := range st.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (st *state) labelIndex(id int64) int {
	for i, l := range st.labels {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (st *state) updateItem(item core.ShoppingItem) error {
	i := st.itemIndex(item.ID)
	if i < 0 {
		return core.ErrNotFound
	}
	item = item.Clone()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = st.items[i].CreatedAt
	}
	st.items[i] = item
	return nil
}

func (st *state) deleteWhere(pred store.ItemPredicate) int {
	kept := st.items[:0]
	removed := 0
	for _, it := range st.items {
		if pred(it) {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	st.items = kept
	return removed
}

func (st *state) updateLabel(label core.Label) error {
	i := st.labelIndex(label.ID)
	if i < 0 {
		return core.ErrNotFound
	}
	st.labels[i] = label
	return nil
}

func (st *state) deleteLabel(id int64) error {
	i := st.labelIndex(id)
	if i < 0 {
		return core.ErrNotFound
	}
	st.labels = append(st.labels[:i], st.labels[i+1:]...)
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// dedupe keeps first-seen order and drops names that are not valid labels.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || strings.Contains(v, core.LabelDelimiter) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
