package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"shoplist/internal/amqp"
	"shoplist/internal/core"
	"shoplist/internal/store/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev amqp.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *recordingPublisher) last() amqp.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type fixture struct {
	store  *memory.Store
	events *recordingPublisher
	items  *ItemService
	labels *LabelService
	sync   *Synchronizer
	clock  time.Time
}

func newFixture(t *testing.T, labels ...string) *fixture {
	t.Helper()
	st := memory.New(labels...)
	t.Cleanup(func() { st.Close() })
	pub := &recordingPublisher{}
	f := &fixture{
		store:  st,
		events: pub,
		clock:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	f.sync = NewSynchronizer(st, pub)
	f.labels = NewLabelService(st, f.sync, pub)
	f.items = NewItemService(st, pub, nil)
	f.items.now = func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	return f
}

func (f *fixture) addItem(t *testing.T, name string, labels ...string) int64 {
	t.Helper()
	id, err := f.items.Create(context.Background(), core.ShoppingItem{
		Name:           name,
		Quantity:       1,
		EstimatedPrice: core.Money{Cents: 500},
		Labels:         core.NewLabelSet(labels...),
	})
	if err != nil {
		t.Fatalf("create %q: %v", name, err)
	}
	return id
}

func (f *fixture) label(t *testing.T, name string) core.Label {
	t.Helper()
	labels, err := f.labels.List(context.Background())
	if err != nil {
		t.Fatalf("list labels: %v", err)
	}
	for _, l := range labels {
		if l.Name == name {
			return l
		}
	}
	t.Fatalf("label %q not found", name)
	return core.Label{}
}

// labelsByItem maps item name to its label set.
func (f *fixture) labelsByItem(t *testing.T) map[string]core.LabelSet {
	t.Helper()
	items, err := f.items.List(context.Background())
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	out := make(map[string]core.LabelSet, len(items))
	for _, it := range items {
		out[it.Name] = it.Labels
	}
	return out
}
