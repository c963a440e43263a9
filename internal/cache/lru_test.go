package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestLRUExpiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("a", "1")
	clk.advance(30 * time.Second)
	c.Set("b", "2")
	clk.advance(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Error("a should be expired")
	}
	if got := c.CleanExpired(); got != 0 {
		t.Errorf("CleanExpired() = %d, want 0 (a already removed on Get)", got)
	}
	clk.advance(time.Minute)
	if got := c.CleanExpired(); got != 1 {
		t.Errorf("CleanExpired() = %d, want 1", got)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUClearAndStats(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprint(i), "v")
	}
	c.Get("0")
	c.Clear()
	c.Get("0")

	if c.Size() != 0 {
		t.Fatalf("Size() after Clear = %d", c.Size())
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats() = %d hits %d misses, want 1/1", hits, misses)
	}
	c.Set("x", "y")
	if v, ok := c.Get("x"); !ok || v != "y" {
		t.Error("cache should be usable after Clear")
	}
}

func TestLRUNonPositiveSize(t *testing.T) {
	c := NewLRUCache[int](0, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestClearOn(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("k", "v")

	ch := make(chan int)
	cleared := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ClearOn(ctx, ch, c, func() { cleared <- struct{}{} })

	ch <- 1
	select {
	case <-cleared:
	case <-time.After(2 * time.Second):
		t.Fatal("cache was not cleared")
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d after emission", c.Size())
	}
}

func TestManagerCleanOnce(t *testing.T) {
	a, clk := newTestCache(10, time.Second)
	b, _ := newTestCache(10, time.Hour)
	b.now = clk.now
	a.Set("x", "1")
	b.Set("y", "2")
	clk.advance(time.Minute)

	m := NewManager(a)
	m.Register(b)
	if got := m.CleanOnce(); got != 1 {
		t.Errorf("CleanOnce() = %d, want 1", got)
	}
}
