package stream

import (
	"context"
	"testing"
	"time"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestSubjectReplaysLatest(t *testing.T) {
	s := NewSubject[int]()
	s.Publish(1)
	s.Publish(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := s.Subscribe(ctx)
	if got := recv(t, ch); got != 2 {
		t.Fatalf("expected replay of 2, got %d", got)
	}

	s.Publish(3)
	if got := recv(t, ch); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestSubjectConflatesSlowSubscriber(t *testing.T) {
	s := NewSubject[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := s.Subscribe(ctx)

	for i := 1; i <= 10; i++ {
		s.Publish(i)
	}
	if got := recv(t, ch); got != 10 {
		t.Fatalf("expected latest value 10, got %d", got)
	}
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %d", v)
	default:
	}
}

func TestSubjectUnsubscribeOnCancel(t *testing.T) {
	s := NewSubject[string]()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after cancel")
	}
	if n := s.Subscribers(); n != 0 {
		t.Fatalf("expected 0 subscribers, got %d", n)
	}
}

func TestSubjectClose(t *testing.T) {
	s := NewSubject[int]()
	ch := s.Subscribe(context.Background())
	s.Close()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	late := s.Subscribe(context.Background())
	if _, ok := <-late; ok {
		t.Fatal("expected closed channel for late subscriber")
	}
	s.Publish(1) // no panic
	if _, has := s.Latest(); has {
		t.Fatal("publish after close should be dropped")
	}
}

func TestSubjectCloseReleasesWatchers(t *testing.T) {
	s := NewSubject[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := 0; i < 3; i++ {
		s.Subscribe(ctx)
	}
	if n := s.Subscribers(); n != 3 {
		t.Fatalf("Subscribers() = %d, want 3", n)
	}

	s.Close()
	if n := s.Subscribers(); n != 0 {
		t.Fatalf("Subscribers() after Close = %d, want 0", n)
	}

	// ctx is still live; the watcher goroutines must exit on Close alone.
	exited := make(chan struct{})
	go func() {
		s.watchers.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription goroutines still running after Close")
	}
}
