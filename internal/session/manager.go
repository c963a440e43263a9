package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shoplist/internal/log"
)

// Manager owns the running sessions of a process. Each session runs until
// it is closed, idles out, or the manager's context ends.
type Manager struct {
	source  ItemSource
	maxIdle time.Duration
	limit   int
	now     func() time.Time

	mu       sync.Mutex
	base     context.Context
	sessions map[string]*entry
	wg       sync.WaitGroup
}

type entry struct {
	s        *Session
	cancel   context.CancelFunc
	lastSeen time.Time
}

// DefaultMaxSessions caps live sessions when WithLimit is not used.
const DefaultMaxSessions = 1000

// NewManager creates a manager whose sessions derive from base. A zero
// maxIdle disables idle eviction; the session count is still capped.
func NewManager(base context.Context, source ItemSource, maxIdle time.Duration) *Manager {
	return &Manager{
		source:   source,
		maxIdle:  maxIdle,
		limit:    DefaultMaxSessions,
		now:      time.Now,
		base:     base,
		sessions: make(map[string]*entry),
	}
}

// WithLimit sets the maximum number of live sessions. Values below 1 keep
// the current limit.
func (m *Manager) WithLimit(n int) *Manager {
	if n > 0 {
		m.mu.Lock()
		m.limit = n
		m.mu.Unlock()
	}
	return m
}

// Open starts a new session. At the limit, the least recently seen session
// is closed first.
func (m *Manager) Open() *Session {
	s := New(m.source)
	ctx, cancel := context.WithCancel(m.base)

	m.mu.Lock()
	var evicted []*entry
	for len(m.sessions) >= m.limit {
		evicted = append(evicted, m.popOldestLocked())
	}
	m.sessions[s.ID()] = &entry{s: s, cancel: cancel, lastSeen: m.now()}
	m.mu.Unlock()

	for _, e := range evicted {
		e.cancel()
		slog.DebugContext(ctx, "Session evicted at limit", log.FieldSessionID, e.s.ID())
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := s.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "Session ended with error", log.FieldSessionID, s.ID(), log.FieldError, err)
		}
	}()
	return s
}

// Get returns a live session and refreshes its idle timer.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = m.now()
	return e.s, true
}

// GetOrOpen returns the session for id, opening a new one when id is
// unknown.
func (m *Manager) GetOrOpen(id string) *Session {
	if s, ok := m.Get(id); ok {
		return s
	}
	return m.Open()
}

func (m *Manager) popOldestLocked() *entry {
	var oldestID string
	var oldest *entry
	for id, e := range m.sessions {
		if oldest == nil || e.lastSeen.Before(oldest.lastSeen) {
			oldestID, oldest = id, e
		}
	}
	delete(m.sessions, oldestID)
	return oldest
}

func (m *Manager) Close(id string) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		e.cancel()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseIdle stops sessions unused for longer than maxIdle and returns how
// many were stopped.
func (m *Manager) CloseIdle() int {
	if m.maxIdle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.maxIdle)

	m.mu.Lock()
	var stale []*entry
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range stale {
		e.cancel()
	}
	return len(stale)
}

// Run evicts idle sessions every interval until ctx is done, then stops all
// sessions and waits for them.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case <-ticker.C:
			if n := m.CloseIdle(); n > 0 {
				slog.InfoContext(ctx, "Idle sessions closed", log.FieldCount, n)
			}
		}
	}
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	for id, e := range m.sessions {
		e.cancel()
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
