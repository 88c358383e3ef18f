package rate

import (
	"context"
	"sync"
	"time"
)

// State is the window bookkeeping for one key.
type State struct {
	Count     int
	ResetTime time.Time
}

// Memory is an in-process fixed-window limiter.
type Memory struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*State
}

// MemoryOption configures a [Memory] limiter.
type MemoryOption func(*Memory)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an isolated in-process limiter.
func NewMemory(cfg Config, opts ...MemoryOption) *Memory {
	m := &Memory{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*State),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allow implements [Limiter].
func (m *Memory) Allow(_ context.Context, key string) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.entries[key]
	if ok && !now.Before(st.ResetTime) {
		delete(m.entries, key)
		ok = false
	}
	if !ok {
		st = &State{ResetTime: now.Add(m.cfg.Window)}
		m.entries[key] = st
	}

	st.Count++
	if st.Count > m.cfg.Max {
		return ErrRateLimited
	}
	return nil
}

// Reset implements [Limiter].
func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Peek returns a copy of the live state for key. Expired windows report
// false without being evicted.
func (m *Memory) Peek(key string) (State, bool) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.entries[key]
	if !ok || !now.Before(st.ResetTime) {
		return State{}, false
	}
	return *st, true
}

// Len reports tracked keys, including expired ones not yet evicted.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
