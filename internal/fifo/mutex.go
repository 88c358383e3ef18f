package fifo

import (
	"context"
	"sync"
)

// Mutex serializes critical sections across goroutines. Waiters are served in
// arrival order. The zero value is an unlocked Mutex.
type Mutex struct {
	mu     sync.Mutex
	locked bool
	queue  []*waiter
}

type waiter struct {
	ready   chan struct{}
	granted bool
}

// Acquire locks m, queueing behind earlier callers when it is already held.
// The returned release func hands the lock to the next waiter; calling it more
// than once is a no-op.
//
// If ctx is cancelled while queued, the waiter leaves the queue and ctx.Err()
// is returned. A lock granted at the same moment is passed on, never leaked.
func (m *Mutex) Acquire(ctx context.Context) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return m.releaser(), nil
	}
	w := &waiter{ready: make(chan struct{})}
	m.queue = append(m.queue, w)
	m.mu.Unlock()

	select {
	case <-w.ready:
		return m.releaser(), nil
	case <-ctx.Done():
	}

	m.mu.Lock()
	if w.granted {
		m.mu.Unlock()
		m.release()
		return nil, ctx.Err()
	}
	m.removeLocked(w)
	m.mu.Unlock()
	return nil, ctx.Err()
}

// TryAcquire locks m only if it is free and nobody is queued.
func (m *Mutex) TryAcquire() (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return nil, false
	}
	m.locked = true
	return m.releaser(), true
}

// Locked reports whether m is currently held.
func (m *Mutex) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// QueueLen reports how many callers are waiting for m.
func (m *Mutex) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Mutex) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(m.release)
	}
}

func (m *Mutex) release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.locked {
		return
	}
	if len(m.queue) == 0 {
		m.locked = false
		return
	}

	// Ownership moves to the head waiter; locked stays true across the hand-off.
	next := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	next.granted = true
	close(next.ready)
}

func (m *Mutex) removeLocked(w *waiter) {
	for i, q := range m.queue {
		if q == w {
			copy(m.queue[i:], m.queue[i+1:])
			m.queue[len(m.queue)-1] = nil
			m.queue = m.queue[:len(m.queue)-1]
			return
		}
	}
}
