package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Options tunes a Dispatcher.
type Options struct {
	// Buffer is the number of events queued ahead of the sink. Values below
	// one are raised to one.
	Buffer int
	// DropOnFull discards events instead of blocking the gateway call that
	// produced them.
	DropOnFull bool
	// Now stamps events without a timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Dispatcher hands gateway outcomes to a Sink on a single relay goroutine,
// preserving emit order. All methods are safe on a nil *Dispatcher, which is
// what a client with auditing disabled holds.
type Dispatcher struct {
	sink       Sink
	now        func() time.Time
	dropOnFull bool

	mu      sync.RWMutex
	queue   chan Event
	closed  bool
	drained chan struct{}
	dropped atomic.Uint64
}

// NewDispatcher starts a relay into sink. A nil sink discards events.
func NewDispatcher(sink Sink, opts Options) *Dispatcher {
	if sink == nil {
		sink = NoOpSink{}
	}
	if opts.Buffer < 1 {
		opts.Buffer = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	d := &Dispatcher{
		sink:       sink,
		now:        opts.Now,
		dropOnFull: opts.DropOnFull,
		queue:      make(chan Event, opts.Buffer),
		drained:    make(chan struct{}),
	}
	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer close(d.drained)
	for ev := range d.queue {
		d.sink.Emit(context.Background(), ev)
	}
}

// Emit fills in a missing ID and timestamp and queues ev. With DropOnFull a
// full queue counts a drop; otherwise Emit waits for room or for ctx.
// Events emitted after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.now().UTC()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropOnFull {
		select {
		case d.queue <- ev:
		default:
			d.dropped.Add(1)
		}
		return
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
	}
}

// Close stops accepting events and returns once the sink has seen every
// queued one. Repeated calls are no-ops.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.drained
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.drained
}

// Dropped reports how many events DropOnFull discarded.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
