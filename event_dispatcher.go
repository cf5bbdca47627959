package sessionkit

import (
	"context"
	"sync"
	"sync/atomic"
)

// eventDispatcher decouples sinks from the request path. With DropIfFull
// a full buffer drops the event and counts it; otherwise Emit blocks until
// there is room, ctx is done or the dispatcher closes.
//
// Every event passed to Emit is either delivered or counted in dropped,
// including events emitted after Close.
type eventDispatcher struct {
	cfg     EventsConfig
	sink    EventSink
	ch      chan Event
	wg      sync.WaitGroup
	dropped atomic.Uint64

	// mu is held shared by senders; Close takes it exclusively before
	// closing ch.
	mu        sync.RWMutex
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once
}

func newEventDispatcher(cfg EventsConfig, sink EventSink) *eventDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &eventDispatcher{
		cfg:     cfg,
		sink:    sink,
		ch:      make(chan Event, cfg.BufferSize),
		closing: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *eventDispatcher) run() {
	defer d.wg.Done()
	for event := range d.ch {
		d.sink.Emit(context.Background(), event)
	}
}

func (d *eventDispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.closing:
		d.dropped.Add(1)
	}
}

// Close stops the worker after flushing buffered events. Safe to call more
// than once.
func (d *eventDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		// release senders blocked on a full buffer so the lock can be taken
		close(d.closing)
		d.mu.Lock()
		d.closed = true
		close(d.ch)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

// Dropped counts events that never reached the sink.
func (d *eventDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
