package sessionkit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type blockingSink struct {
	mu      sync.Mutex
	release chan struct{}
	got     []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, e)
	s.mu.Unlock()
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := newEventDispatcher(EventsConfig{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled dispatcher should be nil")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher dropped events")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// worker takes the first event and blocks in the sink; the second fills
	// the buffer; the rest are dropped
	d.Emit(context.Background(), Event{Type: EventIssued})
	deadline := time.Now().Add(time.Second)
	for len(d.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{Type: EventRefreshed})
	}
	if d.Dropped() != 4 {
		t.Fatalf("dropped = %d, want 4", d.Dropped())
	}

	close(sink.release)
	d.Close()
	if len(sink.got) != 2 {
		t.Fatalf("delivered = %d, want 2", len(sink.got))
	}
}

func TestDispatcherCloseFlushesAndIsIdempotent(t *testing.T) {
	sink := NewChannelSink(8)
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 8}, sink)
	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{Type: EventLoggedOut})
	}
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{Type: EventLoggedOut})

	if n := len(sink.Events()); n != 3 {
		t.Fatalf("flushed = %d, want 3", n)
	}
}

func TestDispatcherCountsEmitAfterClose(t *testing.T) {
	for _, dropIfFull := range []bool{true, false} {
		sink := NewChannelSink(8)
		d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 8, DropIfFull: dropIfFull}, sink)
		d.Emit(context.Background(), Event{Type: EventIssued})
		d.Close()

		d.Emit(context.Background(), Event{Type: EventRefreshed})
		d.Emit(context.Background(), Event{Type: EventRefreshed})
		if d.Dropped() != 2 {
			t.Fatalf("dropIfFull=%v: dropped = %d, want 2", dropIfFull, d.Dropped())
		}
		if n := len(sink.Events()); n != 1 {
			t.Fatalf("dropIfFull=%v: delivered = %d, want 1", dropIfFull, n)
		}
	}
}

func TestDispatcherAccountsForEveryEventDuringClose(t *testing.T) {
	const senders, perSender = 8, 200
	for _, dropIfFull := range []bool{true, false} {
		var delivered atomicCounterSink
		d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 4, DropIfFull: dropIfFull}, &delivered)

		var wg sync.WaitGroup
		for i := 0; i < senders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perSender; j++ {
					d.Emit(context.Background(), Event{Type: EventIssued})
				}
			}()
		}
		time.Sleep(time.Millisecond)
		d.Close()
		wg.Wait()

		total := uint64(delivered.n.Load()) + d.Dropped()
		if total != senders*perSender {
			t.Fatalf("dropIfFull=%v: delivered %d + dropped %d != %d",
				dropIfFull, delivered.n.Load(), d.Dropped(), senders*perSender)
		}
	}
}

func TestDispatcherCloseReleasesBlockedSender(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1}, sink)

	// one event in the sink, one in the buffer, the third blocks
	d.Emit(context.Background(), Event{Type: EventIssued})
	deadline := time.Now().Add(time.Second)
	for len(d.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), Event{Type: EventIssued})

	sent := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{Type: EventIssued})
		close(sent)
	}()

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()

	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("Close did not release the blocked sender")
	}
	close(sink.release)
	<-closed

	if got := uint64(len(sink.got)) + d.Dropped(); got != 3 {
		t.Fatalf("delivered %d + dropped %d, want 3", len(sink.got), d.Dropped())
	}
}

func TestDispatcherCountsCancelledBlockingEmit(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.release)
		d.Close()
	}()

	d.Emit(context.Background(), Event{Type: EventIssued})
	deadline := time.Now().Add(time.Second)
	for len(d.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), Event{Type: EventIssued})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{Type: EventIssued})
	if d.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", d.Dropped())
	}
}

type atomicCounterSink struct{ n atomic.Int64 }

func (s *atomicCounterSink) Emit(context.Context, Event) { s.n.Add(1) }

func TestSlogSinkWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewJSONHandler(&buf, nil)), slog.LevelInfo)
	sink.Emit(context.Background(), Event{
		Timestamp: time.Unix(1700000000, 0).UTC(),
		Type:      EventRefreshDenied,
		Subject:   "u1",
		Kind:      "revoked_or_expired",
	})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["type"] != "refresh_denied" || rec["subject"] != "u1" || rec["kind"] != "revoked_or_expired" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if strings.Contains(buf.String(), "token_id") {
		t.Fatal("empty token_id should be omitted")
	}
}
