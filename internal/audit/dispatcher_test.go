package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type gateSink struct {
	gate chan struct{}
	seen atomic.Int64
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
	s.seen.Add(1)
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) { panic("sink exploded") }

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for _, typ := range []string{"a", "b", "c"} {
		d.Emit(context.Background(), Event{EventType: typ})
	}
	d.Close()

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case ev := <-sink.Events():
			got = append(got, ev.EventType)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	if strings.Join(got, "") != "abc" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), Event{EventType: "flood"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and a full buffer")
	}
	close(sink.gate)
	d.Close()
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	var logs bytes.Buffer
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 4,
		Logger:     slog.New(slog.NewJSONHandler(&logs, nil)),
	}, panicSink{})
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})
	d.Close()

	if got := d.Dropped(); got != 2 {
		t.Fatalf("expected both events counted as lost, got %d", got)
	}
	if st := d.Stats(); st.Panicked != 2 || st.Delivered != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if !strings.Contains(logs.String(), `"event":"b"`) {
		t.Fatalf("expected panic logged with event type, got %s", logs.String())
	}
}

type deadlineSink struct {
	hadDeadline atomic.Bool
}

func (s *deadlineSink) Emit(ctx context.Context, _ Event) {
	_, ok := ctx.Deadline()
	s.hadDeadline.Store(ok)
}

func TestDispatcherBoundsSinkContext(t *testing.T) {
	sink := &deadlineSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Close()

	if !sink.hadDeadline.Load() {
		t.Fatal("sink context must carry a deadline")
	}
	if st := d.Stats(); st.Delivered != 1 {
		t.Fatalf("expected one delivery, got %+v", st)
	}
}

func TestDispatcherBlockingEmitHonoursContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	for i := 0; i < 3; i++ {
		d.Emit(ctx, Event{EventType: "slow"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected the expired emit to count as dropped")
	}
	close(sink.gate)
	d.Close()

	d.Emit(context.Background(), Event{EventType: "late"})
	if st := d.Stats(); st.Delivered+st.Dropped != 3 {
		t.Fatalf("events after Close must be ignored, got %+v", st)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	NewJSONWriterSink(&buf).Emit(context.Background(), Event{EventType: "login_success", UserID: "u1", Success: true})

	var decoded Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("invalid json line: %v", err)
	}
	if decoded.EventType != "login_success" || decoded.UserID != "u1" || !decoded.Success {
		t.Fatalf("unexpected event %+v", decoded)
	}
}

func TestSlogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	NewSlogSink(logger).Emit(context.Background(), Event{
		EventType: "refresh_invalid",
		Success:   false,
		Error:     "unauthorized",
		Metadata:  map[string]string{"reason": "revoked"},
	})

	out := buf.String()
	for _, want := range []string{`"level":"WARN"`, `"event":"refresh_invalid"`, `"reason":"revoked"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}
