package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type blockingSink struct {
	release chan struct{}
	got     chan Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.got <- e
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(10)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 10}, sink)

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{Type: "login", Success: true})
	}
	d.Close()

	count := 0
	for {
		select {
		case <-sink.Events():
			count++
			continue
		default:
		}
		break
	}
	if count != 3 {
		t.Fatalf("expected 3 delivered events, got %d", count)
	}

	d.Emit(context.Background(), Event{Type: "after-close"})
	if d.Dropped() != 0 {
		t.Fatalf("emit after close should be ignored, dropped=%d", d.Dropped())
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), got: make(chan Event, 10)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event is taken by the worker and blocks in the sink; the second
	// fills the buffer; the rest are dropped.
	d.Emit(context.Background(), Event{Type: "a"})
	deadline := time.Now().Add(time.Second)
	for len(d.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), Event{Type: "b"})
	d.Emit(context.Background(), Event{Type: "c"})
	d.Emit(context.Background(), Event{Type: "d"})

	if d.Dropped() != 2 {
		t.Fatalf("expected 2 dropped events, got %d", d.Dropped())
	}
	close(sink.release)
	d.Close()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher")
	}
	d.Emit(context.Background(), Event{Type: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher should report zero drops")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{Type: "register", AccountID: "a1", Success: true})

	var decoded map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["event_type"] != "register" || decoded["account_id"] != "a1" {
		t.Fatalf("unexpected payload: %v", decoded)
	}
}

func TestLoggerSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LoggerSink{Logger: zerolog.New(&buf)}
	sink.Emit(context.Background(), Event{Type: "login", Email: "a***@example.org", Error: "invalid_credentials"})

	line := buf.String()
	for _, want := range []string{`"level":"warn"`, `"audit":"login"`, `"error":"invalid_credentials"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
}
