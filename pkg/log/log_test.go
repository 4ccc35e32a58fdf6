package log

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.dlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	defer r.Close()

	var out []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, e)
	}
}

func sampleEvents(base time.Time) []Event {
	return []Event{
		{
			Timestamp: base,
			LinkID:    "link-a",
			Direction: DirectionOut,
			Layer:     LayerEnvelope,
			Category:  CategoryMessage,
			LocalRole: RoleHost,
			Envelope:  &EnvelopeEvent{Version: 2, Type: 0x20, Sequence: 5, SourceTimeUs: 1000, DataLen: 1},
		},
		{
			Timestamp: base.Add(time.Millisecond),
			LinkID:    "link-a",
			Direction: DirectionIn,
			Layer:     LayerCodec,
			Category:  CategoryError,
			LocalRole: RoleHost,
			Error:     &ErrorEventData{Layer: LayerCodec, Class: "CHECKSUM_ERROR", Message: "checksum mismatch"},
		},
		{
			Timestamp: base.Add(2 * time.Millisecond),
			LinkID:    "link-b",
			Direction: DirectionIn,
			Layer:     LayerSync,
			Category:  CategoryState,
			LocalRole: RoleHost,
			ClockSync: &ClockSyncEvent{PingID: 7, RTTUs: 900, OffsetUs: -42, State: "SYNCED"},
		},
		{
			Timestamp: base.Add(3 * time.Millisecond),
			LinkID:    "link-b",
			Direction: DirectionIn,
			Layer:     LayerEnvelope,
			Category:  CategoryMessage,
			LocalRole: RoleHost,
			Envelope:  &EnvelopeEvent{Version: 2, Type: 0x80, Sequence: 5, DataLen: 22},
		},
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	events := sampleEvents(base)
	path := createTestLogFile(t, events)

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got := readAll(t, r)
	if len(got) != len(events) {
		t.Fatalf("read %d events, want %d", len(got), len(events))
	}

	if !got[0].Timestamp.Equal(base) {
		t.Errorf("timestamp = %v, want %v (nanosecond precision)", got[0].Timestamp, base)
	}
	if got[0].Envelope == nil || got[0].Envelope.Sequence != 5 || got[0].Envelope.Type != 0x20 {
		t.Errorf("envelope = %+v", got[0].Envelope)
	}
	if got[1].Error == nil || got[1].Error.Class != "CHECKSUM_ERROR" {
		t.Errorf("error = %+v", got[1].Error)
	}
	if got[2].ClockSync == nil || got[2].ClockSync.OffsetUs != -42 {
		t.Errorf("clock sync = %+v", got[2].ClockSync)
	}
	if got[3].StateChange != nil {
		t.Errorf("unexpected state change %+v", got[3].StateChange)
	}
}

func TestFileLoggerIgnoresLogAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.dlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	logger.Log(Event{LinkID: "late"})

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if got := readAll(t, r); len(got) != 0 {
		t.Fatalf("read %d events from closed logger", len(got))
	}
}

func TestFilteredReader(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, sampleEvents(base))

	in := DirectionIn
	envLayer := LayerEnvelope
	errCat := CategoryError
	heartbeat := uint8(0x80)
	end := base.Add(2 * time.Millisecond)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"link", Filter{LinkID: "link-b"}, 2},
		{"direction", Filter{Direction: &in}, 3},
		{"layer", Filter{Layer: &envLayer}, 2},
		{"category", Filter{Category: &errCat}, 1},
		{"packet type", Filter{PacketType: &heartbeat}, 1},
		{"time end exclusive", Filter{TimeEnd: &end}, 2},
		{"time start inclusive", Filter{TimeStart: &end}, 2},
		{"combined", Filter{LinkID: "link-a", Direction: &in}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tc.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader: %v", err)
			}
			if got := readAll(t, r); len(got) != tc.want {
				t.Fatalf("got %d events, want %d", len(got), tc.want)
			}
		})
	}
}

type recordingLogger struct {
	events []Event
}

func (r *recordingLogger) Log(e Event) { r.events = append(r.events, e) }

func TestMultiLogger(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	m := NewMultiLogger(a, nil, b)
	m.Log(Event{LinkID: "x"})
	m.Log(Event{LinkID: "y"})

	if len(a.events) != 2 || len(b.events) != 2 {
		t.Fatalf("fan-out: a=%d b=%d", len(a.events), len(b.events))
	}
	if a.events[1].LinkID != "y" {
		t.Errorf("order not preserved: %+v", a.events)
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Fatal("OrNoop(nil) should be NoopLogger")
	}
	r := &recordingLogger{}
	if OrNoop(r) != Logger(r) {
		t.Fatal("OrNoop should pass through non-nil loggers")
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	a := NewSlogAdapter(slog.New(h))

	for _, e := range sampleEvents(time.Now()) {
		a.Log(e)
	}
	out := buf.String()
	for _, want := range []string{
		"link_id=link-a",
		"type=SET_STATE",
		"error_class=CHECKSUM_ERROR",
		"sync_state=SYNCED",
		"type=HEARTBEAT",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEnumStrings(t *testing.T) {
	if LayerSync.String() != "SYNC" || Layer(99).String() != "UNKNOWN" {
		t.Error("Layer.String")
	}
	if l, ok := ParseLayer("ENVELOPE"); !ok || l != LayerEnvelope {
		t.Errorf("ParseLayer(ENVELOPE) = %v, %v", l, ok)
	}
	if _, ok := ParseLayer("envelope"); ok {
		t.Error("ParseLayer should be case sensitive")
	}
	if StateEntityClockSync.String() != "CLOCK_SYNC" {
		t.Error("StateEntity.String")
	}
}
