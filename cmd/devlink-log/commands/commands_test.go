package commands

import (
	"bufio"
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlink-robotics/devlink-go/pkg/log"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

const linkID = "abc12345-6789-0123-4567-890abcdef012"

func writeCapture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.dlog")
	fl, err := log.NewFileLogger(path)
	require.NoError(t, err)

	base := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	at := func(ms int) time.Time { return base.Add(time.Duration(ms) * time.Millisecond) }

	events := []log.Event{
		{
			Timestamp: at(0), LinkID: linkID, Direction: log.DirectionOut, Layer: log.LayerEnvelope,
			Category: log.CategoryControl, LocalRole: log.RoleHost, Port: "tcp://bench:7700",
			Envelope: &log.EnvelopeEvent{Version: 1, Type: uint8(wire.TypeVersionSwitch), Sequence: 1, DataLen: 1},
		},
		{
			Timestamp: at(5), LinkID: linkID, Direction: log.DirectionIn, Layer: log.LayerLink,
			Category: log.CategoryState, LocalRole: log.RoleHost,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityVersion, OldState: "V1", NewState: "V2", Reason: "peer ack"},
		},
		{
			Timestamp: at(10), LinkID: linkID, Direction: log.DirectionOut, Layer: log.LayerEnvelope,
			Category: log.CategoryMessage, LocalRole: log.RoleHost,
			Envelope: &log.EnvelopeEvent{Version: 2, Type: uint8(wire.TypeSetState), Sequence: 2, SourceTimeUs: 1_000_000, DataLen: 2},
		},
		{
			Timestamp: at(20), LinkID: linkID, Direction: log.DirectionIn, Layer: log.LayerEnvelope,
			Category: log.CategoryError, LocalRole: log.RoleHost,
			Error: &log.ErrorEventData{Layer: log.LayerEnvelope, Class: "CHECKSUM_ERROR", Message: "crc mismatch"},
		},
		{
			Timestamp: at(30), LinkID: linkID, Direction: log.DirectionIn, Layer: log.LayerSync,
			Category: log.CategoryState, LocalRole: log.RoleHost,
			ClockSync: &log.ClockSyncEvent{PingID: 7, RTTUs: 850, OffsetUs: 3_000_120, State: "SYNCED"},
		},
	}
	for _, e := range events {
		fl.Log(e)
	}
	require.NoError(t, fl.Close())
	return path
}

func TestView(t *testing.T) {
	path := writeCapture(t)

	var buf bytes.Buffer
	require.NoError(t, RunView(path, log.Filter{}, &buf))
	out := buf.String()

	assert.Contains(t, out, "2026-01-28T10:15:32.000000Z [link:abc12345] HOST")
	assert.Contains(t, out, "CTRL VERSION_SWITCH")
	assert.Contains(t, out, "V2 seq=2 data=2 bytes ts=1000000us")
	assert.Contains(t, out, "V1 -> V2")
	assert.Contains(t, out, "Class: CHECKSUM_ERROR")
	assert.Contains(t, out, "rtt=850.000us offset=3000120us")
}

func TestViewFiltered(t *testing.T) {
	path := writeCapture(t)

	f, err := FilterFlags{Type: "set_state"}.Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RunView(path, f, &buf))
	assert.Contains(t, buf.String(), "SET_STATE")
	assert.NotContains(t, buf.String(), "VERSION_SWITCH")
}

func TestFilterFlagsBuild(t *testing.T) {
	f, err := FilterFlags{
		Direction: "in",
		Layer:     "sync",
		Category:  "state",
		TimeStart: "2026-01-28T10:15:32Z",
	}.Build()
	require.NoError(t, err)
	require.NotNil(t, f.Direction)
	assert.Equal(t, log.DirectionIn, *f.Direction)
	assert.Equal(t, log.LayerSync, *f.Layer)
	assert.Equal(t, log.CategoryState, *f.Category)
	assert.NotNil(t, f.TimeStart)

	for _, bad := range []FilterFlags{
		{Direction: "sideways"},
		{Layer: "wire"},
		{Category: "snapshot"},
		{Type: "NOPE"},
		{TimeEnd: "yesterday"},
	} {
		_, err := bad.Build()
		assert.Error(t, err, "%+v", bad)
	}
}

func TestExportJSONL(t *testing.T) {
	path := writeCapture(t)

	var buf bytes.Buffer
	require.NoError(t, export(path, log.Filter{}, "jsonl", &buf))

	var lines []map[string]any
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var obj map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &obj))
		lines = append(lines, obj)
	}
	require.Len(t, lines, 5)
	assert.Equal(t, "VERSION_SWITCH", lines[0]["type"])
	assert.Equal(t, "HOST", lines[0]["role"])
	assert.Equal(t, "CHECKSUM_ERROR", lines[3]["error_class"])
}

func TestExportCSV(t *testing.T) {
	path := writeCapture(t)

	var buf bytes.Buffer
	require.NoError(t, export(path, log.Filter{}, "csv", &buf))
	rows := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, rows, 6)
	assert.True(t, strings.HasPrefix(rows[0], "timestamp,link_id"))
	assert.Contains(t, rows[3], "SET_STATE,2,1000000")

	assert.Error(t, export(path, log.Filter{}, "xml", &buf))
}

func TestFilterWritesCapture(t *testing.T) {
	path := writeCapture(t)
	out := filepath.Join(t.TempDir(), "errors.dlog")

	cat := log.CategoryError
	var msg bytes.Buffer
	require.NoError(t, RunFilter(path, log.Filter{Category: &cat}, out, &msg))
	assert.Contains(t, msg.String(), "Filtered 1 events")

	var view bytes.Buffer
	require.NoError(t, RunView(out, log.Filter{}, &view))
	assert.Contains(t, view.String(), "crc mismatch")
	assert.NotContains(t, view.String(), "SET_STATE")
}

func TestStats(t *testing.T) {
	path := writeCapture(t)

	s, err := Collect(path)
	require.NoError(t, err)
	assert.Equal(t, 5, s.TotalEvents)
	assert.Equal(t, 1, s.ByType[wire.TypeSetState])
	assert.Equal(t, 1, s.ErrorsBy["CHECKSUM_ERROR"])
	require.Contains(t, s.Links, linkID)
	ls := s.Links[linkID]
	assert.Equal(t, []string{"V2"}, ls.Versions)
	require.NotNil(t, ls.LastSync)
	assert.Equal(t, int64(3_000_120), ls.LastSync.OffsetUs)
	assert.Equal(t, "tcp://bench:7700", ls.Port)

	var buf bytes.Buffer
	s.Print(&buf)
	assert.Contains(t, buf.String(), "Events:   5")
	assert.Contains(t, buf.String(), "clock: SYNCED offset=3000120us")
}
