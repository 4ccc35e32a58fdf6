// Package commands implements the devlink-log CLI commands.
package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/devlink-robotics/devlink-go/pkg/log"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// FilterFlags are the textual filter options shared by view, export and
// filter.
type FilterFlags struct {
	LinkID    string
	Direction string
	Layer     string
	Category  string
	Type      string
	TimeStart string
	TimeEnd   string
}

// Build parses the flags into a log.Filter.
func (ff FilterFlags) Build() (log.Filter, error) {
	f := log.Filter{LinkID: ff.LinkID}

	if ff.Direction != "" {
		d, err := parseDirection(ff.Direction)
		if err != nil {
			return f, err
		}
		f.Direction = &d
	}
	if ff.Layer != "" {
		l, ok := log.ParseLayer(strings.ToUpper(ff.Layer))
		if !ok {
			return f, fmt.Errorf("invalid layer: %s (must be codec, envelope, link or sync)", ff.Layer)
		}
		f.Layer = &l
	}
	if ff.Category != "" {
		c, err := parseCategory(ff.Category)
		if err != nil {
			return f, err
		}
		f.Category = &c
	}
	if ff.Type != "" {
		t, ok := wire.ParsePacketType(strings.ToUpper(ff.Type))
		if !ok {
			return f, fmt.Errorf("invalid packet type: %s", ff.Type)
		}
		raw := uint8(t)
		f.PacketType = &raw
	}
	if ff.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, ff.TimeStart)
		if err != nil {
			return f, fmt.Errorf("invalid time-start format: %w", err)
		}
		f.TimeStart = &t
	}
	if ff.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, ff.TimeEnd)
		if err != nil {
			return f, fmt.Errorf("invalid time-end format: %w", err)
		}
		f.TimeEnd = &t
	}
	return f, nil
}

func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, control, state or error)", s)
	}
}

// eachEvent calls fn for every event in path matching filter.
func eachEvent(path string, filter log.Filter, fn func(log.Event) error) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// RunView prints matching events in human-readable form.
func RunView(path string, filter log.Filter, w io.Writer) error {
	return eachEvent(path, filter, func(e log.Event) error {
		formatEvent(w, e)
		return nil
	})
}

// eventLabel names what an event carries.
func eventLabel(e log.Event) string {
	switch {
	case e.Frame != nil:
		return "Frame"
	case e.Envelope != nil:
		return wire.PacketType(e.Envelope.Type).String()
	case e.StateChange != nil:
		return "State"
	case e.ClockSync != nil:
		return "ClockSync"
	case e.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// formatEvent writes one event: a header line, details, then a blank line.
func formatEvent(w io.Writer, e log.Event) {
	layer := e.Layer.String()
	if e.Category == log.CategoryControl {
		layer = "CTRL"
	}
	fmt.Fprintf(w, "%s [link:%s] %-6s %-3s %s %s\n",
		e.Timestamp.UTC().Format(timeLayout), shortenID(e.LinkID), e.LocalRole, e.Direction, layer, eventLabel(e))

	switch {
	case e.Frame != nil:
		fmt.Fprintf(w, "  Size: %d bytes\n", e.Frame.Size)
		if len(e.Frame.Data) > 0 {
			fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(e.Frame.Data))
			if e.Frame.Truncated {
				fmt.Fprint(w, " (truncated)")
			}
			fmt.Fprintln(w)
		}

	case e.Envelope != nil:
		env := e.Envelope
		fmt.Fprintf(w, "  %s seq=%d data=%d bytes", wire.Version(env.Version), env.Sequence, env.DataLen)
		if env.SourceTimeUs != 0 {
			fmt.Fprintf(w, " ts=%dus", env.SourceTimeUs)
		}
		fmt.Fprintln(w)

	case e.StateChange != nil:
		sc := e.StateChange
		fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
		if sc.OldState != "" {
			fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
		} else {
			fmt.Fprintf(w, "  -> %s\n", sc.NewState)
		}
		if sc.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
		}

	case e.ClockSync != nil:
		cs := e.ClockSync
		fmt.Fprintf(w, "  ping=%d rtt=%s offset=%dus drift=%.2fus/s %s\n",
			cs.PingID, formatDuration(time.Duration(cs.RTTUs)*time.Microsecond), cs.OffsetUs, cs.DriftUsPerS, cs.State)

	case e.Error != nil:
		fmt.Fprintf(w, "  Layer: %s\n", e.Error.Layer)
		if e.Error.Class != "" {
			fmt.Fprintf(w, "  Class: %s\n", e.Error.Class)
		}
		fmt.Fprintf(w, "  Message: %s\n", e.Error.Message)
		if e.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", e.Error.Context)
		}
	}
	fmt.Fprintln(w)
}

func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}
