package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/devlink-robotics/devlink-go/pkg/log"
)

// RunExport writes matching events as JSON lines or CSV.
func RunExport(path string, filter log.Filter, format, output string) error {
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return export(path, filter, format, w)
}

func export(path string, filter log.Filter, format string, w io.Writer) error {
	switch format {
	case "jsonl":
		return exportJSONL(path, filter, w)
	case "csv":
		return exportCSV(path, filter, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

// exportJSONL writes one flat object per event, keyed like the slog output.
func exportJSONL(path string, filter log.Filter, w io.Writer) error {
	enc := json.NewEncoder(w)
	return eachEvent(path, filter, func(e log.Event) error {
		obj := map[string]any{"time": e.Timestamp.UTC().Format(timeLayout), "role": e.LocalRole.String()}
		for _, a := range log.Attrs(e) {
			obj[a.Key] = a.Value.Any()
		}
		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

func exportCSV(path string, filter log.Filter, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "link_id", "role", "direction", "layer", "category", "type", "seq", "source_time_us", "detail"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	return eachEvent(path, filter, func(e log.Event) error {
		var seq, ts, detail string
		switch {
		case e.Envelope != nil:
			seq = strconv.FormatUint(uint64(e.Envelope.Sequence), 10)
			if e.Envelope.SourceTimeUs != 0 {
				ts = strconv.FormatUint(e.Envelope.SourceTimeUs, 10)
			}
		case e.StateChange != nil:
			detail = e.StateChange.OldState + " -> " + e.StateChange.NewState
		case e.ClockSync != nil:
			detail = "offset_us=" + strconv.FormatInt(e.ClockSync.OffsetUs, 10)
		case e.Error != nil:
			detail = e.Error.Message
		}
		row := []string{
			e.Timestamp.UTC().Format(timeLayout),
			e.LinkID,
			e.LocalRole.String(),
			e.Direction.String(),
			e.Layer.String(),
			e.Category.String(),
			eventLabel(e),
			seq,
			ts,
			detail,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
}
