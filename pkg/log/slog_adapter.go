package log

import (
	"context"
	"log/slog"

	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

// SlogAdapter writes protocol events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", Attrs(event)...)
}

// Attrs flattens an event into slog attributes. devlink-log view uses the
// same rendering.
func Attrs(event Event) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("link_id", event.LinkID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Port != "" {
		attrs = append(attrs, slog.String("port", event.Port))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Envelope != nil:
		e := event.Envelope
		attrs = append(attrs,
			slog.String("version", wire.Version(e.Version).String()),
			slog.String("type", wire.PacketType(e.Type).String()),
			slog.Uint64("seq", uint64(e.Sequence)),
			slog.Int("data_len", e.DataLen),
		)
		if e.SourceTimeUs != 0 {
			attrs = append(attrs, slog.Uint64("source_time_us", e.SourceTimeUs))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.ClockSync != nil:
		c := event.ClockSync
		attrs = append(attrs,
			slog.Uint64("ping_id", uint64(c.PingID)),
			slog.Int64("rtt_us", c.RTTUs),
			slog.Int64("offset_us", c.OffsetUs),
			slog.Float64("drift_us_per_s", c.DriftUsPerS),
			slog.String("sync_state", c.State),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_class", event.Error.Class),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}
	return attrs
}

var _ Logger = (*SlogAdapter)(nil)
