package main

import (
	"log/slog"

	"github.com/devlink-robotics/devlink-go/pkg/causality"
	"github.com/devlink-robotics/devlink-go/pkg/host"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

// printHandler logs telemetry.
type printHandler struct {
	host.BaseHandler
	logger *slog.Logger
}

func (h *printHandler) Heartbeat(hb wire.Heartbeat, lat causality.Latency, ok bool) {
	if !ok {
		h.logger.Debug("heartbeat", "mode", hb.Mode, "mood", hb.Mood, "uptime_ms", hb.UptimeMs)
		return
	}
	attrs := []any{"seq", lat.Sequence, "total", lat.Total}
	if lat.Synced {
		attrs = append(attrs, "to_apply", lat.ToApply, "apply_to_report", lat.ApplyToReport)
	}
	h.logger.Info("command applied", attrs...)
}

func (h *printHandler) Input(ev wire.InputEvent, hostUs int64, synced bool) {
	attrs := []any{"type", ev.Type(), "source", ev.Source, "pressed", ev.Pressed, "device_us", ev.AtUs}
	if synced {
		attrs = append(attrs, "host_us", hostUs)
	}
	h.logger.Info("input", attrs...)
}

func (h *printHandler) LinkStats(s wire.LinkStats) {
	if s != (wire.LinkStats{}) {
		h.logger.Debug("device link stats",
			"frame", s.FrameErrors, "checksum", s.ChecksumErrors, "length", s.LengthErrors,
			"unknown", s.UnknownTypes, "queue_drops", s.QueueDrops, "overwrites", s.MailboxOverwrites)
	}
}

func (h *printHandler) Status(t wire.PacketType, data []byte) {
	h.logger.Debug("status", "type", t, "len", len(data))
}
