package host

import (
	"context"
	"fmt"
	"time"

	"github.com/devlink-robotics/devlink-go/pkg/causality"
	"github.com/devlink-robotics/devlink-go/pkg/log"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

func (c *Client) receiveLoop(ctx context.Context) error {
	for {
		env, err := c.link.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("host: receive: %w", err)
		}
		if err := c.dispatch(env); err != nil {
			return err
		}
	}
}

// dispatch routes one telemetry envelope. Only transport errors are
// returned.
func (c *Client) dispatch(env wire.Envelope) error {
	recv := c.now()

	var err error
	switch env.Type {
	case wire.TypeHeartbeat:
		var hb wire.Heartbeat
		if hb, err = wire.DecodeHeartbeat(env.Data); err == nil {
			c.onHeartbeat(hb, recv)
		}
	case wire.TypeTimeSyncResponse:
		var p wire.TimeSync
		if p, err = wire.DecodeTimeSync(env.Type, env.Data); err == nil {
			c.onTimeSync(p, env, recv)
		}
	case wire.TypeVersionAck:
		var ack wire.VersionAck
		if ack, err = wire.DecodeVersionAck(env.Data); err == nil {
			if _, aerr := c.link.HandleAck(ack); aerr != nil {
				c.logger.Warn("version switch not completed", "link_id", c.link.ID(), "error", aerr)
			}
		}
	case wire.TypeVersionSwitch:
		var req wire.VersionSwitch
		if req, err = wire.DecodeVersionSwitch(env.Data); err == nil {
			if _, serr := c.link.AnswerSwitch(req, c.nextSeq(), uint64(recv.UnixMicro())); serr != nil {
				return fmt.Errorf("host: version ack: %w", serr)
			}
		}
	case wire.TypeLinkStats:
		var s wire.LinkStats
		if s, err = wire.DecodeLinkStats(env.Data); err == nil {
			c.mu.Lock()
			c.deviceStats, c.hasStats = s, true
			c.mu.Unlock()
			c.handler.LinkStats(s)
		}
	case wire.TypeTouchEvent, wire.TypeButtonEvent:
		var ev wire.InputEvent
		if ev, err = wire.DecodeInputEvent(env.Type, env.Data); err == nil {
			hostUs, synced := c.clock.ToHost(ev.AtUs)
			c.handler.Input(ev, hostUs, synced)
		}
	case wire.TypeDisplayStatus, wire.TypeMotionStatus:
		c.handler.Status(env.Type, env.Data)
	default:
		c.logger.Debug("ignoring packet", "type", env.Type, "seq", env.Sequence)
	}

	if err != nil {
		c.badPayload.Add(1)
		c.link.Counters().Record(err)
		c.logger.Debug("bad payload", "type", env.Type, "seq", env.Sequence, "error", err)
	}
	return nil
}

func (c *Client) onHeartbeat(hb wire.Heartbeat, recv time.Time) {
	c.heartbeats.Add(1)

	c.mu.Lock()
	rebooted := !c.lastBeat.IsZero() && hb.UptimeMs < c.lastUptime
	c.lastUptime = hb.UptimeMs
	c.lastBeat = recv
	c.mu.Unlock()

	if rebooted {
		// The device clock restarted; the old offset is meaningless.
		c.reboots.Add(1)
		c.logger.Warn("device reboot detected", "link_id", c.link.ID(), "uptime_ms", hb.UptimeMs)
		c.clock.Reset()
	}

	lat, ok := c.correlator.Observe(causality.Report{
		LastAppliedSequence: hb.LastAppliedSequence,
		AppliedTimeUs:       hb.AppliedTimeUs,
	}, recv, c.clock)
	if ok {
		c.logger.Debug("command latency",
			"seq", lat.Sequence,
			"total", lat.Total,
			"to_apply", lat.ToApply,
			"apply_to_report", lat.ApplyToReport,
			"synced", lat.Synced)
	}
	c.handler.Heartbeat(hb, lat, ok)
}

func (c *Client) onTimeSync(p wire.TimeSync, env wire.Envelope, recv time.Time) {
	s, err := c.clock.Complete(p.PingID, env.SourceTimeUs, recv)
	if err != nil {
		c.logger.Debug("time sync sample rejected", "ping_id", p.PingID, "error", err)
		return
	}
	snap := c.clock.Snapshot()
	c.link.LogEvent(log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerSync,
		Category:  log.CategoryState,
		ClockSync: &log.ClockSyncEvent{
			PingID:      s.PingID,
			RTTUs:       s.RTTUs,
			OffsetUs:    snap.OffsetUs,
			DriftUsPerS: snap.DriftUsPerS,
			State:       snap.State.String(),
		},
	})
}
