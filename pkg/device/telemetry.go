package device

import (
	"context"
	"fmt"
	"time"

	"github.com/devlink-robotics/devlink-go/pkg/failsafe"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

func (r *Runtime) telemetryLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TelemetryInterval)
	defer ticker.Stop()

	var n int
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := r.expireSwitch(time.Now()); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("device: version switch: %w", err)
		}

		n++
		if err := r.sendTelemetry(n%r.cfg.StatsEvery == 0); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("device: telemetry: %w", err)
		}
	}
}

// sendTelemetry sends one telemetry tick's worth of packets.
func (r *Runtime) sendTelemetry(withStats bool) error {
	now := r.now()
	if err := r.sendHeartbeat(now); err != nil {
		return err
	}

	for _, mb := range []interface {
		Claim() (wire.InputEvent, bool)
	}{r.touch, r.button} {
		if ev, ok := mb.Claim(); ok {
			if err := r.send(ev, now); err != nil {
				return err
			}
		}
	}

	if r.source != nil {
		for _, st := range r.source.Telemetry(now) {
			if st.Type.Range().IsCommand() || st.Type.Range() == wire.RangeNone {
				r.logger.Warn("telemetry source returned non-telemetry type", "type", st.Type)
				continue
			}
			if err := r.sendData(st.Type, st.Data, now); err != nil {
				return err
			}
		}
	}

	if withStats {
		if err := r.send(r.linkStats(), now); err != nil {
			return err
		}
	}
	r.telemetry.Add(1)
	return nil
}

func (r *Runtime) sendHeartbeat(now uint64) error {
	rep := r.tracker.Report()
	hb := wire.Heartbeat{
		LastAppliedSequence: rep.LastAppliedSequence,
		AppliedTimeUs:       rep.AppliedTimeUs,
		UptimeMs:            uint32((now - r.bootUs) / 1000),
	}
	if cmd, ok := r.mode.Applied(); ok {
		hb.Mode = cmd.Value.Mode
	}
	if cmd, ok := r.state.Applied(); ok {
		hb.Mood = cmd.Value.Mood
	}
	if r.failsafeState() == failsafe.StateFailsafe {
		hb.Mode = wire.ModeSafe
	}
	return r.send(hb, now)
}
