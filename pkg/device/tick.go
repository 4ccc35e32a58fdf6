package device

import (
	"context"
	"time"

	"github.com/devlink-robotics/devlink-go/pkg/failsafe"
	"github.com/devlink-robotics/devlink-go/pkg/handoff"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

func (r *Runtime) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick applies everything pending once. Tick task only.
func (r *Runtime) tick() {
	now := r.now()
	r.tickApplied = r.tickApplied[:0]

	pollInto(r, r.state, now)
	pollInto(r, r.mode, now)
	pollInto(r, r.talking, now)
	pollInto(r, r.flags, now)
	pollInto(r, r.motion, now)
	r.gestures.Apply()
	r.checkFailsafe(now)

	if len(r.tickApplied) > 0 {
		newest := r.tickApplied[0]
		for _, a := range r.tickApplied[1:] {
			if seqAfter(r.link.Version(), a.seq, newest.seq) {
				newest = a
			}
		}
		r.tracker.Applied(newest.seq, newest.at)
	}
	r.ticks.Add(1)
}

// checkFailsafe stops the base when the watchdog trips and reports
// recovery once host traffic resumes. Tick task only.
func (r *Runtime) checkFailsafe(now uint64) {
	if r.watchdog == nil {
		return
	}
	if r.watchdog.Check(now) {
		r.inFailsafe = true
		r.logger.Warn("host silent, stopping motion", "timeout", r.watchdog.Timeout())
		r.consumer.ApplyMotion(handoff.Command[wire.SetMotion]{AppliedUs: now})
		if h, ok := r.consumer.(FailsafeHandler); ok {
			h.Failsafe(true)
		}
		return
	}
	if r.inFailsafe && r.watchdog.State() == failsafe.StateNormal {
		r.inFailsafe = false
		r.logger.Info("host traffic resumed")
		if h, ok := r.consumer.(FailsafeHandler); ok {
			h.Failsafe(false)
		}
	}
}

func pollInto[T any](r *Runtime, l *handoff.Latched[T], now uint64) {
	if cmd, ok := l.Poll(now); ok {
		r.tickApplied = append(r.tickApplied, applied{seq: cmd.Sequence, at: cmd.AppliedUs})
	}
}

// seqAfter reports whether a was issued after b, allowing for wraparound
// at the sequence width of v.
func seqAfter(v wire.Version, a, b uint32) bool {
	if v == wire.V1 {
		return int8(uint8(a)-uint8(b)) > 0
	}
	return int32(a-b) > 0
}
