package main

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/devlink-robotics/devlink-go/pkg/device"
	"github.com/devlink-robotics/devlink-go/pkg/handoff"
	dlog "github.com/devlink-robotics/devlink-go/pkg/log"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

// simClock is a device clock with a fixed offset and rate error.
type simClock struct {
	start    time.Time
	offsetUs float64
	rate     float64
}

func newSimClock(offset time.Duration, driftPPM float64) *simClock {
	return &simClock{
		start:    time.Now(),
		offsetUs: float64(offset.Microseconds()),
		rate:     1 + driftPPM/1e6,
	}
}

// Now returns the device clock in microseconds.
func (c *simClock) Now() uint64 {
	return c.at(time.Since(c.start))
}

func (c *simClock) at(elapsed time.Duration) uint64 {
	us := c.offsetUs + float64(elapsed.Microseconds())*c.rate
	if us < 0 {
		return 0
	}
	return uint64(us)
}

// simulator plays the display and base. It is both the runtime's consumer
// and its telemetry source.
type simulator struct {
	logger     *slog.Logger
	protocol   dlog.Logger
	clock      *simClock
	touchEvery time.Duration

	mu      sync.Mutex
	state   wire.SetState
	mode    wire.SetMode
	talking wire.SetTalking
	flags   wire.SetFlags
	motion  wire.SetMotion
	played  uint32
}

var (
	_ device.Consumer        = (*simulator)(nil)
	_ device.TelemetrySource = (*simulator)(nil)
	_ device.FailsafeHandler = (*simulator)(nil)
)

func (s *simulator) ApplyState(c handoff.Command[wire.SetState]) {
	s.mu.Lock()
	s.state = c.Value
	s.mu.Unlock()
	s.logger.Info("state", "mood", c.Value.Mood, "intensity", c.Value.Intensity, "seq", c.Sequence)
}

func (s *simulator) ApplyMode(c handoff.Command[wire.SetMode]) {
	s.mu.Lock()
	s.mode = c.Value
	s.mu.Unlock()
	s.logger.Info("mode", "mode", c.Value.Mode, "seq", c.Sequence)
}

func (s *simulator) ApplyTalking(c handoff.Command[wire.SetTalking]) {
	s.mu.Lock()
	s.talking = c.Value
	s.mu.Unlock()
	s.logger.Debug("talking", "talking", c.Value.Talking, "energy", c.Value.Energy, "seq", c.Sequence)
}

func (s *simulator) ApplyFlags(c handoff.Command[wire.SetFlags]) {
	s.mu.Lock()
	s.flags = c.Value
	s.mu.Unlock()
	s.logger.Info("flags", "flags", c.Value.Flags, "seq", c.Sequence)
}

func (s *simulator) ApplyMotion(c handoff.Command[wire.SetMotion]) {
	s.mu.Lock()
	s.motion = c.Value
	s.mu.Unlock()
	s.logger.Info("motion", "linear_mm_s", c.Value.LinearMMs, "angular_mrad_s", c.Value.AngularMradS, "seq", c.Sequence)
}

func (s *simulator) PlayGesture(g wire.GestureCommand) {
	s.mu.Lock()
	s.played++
	s.mu.Unlock()
	s.logger.Info("gesture", "gesture", g.Gesture, "param", g.Param)
}

func (s *simulator) Failsafe(active bool) {
	s.mu.Lock()
	s.motion = wire.SetMotion{}
	s.mu.Unlock()
	if active {
		s.logger.Warn("failsafe: base stopped")
		return
	}
	s.logger.Info("failsafe cleared")
}

// Telemetry reports the display and base status.
//
//	DISPLAY_STATUS: mood u8, intensity u8, talking u8, flags u16, gestures played u32
//	MOTION_STATUS:  linear i16, angular i16
func (s *simulator) Telemetry(uint64) []device.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	talking := byte(0)
	if s.talking.Talking {
		talking = 1
	}
	display := []byte{byte(s.state.Mood), s.state.Intensity, talking}
	display = binary.LittleEndian.AppendUint16(display, s.flags.Flags)
	display = binary.LittleEndian.AppendUint32(display, s.played)

	motion := binary.LittleEndian.AppendUint16(nil, uint16(s.motion.LinearMMs))
	motion = binary.LittleEndian.AppendUint16(motion, uint16(s.motion.AngularMradS))

	return []device.Status{
		{Type: wire.TypeDisplayStatus, Data: display},
		{Type: wire.TypeMotionStatus, Data: motion},
	}
}

// touchLoop presses and releases random zones, and the button now and then.
func (s *simulator) touchLoop(ctx context.Context, rt *device.Runtime) {
	ticker := time.NewTicker(s.touchEvery)
	defer ticker.Stop()

	pressed := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-rt.Link().Done():
			return
		case <-ticker.C:
		}
		pressed = !pressed
		if rand.IntN(8) == 0 {
			rt.ReportButton(0, pressed)
			continue
		}
		rt.ReportTouch(uint8(rand.IntN(4)), pressed)
	}
}
