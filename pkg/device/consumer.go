package device

import (
	"github.com/devlink-robotics/devlink-go/pkg/handoff"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

// Consumer applies commands. The tick task calls it, at most once per
// channel per tick, and never from two goroutines at once.
type Consumer interface {
	ApplyState(handoff.Command[wire.SetState])
	ApplyMode(handoff.Command[wire.SetMode])
	ApplyTalking(handoff.Command[wire.SetTalking])
	ApplyFlags(handoff.Command[wire.SetFlags])
	ApplyMotion(handoff.Command[wire.SetMotion])

	// PlayGesture is called once per gesture, in arrival order.
	PlayGesture(wire.GestureCommand)
}

// FailsafeHandler is implemented by consumers that want to know when the
// link watchdog trips and recovers. Motion is stopped either way; the call
// comes from the tick task.
type FailsafeHandler interface {
	Failsafe(active bool)
}

// BaseConsumer ignores everything. Embed it to implement part of Consumer.
type BaseConsumer struct{}

func (BaseConsumer) ApplyState(handoff.Command[wire.SetState])     {}
func (BaseConsumer) ApplyMode(handoff.Command[wire.SetMode])       {}
func (BaseConsumer) ApplyTalking(handoff.Command[wire.SetTalking]) {}
func (BaseConsumer) ApplyFlags(handoff.Command[wire.SetFlags])     {}
func (BaseConsumer) ApplyMotion(handoff.Command[wire.SetMotion])   {}
func (BaseConsumer) PlayGesture(wire.GestureCommand)               {}

var _ Consumer = BaseConsumer{}

// Status is one subsystem status payload for the current telemetry tick.
type Status struct {
	// Type must be in a telemetry range (DISPLAY_STATUS, MOTION_STATUS).
	Type wire.PacketType
	Data []byte
}

// TelemetrySource supplies the current state snapshot once per telemetry
// tick.
type TelemetrySource interface {
	Telemetry(nowUs uint64) []Status
}

// TelemetryFunc adapts a function to TelemetrySource.
type TelemetryFunc func(nowUs uint64) []Status

// Telemetry calls f.
func (f TelemetryFunc) Telemetry(nowUs uint64) []Status { return f(nowUs) }
