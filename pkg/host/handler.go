package host

import (
	"github.com/devlink-robotics/devlink-go/pkg/causality"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

// Handler receives telemetry. Methods are called from the client's
// receive goroutine and must not block.
type Handler interface {
	// Heartbeat reports a device heartbeat. ok is true when the heartbeat
	// acknowledged a command this client sent and lat holds its breakdown.
	Heartbeat(hb wire.Heartbeat, lat causality.Latency, ok bool)

	// Input reports a touch or button transition. hostUs is the event time
	// on the host clock when synced is true.
	Input(ev wire.InputEvent, hostUs int64, synced bool)

	// LinkStats reports the device's error counters.
	LinkStats(wire.LinkStats)

	// Status reports a subsystem status payload (DISPLAY_STATUS, MOTION_STATUS).
	Status(t wire.PacketType, data []byte)
}

// BaseHandler ignores everything. Embed it to implement part of Handler.
type BaseHandler struct{}

func (BaseHandler) Heartbeat(wire.Heartbeat, causality.Latency, bool) {}
func (BaseHandler) Input(wire.InputEvent, int64, bool)                {}
func (BaseHandler) LinkStats(wire.LinkStats)                          {}
func (BaseHandler) Status(wire.PacketType, []byte)                    {}

var _ Handler = BaseHandler{}
