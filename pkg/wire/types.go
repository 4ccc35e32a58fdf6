package wire

import (
	"fmt"
	"strconv"
)

// PacketType is the first byte of every envelope.
type PacketType uint8

// Shared control, host to device (0x00-0x0F).
const (
	TypeTimeSyncRequest PacketType = 0x01
	TypeVersionSwitch   PacketType = 0x02
	TypeStatusRequest   PacketType = 0x03
)

// Shared telemetry, device to host (0x80-0x8F).
const (
	TypeHeartbeat        PacketType = 0x80
	TypeTimeSyncResponse PacketType = 0x81
	TypeVersionAck       PacketType = 0x82
	TypeLinkStats        PacketType = 0x83
)

// Display subsystem (0x20-0x2F commands, 0x90-0x9F telemetry).
const (
	TypeSetState   PacketType = 0x20
	TypeSetMode    PacketType = 0x21
	TypeSetTalking PacketType = 0x22
	TypeSetFlags   PacketType = 0x23
	TypeGesture    PacketType = 0x24

	TypeTouchEvent    PacketType = 0x90
	TypeDisplayStatus PacketType = 0x91
)

// Motion subsystem (0x30-0x3F commands, 0xA0-0xAF telemetry).
const (
	TypeSetMotion PacketType = 0x30

	TypeButtonEvent  PacketType = 0xA0
	TypeMotionStatus PacketType = 0xA1
)

// telemetryOffset maps a subsystem command range onto its telemetry range.
const telemetryOffset = 0x70

// Range identifies the partition a packet type belongs to.
type Range uint8

const (
	RangeNone Range = iota
	RangeControl
	RangeTelemetry
	RangeDisplayCommand
	RangeDisplayTelemetry
	RangeMotionCommand
	RangeMotionTelemetry
)

// String returns the range name.
func (r Range) String() string {
	switch r {
	case RangeControl:
		return "CONTROL"
	case RangeTelemetry:
		return "TELEMETRY"
	case RangeDisplayCommand:
		return "DISPLAY_COMMAND"
	case RangeDisplayTelemetry:
		return "DISPLAY_TELEMETRY"
	case RangeMotionCommand:
		return "MOTION_COMMAND"
	case RangeMotionTelemetry:
		return "MOTION_TELEMETRY"
	default:
		return "NONE"
	}
}

// IsCommand reports whether the range carries host-to-device traffic.
func (r Range) IsCommand() bool {
	return r == RangeControl || r == RangeDisplayCommand || r == RangeMotionCommand
}

// Telemetry returns the telemetry range paired with a subsystem command range.
func (r Range) Telemetry() Range {
	switch r {
	case RangeControl:
		return RangeTelemetry
	case RangeDisplayCommand:
		return RangeDisplayTelemetry
	case RangeMotionCommand:
		return RangeMotionTelemetry
	default:
		return RangeNone
	}
}

// Range returns the partition t falls into, by the high nibble.
func (t PacketType) Range() Range {
	switch t & 0xF0 {
	case 0x00:
		return RangeControl
	case 0x80:
		return RangeTelemetry
	case 0x20:
		return RangeDisplayCommand
	case 0x20 + telemetryOffset:
		return RangeDisplayTelemetry
	case 0x30:
		return RangeMotionCommand
	case 0x30 + telemetryOffset:
		return RangeMotionTelemetry
	default:
		return RangeNone
	}
}

// Known reports whether t is a defined packet type.
func (t PacketType) Known() bool {
	_, ok := typeNames[t]
	return ok
}

var typeNames = map[PacketType]string{
	TypeTimeSyncRequest:  "TIME_SYNC_REQUEST",
	TypeVersionSwitch:    "VERSION_SWITCH",
	TypeStatusRequest:    "STATUS_REQUEST",
	TypeHeartbeat:        "HEARTBEAT",
	TypeTimeSyncResponse: "TIME_SYNC_RESPONSE",
	TypeVersionAck:       "VERSION_ACK",
	TypeLinkStats:        "LINK_STATS",
	TypeSetState:         "SET_STATE",
	TypeSetMode:          "SET_MODE",
	TypeSetTalking:       "SET_TALKING",
	TypeSetFlags:         "SET_FLAGS",
	TypeGesture:          "GESTURE",
	TypeTouchEvent:       "TOUCH_EVENT",
	TypeDisplayStatus:    "DISPLAY_STATUS",
	TypeSetMotion:        "SET_MOTION",
	TypeButtonEvent:      "BUTTON_EVENT",
	TypeMotionStatus:     "MOTION_STATUS",
}

// String returns the packet type name, or its hex value if undefined.
func (t PacketType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", uint8(t))
}

// ParsePacketType accepts a type name (HEARTBEAT) or a numeric value (0x80).
func ParsePacketType(s string) (PacketType, bool) {
	for t, name := range typeNames {
		if name == s {
			return t, true
		}
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, false
	}
	return PacketType(n), true
}
