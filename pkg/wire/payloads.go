package wire

import (
	"encoding/binary"
	"fmt"
)

// Payload is a typed packet body.
type Payload interface {
	Type() PacketType
	Encode() []byte
}

func checkSize(t PacketType, data []byte, want int) error {
	if len(data) != want {
		return fmt.Errorf("%w: %s data is %d bytes, want %d", ErrLength, t, len(data), want)
	}
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// SetState sets the rendered mood.
type SetState struct {
	Mood      Mood
	Intensity uint8
}

func (SetState) Type() PacketType { return TypeSetState }

func (p SetState) Encode() []byte { return []byte{byte(p.Mood), p.Intensity} }

// DecodeSetState parses SET_STATE data.
func DecodeSetState(data []byte) (SetState, error) {
	if err := checkSize(TypeSetState, data, 2); err != nil {
		return SetState{}, err
	}
	return SetState{Mood: Mood(data[0]), Intensity: data[1]}, nil
}

// SetMode sets the operating mode.
type SetMode struct {
	Mode Mode
}

func (SetMode) Type() PacketType { return TypeSetMode }

func (p SetMode) Encode() []byte { return []byte{byte(p.Mode)} }

// DecodeSetMode parses SET_MODE data.
func DecodeSetMode(data []byte) (SetMode, error) {
	if err := checkSize(TypeSetMode, data, 1); err != nil {
		return SetMode{}, err
	}
	return SetMode{Mode: Mode(data[0])}, nil
}

// SetTalking drives the mouth while speech audio plays.
type SetTalking struct {
	Talking bool
	Energy  uint8
}

func (SetTalking) Type() PacketType { return TypeSetTalking }

func (p SetTalking) Encode() []byte { return []byte{boolByte(p.Talking), p.Energy} }

// DecodeSetTalking parses SET_TALKING data.
func DecodeSetTalking(data []byte) (SetTalking, error) {
	if err := checkSize(TypeSetTalking, data, 2); err != nil {
		return SetTalking{}, err
	}
	return SetTalking{Talking: data[0] != 0, Energy: data[1]}, nil
}

// SetFlags replaces the feature flag bitmask.
type SetFlags struct {
	Flags uint16
}

func (SetFlags) Type() PacketType { return TypeSetFlags }

func (p SetFlags) Encode() []byte { return binary.LittleEndian.AppendUint16(nil, p.Flags) }

// DecodeSetFlags parses SET_FLAGS data.
func DecodeSetFlags(data []byte) (SetFlags, error) {
	if err := checkSize(TypeSetFlags, data, 2); err != nil {
		return SetFlags{}, err
	}
	return SetFlags{Flags: binary.LittleEndian.Uint16(data)}, nil
}

// GestureCommand fires one discrete gesture.
type GestureCommand struct {
	Gesture Gesture
	Param   uint8
}

func (GestureCommand) Type() PacketType { return TypeGesture }

func (p GestureCommand) Encode() []byte { return []byte{byte(p.Gesture), p.Param} }

// DecodeGesture parses GESTURE data.
func DecodeGesture(data []byte) (GestureCommand, error) {
	if err := checkSize(TypeGesture, data, 2); err != nil {
		return GestureCommand{}, err
	}
	return GestureCommand{Gesture: Gesture(data[0]), Param: data[1]}, nil
}

// SetMotion sets the base velocity targets.
type SetMotion struct {
	LinearMMs    int16
	AngularMradS int16
}

func (SetMotion) Type() PacketType { return TypeSetMotion }

func (p SetMotion) Encode() []byte {
	b := binary.LittleEndian.AppendUint16(nil, uint16(p.LinearMMs))
	return binary.LittleEndian.AppendUint16(b, uint16(p.AngularMradS))
}

// DecodeSetMotion parses SET_MOTION data.
func DecodeSetMotion(data []byte) (SetMotion, error) {
	if err := checkSize(TypeSetMotion, data, 4); err != nil {
		return SetMotion{}, err
	}
	return SetMotion{
		LinearMMs:    int16(binary.LittleEndian.Uint16(data[0:2])),
		AngularMradS: int16(binary.LittleEndian.Uint16(data[2:4])),
	}, nil
}

// TimeSync is the body of both TIME_SYNC_REQUEST and TIME_SYNC_RESPONSE.
// The response echoes the request's ping id; the device clock travels in
// the envelope's SourceTimeUs.
type TimeSync struct {
	PingID   uint32
	Response bool
}

func (p TimeSync) Type() PacketType {
	if p.Response {
		return TypeTimeSyncResponse
	}
	return TypeTimeSyncRequest
}

func (p TimeSync) Encode() []byte { return binary.LittleEndian.AppendUint32(nil, p.PingID) }

// DecodeTimeSync parses TIME_SYNC_REQUEST or TIME_SYNC_RESPONSE data.
func DecodeTimeSync(t PacketType, data []byte) (TimeSync, error) {
	if err := checkSize(t, data, 4); err != nil {
		return TimeSync{}, err
	}
	return TimeSync{PingID: binary.LittleEndian.Uint32(data), Response: t == TypeTimeSyncResponse}, nil
}

// VersionSwitch asks the peer to move to another envelope layout.
type VersionSwitch struct {
	Version Version
}

func (VersionSwitch) Type() PacketType { return TypeVersionSwitch }

func (p VersionSwitch) Encode() []byte { return []byte{byte(p.Version)} }

// DecodeVersionSwitch parses VERSION_SWITCH data.
func DecodeVersionSwitch(data []byte) (VersionSwitch, error) {
	if err := checkSize(TypeVersionSwitch, data, 1); err != nil {
		return VersionSwitch{}, err
	}
	return VersionSwitch{Version: Version(data[0])}, nil
}

// VersionAck answers a VersionSwitch.
type VersionAck struct {
	Version  Version
	Accepted bool
}

func (VersionAck) Type() PacketType { return TypeVersionAck }

func (p VersionAck) Encode() []byte { return []byte{byte(p.Version), boolByte(p.Accepted)} }

// DecodeVersionAck parses VERSION_ACK data.
func DecodeVersionAck(data []byte) (VersionAck, error) {
	if err := checkSize(TypeVersionAck, data, 2); err != nil {
		return VersionAck{}, err
	}
	return VersionAck{Version: Version(data[0]), Accepted: data[1] != 0}, nil
}

// StatusRequest asks for an immediate heartbeat.
type StatusRequest struct{}

func (StatusRequest) Type() PacketType { return TypeStatusRequest }

func (StatusRequest) Encode() []byte { return nil }

// Heartbeat is the periodic device status. LastAppliedSequence and
// AppliedTimeUs let the host correlate its commands with their application.
type Heartbeat struct {
	LastAppliedSequence uint32
	AppliedTimeUs       uint64
	UptimeMs            uint32
	Mode                Mode
	Mood                Mood
}

const heartbeatSize = 4 + 8 + 4 + 1 + 1

func (Heartbeat) Type() PacketType { return TypeHeartbeat }

func (p Heartbeat) Encode() []byte {
	b := make([]byte, 0, heartbeatSize)
	b = binary.LittleEndian.AppendUint32(b, p.LastAppliedSequence)
	b = binary.LittleEndian.AppendUint64(b, p.AppliedTimeUs)
	b = binary.LittleEndian.AppendUint32(b, p.UptimeMs)
	return append(b, byte(p.Mode), byte(p.Mood))
}

// DecodeHeartbeat parses HEARTBEAT data.
func DecodeHeartbeat(data []byte) (Heartbeat, error) {
	if err := checkSize(TypeHeartbeat, data, heartbeatSize); err != nil {
		return Heartbeat{}, err
	}
	return Heartbeat{
		LastAppliedSequence: binary.LittleEndian.Uint32(data[0:4]),
		AppliedTimeUs:       binary.LittleEndian.Uint64(data[4:12]),
		UptimeMs:            binary.LittleEndian.Uint32(data[12:16]),
		Mode:                Mode(data[16]),
		Mood:                Mood(data[17]),
	}, nil
}

// LinkStats reports the device's per-class error counters.
type LinkStats struct {
	FrameErrors       uint32
	ChecksumErrors    uint32
	LengthErrors      uint32
	UnknownTypes      uint32
	QueueDrops        uint32
	MailboxOverwrites uint32
}

const linkStatsSize = 6 * 4

func (LinkStats) Type() PacketType { return TypeLinkStats }

func (p LinkStats) Encode() []byte {
	b := make([]byte, 0, linkStatsSize)
	for _, v := range []uint32{p.FrameErrors, p.ChecksumErrors, p.LengthErrors, p.UnknownTypes, p.QueueDrops, p.MailboxOverwrites} {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	return b
}

// DecodeLinkStats parses LINK_STATS data.
func DecodeLinkStats(data []byte) (LinkStats, error) {
	if err := checkSize(TypeLinkStats, data, linkStatsSize); err != nil {
		return LinkStats{}, err
	}
	u := func(i int) uint32 { return binary.LittleEndian.Uint32(data[i*4:]) }
	return LinkStats{
		FrameErrors:       u(0),
		ChecksumErrors:    u(1),
		LengthErrors:      u(2),
		UnknownTypes:      u(3),
		QueueDrops:        u(4),
		MailboxOverwrites: u(5),
	}, nil
}

// InputEvent is a touch or button transition sampled on the device.
type InputEvent struct {
	// Button selects BUTTON_EVENT; otherwise the event is a TOUCH_EVENT.
	Button bool

	// Source is the touch zone or button index.
	Source  uint8
	Pressed bool

	// AtUs is the device clock when the transition was sampled.
	AtUs uint64
}

const inputEventSize = 1 + 1 + 8

func (p InputEvent) Type() PacketType {
	if p.Button {
		return TypeButtonEvent
	}
	return TypeTouchEvent
}

func (p InputEvent) Encode() []byte {
	b := []byte{p.Source, boolByte(p.Pressed)}
	return binary.LittleEndian.AppendUint64(b, p.AtUs)
}

// DecodeInputEvent parses TOUCH_EVENT or BUTTON_EVENT data.
func DecodeInputEvent(t PacketType, data []byte) (InputEvent, error) {
	if err := checkSize(t, data, inputEventSize); err != nil {
		return InputEvent{}, err
	}
	return InputEvent{
		Button:  t == TypeButtonEvent,
		Source:  data[0],
		Pressed: data[1] != 0,
		AtUs:    binary.LittleEndian.Uint64(data[2:10]),
	}, nil
}
