package log

import (
	"time"
)

// Event is one captured protocol event. CBOR encoding uses integer keys.
type Event struct {
	// Timestamp is the host wall clock when the event was captured.
	Timestamp time.Time `cbor:"1,keyasint"`

	// LinkID identifies one open period of a link (UUID).
	LinkID string `cbor:"2,keyasint"`

	Direction Direction `cbor:"3,keyasint"`
	Layer     Layer     `cbor:"4,keyasint"`
	Category  Category  `cbor:"5,keyasint"`
	LocalRole Role      `cbor:"6,keyasint,omitempty"`

	// Port is the transport the link runs over (device path or tcp:// URL).
	Port string `cbor:"7,keyasint,omitempty"`

	// Exactly one of these is set.
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Envelope    *EnvelopeEvent    `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	ClockSync   *ClockSyncEvent   `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction of traffic relative to the capturing side.
type Direction uint8

const (
	DirectionIn  Direction = 0
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer is the protocol layer an event was captured at.
type Layer uint8

const (
	LayerCodec    Layer = 0
	LayerEnvelope Layer = 1
	LayerLink     Layer = 2
	LayerSync     Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerCodec:
		return "CODEC"
	case LayerEnvelope:
		return "ENVELOPE"
	case LayerLink:
		return "LINK"
	case LayerSync:
		return "SYNC"
	default:
		return "UNKNOWN"
	}
}

// ParseLayer returns the layer with the given (case-sensitive) name.
func ParseLayer(s string) (Layer, bool) {
	for l := LayerCodec; l <= LayerSync; l++ {
		if l.String() == s {
			return l, true
		}
	}
	return 0, false
}

// Category classifies an event.
type Category uint8

const (
	CategoryMessage Category = 0
	CategoryControl Category = 1
	CategoryState   Category = 2
	CategoryError   Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role is the capturing side of the link.
type Role uint8

const (
	RoleDevice Role = 0
	RoleHost   Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleDevice:
		return "DEVICE"
	case RoleHost:
		return "HOST"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw bytes at the codec layer.
type FrameEvent struct {
	// Size is the encoded frame size including the delimiter.
	Size int `cbor:"1,keyasint"`

	// Data is the encoded frame, possibly truncated.
	Data []byte `cbor:"2,keyasint,omitempty"`

	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// EnvelopeEvent captures a decoded envelope header.
type EnvelopeEvent struct {
	Version      uint8  `cbor:"1,keyasint"`
	Type         uint8  `cbor:"2,keyasint"`
	Sequence     uint32 `cbor:"3,keyasint"`
	SourceTimeUs uint64 `cbor:"4,keyasint,omitempty"`
	DataLen      int    `cbor:"5,keyasint"`
}

// StateEntity is what changed state.
type StateEntity uint8

const (
	StateEntityLink      StateEntity = 0
	StateEntityVersion   StateEntity = 1
	StateEntityClockSync StateEntity = 2
)

// String returns the entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityLink:
		return "LINK"
	case StateEntityVersion:
		return "VERSION"
	case StateEntityClockSync:
		return "CLOCK_SYNC"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures lifecycle changes.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// ClockSyncEvent captures one accepted clock sync sample.
type ClockSyncEvent struct {
	PingID      uint32  `cbor:"1,keyasint"`
	RTTUs       int64   `cbor:"2,keyasint"`
	OffsetUs    int64   `cbor:"3,keyasint"`
	DriftUsPerS float64 `cbor:"4,keyasint,omitempty"`
	State       string  `cbor:"5,keyasint"`
}

// ErrorEventData captures a discarded frame or a degraded condition.
type ErrorEventData struct {
	Layer Layer `cbor:"1,keyasint"`

	// Class is the error class name (FRAME_ERROR, CHECKSUM_ERROR, ...).
	Class   string `cbor:"2,keyasint"`
	Message string `cbor:"3,keyasint"`
	Context string `cbor:"4,keyasint,omitempty"`
}
