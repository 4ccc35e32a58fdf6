package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/devlink-robotics/devlink-go/pkg/codec"
)

// Version selects the envelope layout.
type Version uint8

const (
	// V1 carries a one-byte sequence and no timestamp.
	V1 Version = 1

	// V2 carries a four-byte sequence and the sender's clock in microseconds.
	V2 Version = 2

	// DefaultVersion is the layout every link starts with.
	DefaultVersion = V1
)

// Header sizes per version, excluding the trailing checksum.
const (
	V1HeaderSize = 1 + 1
	V2HeaderSize = 1 + 4 + 8
)

// String returns the version name.
func (v Version) String() string {
	switch v {
	case V1:
		return "V1"
	case V2:
		return "V2"
	default:
		return fmt.Sprintf("V%d?", uint8(v))
	}
}

// Supported reports whether v is a layout this package can build and parse.
func (v Version) Supported() bool {
	return v == V1 || v == V2
}

// HeaderSize returns the header size for v.
func (v Version) HeaderSize() int {
	if v == V2 {
		return V2HeaderSize
	}
	return V1HeaderSize
}

// MinPayloadSize returns the smallest valid decoded payload for v.
func (v Version) MinPayloadSize() int {
	return v.HeaderSize() + codec.ChecksumSize
}

// Envelope errors.
var (
	// ErrLength indicates a payload shorter than the active version requires.
	ErrLength = errors.New("wire: payload too short")

	// ErrUnknownType indicates an undefined packet type byte.
	ErrUnknownType = errors.New("wire: unknown packet type")

	// ErrUnsupportedVersion indicates a version outside V1/V2.
	ErrUnsupportedVersion = errors.New("wire: unsupported envelope version")
)

// Envelope is one parsed packet.
type Envelope struct {
	Version  Version
	Type     PacketType
	Sequence uint32

	// SourceTimeUs is the sender's clock at build time. Always zero for V1.
	SourceTimeUs uint64

	Data []byte
}

// Builder produces frames in the link's active layout.
// Safe for concurrent use; the version can change between builds.
type Builder struct {
	version atomic.Uint32
}

// NewBuilder returns a builder using DefaultVersion.
func NewBuilder() *Builder {
	b := &Builder{}
	b.version.Store(uint32(DefaultVersion))
	return b
}

// Version returns the active layout.
func (b *Builder) Version() Version {
	return Version(b.version.Load())
}

// SetVersion switches the layout used by subsequent builds.
func (b *Builder) SetVersion(v Version) error {
	if !v.Supported() {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	b.version.Store(uint32(v))
	return nil
}

// Build encodes one envelope into a complete frame. In V1 the sequence is
// truncated to its low byte and sourceTimeUs is dropped.
func (b *Builder) Build(t PacketType, seq uint32, sourceTimeUs uint64, data []byte) []byte {
	return BuildVersion(b.Version(), t, seq, sourceTimeUs, data)
}

// BuildVersion encodes one envelope in an explicit layout.
func BuildVersion(v Version, t PacketType, seq uint32, sourceTimeUs uint64, data []byte) []byte {
	body := make([]byte, 0, v.HeaderSize()+len(data)+codec.ChecksumSize)
	body = append(body, byte(t))
	if v == V2 {
		body = binary.LittleEndian.AppendUint32(body, seq)
		body = binary.LittleEndian.AppendUint64(body, sourceTimeUs)
	} else {
		body = append(body, byte(seq))
	}
	body = append(body, data...)
	return codec.Encode(codec.AppendChecksum(body))
}

// Parser extracts envelopes from frames in the link's active layout.
// Safe for concurrent use.
type Parser struct {
	version atomic.Uint32
}

// NewParser returns a parser using DefaultVersion.
func NewParser() *Parser {
	p := &Parser{}
	p.version.Store(uint32(DefaultVersion))
	return p
}

// Version returns the active layout.
func (p *Parser) Version() Version {
	return Version(p.version.Load())
}

// SetVersion switches the layout expected by subsequent parses.
func (p *Parser) SetVersion(v Version) error {
	if !v.Supported() {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	p.version.Store(uint32(v))
	return nil
}

// Parse decodes frame in the active layout. On any error the returned
// envelope is empty: codec.ErrFrame for bad stuffing, ErrLength for short
// payloads, codec.ErrChecksum for a CRC mismatch, ErrUnknownType for an
// undefined type byte.
func (p *Parser) Parse(frame []byte) (Envelope, error) {
	return ParseVersion(p.Version(), frame)
}

// ParseVersion decodes frame in an explicit layout.
func ParseVersion(v Version, frame []byte) (Envelope, error) {
	payload, err := codec.Decode(frame)
	if err != nil {
		return Envelope{}, err
	}
	if len(payload) < v.MinPayloadSize() {
		return Envelope{}, fmt.Errorf("%w: %d bytes, %s needs %d", ErrLength, len(payload), v, v.MinPayloadSize())
	}
	body, err := codec.VerifyChecksum(payload)
	if err != nil {
		return Envelope{}, err
	}

	env := Envelope{Version: v, Type: PacketType(body[0])}
	if v == V2 {
		env.Sequence = binary.LittleEndian.Uint32(body[1:5])
		env.SourceTimeUs = binary.LittleEndian.Uint64(body[5:13])
	} else {
		env.Sequence = uint32(body[1])
	}
	if !env.Type.Known() {
		return Envelope{}, fmt.Errorf("%w: %s", ErrUnknownType, env.Type)
	}
	env.Data = append([]byte(nil), body[v.HeaderSize():]...)
	return env, nil
}

// Sequencer hands out monotonically increasing sequence numbers for one sender.
type Sequencer struct {
	n atomic.Uint32
}

// Next returns the next sequence number, starting at 1.
func (s *Sequencer) Next() uint32 {
	return s.n.Add(1)
}

// Last returns the most recently issued sequence number.
func (s *Sequencer) Last() uint32 {
	return s.n.Load()
}
