package link

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devlink-robotics/devlink-go/pkg/log"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

// ErrClosed is returned by Send and Receive after Close.
var ErrClosed = errors.New("link: closed")

// Options configures a Link. The zero value is usable.
type Options struct {
	// Role is the local side, recorded on protocol events.
	Role log.Role

	// Port names the transport (device path or tcp:// address).
	Port string

	// MaxFrameSize bounds incoming frames. Zero selects DefaultMaxFrameSize.
	MaxFrameSize int

	// ProtocolLogger receives protocol events. Nil disables capture.
	ProtocolLogger log.Logger

	// CaptureFrames adds codec-layer frame events. Envelope and error
	// events are always captured when ProtocolLogger is set.
	CaptureFrames bool

	// Logger is the optional operational logger. If nil, logging is disabled.
	Logger *slog.Logger
}

// Link carries envelopes over one open port.
type Link struct {
	id   string
	opts Options
	rwc  io.ReadWriteCloser

	reader *FrameReader
	writer *FrameWriter

	builder    *wire.Builder
	parser     *wire.Parser
	negotiator *wire.Negotiator

	counters Counters
	protocol log.Logger

	// sendMu orders frames with version changes.
	sendMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps rwc. The link starts in wire.DefaultVersion.
func New(rwc io.ReadWriteCloser, opts Options) *Link {
	b := wire.NewBuilder()
	p := wire.NewParser()
	return &Link{
		id:         uuid.New().String(),
		opts:       opts,
		rwc:        rwc,
		reader:     NewFrameReader(rwc, opts.MaxFrameSize),
		writer:     NewFrameWriter(rwc),
		builder:    b,
		parser:     p,
		negotiator: wire.NewNegotiator(b, p),
		protocol:   log.OrNoop(opts.ProtocolLogger),
		closed:     make(chan struct{}),
	}
}

// ID returns the link's UUID. A reopened port gets a new Link and a new ID.
func (l *Link) ID() string { return l.id }

// Port returns the transport name.
func (l *Link) Port() string { return l.opts.Port }

// Version returns the active envelope layout for outgoing frames.
func (l *Link) Version() wire.Version { return l.builder.Version() }

// Negotiator returns the link's version negotiator.
func (l *Link) Negotiator() *wire.Negotiator { return l.negotiator }

// Counters returns the link's discard counters.
func (l *Link) Counters() *Counters { return &l.counters }

// Done is closed when the link is closed.
func (l *Link) Done() <-chan struct{} { return l.closed }

// Send builds one envelope in the active layout and writes it. While a
// version switch requested by this side is pending, only the switch
// request itself may be sent; anything else fails with
// wire.ErrSwitchPending.
func (l *Link) Send(t wire.PacketType, seq uint32, sourceTimeUs uint64, data []byte) error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	if v, pending := l.negotiator.Pending(); pending && t != wire.TypeVersionSwitch {
		return fmt.Errorf("%w: %s", wire.ErrSwitchPending, v)
	}
	return l.sendLocked(l.builder.Version(), t, seq, sourceTimeUs, data)
}

// SendVersion writes one envelope in an explicit layout, bypassing the
// pending-switch check.
func (l *Link) SendVersion(v wire.Version, t wire.PacketType, seq uint32, sourceTimeUs uint64, data []byte) error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	return l.sendLocked(v, t, seq, sourceTimeUs, data)
}

func (l *Link) sendLocked(v wire.Version, t wire.PacketType, seq uint32, sourceTimeUs uint64, data []byte) error {
	select {
	case <-l.closed:
		return ErrClosed
	default:
	}

	frame := wire.BuildVersion(v, t, seq, sourceTimeUs, data)
	if err := l.writer.WriteFrame(frame); err != nil {
		return fmt.Errorf("link: write %s: %w", t, err)
	}

	if l.opts.CaptureFrames {
		l.emit(log.DirectionOut, log.LayerCodec, log.CategoryMessage, func(e *log.Event) {
			e.Frame = frameEvent(frame)
		})
	}
	l.emit(log.DirectionOut, log.LayerEnvelope, categoryOf(t), func(e *log.Event) {
		e.Envelope = &log.EnvelopeEvent{
			Version:      uint8(v),
			Type:         uint8(t),
			Sequence:     seq,
			SourceTimeUs: sourceTimeUs,
			DataLen:      len(data),
		}
	})
	return nil
}

// SendPayload is Send for a typed payload.
func (l *Link) SendPayload(p wire.Payload, seq uint32, sourceTimeUs uint64) error {
	return l.Send(p.Type(), seq, sourceTimeUs, p.Encode())
}

// Receive returns the next valid envelope. Invalid frames are counted,
// captured and skipped. The only errors are transport errors (io.EOF when
// the peer closes) and ErrClosed.
func (l *Link) Receive() (wire.Envelope, error) {
	for {
		frame, err := l.reader.ReadFrame()
		if err != nil {
			if errors.Is(err, ErrFrameTooLarge) {
				l.discard(log.LayerCodec, err, nil)
				continue
			}
			select {
			case <-l.closed:
				return wire.Envelope{}, ErrClosed
			default:
			}
			return wire.Envelope{}, err
		}

		if l.opts.CaptureFrames {
			l.emit(log.DirectionIn, log.LayerCodec, log.CategoryMessage, func(e *log.Event) {
				e.Frame = frameEvent(frame)
			})
		}

		env, err := l.parser.Parse(frame)
		if err != nil {
			layer := log.LayerEnvelope
			if c := Classify(err); c == ClassFrame || c == ClassChecksum {
				layer = log.LayerCodec
			}
			l.discard(layer, err, frame)
			continue
		}

		l.counters.decoded.Add(1)
		l.emit(log.DirectionIn, log.LayerEnvelope, categoryOf(env.Type), func(e *log.Event) {
			e.Envelope = &log.EnvelopeEvent{
				Version:      uint8(env.Version),
				Type:         uint8(env.Type),
				Sequence:     env.Sequence,
				SourceTimeUs: env.SourceTimeUs,
				DataLen:      len(env.Data),
			}
		})
		return env, nil
	}
}

func (l *Link) discard(layer log.Layer, err error, frame []byte) {
	class := l.counters.Record(err)
	if l.opts.Logger != nil {
		l.opts.Logger.Debug("discarded frame", "link_id", l.id, "class", class.String(), "error", err)
	}
	l.emit(log.DirectionIn, layer, log.CategoryError, func(e *log.Event) {
		e.Error = &log.ErrorEventData{
			Layer:   layer,
			Class:   class.String(),
			Message: err.Error(),
		}
		if frame != nil {
			e.Error.Context = fmt.Sprintf("% x", truncate(frame))
		}
	})
}

// LogState captures a lifecycle change on this link.
func (l *Link) LogState(entity log.StateEntity, oldState, newState, reason string) {
	layer := log.LayerLink
	if entity == log.StateEntityClockSync {
		layer = log.LayerSync
	}
	l.emit(log.DirectionIn, layer, log.CategoryState, func(e *log.Event) {
		e.StateChange = &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		}
	})
}

// LogEvent captures a caller-built event, stamping the link's identity.
func (l *Link) LogEvent(e log.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.LinkID = l.id
	e.LocalRole = l.opts.Role
	e.Port = l.opts.Port
	l.protocol.Log(e)
}

func (l *Link) emit(dir log.Direction, layer log.Layer, cat log.Category, fill func(*log.Event)) {
	if _, noop := l.protocol.(log.NoopLogger); noop {
		return
	}
	e := log.Event{
		Direction: dir,
		Layer:     layer,
		Category:  cat,
	}
	fill(&e)
	l.LogEvent(e)
}

// Close closes the underlying port. Safe to call more than once.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.rwc.Close()
	})
	return err
}

func categoryOf(t wire.PacketType) log.Category {
	if t.Range() == wire.RangeControl || t.Range() == wire.RangeTelemetry {
		return log.CategoryControl
	}
	return log.CategoryMessage
}

func truncate(frame []byte) []byte {
	if len(frame) > MaxLogFrameDataSize {
		return frame[:MaxLogFrameDataSize]
	}
	return frame
}

func frameEvent(frame []byte) *log.FrameEvent {
	data := truncate(frame)
	return &log.FrameEvent{
		Size:      len(frame),
		Data:      append([]byte(nil), data...),
		Truncated: len(data) < len(frame),
	}
}
