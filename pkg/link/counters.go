package link

import (
	"errors"
	"sync/atomic"

	"github.com/devlink-robotics/devlink-go/pkg/codec"
	"github.com/devlink-robotics/devlink-go/pkg/handoff"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

// Class is the kind of a discarded frame or dropped item.
type Class uint8

const (
	ClassNone Class = iota
	ClassFrame
	ClassChecksum
	ClassLength
	ClassUnknownType
	ClassOversize
	ClassQueueDrop
	ClassMailboxOverwrite
	ClassOther
)

var classNames = [...]string{
	ClassNone:             "NONE",
	ClassFrame:            "FRAME_ERROR",
	ClassChecksum:         "CHECKSUM_ERROR",
	ClassLength:           "LENGTH_ERROR",
	ClassUnknownType:      "UNKNOWN_TYPE",
	ClassOversize:         "OVERSIZE",
	ClassQueueDrop:        "QUEUE_DROP",
	ClassMailboxOverwrite: "MAILBOX_OVERWRITE",
	ClassOther:            "OTHER",
}

// String returns the class name used in logs and LINK_STATS.
func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "UNKNOWN"
}

// Classify maps an error from the codec, wire or handoff packages to its
// class. nil maps to ClassNone.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, codec.ErrFrame):
		return ClassFrame
	case errors.Is(err, codec.ErrChecksum):
		return ClassChecksum
	case errors.Is(err, wire.ErrLength):
		return ClassLength
	case errors.Is(err, wire.ErrUnknownType):
		return ClassUnknownType
	case errors.Is(err, ErrFrameTooLarge):
		return ClassOversize
	case errors.Is(err, handoff.ErrQueueFull):
		return ClassQueueDrop
	default:
		return ClassOther
	}
}

// Counters tallies discarded input per class. Safe for concurrent use.
type Counters struct {
	counts  [len(classNames)]atomic.Uint32
	decoded atomic.Uint32
}

// Record increments the counter for err's class and returns the class.
func (c *Counters) Record(err error) Class {
	cl := Classify(err)
	c.Add(cl, 1)
	return cl
}

// Add increments the counter for cl by n.
func (c *Counters) Add(cl Class, n uint32) {
	if cl == ClassNone || int(cl) >= len(c.counts) {
		return
	}
	c.counts[cl].Add(n)
}

// Count returns the counter for cl.
func (c *Counters) Count(cl Class) uint32 {
	if int(cl) >= len(c.counts) {
		return 0
	}
	return c.counts[cl].Load()
}

// Decoded returns the number of frames that parsed cleanly.
func (c *Counters) Decoded() uint32 {
	return c.decoded.Load()
}

// Stats returns the counters as a LINK_STATS payload. Oversize frames are
// reported as frame errors.
func (c *Counters) Stats() wire.LinkStats {
	return wire.LinkStats{
		FrameErrors:       c.Count(ClassFrame) + c.Count(ClassOversize),
		ChecksumErrors:    c.Count(ClassChecksum),
		LengthErrors:      c.Count(ClassLength),
		UnknownTypes:      c.Count(ClassUnknownType),
		QueueDrops:        c.Count(ClassQueueDrop),
		MailboxOverwrites: c.Count(ClassMailboxOverwrite),
	}
}
