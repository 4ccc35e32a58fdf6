package handoff

import (
	"sync/atomic"
)

// Command is one latched value together with its provenance.
type Command[T any] struct {
	Value T

	// Sequence is the envelope sequence number that carried Value.
	Sequence uint32

	// HostTimeUs is the timestamp the command carried (zero on V1 links).
	HostTimeUs uint64

	// AppliedUs is the consumer's clock when it applied the command.
	// Zero until applied.
	AppliedUs uint64

	stamp uint64
}

// LatchedStats counts channel activity.
type LatchedStats struct {
	Published  uint64
	Applied    uint64
	Superseded uint64
}

// Latched holds the most recent command for a continuously updated quantity.
//
// Publish builds a complete immutable record and commits it with a single
// trailing atomic store of its pointer; the record's stamp doubles as the
// version. Poll compares the committed stamp with the last one it applied
// and copies the whole record when it changed. A half-written record is
// never reachable, and no record is applied twice.
type Latched[T any] struct {
	name string

	latest  atomic.Pointer[Command[T]]
	applied atomic.Pointer[Command[T]]

	// producer only
	nextStamp uint64

	// consumer only
	lastApplied uint64
	apply       func(Command[T])

	published  atomic.Uint64
	appliedN   atomic.Uint64
	superseded atomic.Uint64
}

// NewLatched creates an empty channel. name appears in logs and telemetry.
func NewLatched[T any](name string) *Latched[T] {
	return &Latched[T]{name: name}
}

// Name returns the channel name.
func (l *Latched[T]) Name() string {
	return l.name
}

// OnApply registers the consumer callback Poll invokes for each newly
// applied command. Register before the consumer starts polling.
func (l *Latched[T]) OnApply(fn func(Command[T])) {
	l.apply = fn
}

// Publish latches v. Producer side.
func (l *Latched[T]) Publish(v T, seq uint32, hostTimeUs uint64) {
	l.nextStamp++
	rec := &Command[T]{
		Value:      v,
		Sequence:   seq,
		HostTimeUs: hostTimeUs,
		stamp:      l.nextStamp,
	}
	l.latest.Store(rec)
	l.published.Add(1)
}

// Poll applies the latest command if it has not been applied yet, stamping
// it with nowUs and invoking the OnApply callback. Consumer side.
func (l *Latched[T]) Poll(nowUs uint64) (Command[T], bool) {
	rec := l.latest.Load()
	if rec == nil || rec.stamp == l.lastApplied {
		return Command[T]{}, false
	}

	if skipped := rec.stamp - l.lastApplied - 1; skipped > 0 {
		l.superseded.Add(skipped)
	}
	l.lastApplied = rec.stamp

	cmd := *rec
	cmd.AppliedUs = nowUs
	l.applied.Store(&cmd)
	l.appliedN.Add(1)

	if l.apply != nil {
		l.apply(cmd)
	}
	return cmd, true
}

// Latest returns the most recently published command without applying it.
func (l *Latched[T]) Latest() (Command[T], bool) {
	rec := l.latest.Load()
	if rec == nil {
		return Command[T]{}, false
	}
	return *rec, true
}

// Applied returns the most recently applied command. Safe from any goroutine.
func (l *Latched[T]) Applied() (Command[T], bool) {
	rec := l.applied.Load()
	if rec == nil {
		return Command[T]{}, false
	}
	return *rec, true
}

// Stats returns activity counters. Superseded counts published commands
// the consumer never applied because a newer one replaced them.
func (l *Latched[T]) Stats() LatchedStats {
	return LatchedStats{
		Published:  l.published.Load(),
		Applied:    l.appliedN.Load(),
		Superseded: l.superseded.Load(),
	}
}
