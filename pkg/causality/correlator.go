package causality

import (
	"sync"
	"time"
)

// DefaultHistory is the number of sent commands a Correlator remembers.
const DefaultHistory = 64

// Clock maps device timestamps onto host Unix microseconds.
// clocksync.Estimator satisfies it.
type Clock interface {
	ToHost(deviceUs uint64) (hostUs int64, ok bool)
}

// Latency is the end-to-end breakdown for one command.
type Latency struct {
	Sequence uint32

	// Total runs from send to receipt of the heartbeat reporting it.
	Total time.Duration

	// ToApply runs from send to application on the device. Only set when
	// the clock could convert the device timestamp (Synced true).
	ToApply time.Duration

	// ApplyToReport runs from application to heartbeat receipt.
	ApplyToReport time.Duration

	Synced bool
}

type sent struct {
	seq  uint32
	at   time.Time
	seen bool
}

// Correlator matches heartbeats with the commands they acknowledge.
// Safe for concurrent use.
type Correlator struct {
	mu      sync.Mutex
	ring    []sent
	next    int
	last    Latency
	hasLast bool
}

// NewCorrelator remembers up to history sent commands.
func NewCorrelator(history int) *Correlator {
	if history < 1 {
		history = DefaultHistory
	}
	return &Correlator{ring: make([]sent, history)}
}

// Sent records that the command with sequence seq left the host at at.
func (c *Correlator) Sent(seq uint32, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ring[c.next] = sent{seq: seq, at: at}
	c.next = (c.next + 1) % len(c.ring)
}

// Observe correlates a heartbeat received at recv. It returns false when
// the reported sequence is unknown, was already observed, or nothing has
// been applied yet.
func (c *Correlator) Observe(r Report, recv time.Time, clock Clock) (Latency, bool) {
	if r.LastAppliedSequence == 0 {
		return Latency{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.ring {
		s := &c.ring[i]
		if s.at.IsZero() || s.seen || s.seq != r.LastAppliedSequence {
			continue
		}
		s.seen = true

		lat := Latency{Sequence: s.seq, Total: recv.Sub(s.at)}
		if clock != nil {
			if hostUs, ok := clock.ToHost(r.AppliedTimeUs); ok {
				applied := time.UnixMicro(hostUs)
				lat.ToApply = applied.Sub(s.at)
				lat.ApplyToReport = recv.Sub(applied)
				lat.Synced = true
			}
		}
		c.last, c.hasLast = lat, true
		return lat, true
	}
	return Latency{}, false
}

// Last returns the most recent breakdown.
func (c *Correlator) Last() (Latency, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasLast
}
