package causality

import (
	"sync"
)

// Report is the causality part of a heartbeat.
type Report struct {
	LastAppliedSequence uint32
	AppliedTimeUs       uint64
}

// Tracker records the most recent command application. Written by the
// tick task, read by the telemetry task.
type Tracker struct {
	mu     sync.Mutex
	report Report
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Applied records that the command carried by seq took effect at appliedUs.
func (t *Tracker) Applied(seq uint32, appliedUs uint64) {
	t.mu.Lock()
	t.report = Report{LastAppliedSequence: seq, AppliedTimeUs: appliedUs}
	t.mu.Unlock()
}

// Report returns the last application. Zero before any command applied.
func (t *Tracker) Report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.report
}
