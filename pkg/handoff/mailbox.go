package handoff

import "sync"

// MailboxStats counts mailbox activity.
type MailboxStats struct {
	Puts       uint64
	Claims     uint64
	Overwrites uint64
}

// Mailbox is a single-slot holder for producer-dominant samples.
// Put always overwrites; Claim hands the sample out once. If two samples
// arrive between claims only the newer is seen and an overwrite is counted.
type Mailbox[T any] struct {
	mu    sync.Mutex
	value T
	full  bool

	puts       uint64
	claims     uint64
	overwrites uint64
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{}
}

// Put stores v, replacing any unclaimed sample.
func (m *Mailbox[T]) Put(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.full {
		m.overwrites++
	}
	m.value = v
	m.full = true
	m.puts++
}

// Claim returns the pending sample and marks it consumed.
func (m *Mailbox[T]) Claim() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if !m.full {
		return zero, false
	}
	v := m.value
	m.value = zero
	m.full = false
	m.claims++
	return v, true
}

// Pending reports whether an unclaimed sample is waiting.
func (m *Mailbox[T]) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.full
}

// Stats returns activity counters.
func (m *Mailbox[T]) Stats() MailboxStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MailboxStats{Puts: m.puts, Claims: m.claims, Overwrites: m.overwrites}
}
