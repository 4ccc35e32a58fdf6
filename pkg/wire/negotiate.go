package wire

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Negotiation errors.
var (
	// ErrSwitchPending indicates a version switch awaits the peer's ack.
	ErrSwitchPending = errors.New("wire: version switch pending")

	// ErrUnexpectedAck indicates an ack that matches no pending request.
	ErrUnexpectedAck = errors.New("wire: unexpected version ack")

	// ErrSwitchRejected indicates the peer refused the requested version.
	ErrSwitchRejected = errors.New("wire: version switch rejected")
)

// Negotiator coordinates envelope version changes for one end of a link.
//
// The requester keeps building and parsing in the old layout until the
// peer acknowledges; while the request is outstanding it should hold back
// other traffic (Pending). The responder sends its ack in the old layout
// and switches right after the ack is on the wire.
type Negotiator struct {
	builder *Builder
	parser  *Parser

	mu           sync.Mutex
	pending      Version
	pendingSince time.Time
}

// NewNegotiator returns a negotiator driving b and p.
func NewNegotiator(b *Builder, p *Parser) *Negotiator {
	return &Negotiator{builder: b, parser: p}
}

// Active returns the layout currently used for sending.
func (n *Negotiator) Active() Version {
	return n.builder.Version()
}

// Pending returns the requested version while a switch is outstanding.
func (n *Negotiator) Pending() (Version, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending, n.pending != 0
}

// Request starts a switch to v and returns the packet to send.
func (n *Negotiator) Request(v Version, now time.Time) (VersionSwitch, error) {
	if !v.Supported() {
		return VersionSwitch{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pending != 0 {
		return VersionSwitch{}, fmt.Errorf("%w: %s since %s", ErrSwitchPending, n.pending, n.pendingSince.Format(time.RFC3339Nano))
	}
	n.pending = v
	n.pendingSince = now
	return VersionSwitch{Version: v}, nil
}

// HandleAck completes a pending switch. On an accepted ack for the pending
// version the builder and parser move to it and the new version is returned.
func (n *Negotiator) HandleAck(ack VersionAck) (Version, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pending == 0 || ack.Version != n.pending {
		return n.builder.Version(), fmt.Errorf("%w: %s", ErrUnexpectedAck, ack.Version)
	}
	n.pending = 0

	if !ack.Accepted {
		return n.builder.Version(), fmt.Errorf("%w: %s", ErrSwitchRejected, ack.Version)
	}
	n.apply(ack.Version)
	return ack.Version, nil
}

// HandleRequest answers a peer's switch request. The caller must send ack
// in the current layout and then call commit, which moves the builder and
// parser to the new version. commit is a no-op when nothing changes.
func (n *Negotiator) HandleRequest(req VersionSwitch) (ack VersionAck, commit func()) {
	ack = VersionAck{Version: req.Version, Accepted: req.Version.Supported()}
	if !ack.Accepted || req.Version == n.builder.Version() {
		return ack, func() {}
	}
	return ack, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.apply(req.Version)
	}
}

// Expire abandons a pending request older than timeout.
// Reports whether a request was abandoned.
func (n *Negotiator) Expire(now time.Time, timeout time.Duration) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pending == 0 || now.Sub(n.pendingSince) < timeout {
		return false
	}
	n.pending = 0
	return true
}

// Reset returns both directions to DefaultVersion and forgets any pending
// request. Used when a link is reopened.
func (n *Negotiator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = 0
	n.apply(DefaultVersion)
}

func (n *Negotiator) apply(v Version) {
	// Both are validated by the callers; SetVersion cannot fail here.
	_ = n.builder.SetVersion(v)
	_ = n.parser.SetVersion(v)
}
