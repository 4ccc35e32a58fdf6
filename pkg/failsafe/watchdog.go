package failsafe

import (
	"errors"
	"sync"
	"time"
)

// DefaultTimeout is the default host silence that trips the watchdog.
const DefaultTimeout = 500 * time.Millisecond

// ErrInvalidTimeout indicates a non-positive timeout.
var ErrInvalidTimeout = errors.New("failsafe: timeout must be positive")

// State is the watchdog state.
type State uint8

const (
	StateIdle State = iota
	StateNormal
	StateFailsafe
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateNormal:
		return "NORMAL"
	case StateFailsafe:
		return "FAILSAFE"
	default:
		return "UNKNOWN"
	}
}

// Watchdog trips when the host goes quiet. Feed and Check may be called
// from different goroutines.
type Watchdog struct {
	timeoutUs uint64

	mu            sync.Mutex
	state         State
	lastFeedUs    uint64
	trips         uint64
	onStateChange func(oldState, newState State)
}

// New creates an idle watchdog.
func New(timeout time.Duration) (*Watchdog, error) {
	if timeout <= 0 {
		return nil, ErrInvalidTimeout
	}
	return &Watchdog{timeoutUs: uint64(timeout.Microseconds())}, nil
}

// OnStateChange registers fn for transitions. It is called without the
// watchdog's lock held, from whichever goroutine caused the transition.
func (w *Watchdog) OnStateChange(fn func(oldState, newState State)) {
	w.mu.Lock()
	w.onStateChange = fn
	w.mu.Unlock()
}

// Feed records host traffic at nowUs.
func (w *Watchdog) Feed(nowUs uint64) {
	w.mu.Lock()
	old := w.state
	w.lastFeedUs = nowUs
	w.state = StateNormal
	fn := w.onStateChange
	w.mu.Unlock()

	if old != StateNormal && fn != nil {
		fn(old, StateNormal)
	}
}

// Check trips the watchdog if the host has been silent past the timeout.
// It returns true only on the call that trips it.
func (w *Watchdog) Check(nowUs uint64) bool {
	w.mu.Lock()
	// nowUs can trail a concurrent Feed; that is not silence.
	if w.state != StateNormal || nowUs < w.lastFeedUs || nowUs-w.lastFeedUs <= w.timeoutUs {
		w.mu.Unlock()
		return false
	}
	w.state = StateFailsafe
	w.trips++
	fn := w.onStateChange
	w.mu.Unlock()

	if fn != nil {
		fn(StateNormal, StateFailsafe)
	}
	return true
}

// State returns the current state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Trips returns how many times the watchdog has tripped.
func (w *Watchdog) Trips() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.trips
}

// Timeout returns the configured timeout.
func (w *Watchdog) Timeout() time.Duration {
	return time.Duration(w.timeoutUs) * time.Microsecond
}
