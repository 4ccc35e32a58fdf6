package connection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrMaxAttempts is returned by Run when the port could not be opened
// within the configured number of attempts.
var ErrMaxAttempts = errors.New("connection: max open attempts reached")

// State is the manager's lifecycle state.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// OpenFunc opens the port.
type OpenFunc func(ctx context.Context) (io.ReadWriteCloser, error)

// SessionFunc runs one session over an open port and returns when it ends.
// It owns the port and must close it.
type SessionFunc func(ctx context.Context, port io.ReadWriteCloser) error

// Config configures a Manager.
type Config struct {
	Backoff BackoffConfig

	// MaxAttempts bounds consecutive failed opens. Zero retries forever.
	MaxAttempts int

	// Logger is the optional operational logger. If nil, logging is disabled.
	Logger *slog.Logger
}

// Manager reopens a port whenever its session ends.
type Manager struct {
	cfg     Config
	open    OpenFunc
	backoff *Backoff
	logger  *slog.Logger

	mu             sync.RWMutex
	state          State
	sessions       int
	onStateChange  func(oldState, newState State)
	onReconnecting func(attempt int, delay time.Duration)
}

// NewManager creates a manager that opens ports with open.
func NewManager(open OpenFunc, cfg Config) *Manager {
	m := &Manager{
		cfg:     cfg,
		open:    open,
		backoff: NewBackoffWithConfig(cfg.Backoff),
		logger:  cfg.Logger,
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m
}

// OnStateChange registers a state transition callback.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnReconnecting registers a callback invoked before each backoff delay.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Sessions returns the number of sessions started.
func (m *Manager) Sessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions
}

// Run opens the port and runs session until ctx is done. A session that
// ends, for any reason, is followed by a reopen after a backoff delay.
// Returns nil when ctx is cancelled or ErrMaxAttempts.
func (m *Manager) Run(ctx context.Context, session SessionFunc) error {
	defer m.setState(StateClosed)

	failures := 0
	for {
		m.setState(StateConnecting)
		port, err := m.open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			m.logger.Warn("open failed", "attempt", failures, "error", err)
			if m.cfg.MaxAttempts > 0 && failures >= m.cfg.MaxAttempts {
				m.setState(StateDisconnected)
				return errors.Join(ErrMaxAttempts, err)
			}
			if err := m.wait(ctx); err != nil {
				return nil
			}
			continue
		}

		failures = 0
		m.backoff.Reset()
		m.mu.Lock()
		m.sessions++
		m.mu.Unlock()
		m.setState(StateConnected)

		err = session(ctx, port)
		if ctx.Err() != nil {
			return nil
		}
		m.logger.Warn("session ended", "error", err)
		if err := m.wait(ctx); err != nil {
			return nil
		}
	}
}

func (m *Manager) wait(ctx context.Context) error {
	m.setState(StateReconnecting)

	m.mu.RLock()
	cb := m.onReconnecting
	m.mu.RUnlock()
	if cb != nil {
		cb(m.backoff.Attempts()+1, m.backoff.Current())
	}
	return m.backoff.Wait(ctx)
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	old := m.state
	m.state = s
	cb := m.onStateChange
	m.mu.Unlock()

	if cb != nil && old != s {
		cb(old, s)
	}
}
