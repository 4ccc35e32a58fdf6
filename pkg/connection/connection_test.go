package connection

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("GrowsToCap", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Initial: 250 * time.Millisecond, Max: 5 * time.Second, Jitter: -1})

		expected := []time.Duration{
			250 * time.Millisecond,
			500 * time.Millisecond,
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			5 * time.Second,
			5 * time.Second,
		}
		for i, exp := range expected {
			if got := b.Next(); got != exp {
				t.Errorf("attempt %d: got %v, want %v", i, got, exp)
			}
		}
		if b.Attempts() != len(expected) {
			t.Errorf("attempts = %d, want %d", b.Attempts(), len(expected))
		}
	})

	t.Run("JitterBounded", func(t *testing.T) {
		b := NewBackoff()
		for range 100 {
			base := b.Current()
			d := b.Next()
			if d < base || d > base+time.Duration(float64(base)*JitterFactor) {
				t.Fatalf("delay %v outside [%v, %v]", d, base, base+time.Duration(float64(base)*JitterFactor))
			}
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()
		b.Next()
		b.Next()
		b.Reset()
		if b.Current() != InitialBackoff || b.Attempts() != 0 {
			t.Errorf("after reset: current=%v attempts=%d", b.Current(), b.Attempts())
		}
	})

	t.Run("WaitCancelled", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Initial: time.Hour, Max: time.Hour})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Wait = %v, want context.Canceled", err)
		}
	})
}

func fastConfig() Config {
	return Config{Backoff: BackoffConfig{Initial: time.Millisecond, Max: 2 * time.Millisecond, Jitter: -1}}
}

func TestManagerRetriesOpen(t *testing.T) {
	var opens atomic.Int32
	open := func(context.Context) (io.ReadWriteCloser, error) {
		if opens.Add(1) < 3 {
			return nil, errors.New("no such device")
		}
		a, b := net.Pipe()
		b.Close()
		return a, nil
	}

	m := NewManager(open, fastConfig())
	var reconnects atomic.Int32
	m.OnReconnecting(func(int, time.Duration) { reconnects.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	sessions := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx, func(ctx context.Context, port io.ReadWriteCloser) error {
			port.Close()
			sessions <- struct{}{}
			<-ctx.Done()
			return nil
		})
	}()

	select {
	case <-sessions:
	case <-time.After(2 * time.Second):
		t.Fatal("no session started")
	}
	if m.State() != StateConnected {
		t.Errorf("state = %v, want CONNECTED", m.State())
	}
	if reconnects.Load() != 2 {
		t.Errorf("reconnects = %d, want 2", reconnects.Load())
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v", err)
	}
	if m.State() != StateClosed {
		t.Errorf("state after Run = %v, want CLOSED", m.State())
	}
}

func TestManagerReopensAfterSessionEnds(t *testing.T) {
	open := func(context.Context) (io.ReadWriteCloser, error) {
		a, _ := net.Pipe()
		return a, nil
	}
	m := NewManager(open, fastConfig())

	var mu sync.Mutex
	var transitions []State
	m.OnStateChange(func(_, newState State) {
		mu.Lock()
		transitions = append(transitions, newState)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx, func(_ context.Context, port io.ReadWriteCloser) error {
			port.Close()
			if runs.Add(1) == 3 {
				cancel()
			}
			return io.EOF
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	if m.Sessions() != 3 {
		t.Errorf("sessions = %d, want 3", m.Sessions())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) < 4 || transitions[0] != StateConnecting || transitions[1] != StateConnected || transitions[2] != StateReconnecting {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestManagerMaxAttempts(t *testing.T) {
	openErr := errors.New("permission denied")
	cfg := fastConfig()
	cfg.MaxAttempts = 3
	var opens atomic.Int32
	m := NewManager(func(context.Context) (io.ReadWriteCloser, error) {
		opens.Add(1)
		return nil, openErr
	}, cfg)

	err := m.Run(context.Background(), func(context.Context, io.ReadWriteCloser) error { return nil })
	if !errors.Is(err, ErrMaxAttempts) || !errors.Is(err, openErr) {
		t.Fatalf("Run = %v", err)
	}
	if opens.Load() != 3 {
		t.Errorf("opens = %d, want 3", opens.Load())
	}
}

func TestStateString(t *testing.T) {
	if StateReconnecting.String() != "RECONNECTING" || State(99).String() != "UNKNOWN" {
		t.Error("State.String")
	}
}
