package failsafe

import (
	"testing"
	"time"
)

func TestNewRejectsBadTimeout(t *testing.T) {
	if _, err := New(0); err != ErrInvalidTimeout {
		t.Errorf("New(0) error = %v, want %v", err, ErrInvalidTimeout)
	}
	w, err := New(250 * time.Millisecond)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if w.Timeout() != 250*time.Millisecond {
		t.Errorf("Timeout() = %v", w.Timeout())
	}
}

func TestIdleNeverTrips(t *testing.T) {
	w, _ := New(time.Millisecond)
	if w.Check(10_000_000) {
		t.Error("idle watchdog tripped")
	}
	if w.State() != StateIdle {
		t.Errorf("State() = %v, want IDLE", w.State())
	}
}

func TestTripAndRecover(t *testing.T) {
	w, _ := New(500 * time.Millisecond)

	var transitions []string
	w.OnStateChange(func(o, n State) {
		transitions = append(transitions, o.String()+">"+n.String())
	})

	w.Feed(1_000_000)
	if w.Check(1_500_000) {
		t.Error("tripped exactly at the timeout")
	}
	if !w.Check(1_500_001) {
		t.Fatal("did not trip past the timeout")
	}
	if w.Check(2_000_000) {
		t.Error("tripped twice for one silence")
	}
	if w.State() != StateFailsafe {
		t.Errorf("State() = %v, want FAILSAFE", w.State())
	}

	w.Feed(3_000_000)
	if w.State() != StateNormal {
		t.Errorf("State() = %v, want NORMAL", w.State())
	}
	w.Feed(3_100_000)

	want := []string{"IDLE>NORMAL", "NORMAL>FAILSAFE", "FAILSAFE>NORMAL"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
	if w.Trips() != 1 {
		t.Errorf("Trips() = %d, want 1", w.Trips())
	}
}

func TestCheckBehindFeed(t *testing.T) {
	w, _ := New(time.Millisecond)
	w.Feed(5_000)
	if w.Check(4_000) {
		t.Error("a clock read before the feed tripped the watchdog")
	}
}
