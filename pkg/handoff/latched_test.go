package handoff

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pose struct {
	A, B, C int
}

func TestLatchedEmpty(t *testing.T) {
	l := NewLatched[pose]("pose")

	_, ok := l.Poll(1)
	assert.False(t, ok)
	_, ok = l.Applied()
	assert.False(t, ok)
	_, ok = l.Latest()
	assert.False(t, ok)
	assert.Equal(t, "pose", l.Name())
}

func TestLatchedLastWriteWins(t *testing.T) {
	l := NewLatched[pose]("pose")

	for i := 1; i <= 10; i++ {
		l.Publish(pose{i, i, i}, uint32(i), uint64(i*100))
	}

	cmd, ok := l.Poll(5000)
	require.True(t, ok)
	assert.Equal(t, pose{10, 10, 10}, cmd.Value)
	assert.Equal(t, uint32(10), cmd.Sequence)
	assert.Equal(t, uint64(1000), cmd.HostTimeUs)
	assert.Equal(t, uint64(5000), cmd.AppliedUs)

	_, ok = l.Poll(6000)
	assert.False(t, ok, "command must not be applied twice")

	stats := l.Stats()
	assert.Equal(t, uint64(10), stats.Published)
	assert.Equal(t, uint64(1), stats.Applied)
	assert.Equal(t, uint64(9), stats.Superseded)

	applied, ok := l.Applied()
	require.True(t, ok)
	assert.Equal(t, uint64(5000), applied.AppliedUs)
}

func TestLatchedRepublishSameValue(t *testing.T) {
	l := NewLatched[int]("mode")

	l.Publish(1, 1, 0)
	_, ok := l.Poll(1)
	require.True(t, ok)

	// An identical value in a new packet is still a new command.
	l.Publish(1, 2, 0)
	cmd, ok := l.Poll(2)
	require.True(t, ok)
	assert.Equal(t, uint32(2), cmd.Sequence)
}

func TestLatchedOnApply(t *testing.T) {
	l := NewLatched[string]("talk")

	var seen []string
	l.OnApply(func(c Command[string]) { seen = append(seen, c.Value) })

	l.Publish("a", 1, 0)
	l.Poll(1)
	l.Publish("b", 2, 0)
	l.Publish("c", 3, 0)
	l.Poll(2)
	l.Poll(3)

	assert.Equal(t, []string{"a", "c"}, seen)
}

func TestLatchedConcurrentNeverTorn(t *testing.T) {
	l := NewLatched[pose]("pose")
	const writes = 20000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= writes; i++ {
			l.Publish(pose{i, i * 2, i * 3}, uint32(i), uint64(i))
		}
	}()

	lastSeq := uint32(0)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	check := func(cmd Command[pose]) {
		v := cmd.Value
		if v.B != v.A*2 || v.C != v.A*3 || uint32(v.A) != cmd.Sequence {
			t.Fatalf("torn record: %+v seq %d", v, cmd.Sequence)
		}
		if cmd.Sequence <= lastSeq {
			t.Fatalf("sequence went backwards: %d after %d", cmd.Sequence, lastSeq)
		}
		lastSeq = cmd.Sequence
	}

	for tick := uint64(1); ; tick++ {
		if cmd, ok := l.Poll(tick); ok {
			check(cmd)
		}
		select {
		case <-done:
			if cmd, ok := l.Poll(tick + 1); ok {
				check(cmd)
			}
			assert.Equal(t, uint32(writes), lastSeq)
			stats := l.Stats()
			assert.Equal(t, stats.Published, stats.Applied+stats.Superseded)
			return
		default:
		}
	}
}
