package handoff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailboxClaimOnce(t *testing.T) {
	m := NewMailbox[int]()

	_, ok := m.Claim()
	assert.False(t, ok)

	m.Put(7)
	assert.True(t, m.Pending())

	v, ok := m.Claim()
	require.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = m.Claim()
	assert.False(t, ok, "sample must be reported exactly once")
	assert.False(t, m.Pending())
}

func TestMailboxNewerReplacesUnclaimed(t *testing.T) {
	m := NewMailbox[string]()

	m.Put("press")
	m.Put("release")

	v, ok := m.Claim()
	require.True(t, ok)
	assert.Equal(t, "release", v)

	m.Put("press")
	_, _ = m.Claim()

	stats := m.Stats()
	assert.Equal(t, uint64(3), stats.Puts)
	assert.Equal(t, uint64(2), stats.Claims)
	assert.Equal(t, uint64(1), stats.Overwrites)
}
