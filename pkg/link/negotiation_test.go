package link

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

func TestVersionSwitchOverPipe(t *testing.T) {
	a, b := net.Pipe()
	host := New(a, Options{})
	dev := New(b, Options{})
	defer host.Close()
	defer dev.Close()

	received := make(chan wire.Envelope, 8)
	go func() {
		for {
			env, err := dev.Receive()
			if err != nil {
				close(received)
				return
			}
			if env.Type == wire.TypeVersionSwitch {
				req, err := wire.DecodeVersionSwitch(env.Data)
				if err == nil {
					_, _ = dev.AnswerSwitch(req, 1, 0)
				}
				continue
			}
			received <- env
		}
	}()

	now := time.Now()
	require.NoError(t, host.RequestVersion(wire.V2, 1, 0, now))
	assert.ErrorIs(t, host.Send(wire.TypeSetMode, 2, 0, []byte{1}), wire.ErrSwitchPending)
	assert.Equal(t, wire.V1, host.Version(), "requester keeps old layout until acked")

	env, err := host.Receive()
	require.NoError(t, err)
	require.Equal(t, wire.TypeVersionAck, env.Type)
	assert.Equal(t, wire.V1, env.Version, "ack travels in the old layout")
	ack, err := wire.DecodeVersionAck(env.Data)
	require.NoError(t, err)

	v, err := host.HandleAck(ack)
	require.NoError(t, err)
	assert.Equal(t, wire.V2, v)
	assert.Eventually(t, func() bool { return dev.Version() == wire.V2 }, time.Second, time.Millisecond)

	require.NoError(t, host.Send(wire.TypeSetMode, 70000, 123, []byte{1}))
	select {
	case got := <-received:
		assert.Equal(t, wire.V2, got.Version)
		assert.Equal(t, uint32(70000), got.Sequence)
		assert.Equal(t, uint64(123), got.SourceTimeUs)
	case <-time.After(2 * time.Second):
		t.Fatal("device did not receive V2 frame")
	}
}

func TestExpireSwitchSendsRecoveryInAbandonedLayout(t *testing.T) {
	conn := &bufConn{Reader: bytes.NewReader(nil)}
	l := New(conn, Options{})

	start := time.Now()
	require.NoError(t, l.RequestVersion(wire.V2, 1, 0, start))

	expired, err := l.ExpireSwitch(start.Add(500*time.Millisecond), time.Second, 2, 0)
	require.NoError(t, err)
	assert.False(t, expired)

	expired, err = l.ExpireSwitch(start.Add(2*time.Second), time.Second, 2, 99)
	require.NoError(t, err)
	assert.True(t, expired)

	_, pending := l.Negotiator().Pending()
	assert.False(t, pending)
	assert.Equal(t, wire.V1, l.Version())

	fr := NewFrameReader(&conn.Buffer, 0)
	first, err := fr.ReadFrame()
	require.NoError(t, err)
	req, err := wire.ParseVersion(wire.V1, first)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeVersionSwitch, req.Type)

	second, err := fr.ReadFrame()
	require.NoError(t, err)
	back, err := wire.ParseVersion(wire.V2, second)
	require.NoError(t, err)
	sw, err := wire.DecodeVersionSwitch(back.Data)
	require.NoError(t, err)
	assert.Equal(t, wire.V1, sw.Version)

	// A peer still on V1 sees only a length error.
	asV1, err := wire.ParseVersion(wire.V1, second)
	require.NoError(t, err)
	_, err = wire.DecodeVersionSwitch(asV1.Data)
	assert.ErrorIs(t, err, wire.ErrLength)

	require.NoError(t, l.Send(wire.TypeSetMode, 3, 0, []byte{1}))
}

func TestAnswerSwitchRejectsUnsupported(t *testing.T) {
	conn := &bufConn{Reader: bytes.NewReader(nil)}
	l := New(conn, Options{})

	ack, err := l.AnswerSwitch(wire.VersionSwitch{Version: 9}, 1, 0)
	require.NoError(t, err)
	assert.False(t, ack.Accepted)
	assert.Equal(t, wire.V1, l.Version())
}
