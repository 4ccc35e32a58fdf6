package serialport

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTCP(t *testing.T) {
	assert.True(t, IsTCP("tcp://127.0.0.1:7000"))
	assert.False(t, IsTCP("/dev/ttyACM0"))
	assert.False(t, IsTCP("COM3"))
}

func TestOpenEmptyName(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrNoPort)
}

func TestOpenTCPBridge(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan []byte, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, 3)
		_, _ = io.ReadFull(c, buf)
		accepted <- buf
	}()

	p, err := Open(context.Background(), Config{Name: "tcp://" + ln.Addr().String()})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Write([]byte{1, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 0}, <-accepted)
}

func TestOpenTCPRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Open(context.Background(), Config{Name: "tcp://" + addr})
	assert.Error(t, err)
}

func TestOpenMissingSerialDevice(t *testing.T) {
	_, err := Open(context.Background(), Config{Name: "/dev/devlink-test-does-not-exist"})
	assert.Error(t, err)
}
