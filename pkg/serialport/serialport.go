// Package serialport opens the byte transport under a link: a serial
// device, or a TCP bench bridge addressed as tcp://host:port.
package serialport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// Defaults.
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
	DefaultDialTimeout = 3 * time.Second

	tcpScheme = "tcp://"
)

// ErrNoPort indicates an empty port name.
var ErrNoPort = errors.New("serialport: no port configured")

// Config selects and configures a port.
type Config struct {
	// Name is a device path (/dev/ttyACM0, COM3) or tcp://host:port.
	Name string

	BaudRate int

	// ReadTimeout bounds each blocking serial read so Close is noticed.
	ReadTimeout time.Duration

	// DialTimeout bounds connecting to a TCP bridge.
	DialTimeout time.Duration
}

// IsTCP reports whether name addresses a TCP bridge.
func IsTCP(name string) bool {
	return strings.HasPrefix(name, tcpScheme)
}

// Open opens the configured port.
func Open(ctx context.Context, cfg Config) (io.ReadWriteCloser, error) {
	if cfg.Name == "" {
		return nil, ErrNoPort
	}
	if IsTCP(cfg.Name) {
		return dialTCP(ctx, cfg)
	}
	return openSerial(cfg)
}

func dialTCP(ctx context.Context, cfg Config) (io.ReadWriteCloser, error) {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", strings.TrimPrefix(cfg.Name, tcpScheme))
	if err != nil {
		return nil, fmt.Errorf("serialport: dial %s: %w", cfg.Name, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		// Frames are small and latency matters more than throughput.
		_ = tc.SetNoDelay(true)
	}
	return conn, nil
}

func openSerial(cfg Config) (io.ReadWriteCloser, error) {
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	p, err := serial.Open(cfg.Name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", cfg.Name, err)
	}
	if err := p.SetReadTimeout(timeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("serialport: set read timeout on %s: %w", cfg.Name, err)
	}
	// Drop whatever the device sent before we were listening.
	_ = p.ResetInputBuffer()
	return &port{Port: p}, nil
}

// port hides read timeouts: a timed-out read returns (0, nil), which the
// frame reader would treat as no progress.
type port struct {
	serial.Port
	closed atomic.Bool
}

func (p *port) Read(b []byte) (int, error) {
	for {
		n, err := p.Port.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
		if p.closed.Load() {
			return 0, io.EOF
		}
	}
}

func (p *port) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.Port.Close()
}

// List returns the serial ports present on this machine.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serialport: list: %w", err)
	}
	return ports, nil
}
