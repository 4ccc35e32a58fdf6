package device

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devlink-robotics/devlink-go/pkg/failsafe"
)

// Defaults.
const (
	DefaultTickInterval      = 10 * time.Millisecond
	DefaultTelemetryInterval = 100 * time.Millisecond
	DefaultStatsEvery        = 10
	DefaultGestureQueueSize  = 16
	DefaultFailsafeTimeout   = failsafe.DefaultTimeout
	DefaultSwitchTimeout     = time.Second
)

// ErrInvalidConfig indicates a rejected Config.
var ErrInvalidConfig = errors.New("device: invalid config")

// Config configures a Runtime. Zero fields take defaults.
type Config struct {
	// TickInterval is the consumer tick period.
	TickInterval time.Duration

	// TelemetryInterval is the heartbeat period. Must not be shorter than
	// TickInterval.
	TelemetryInterval time.Duration

	// StatsEvery sends LINK_STATS every N telemetry ticks.
	StatsEvery int

	// GestureQueueSize bounds pending one-shot gestures.
	GestureQueueSize int

	// FailsafeTimeout is the host silence after which motion is stopped.
	// Negative disables the watchdog.
	FailsafeTimeout time.Duration

	// SwitchTimeout abandons an unanswered version switch requested by
	// the device.
	SwitchTimeout time.Duration

	// Clock returns the device clock in microseconds. Nil uses a
	// monotonic clock starting at zero when the Runtime is created.
	Clock func() uint64

	// Logger is the optional operational logger. If nil, logging is disabled.
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.TickInterval == 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.TelemetryInterval == 0 {
		c.TelemetryInterval = DefaultTelemetryInterval
	}
	if c.StatsEvery == 0 {
		c.StatsEvery = DefaultStatsEvery
	}
	if c.GestureQueueSize == 0 {
		c.GestureQueueSize = DefaultGestureQueueSize
	}
	if c.FailsafeTimeout == 0 {
		c.FailsafeTimeout = DefaultFailsafeTimeout
	}
	if c.SwitchTimeout == 0 {
		c.SwitchTimeout = DefaultSwitchTimeout
	}
}

// Validate checks a defaulted config.
func (c Config) Validate() error {
	switch {
	case c.TickInterval < 0:
		return fmt.Errorf("%w: negative tick interval", ErrInvalidConfig)
	case c.TelemetryInterval < c.TickInterval:
		return fmt.Errorf("%w: telemetry interval %s shorter than tick interval %s", ErrInvalidConfig, c.TelemetryInterval, c.TickInterval)
	case c.StatsEvery < 0:
		return fmt.Errorf("%w: negative stats period", ErrInvalidConfig)
	case c.GestureQueueSize < 0:
		return fmt.Errorf("%w: negative gesture queue size", ErrInvalidConfig)
	case c.SwitchTimeout < 0:
		return fmt.Errorf("%w: negative switch timeout", ErrInvalidConfig)
	case c.FailsafeTimeout > 0 && c.FailsafeTimeout < c.TickInterval:
		return fmt.Errorf("%w: failsafe timeout %s shorter than tick interval %s", ErrInvalidConfig, c.FailsafeTimeout, c.TickInterval)
	}
	return nil
}
