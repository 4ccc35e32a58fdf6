package host

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devlink-robotics/devlink-go/pkg/causality"
	"github.com/devlink-robotics/devlink-go/pkg/clocksync"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

// Defaults.
const (
	DefaultSyncInterval  = 250 * time.Millisecond
	DefaultSwitchTimeout = time.Second
)

// ErrInvalidConfig indicates a rejected Config.
var ErrInvalidConfig = errors.New("host: invalid config")

// Config configures a Client. Zero fields take defaults.
type Config struct {
	// Version is the envelope version to negotiate on start. Clock sync
	// needs V2; on V1 no time sync requests are sent.
	Version wire.Version

	// SyncInterval is the period between time sync requests.
	SyncInterval time.Duration

	// SwitchTimeout abandons an unanswered version switch.
	SwitchTimeout time.Duration

	// ClockSync holds the estimator thresholds.
	ClockSync clocksync.Config

	// History is the number of sent commands kept for latency correlation.
	History int

	// Logger is the optional operational logger. If nil, logging is disabled.
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = wire.V2
	}
	if c.SyncInterval == 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.SwitchTimeout == 0 {
		c.SwitchTimeout = DefaultSwitchTimeout
	}
	if c.History == 0 {
		c.History = causality.DefaultHistory
	}
}

// Validate checks a defaulted config. Estimator thresholds are checked by
// clocksync.New.
func (c Config) Validate() error {
	switch {
	case !c.Version.Supported():
		return fmt.Errorf("%w: %w: %d", ErrInvalidConfig, wire.ErrUnsupportedVersion, c.Version)
	case c.SyncInterval < 0:
		return fmt.Errorf("%w: negative sync interval", ErrInvalidConfig)
	case c.SwitchTimeout < 0:
		return fmt.Errorf("%w: negative switch timeout", ErrInvalidConfig)
	case c.History < 0:
		return fmt.Errorf("%w: negative history", ErrInvalidConfig)
	}
	return nil
}
