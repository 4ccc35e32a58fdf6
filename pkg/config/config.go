// Package config loads devlink YAML configuration files.
//
// A file may set any subset of the sections below; unset fields keep the
// values from Default.
//
//	link:
//	  port: /dev/ttyACM0        # or tcp://host:port
//	  baud: 115200
//	  read_timeout: 100ms
//	  max_frame_size: 512
//	  capture_frames: false
//	device:
//	  tick: 10ms
//	  telemetry: 100ms
//	  stats_every: 10
//	  gesture_queue: 16
//	  failsafe_timeout: 500ms   # negative disables
//	host:
//	  version: 2
//	  sync_interval: 250ms
//	  switch_timeout: 1s
//	  history: 64
//	clock_sync:
//	  window: 8
//	  min_samples: 5
//	  agree_count: 3
//	  tolerance: 1ms
//	  stale_after: 5s
//	  request_timeout: 1s
//	  max_rtt: 100ms
//	  drift_history: 32
//	reconnect:
//	  initial: 250ms
//	  max: 5s
//	  multiplier: 2
//	  jitter: 0.25
//	  max_attempts: 0
//	logging:
//	  level: info
//	  format: text
//	  protocol_log: ""
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devlink-robotics/devlink-go/pkg/causality"
	"github.com/devlink-robotics/devlink-go/pkg/clocksync"
	"github.com/devlink-robotics/devlink-go/pkg/connection"
	"github.com/devlink-robotics/devlink-go/pkg/device"
	"github.com/devlink-robotics/devlink-go/pkg/host"
	"github.com/devlink-robotics/devlink-go/pkg/link"
	dlog "github.com/devlink-robotics/devlink-go/pkg/log"
	"github.com/devlink-robotics/devlink-go/pkg/serialport"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

// ErrInvalid indicates a configuration that failed validation.
var ErrInvalid = errors.New("config: invalid")

// Config is the full configuration file.
type Config struct {
	Link      Link      `yaml:"link"`
	Device    Device    `yaml:"device"`
	Host      Host      `yaml:"host"`
	ClockSync ClockSync `yaml:"clock_sync"`
	Reconnect Reconnect `yaml:"reconnect"`
	Logging   Logging   `yaml:"logging"`
}

// Link configures the port and framing.
type Link struct {
	Port          string        `yaml:"port"`
	Baud          int           `yaml:"baud"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	MaxFrameSize  int           `yaml:"max_frame_size"`
	CaptureFrames bool          `yaml:"capture_frames"`
}

// Device configures the device runtime.
type Device struct {
	Tick         time.Duration `yaml:"tick"`
	Telemetry    time.Duration `yaml:"telemetry"`
	StatsEvery   int           `yaml:"stats_every"`
	GestureQueue int           `yaml:"gesture_queue"`

	FailsafeTimeout time.Duration `yaml:"failsafe_timeout"`
}

// Host configures the host client.
type Host struct {
	Version       uint8         `yaml:"version"`
	SyncInterval  time.Duration `yaml:"sync_interval"`
	SwitchTimeout time.Duration `yaml:"switch_timeout"`
	History       int           `yaml:"history"`
}

// ClockSync holds the estimator thresholds.
type ClockSync struct {
	Window         int           `yaml:"window"`
	MinSamples     int           `yaml:"min_samples"`
	AgreeCount     int           `yaml:"agree_count"`
	Tolerance      time.Duration `yaml:"tolerance"`
	StaleAfter     time.Duration `yaml:"stale_after"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRTT         time.Duration `yaml:"max_rtt"`
	DriftHistory   int           `yaml:"drift_history"`
}

// Reconnect configures port reopening.
type Reconnect struct {
	Initial     time.Duration `yaml:"initial"`
	Max         time.Duration `yaml:"max"`
	Multiplier  float64       `yaml:"multiplier"`
	Jitter      float64       `yaml:"jitter"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// Logging configures operational and protocol logging.
type Logging struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	ProtocolLog string `yaml:"protocol_log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cs := clocksync.DefaultConfig()
	bo := connection.DefaultBackoffConfig()
	return &Config{
		Link: Link{
			Baud:         serialport.DefaultBaudRate,
			ReadTimeout:  serialport.DefaultReadTimeout,
			MaxFrameSize: link.DefaultMaxFrameSize,
		},
		Device: Device{
			Tick:         device.DefaultTickInterval,
			Telemetry:    device.DefaultTelemetryInterval,
			StatsEvery:   device.DefaultStatsEvery,
			GestureQueue: device.DefaultGestureQueueSize,

			FailsafeTimeout: device.DefaultFailsafeTimeout,
		},
		Host: Host{
			Version:       uint8(wire.V2),
			SyncInterval:  host.DefaultSyncInterval,
			SwitchTimeout: host.DefaultSwitchTimeout,
			History:       causality.DefaultHistory,
		},
		ClockSync: ClockSync{
			Window:         cs.Window,
			MinSamples:     cs.MinSamples,
			AgreeCount:     cs.AgreeCount,
			Tolerance:      cs.Tolerance,
			StaleAfter:     cs.StaleAfter,
			RequestTimeout: cs.RequestTimeout,
			MaxRTT:         cs.MaxRTT,
			DriftHistory:   cs.DriftHistory,
		},
		Reconnect: Reconnect{
			Initial:    bo.Initial,
			Max:        bo.Max,
			Multiplier: bo.Multiplier,
			Jitter:     bo.Jitter,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Link.Baud <= 0 {
		return fmt.Errorf("%w: link.baud must be positive", ErrInvalid)
	}
	if c.Link.MaxFrameSize < 16 {
		return fmt.Errorf("%w: link.max_frame_size %d too small", ErrInvalid, c.Link.MaxFrameSize)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format %q (use text or json)", ErrInvalid, c.Logging.Format)
	}
	if err := c.Reconnect.Validate(); err != nil {
		return err
	}

	dc := c.DeviceConfig(nil)
	if err := dc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	hc := c.HostConfig(nil)
	if err := hc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := hc.ClockSync.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Validate checks the reconnect section.
func (r Reconnect) Validate() error {
	switch {
	case r.Initial <= 0:
		return fmt.Errorf("%w: reconnect.initial must be positive", ErrInvalid)
	case r.Max < r.Initial:
		return fmt.Errorf("%w: reconnect.max %s below initial %s", ErrInvalid, r.Max, r.Initial)
	case r.Multiplier < 1:
		return fmt.Errorf("%w: reconnect.multiplier must be at least 1", ErrInvalid)
	case r.Jitter > 1:
		return fmt.Errorf("%w: reconnect.jitter must not exceed 1", ErrInvalid)
	case r.MaxAttempts < 0:
		return fmt.Errorf("%w: reconnect.max_attempts must not be negative", ErrInvalid)
	}
	return nil
}

// SerialConfig returns the port settings.
func (c *Config) SerialConfig() serialport.Config {
	return serialport.Config{
		Name:        c.Link.Port,
		BaudRate:    c.Link.Baud,
		ReadTimeout: c.Link.ReadTimeout,
	}
}

// LinkOptions returns link options for role. Logging hooks are left for
// the caller.
func (c *Config) LinkOptions(role dlog.Role) link.Options {
	return link.Options{
		Role:          role,
		Port:          c.Link.Port,
		MaxFrameSize:  c.Link.MaxFrameSize,
		CaptureFrames: c.Link.CaptureFrames,
	}
}

// DeviceConfig returns the device runtime configuration.
func (c *Config) DeviceConfig(logger *slog.Logger) device.Config {
	return device.Config{
		TickInterval:      c.Device.Tick,
		TelemetryInterval: c.Device.Telemetry,
		StatsEvery:        c.Device.StatsEvery,
		GestureQueueSize:  c.Device.GestureQueue,
		FailsafeTimeout:   c.Device.FailsafeTimeout,
		Logger:            logger,
	}
}

// HostConfig returns the host client configuration.
func (c *Config) HostConfig(logger *slog.Logger) host.Config {
	return host.Config{
		Version:       wire.Version(c.Host.Version),
		SyncInterval:  c.Host.SyncInterval,
		SwitchTimeout: c.Host.SwitchTimeout,
		History:       c.Host.History,
		ClockSync: clocksync.Config{
			Window:         c.ClockSync.Window,
			MinSamples:     c.ClockSync.MinSamples,
			AgreeCount:     c.ClockSync.AgreeCount,
			Tolerance:      c.ClockSync.Tolerance,
			StaleAfter:     c.ClockSync.StaleAfter,
			RequestTimeout: c.ClockSync.RequestTimeout,
			MaxRTT:         c.ClockSync.MaxRTT,
			DriftHistory:   c.ClockSync.DriftHistory,
		},
		Logger: logger,
	}
}

// ManagerConfig returns the reconnect manager configuration.
func (c *Config) ManagerConfig(logger *slog.Logger) connection.Config {
	return connection.Config{
		Backoff: connection.BackoffConfig{
			Initial:    c.Reconnect.Initial,
			Max:        c.Reconnect.Max,
			Multiplier: c.Reconnect.Multiplier,
			Jitter:     c.Reconnect.Jitter,
		},
		MaxAttempts: c.Reconnect.MaxAttempts,
		Logger:      logger,
	}
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: log level %q (use debug, info, warn, error)", ErrInvalid, s)
}

// NewLogger builds the operational logger described by the logging section.
func (l Logging) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
