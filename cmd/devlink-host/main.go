// Command devlink-host drives a robot over a device link.
//
// It opens the configured port (or a bench bridge found over mDNS),
// negotiates the envelope version, keeps the clock estimate fresh and
// reopens the port whenever the link drops.
//
// Usage:
//
//	devlink-host [flags]
//
// Flags:
//
//	-config string        YAML configuration file
//	-port string          Serial device or tcp://host:port
//	-baud int             Serial baud rate
//	-version int          Envelope version to negotiate (1 or 2)
//	-log-level string     debug, info, warn, error
//	-log-format string    text or json
//	-protocol-log string  Write a protocol capture to this file
//	-capture-frames       Include raw frames in the protocol capture
//	-discover duration    Browse for a bench bridge for up to this long
//	-device-id string     Only accept the bridge advertising this device id
//	-interactive          Start the command console (default true)
//	-list-ports           Print serial ports and exit
//
// Examples:
//
//	# Talk to a robot on USB serial
//	devlink-host -port /dev/ttyACM0
//
//	# Find the bench rig and capture everything it says
//	devlink-host -discover 5s -protocol-log bench.dlog -capture-frames
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devlink-robotics/devlink-go/pkg/config"
	"github.com/devlink-robotics/devlink-go/pkg/connection"
	"github.com/devlink-robotics/devlink-go/pkg/discovery"
	"github.com/devlink-robotics/devlink-go/pkg/host"
	"github.com/devlink-robotics/devlink-go/pkg/link"
	dlog "github.com/devlink-robotics/devlink-go/pkg/log"
	"github.com/devlink-robotics/devlink-go/pkg/serialport"
)

type flags struct {
	ConfigFile    string
	Port          string
	Baud          int
	Version       uint
	LogLevel      string
	LogFormat     string
	ProtocolLog   string
	CaptureFrames bool
	Discover      time.Duration
	DeviceID      string
	Interactive   bool
	ListPorts     bool
}

var opts flags

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "YAML configuration file")
	flag.StringVar(&opts.Port, "port", "", "Serial device or tcp://host:port")
	flag.IntVar(&opts.Baud, "baud", serialport.DefaultBaudRate, "Serial baud rate")
	flag.UintVar(&opts.Version, "version", 2, "Envelope version to negotiate (1 or 2)")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.LogFormat, "log-format", "text", "Log format: text, json")
	flag.StringVar(&opts.ProtocolLog, "protocol-log", "", "Write a protocol capture to this file")
	flag.BoolVar(&opts.CaptureFrames, "capture-frames", false, "Include raw frames in the protocol capture")
	flag.DurationVar(&opts.Discover, "discover", 0, "Browse for a bench bridge for up to this long")
	flag.StringVar(&opts.DeviceID, "device-id", "", "Only accept the bridge advertising this device id")
	flag.BoolVar(&opts.Interactive, "interactive", true, "Start the command console")
	flag.BoolVar(&opts.ListPorts, "list-ports", false, "Print serial ports and exit")
}

func main() {
	flag.Parse()
	os.Exit(runMain())
}

// runMain returns the process exit code. Deferred cleanup runs before
// main calls os.Exit.
func runMain() int {
	if opts.ListPorts {
		listPorts()
		return 0
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var console *Console
	logOut := io.Writer(os.Stderr)
	if opts.Interactive {
		console, err = NewConsole()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		logOut = console.Stderr()
	}
	logger := cfg.Logging.NewLogger(logOut)

	if opts.Discover > 0 {
		br, err := discoverBridge(ctx, opts.Discover, opts.DeviceID)
		if err != nil {
			logger.Error("bridge discovery failed", "error", err)
			return 1
		}
		logger.Info("found bridge", "device", br.DeviceID, "instance", br.InstanceName, "address", br.Address())
		cfg.Link.Port = br.Address()
	}

	protocol, closeProtocol, err := openProtocolLog(cfg.Logging.ProtocolLog, logger)
	if err != nil {
		logger.Error("open protocol log", "error", err)
		return 1
	}
	defer closeProtocol()

	if console != nil {
		go console.Run(ctx, cancel)
	}

	err = run(ctx, cfg, logger, protocol, console)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("host stopped", "error", err)
		return 1
	}
	return 0
}

// openProtocolLog opens the capture file at path. An empty path disables
// capture. The returned func closes the file and is always safe to call.
func openProtocolLog(path string, logger *slog.Logger) (dlog.Logger, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	fl, err := dlog.NewFileLogger(path)
	if err != nil {
		return nil, nil, err
	}
	return fl, func() {
		if err := fl.Close(); err != nil {
			logger.Warn("close protocol log", "error", err)
		}
	}, nil
}

// loadConfig layers explicitly set flags over the file (or defaults).
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Link.Port = opts.Port
		case "baud":
			cfg.Link.Baud = opts.Baud
		case "version":
			cfg.Host.Version = uint8(opts.Version)
		case "log-level":
			cfg.Logging.Level = opts.LogLevel
		case "log-format":
			cfg.Logging.Format = opts.LogFormat
		case "protocol-log":
			cfg.Logging.ProtocolLog = opts.ProtocolLog
		case "capture-frames":
			cfg.Link.CaptureFrames = opts.CaptureFrames
		}
	})
	if cfg.Link.Port == "" && opts.Discover == 0 {
		return nil, errors.New("no port: set -port, link.port or -discover")
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, protocol dlog.Logger, console *Console) error {
	open := func(ctx context.Context) (io.ReadWriteCloser, error) {
		return serialport.Open(ctx, cfg.SerialConfig())
	}
	mgr := connection.NewManager(open, cfg.ManagerConfig(logger))
	mgr.OnStateChange(func(oldState, newState connection.State) {
		logger.Info("connection", "from", oldState, "to", newState)
	})

	handler := &printHandler{logger: logger}
	return mgr.Run(ctx, func(ctx context.Context, port io.ReadWriteCloser) error {
		lopts := cfg.LinkOptions(dlog.RoleHost)
		lopts.ProtocolLogger = protocol
		lopts.Logger = logger
		l := link.New(port, lopts)

		client, err := host.New(l, handler, cfg.HostConfig(logger))
		if err != nil {
			_ = l.Close()
			return err
		}
		logger.Info("link open", "id", l.ID(), "port", l.Port())

		if console != nil {
			console.Attach(client)
			defer console.Attach(nil)
		}
		return client.Run(ctx)
	})
}

func discoverBridge(ctx context.Context, timeout time.Duration, deviceID string) (*discovery.Bridge, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var b discovery.Browser
	return b.Find(ctx, func(br *discovery.Bridge) bool {
		return deviceID == "" || br.DeviceID == deviceID
	})
}

func listPorts() {
	ports, err := serialport.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return
	}
	for _, p := range ports {
		fmt.Println(p)
	}
}
