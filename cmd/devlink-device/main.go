// Command devlink-device simulates a robot on the device end of a link.
//
// It serves the link either on a serial port or as a TCP bench bridge,
// which it can advertise over mDNS. Commands are applied to a simulated
// display and base and logged; telemetry reports what was applied.
//
// Usage:
//
//	devlink-device [flags]
//
// Flags:
//
//	-config string        YAML configuration file
//	-port string          Serial device to serve on
//	-listen string        Serve as a TCP bench bridge on this address
//	-advertise            Advertise the bridge over mDNS (with -listen)
//	-device-id string     Device id advertised in TXT records
//	-name string          Friendly name advertised in TXT records
//	-offset duration      Start the device clock this far from zero
//	-drift-ppm float      Device clock rate error in parts per million
//	-touch-every duration Synthesize touch events at this period
//	-log-level string     debug, info, warn, error
//	-protocol-log string  Write a protocol capture to this file
//
// Examples:
//
//	# Bench bridge the host can find with -discover
//	devlink-device -listen :7700 -advertise -device-id bench-07
//
//	# Clock 3s ahead and running 50ppm fast
//	devlink-device -listen :7700 -offset 3s -drift-ppm 50
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/devlink-robotics/devlink-go/pkg/config"
	"github.com/devlink-robotics/devlink-go/pkg/connection"
	"github.com/devlink-robotics/devlink-go/pkg/device"
	"github.com/devlink-robotics/devlink-go/pkg/discovery"
	"github.com/devlink-robotics/devlink-go/pkg/link"
	dlog "github.com/devlink-robotics/devlink-go/pkg/log"
	"github.com/devlink-robotics/devlink-go/pkg/serialport"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

type flags struct {
	ConfigFile  string
	Port        string
	Listen      string
	Advertise   bool
	DeviceID    string
	Name        string
	Offset      time.Duration
	DriftPPM    float64
	TouchEvery  time.Duration
	LogLevel    string
	ProtocolLog string
}

var opts flags

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "YAML configuration file")
	flag.StringVar(&opts.Port, "port", "", "Serial device to serve on")
	flag.StringVar(&opts.Listen, "listen", "", "Serve as a TCP bench bridge on this address")
	flag.BoolVar(&opts.Advertise, "advertise", false, "Advertise the bridge over mDNS")
	flag.StringVar(&opts.DeviceID, "device-id", "sim", "Device id advertised in TXT records")
	flag.StringVar(&opts.Name, "name", "", "Friendly name advertised in TXT records")
	flag.DurationVar(&opts.Offset, "offset", 0, "Start the device clock this far from zero")
	flag.Float64Var(&opts.DriftPPM, "drift-ppm", 0, "Device clock rate error in parts per million")
	flag.DurationVar(&opts.TouchEvery, "touch-every", 0, "Synthesize touch events at this period")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.ProtocolLog, "protocol-log", "", "Write a protocol capture to this file")
}

func main() {
	flag.Parse()
	os.Exit(runMain())
}

// runMain returns the process exit code. Deferred cleanup runs before
// main calls os.Exit.
func runMain() int {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Link.Port = opts.Port
		case "log-level":
			cfg.Logging.Level = opts.LogLevel
		case "protocol-log":
			cfg.Logging.ProtocolLog = opts.ProtocolLog
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if (opts.Listen == "") == (cfg.Link.Port == "") {
		fmt.Fprintln(os.Stderr, "set exactly one of -listen or -port")
		return 2
	}

	logger := cfg.Logging.NewLogger(os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sim := &simulator{
		logger:     logger,
		clock:      newSimClock(opts.Offset, opts.DriftPPM),
		touchEvery: opts.TouchEvery,
	}

	if cfg.Logging.ProtocolLog != "" {
		fl, err := dlog.NewFileLogger(cfg.Logging.ProtocolLog)
		if err != nil {
			logger.Error("open protocol log", "error", err)
			return 1
		}
		defer fl.Close()
		sim.protocol = fl
	}

	var err error
	if opts.Listen != "" {
		err = serveTCP(ctx, cfg, sim)
	} else {
		err = serveSerial(ctx, cfg, sim)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("device stopped", "error", err)
		return 1
	}
	return 0
}

// session runs one device runtime over port.
func session(ctx context.Context, cfg *config.Config, sim *simulator, port io.ReadWriteCloser, name string) error {
	lopts := cfg.LinkOptions(dlog.RoleDevice)
	lopts.Port = name
	lopts.ProtocolLogger = sim.protocol
	lopts.Logger = sim.logger
	l := link.New(port, lopts)

	dcfg := cfg.DeviceConfig(sim.logger)
	dcfg.Clock = sim.clock.Now
	rt, err := device.New(l, sim, sim, dcfg)
	if err != nil {
		_ = l.Close()
		return err
	}
	if sim.touchEvery > 0 {
		go sim.touchLoop(ctx, rt)
	}
	return rt.Run(ctx)
}

func serveSerial(ctx context.Context, cfg *config.Config, sim *simulator) error {
	open := func(ctx context.Context) (io.ReadWriteCloser, error) {
		return serialport.Open(ctx, cfg.SerialConfig())
	}
	mgr := connection.NewManager(open, cfg.ManagerConfig(sim.logger))
	return mgr.Run(ctx, func(ctx context.Context, port io.ReadWriteCloser) error {
		return session(ctx, cfg, sim, port, cfg.Link.Port)
	})
}

// serveTCP accepts one host at a time.
func serveTCP(ctx context.Context, cfg *config.Config, sim *simulator) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", opts.Listen)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	sim.logger.Info("bench bridge listening", "addr", ln.Addr())

	if opts.Advertise {
		adv, err := advertise(ln.Addr())
		if err != nil {
			return err
		}
		defer adv.Stop()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		name := "tcp://" + conn.RemoteAddr().String()
		sim.logger.Info("host connected", "remote", conn.RemoteAddr())
		if err := session(ctx, cfg, sim, conn, name); err != nil {
			sim.logger.Warn("session ended", "remote", conn.RemoteAddr(), "error", err)
		}
	}
}

func advertise(addr net.Addr) (*discovery.Advertiser, error) {
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, err
	}

	adv := &discovery.Advertiser{}
	err = adv.Advertise(&discovery.BridgeInfo{
		DeviceID:   opts.DeviceID,
		Name:       opts.Name,
		Subsystems: []string{"display", "motion"},
		MaxVersion: uint8(wire.V2),
		Port:       uint16(port),
	})
	if err != nil {
		return nil, err
	}
	return adv, nil
}
