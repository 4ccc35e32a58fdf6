package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/devlink-robotics/devlink-go/pkg/host"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

var errUsage = errors.New("usage")

// Console is the interactive command loop.
type Console struct {
	rl *readline.Instance

	mu     sync.Mutex
	client *host.Client
}

// NewConsole creates a console on the terminal.
func NewConsole() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "devlink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl}, nil
}

// Stdout returns a writer that does not clobber the prompt.
func (c *Console) Stdout() io.Writer { return c.rl.Stdout() }

// Stderr returns a writer that does not clobber the prompt.
func (c *Console) Stderr() io.Writer { return c.rl.Stderr() }

// Attach points commands at client. Nil detaches.
func (c *Console) Attach(client *host.Client) {
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
}

func (c *Console) current() *host.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// Run reads commands until quit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	out := c.rl.Stdout()
	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		default:
			if err := c.exec(cmd, args); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}

func (c *Console) exec(cmd string, args []string) error {
	out := c.rl.Stdout()
	client := c.current()
	if client == nil {
		return errors.New("not connected")
	}

	switch cmd {
	case "status":
		return client.RequestStatus()

	case "version":
		if len(args) != 1 {
			return fmt.Errorf("%w: version <1|2>", errUsage)
		}
		n, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return err
		}
		return client.RequestVersion(wire.Version(n))

	case "stats":
		printStats(out, client.Stats())
		return nil

	case "clock":
		s := client.Clock().Snapshot()
		fmt.Fprintf(out, "state=%s offset=%dus rtt_min=%dus drift=%.2fus/s samples=%d timeouts=%d rejected=%d\n",
			s.State, s.OffsetUs, s.RTTMinUs, s.DriftUsPerS, s.SampleCount, s.Timeouts, s.Rejected)
		return nil

	case "latency":
		lat, ok := client.LastLatency()
		if !ok {
			fmt.Fprintln(out, "no command acknowledged yet")
			return nil
		}
		fmt.Fprintf(out, "seq=%d total=%s", lat.Sequence, lat.Total)
		if lat.Synced {
			fmt.Fprintf(out, " to_apply=%s apply_to_report=%s", lat.ToApply, lat.ApplyToReport)
		}
		fmt.Fprintln(out)
		return nil
	}

	p, err := parseCommand(cmd, args)
	if err != nil {
		return err
	}
	seq, err := client.Send(p)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "sent %s seq=%d\n", p.Type(), seq)
	return nil
}

// parseCommand turns a console command into a command payload.
func parseCommand(cmd string, args []string) (wire.Payload, error) {
	switch cmd {
	case "state":
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("%w: state <MOOD> [intensity]", errUsage)
		}
		mood, ok := wire.ParseMood(strings.ToUpper(args[0]))
		if !ok {
			return nil, fmt.Errorf("unknown mood %q", args[0])
		}
		intensity, err := optByte(args, 1, 255)
		if err != nil {
			return nil, err
		}
		return wire.SetState{Mood: mood, Intensity: intensity}, nil

	case "mode":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: mode <IDLE|ACTIVE|SLEEP|SAFE>", errUsage)
		}
		mode, ok := wire.ParseMode(strings.ToUpper(args[0]))
		if !ok {
			return nil, fmt.Errorf("unknown mode %q", args[0])
		}
		return wire.SetMode{Mode: mode}, nil

	case "talk":
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("%w: talk <on|off> [energy]", errUsage)
		}
		var talking bool
		switch strings.ToLower(args[0]) {
		case "on", "1", "true":
			talking = true
		case "off", "0", "false":
		default:
			return nil, fmt.Errorf("talk: expected on or off, got %q", args[0])
		}
		energy, err := optByte(args, 1, 128)
		if err != nil {
			return nil, err
		}
		return wire.SetTalking{Talking: talking, Energy: energy}, nil

	case "flags":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: flags <mask>", errUsage)
		}
		n, err := strconv.ParseUint(args[0], 0, 16)
		if err != nil {
			return nil, fmt.Errorf("flags: %w", err)
		}
		return wire.SetFlags{Flags: uint16(n)}, nil

	case "gesture":
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("%w: gesture <NAME> [param]", errUsage)
		}
		g, ok := wire.ParseGesture(strings.ToUpper(args[0]))
		if !ok {
			return nil, fmt.Errorf("unknown gesture %q", args[0])
		}
		param, err := optByte(args, 1, 0)
		if err != nil {
			return nil, err
		}
		return wire.GestureCommand{Gesture: g, Param: param}, nil

	case "motion":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: motion <linear_mm_s> <angular_mrad_s>", errUsage)
		}
		lin, err := strconv.ParseInt(args[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("motion linear: %w", err)
		}
		ang, err := strconv.ParseInt(args[1], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("motion angular: %w", err)
		}
		return wire.SetMotion{LinearMMs: int16(lin), AngularMradS: int16(ang)}, nil

	case "stop":
		return wire.SetMotion{}, nil
	}
	return nil, fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
}

func optByte(args []string, i int, def uint8) (uint8, error) {
	if len(args) <= i {
		return def, nil
	}
	n, err := strconv.ParseUint(args[i], 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", args[i], err)
	}
	return uint8(n), nil
}

func printStats(w io.Writer, s host.Stats) {
	fmt.Fprintf(w, "version:     V%d\n", s.Version)
	fmt.Fprintf(w, "decoded:     %d\n", s.Decoded)
	fmt.Fprintf(w, "host errors: frame=%d checksum=%d length=%d unknown=%d\n",
		s.Link.FrameErrors, s.Link.ChecksumErrors, s.Link.LengthErrors, s.Link.UnknownTypes)
	if s.HasDevice {
		fmt.Fprintf(w, "dev errors:  frame=%d checksum=%d length=%d unknown=%d drops=%d overwrites=%d\n",
			s.Device.FrameErrors, s.Device.ChecksumErrors, s.Device.LengthErrors,
			s.Device.UnknownTypes, s.Device.QueueDrops, s.Device.MailboxOverwrites)
	}
	fmt.Fprintf(w, "heartbeats:  %d", s.Heartbeats)
	if !s.LastHeartbeat.IsZero() {
		fmt.Fprintf(w, " (last %s ago)", time.Since(s.LastHeartbeat).Round(time.Millisecond))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "reboots:     %d\n", s.Reboots)
	fmt.Fprintf(w, "bad payload: %d\n", s.BadPayloads)
	fmt.Fprintf(w, "clock:       %s offset=%dus\n", s.Clock.State, s.Clock.OffsetUs)
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
devlink Host Commands:
  Commands (latched):
    state <MOOD> [intensity]      - NEUTRAL HAPPY SAD ANGRY SURPRISED SLEEPY CURIOUS
    mode <MODE>                   - IDLE ACTIVE SLEEP SAFE
    talk <on|off> [energy]        - Drive the mouth
    flags <mask>                  - Feature flag bitmask (0x.. accepted)
    motion <mm/s> <mrad/s>        - Base velocity targets
    stop                          - Zero motion

  Commands (one-shot):
    gesture <NAME> [param]        - BLINK WINK NOD SHAKE LOOK_AROUND

  Link:
    status                        - Request an immediate heartbeat
    version <1|2>                 - Switch envelope version
    stats                         - Link and device counters
    clock                         - Clock sync estimate
    latency                       - Last command latency breakdown

    help                          - Show this help
    quit                          - Exit`)
}
