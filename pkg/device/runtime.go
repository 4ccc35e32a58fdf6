package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devlink-robotics/devlink-go/pkg/causality"
	"github.com/devlink-robotics/devlink-go/pkg/failsafe"
	"github.com/devlink-robotics/devlink-go/pkg/handoff"
	"github.com/devlink-robotics/devlink-go/pkg/link"
	"github.com/devlink-robotics/devlink-go/pkg/log"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

// Runtime is the device end of one link.
type Runtime struct {
	cfg      Config
	link     *link.Link
	consumer Consumer
	source   TelemetrySource
	logger   *slog.Logger
	now      func() uint64
	bootUs   uint64

	seq wire.Sequencer

	state   *handoff.Latched[wire.SetState]
	mode    *handoff.Latched[wire.SetMode]
	talking *handoff.Latched[wire.SetTalking]
	flags   *handoff.Latched[wire.SetFlags]
	motion  *handoff.Latched[wire.SetMotion]

	gestures *handoff.Queue[wire.GestureCommand]
	touch    *handoff.Mailbox[wire.InputEvent]
	button   *handoff.Mailbox[wire.InputEvent]

	tracker  *causality.Tracker
	watchdog *failsafe.Watchdog

	// tick task only
	tickApplied []applied
	inFailsafe  bool

	ticks      atomic.Uint64
	telemetry  atomic.Uint64
	timeSyncs  atomic.Uint64
	badPayload atomic.Uint64
}

type applied struct {
	seq uint32
	at  uint64
}

// New creates a runtime over l. consumer may be nil (commands are applied
// to nothing), as may source.
func New(l *link.Link, consumer Consumer, source TelemetrySource, cfg Config) (*Runtime, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if consumer == nil {
		consumer = BaseConsumer{}
	}

	r := &Runtime{
		cfg:      cfg,
		link:     l,
		consumer: consumer,
		source:   source,
		logger:   cfg.Logger,
		now:      cfg.Clock,

		state:   handoff.NewLatched[wire.SetState]("state"),
		mode:    handoff.NewLatched[wire.SetMode]("mode"),
		talking: handoff.NewLatched[wire.SetTalking]("talking"),
		flags:   handoff.NewLatched[wire.SetFlags]("flags"),
		motion:  handoff.NewLatched[wire.SetMotion]("motion"),

		gestures: handoff.NewQueue[wire.GestureCommand](cfg.GestureQueueSize),
		touch:    handoff.NewMailbox[wire.InputEvent](),
		button:   handoff.NewMailbox[wire.InputEvent](),

		tracker: causality.NewTracker(),
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.now == nil {
		start := time.Now()
		r.now = func() uint64 { return uint64(time.Since(start).Microseconds()) }
	}
	r.bootUs = r.now()

	if cfg.FailsafeTimeout > 0 {
		wd, err := failsafe.New(cfg.FailsafeTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		wd.OnStateChange(func(oldState, newState failsafe.State) {
			l.LogState(log.StateEntityLink, oldState.String(), newState.String(), "watchdog")
		})
		r.watchdog = wd
	}

	r.state.OnApply(consumer.ApplyState)
	r.mode.OnApply(consumer.ApplyMode)
	r.talking.OnApply(consumer.ApplyTalking)
	r.flags.OnApply(consumer.ApplyFlags)
	r.motion.OnApply(consumer.ApplyMotion)
	r.gestures.OnApply(consumer.PlayGesture)
	return r, nil
}

// Link returns the runtime's link.
func (r *Runtime) Link() *link.Link { return r.link }

// Run starts the receive, tick and telemetry tasks and blocks until ctx is
// done or one of them fails. The link is closed on return.
func (r *Runtime) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return r.link.Close()
	})
	g.Go(func() error { return r.receiveLoop(ctx) })
	g.Go(func() error { return r.tickLoop(ctx) })
	g.Go(func() error { return r.telemetryLoop(ctx) })

	r.logger.Info("device runtime started",
		"link_id", r.link.ID(),
		"tick", r.cfg.TickInterval,
		"telemetry", r.cfg.TelemetryInterval)

	err := g.Wait()
	if errors.Is(err, link.ErrClosed) {
		err = nil
	}
	r.logger.Info("device runtime stopped", "link_id", r.link.ID(), "error", err)
	return err
}

func (r *Runtime) receiveLoop(ctx context.Context) error {
	for {
		env, err := r.link.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("device: receive: %w", err)
		}
		if r.watchdog != nil {
			r.watchdog.Feed(r.now())
		}
		if err := r.dispatch(env); err != nil {
			return err
		}
	}
}

// dispatch routes one envelope. Only transport errors are returned.
func (r *Runtime) dispatch(env wire.Envelope) error {
	var err error
	switch env.Type {
	case wire.TypeSetState:
		var p wire.SetState
		if p, err = wire.DecodeSetState(env.Data); err == nil {
			r.state.Publish(p, env.Sequence, env.SourceTimeUs)
		}
	case wire.TypeSetMode:
		var p wire.SetMode
		if p, err = wire.DecodeSetMode(env.Data); err == nil {
			r.mode.Publish(p, env.Sequence, env.SourceTimeUs)
		}
	case wire.TypeSetTalking:
		var p wire.SetTalking
		if p, err = wire.DecodeSetTalking(env.Data); err == nil {
			r.talking.Publish(p, env.Sequence, env.SourceTimeUs)
		}
	case wire.TypeSetFlags:
		var p wire.SetFlags
		if p, err = wire.DecodeSetFlags(env.Data); err == nil {
			r.flags.Publish(p, env.Sequence, env.SourceTimeUs)
		}
	case wire.TypeSetMotion:
		var p wire.SetMotion
		if p, err = wire.DecodeSetMotion(env.Data); err == nil {
			r.motion.Publish(p, env.Sequence, env.SourceTimeUs)
		}
	case wire.TypeGesture:
		var p wire.GestureCommand
		if p, err = wire.DecodeGesture(env.Data); err == nil {
			if perr := r.gestures.Push(p); perr != nil {
				r.logger.Debug("gesture dropped", "gesture", p.Gesture, "seq", env.Sequence, "error", perr)
			}
		}

	case wire.TypeTimeSyncRequest:
		var p wire.TimeSync
		if p, err = wire.DecodeTimeSync(env.Type, env.Data); err == nil {
			// Echo first, with the clock read as late as possible.
			resp := wire.TimeSync{PingID: p.PingID, Response: true}
			r.timeSyncs.Add(1)
			return r.send(resp, r.now())
		}
	case wire.TypeVersionSwitch:
		var p wire.VersionSwitch
		if p, err = wire.DecodeVersionSwitch(env.Data); err == nil {
			ack, serr := r.link.AnswerSwitch(p, r.seq.Next(), r.now())
			if serr != nil {
				return fmt.Errorf("device: version ack: %w", serr)
			}
			r.logger.Info("version switch requested", "version", p.Version, "accepted", ack.Accepted, "active", r.link.Version())
		}
	case wire.TypeVersionAck:
		var p wire.VersionAck
		if p, err = wire.DecodeVersionAck(env.Data); err == nil {
			if _, aerr := r.link.HandleAck(p); aerr != nil {
				r.logger.Debug("version ack ignored", "error", aerr)
			}
		}
	case wire.TypeStatusRequest:
		return r.sendHeartbeat(r.now())

	default:
		r.logger.Debug("ignoring packet", "type", env.Type, "seq", env.Sequence)
	}

	if err != nil {
		r.badPayload.Add(1)
		r.link.Counters().Record(err)
		r.logger.Debug("bad payload", "type", env.Type, "seq", env.Sequence, "error", err)
	}
	return nil
}

func (r *Runtime) send(p wire.Payload, nowUs uint64) error {
	return r.sendData(p.Type(), p.Encode(), nowUs)
}

// sendData sends one packet. While a switch this side requested is
// pending the packet is dropped, not queued.
func (r *Runtime) sendData(t wire.PacketType, data []byte, nowUs uint64) error {
	err := r.link.Send(t, r.seq.Next(), nowUs, data)
	if errors.Is(err, wire.ErrSwitchPending) {
		r.logger.Debug("send held back", "type", t, "error", err)
		return nil
	}
	return err
}

// RequestVersion asks the host to switch the envelope version. Telemetry
// other than the request is held back until the host acks or
// Config.SwitchTimeout passes.
func (r *Runtime) RequestVersion(v wire.Version) error {
	return r.link.RequestVersion(v, r.seq.Next(), r.now(), time.Now())
}

// expireSwitch abandons a version request the host never answered.
func (r *Runtime) expireSwitch(now time.Time) error {
	if _, pending := r.link.Negotiator().Pending(); !pending {
		return nil
	}
	_, err := r.link.ExpireSwitch(now, r.cfg.SwitchTimeout, r.seq.Next(), r.now())
	return err
}

// ReportTouch records a touch transition for the next telemetry tick.
// A transition not yet sent is overwritten.
func (r *Runtime) ReportTouch(zone uint8, pressed bool) {
	r.touch.Put(wire.InputEvent{Source: zone, Pressed: pressed, AtUs: r.now()})
}

// ReportButton records a button transition for the next telemetry tick.
func (r *Runtime) ReportButton(button uint8, pressed bool) {
	r.button.Put(wire.InputEvent{Button: true, Source: button, Pressed: pressed, AtUs: r.now()})
}

// Causality returns the last applied command report.
func (r *Runtime) Causality() causality.Report {
	return r.tracker.Report()
}

// Stats is a snapshot of runtime activity.
type Stats struct {
	Link        wire.LinkStats
	Decoded     uint32
	BadPayloads uint64
	Ticks       uint64
	Telemetry   uint64
	TimeSyncs   uint64
	Failsafe    failsafe.State
	Trips       uint64
	Latched     map[string]handoff.LatchedStats
	Gestures    handoff.QueueStats
	Touch       handoff.MailboxStats
	Button      handoff.MailboxStats
}

// Stats returns current counters.
func (r *Runtime) Stats() Stats {
	return Stats{
		Link:        r.linkStats(),
		Decoded:     r.link.Counters().Decoded(),
		BadPayloads: r.badPayload.Load(),
		Ticks:       r.ticks.Load(),
		Telemetry:   r.telemetry.Load(),
		TimeSyncs:   r.timeSyncs.Load(),
		Failsafe:    r.failsafeState(),
		Trips:       r.failsafeTrips(),
		Latched: map[string]handoff.LatchedStats{
			r.state.Name():   r.state.Stats(),
			r.mode.Name():    r.mode.Stats(),
			r.talking.Name(): r.talking.Stats(),
			r.flags.Name():   r.flags.Stats(),
			r.motion.Name():  r.motion.Stats(),
		},
		Gestures: r.gestures.Stats(),
		Touch:    r.touch.Stats(),
		Button:   r.button.Stats(),
	}
}

// linkStats merges the link's frame counters with handoff drop counters.
func (r *Runtime) linkStats() wire.LinkStats {
	s := r.link.Counters().Stats()
	s.QueueDrops += uint32(r.gestures.Stats().Dropped)
	s.MailboxOverwrites += uint32(r.touch.Stats().Overwrites + r.button.Stats().Overwrites)
	return s
}

func (r *Runtime) failsafeState() failsafe.State {
	if r.watchdog == nil {
		return failsafe.StateIdle
	}
	return r.watchdog.State()
}

func (r *Runtime) failsafeTrips() uint64 {
	if r.watchdog == nil {
		return 0
	}
	return r.watchdog.Trips()
}
