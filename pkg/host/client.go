package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devlink-robotics/devlink-go/pkg/causality"
	"github.com/devlink-robotics/devlink-go/pkg/clocksync"
	"github.com/devlink-robotics/devlink-go/pkg/link"
	"github.com/devlink-robotics/devlink-go/pkg/log"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

// Client is the host end of one link.
type Client struct {
	cfg     Config
	link    *link.Link
	handler Handler
	logger  *slog.Logger
	now     func() time.Time

	seq        wire.Sequencer
	clock      *clocksync.Estimator
	correlator *causality.Correlator

	mu          sync.Mutex
	deviceStats wire.LinkStats
	hasStats    bool
	lastUptime  uint32
	lastBeat    time.Time

	heartbeats atomic.Uint64
	reboots    atomic.Uint64
	badPayload atomic.Uint64
}

// New creates a client over l. handler may be nil.
func New(l *link.Link, handler Handler, cfg Config) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	est, err := clocksync.New(cfg.ClockSync)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if handler == nil {
		handler = BaseHandler{}
	}

	c := &Client{
		cfg:        cfg,
		link:       l,
		handler:    handler,
		logger:     cfg.Logger,
		now:        time.Now,
		clock:      est,
		correlator: causality.NewCorrelator(cfg.History),
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	est.OnStateChange(func(oldState, newState clocksync.State) {
		c.logger.Info("clock sync state changed", "link_id", l.ID(), "from", oldState, "to", newState)
		l.LogState(log.StateEntityClockSync, oldState.String(), newState.String(), "")
	})
	return c, nil
}

// Link returns the client's link.
func (c *Client) Link() *link.Link { return c.link }

// Clock returns the device clock estimator.
func (c *Client) Clock() *clocksync.Estimator { return c.clock }

// Run negotiates the configured version, then receives telemetry and runs
// clock sync until ctx is done or the link fails. The link is closed on
// return.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return c.link.Close()
	})
	g.Go(func() error { return c.receiveLoop(ctx) })
	g.Go(func() error {
		if err := c.negotiate(); err != nil {
			return err
		}
		return c.syncLoop(ctx)
	})

	err := g.Wait()
	if errors.Is(err, link.ErrClosed) {
		err = nil
	}
	c.logger.Info("host client stopped", "link_id", c.link.ID(), "error", err)
	return err
}

// nextSeq returns the next sequence number. On V1 the low byte is all that
// travels, so numbers truncating to zero ("nothing applied") are skipped.
func (c *Client) nextSeq() uint32 {
	for {
		s := c.seq.Next()
		if c.link.Version() != wire.V1 || s&0xFF != 0 {
			return s
		}
	}
}

// Send transmits a command and returns the sequence number that carried
// it. While a version switch is pending, Send fails with
// wire.ErrSwitchPending; commands are latched on the device, so callers
// resend the latest intent instead of queueing.
func (c *Client) Send(p wire.Payload) (uint32, error) {
	if !p.Type().Range().IsCommand() {
		return 0, fmt.Errorf("host: %s is not a command", p.Type())
	}

	now := c.now()
	v := c.link.Version()
	seq := c.nextSeq()
	if err := c.link.Send(p.Type(), seq, uint64(now.UnixMicro()), p.Encode()); err != nil {
		return 0, err
	}

	// The device reports what arrived, which on V1 is the low byte.
	recorded := seq
	if v == wire.V1 {
		recorded &= 0xFF
	}
	c.correlator.Sent(recorded, now)
	return seq, nil
}

// RequestStatus asks the device for an immediate heartbeat.
func (c *Client) RequestStatus() error {
	_, err := c.Send(wire.StatusRequest{})
	return err
}

// RequestVersion starts a switch to v. The result arrives asynchronously;
// watch Link().Version().
func (c *Client) RequestVersion(v wire.Version) error {
	now := c.now()
	return c.link.RequestVersion(v, c.nextSeq(), uint64(now.UnixMicro()), now)
}

func (c *Client) negotiate() error {
	if c.link.Version() == c.cfg.Version {
		return nil
	}
	err := c.RequestVersion(c.cfg.Version)
	if errors.Is(err, wire.ErrSwitchPending) {
		return nil
	}
	return err
}

// LastLatency returns the most recent latency breakdown.
func (c *Client) LastLatency() (causality.Latency, bool) {
	return c.correlator.Last()
}

// Stats is a snapshot of client activity.
type Stats struct {
	// Link counts frames this side discarded.
	Link    wire.LinkStats
	Decoded uint32

	// Device is the last LINK_STATS the device sent.
	Device    wire.LinkStats
	HasDevice bool

	Clock         clocksync.Snapshot
	Heartbeats    uint64
	LastHeartbeat time.Time
	Reboots       uint64
	BadPayloads   uint64
	Version       wire.Version
}

// Stats returns current counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	dev, has, last := c.deviceStats, c.hasStats, c.lastBeat
	c.mu.Unlock()

	return Stats{
		Link:          c.link.Counters().Stats(),
		Decoded:       c.link.Counters().Decoded(),
		Device:        dev,
		HasDevice:     has,
		Clock:         c.clock.Snapshot(),
		Heartbeats:    c.heartbeats.Load(),
		LastHeartbeat: last,
		Reboots:       c.reboots.Load(),
		BadPayloads:   c.badPayload.Load(),
		Version:       c.link.Version(),
	}
}
