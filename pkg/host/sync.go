package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devlink-robotics/devlink-go/pkg/clocksync"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

// syncLoop drives version switch timeouts and clock sync round trips,
// one step per SyncInterval.
func (c *Client) syncLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.syncStep(); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("host: clock sync: %w", err)
			}
		}
	}
}

// syncStep runs one clock sync period. Only transport errors are returned.
func (c *Client) syncStep() error {
	now := c.now()

	expired, err := c.link.ExpireSwitch(now, c.cfg.SwitchTimeout, c.nextSeq(), uint64(now.UnixMicro()))
	if err != nil {
		return err
	}
	if expired {
		// Retry on the next period; the recovery frame needs time to land.
		return nil
	}
	if _, pending := c.link.Negotiator().Pending(); pending {
		return nil
	}
	if c.link.Version() != c.cfg.Version {
		if err := c.RequestVersion(c.cfg.Version); err != nil && !errors.Is(err, wire.ErrSwitchPending) {
			return err
		}
		return nil
	}

	if err := c.clock.Tick(now); errors.Is(err, clocksync.ErrStaleClock) {
		c.logger.Debug("device clock stale", "link_id", c.link.ID(), "last_sample", c.clock.Snapshot().LastSampleAt)
	}

	// Clock sync needs the device timestamp only V2 carries.
	if c.link.Version() != wire.V2 {
		return nil
	}
	ping := c.clock.Begin(now)
	req := wire.TimeSync{PingID: ping}
	err = c.link.Send(req.Type(), c.nextSeq(), uint64(now.UnixMicro()), req.Encode())
	if errors.Is(err, wire.ErrSwitchPending) {
		return nil
	}
	return err
}
