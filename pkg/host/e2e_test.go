package host_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlink-robotics/devlink-go/pkg/causality"
	"github.com/devlink-robotics/devlink-go/pkg/clocksync"
	"github.com/devlink-robotics/devlink-go/pkg/device"
	"github.com/devlink-robotics/devlink-go/pkg/host"
	"github.com/devlink-robotics/devlink-go/pkg/link"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

type latencyHandler struct {
	host.BaseHandler
	mu   sync.Mutex
	seen map[uint32]causality.Latency
}

func (h *latencyHandler) Heartbeat(_ wire.Heartbeat, lat causality.Latency, ok bool) {
	if !ok {
		return
	}
	h.mu.Lock()
	h.seen[lat.Sequence] = lat
	h.mu.Unlock()
}

func (h *latencyHandler) get(seq uint32) (causality.Latency, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	lat, ok := h.seen[seq]
	return lat, ok
}

func TestHostDeviceEndToEnd(t *testing.T) {
	a, b := net.Pipe()

	// The device clock runs 3 s ahead of host Unix time.
	start := time.Now()
	deviceClock := func() uint64 {
		return uint64(start.UnixMicro()) + 3_000_000 + uint64(time.Since(start).Microseconds())
	}

	dev, err := device.New(link.New(b, link.Options{}), nil, nil, device.Config{
		TickInterval:      time.Millisecond,
		TelemetryInterval: 5 * time.Millisecond,
		Clock:             deviceClock,
	})
	require.NoError(t, err)

	h := &latencyHandler{seen: map[uint32]causality.Latency{}}
	cfg := clocksync.DefaultConfig()
	cfg.MinSamples = 3
	cfg.AgreeCount = 2
	cfg.Tolerance = 5 * time.Millisecond
	client, err := host.New(link.New(a, link.Options{}), h, host.Config{
		SyncInterval: 5 * time.Millisecond,
		ClockSync:    cfg,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = dev.Run(ctx) }()
	go func() { defer wg.Done(); _ = client.Run(ctx) }()

	require.Eventually(t, func() bool {
		return client.Link().Version() == wire.V2 && client.Clock().State() == clocksync.StateSynced
	}, 5*time.Second, 5*time.Millisecond, "link never reached V2 with a synced clock")

	offset := client.Clock().Snapshot().OffsetUs
	assert.InDelta(t, 3_000_000, offset, 20_000)

	var seq uint32
	require.Eventually(t, func() bool {
		s, err := client.Send(wire.SetState{Mood: wire.MoodHappy, Intensity: 128})
		if err != nil {
			return false
		}
		seq = s
		return true
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := h.get(seq)
		return ok
	}, 5*time.Second, 5*time.Millisecond, "heartbeat never acknowledged the command")

	lat, _ := h.get(seq)
	assert.True(t, lat.Synced)
	assert.Positive(t, lat.Total)
	assert.LessOrEqual(t, lat.ToApply, lat.Total+20*time.Millisecond)

	cancel()
	wg.Wait()
}
