package main

import (
	"encoding/binary"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlink-robotics/devlink-go/pkg/handoff"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

func TestSimClock(t *testing.T) {
	c := newSimClock(3*time.Second, 100)

	assert.Equal(t, uint64(3_000_000), c.at(0))
	// 100ppm over 10s is 1ms.
	assert.InDelta(t, 3_000_000+10_001_000, float64(c.at(10*time.Second)), 1)

	neg := newSimClock(-time.Second, 0)
	assert.Equal(t, uint64(0), neg.at(0))
}

func TestSimulatorTelemetry(t *testing.T) {
	s := &simulator{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	s.ApplyState(handoff.Command[wire.SetState]{Value: wire.SetState{Mood: wire.MoodHappy, Intensity: 9}})
	s.ApplyTalking(handoff.Command[wire.SetTalking]{Value: wire.SetTalking{Talking: true}})
	s.ApplyFlags(handoff.Command[wire.SetFlags]{Value: wire.SetFlags{Flags: 0x0102}})
	s.ApplyMotion(handoff.Command[wire.SetMotion]{Value: wire.SetMotion{LinearMMs: -100, AngularMradS: 50}})
	s.PlayGesture(wire.GestureCommand{Gesture: wire.GestureNod})

	st := s.Telemetry(0)
	require.Len(t, st, 2)

	assert.Equal(t, wire.TypeDisplayStatus, st[0].Type)
	assert.Equal(t, []byte{byte(wire.MoodHappy), 9, 1, 0x02, 0x01, 1, 0, 0, 0}, st[0].Data)

	assert.Equal(t, wire.TypeMotionStatus, st[1].Type)
	require.Len(t, st[1].Data, 4)
	assert.Equal(t, int16(-100), int16(binary.LittleEndian.Uint16(st[1].Data[0:2])))
	assert.Equal(t, int16(50), int16(binary.LittleEndian.Uint16(st[1].Data[2:4])))
}
