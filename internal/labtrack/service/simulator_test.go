package service_test

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/service"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

func newSimulator(e *env, cfg service.SimulatorConfig, seed uint64) *service.Simulator {
	return service.NewSimulator(e.registry, e.scans, e.heartbeats, cfg, rand.New(rand.NewPCG(seed, seed)), silentLogger())
}

func TestSimulator_TickUsesOnlineAccessPoints(t *testing.T) {
	e := newEnv(t)
	sim := newSimulator(e, service.SimulatorConfig{}, 1)

	for i := 0; i < 50; i++ {
		resp, err := sim.Tick(context.Background())
		require.NoError(t, err)
		ap, _ := e.registry.AccessPoint(resp.Event.AccessPointID)
		assert.Equal(t, types.StatusOnline, ap.Status)
		e.clock.Advance(time.Second)
	}
	assert.Equal(t, 50, e.ledger.Len())
	require.NoError(t, e.ledger.Verify())
}

func TestSimulator_TickWithoutOnlineAccessPoints(t *testing.T) {
	e := newEnv(t)
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, e.registry.SetAccessPointStatus(id, types.StatusOffline, t0))
	}
	sim := newSimulator(e, service.SimulatorConfig{}, 1)

	_, err := sim.Tick(context.Background())
	assert.ErrorIs(t, err, service.ErrNothingToSimulate)
}

func TestSimulator_Deterministic(t *testing.T) {
	run := func() []types.AccessEvent {
		e := newEnv(t)
		sim := newSimulator(e, service.SimulatorConfig{}, 42)
		for i := 0; i < 10; i++ {
			_, err := sim.Tick(context.Background())
			require.NoError(t, err)
		}
		return e.ledger.Events()
	}
	assert.Equal(t, run(), run())
}

func TestSimulator_FlipStatuses(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	never := newSimulator(e, service.SimulatorConfig{StatusFlipProb: 0}, 7)
	assert.Empty(t, never.FlipStatuses(ctx))

	always := newSimulator(e, service.SimulatorConfig{StatusFlipProb: 1}, 7)
	flipped := always.FlipStatuses(ctx)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, flipped)
	for _, ap := range e.registry.AccessPoints() {
		assert.Equal(t, t0, ap.LastHeartbeat)
	}
	assert.Len(t, e.history.Records(), 5)
}

func TestSimulator_SeedHistory(t *testing.T) {
	e := newEnv(t)
	sim := newSimulator(e, service.SimulatorConfig{}, 3)

	n, err := sim.SeedHistory(context.Background(), 50, t0)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, 100, e.ledger.Len())
	require.NoError(t, e.ledger.Verify())

	for _, ev := range e.ledger.Events() {
		assert.False(t, ev.Timestamp.After(t0))
		assert.False(t, ev.Timestamp.Before(t0.Add(-7*24*time.Hour)))
	}
}

func TestSimulator_RunStopsOnCancel(t *testing.T) {
	e := newEnv(t)
	sim := newSimulator(e, service.SimulatorConfig{ScanInterval: time.Millisecond, StatusInterval: time.Millisecond, StatusFlipProb: 0.05}, 9)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()

	require.Eventually(t, func() bool { return e.ledger.Len() > 0 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
