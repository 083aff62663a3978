package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/ledger"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/service"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store/memory"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var t0 = time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC)

type env struct {
	clock      *clock
	refs       *memory.ReferenceStore
	history    *memory.HeartbeatStore
	snapshots  *memory.SnapshotStore
	registry   *service.Registry
	ledger     *ledger.Ledger
	scans      *service.ScanService
	heartbeats *service.HeartbeatService
}

// newEnv wires the services over the demo roster and in-memory stores.
func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		clock:     newClock(t0),
		refs:      memory.NewReferenceStore(memory.DemoReference()),
		history:   memory.NewHeartbeatStore(),
		snapshots: memory.NewSnapshotStore(),
		registry:  service.NewRegistry(),
	}
	require.NoError(t, e.registry.Load(context.Background(), e.refs))

	e.ledger = ledger.New(e.registry, ledger.Options{Now: e.clock.Now, MaxFutureSkew: time.Minute})
	e.scans = service.NewScanService(e.registry, e.ledger, e.clock.Now, silentLogger())
	e.heartbeats = service.NewHeartbeatService(e.registry, e.refs, e.history,
		service.HeartbeatOptions{OfflineAfter: 5 * time.Minute, Now: e.clock.Now}, silentLogger())
	return e
}
