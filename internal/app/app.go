package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/labtrack/internal/config"
	"github.com/BrandonDHaskell/labtrack/internal/db"
	"github.com/BrandonDHaskell/labtrack/internal/grpcapi"
	"github.com/BrandonDHaskell/labtrack/internal/httpapi"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/ledger"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/service"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store/memory"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store/sqlite"
)

// App is the wired server process: stores, services and both listeners.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	sqlDB  *sql.DB
	writer *db.Worker

	refs      store.ReferenceStore
	history   store.HeartbeatStore
	snapStore store.SnapshotStore

	Registry   *service.Registry
	Ledger     *ledger.Ledger
	Scans      *service.ScanService
	Heartbeats *service.HeartbeatService
	Snapshots  *service.SnapshotService
	Simulator  *service.Simulator

	pruner *service.HeartbeatPruner
	http   *httpapi.Server
	grpc   *grpcapi.Server
}

// New opens the configured backend, loads reference data and restores the
// latest snapshot. Call Close when done, whether or not Run was called.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	switch a.cfg.Database.Backend {
	case "memory":
		a.refs = memory.NewReferenceStore(memory.DemoReference())
		a.history = memory.NewHeartbeatStore()
		a.snapStore = memory.NewSnapshotStore()
		a.logger.Warn("using in-memory backend; nothing survives a restart")
		return nil

	case "sqlite":
		sqlDB, err := db.Open(ctx, db.Config{Path: a.cfg.Database.Path, Env: a.cfg.Database.Env})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.sqlDB = sqlDB
		if a.cfg.Database.Env == "dev" && a.cfg.Database.SeedDev {
			if err := db.SeedDev(ctx, sqlDB, memory.DemoReference()); err != nil {
				return fmt.Errorf("seed dev data: %w", err)
			}
			a.logger.Info("dev reference data seeded")
		}
		a.writer = db.NewWorker(sqlDB)
		a.refs = sqlite.NewReferenceStore(sqlDB, a.writer)
		a.history = sqlite.NewHeartbeatStore(sqlDB, a.writer)
		a.snapStore = sqlite.NewSnapshotStore(sqlDB, a.writer)
		a.logger.Info("database opened", "path", a.cfg.Database.Path)
		return nil
	}
	return fmt.Errorf("unknown database backend %q", a.cfg.Database.Backend)
}

func (a *App) build(ctx context.Context) error {
	loc, err := a.cfg.Ledger.Location()
	if err != nil {
		return fmt.Errorf("ledger time zone: %w", err)
	}

	a.Registry = service.NewRegistry()
	if err := a.Registry.Load(ctx, a.refs); err != nil {
		return fmt.Errorf("load reference data: %w", err)
	}
	a.logger.Info("reference data loaded",
		"users", len(a.Registry.Users()),
		"zones", len(a.Registry.Zones()),
		"access_points", len(a.Registry.AccessPoints()),
	)

	a.Ledger = ledger.New(a.Registry, ledger.Options{Location: loc, MaxFutureSkew: a.cfg.Ledger.MaxFutureSkew})
	a.Scans = service.NewScanService(a.Registry, a.Ledger, time.Now, a.logger)
	a.Heartbeats = service.NewHeartbeatService(a.Registry, a.refs, a.history,
		service.HeartbeatOptions{OfflineAfter: a.cfg.Heartbeat.OfflineAfter}, a.logger)
	a.Snapshots = service.NewSnapshotService(a.Ledger, a.snapStore,
		service.SnapshotOptions{Keep: a.cfg.Snapshot.Keep}, a.logger)

	if a.cfg.Snapshot.RestoreOnStart {
		if _, err := a.Snapshots.Restore(ctx); err != nil {
			return err
		}
	}

	if sim := a.cfg.Simulator; sim.Enabled {
		var rng *rand.Rand
		if sim.Seed != 0 {
			rng = rand.New(rand.NewPCG(sim.Seed, sim.Seed))
		}
		a.Simulator = service.NewSimulator(a.Registry, a.Scans, a.Heartbeats, service.SimulatorConfig{
			ScanInterval:   sim.ScanInterval,
			StatusInterval: sim.StatusInterval,
			StatusFlipProb: sim.StatusFlipProb,
		}, rng, a.logger)
		if a.Ledger.Len() == 0 && sim.SeedVisits > 0 {
			if _, err := a.Simulator.SeedHistory(ctx, sim.SeedVisits, time.Now()); err != nil {
				return fmt.Errorf("seed simulated history: %w", err)
			}
		}
	}

	a.pruner = service.NewHeartbeatPruner(a.history, service.PrunerConfig{
		RetentionDays: a.cfg.Heartbeat.RetentionDays,
		IntervalHours: a.cfg.Heartbeat.PruneIntervalHours,
		Stale:         a.Heartbeats,
		StaleInterval: a.cfg.Heartbeat.StaleCheckInterval,
	}, a.logger)

	srv := a.cfg.Server
	a.http = httpapi.NewServer(httpapi.Dependencies{
		Logger:           a.logger,
		Addr:             srv.HTTPAddr,
		ReadTimeout:      srv.ReadTimeout,
		WriteTimeout:     srv.WriteTimeout,
		IdleTimeout:      srv.IdleTimeout,
		RequestTimeout:   srv.RequestTimeout,
		Registry:         a.Registry,
		Ledger:           a.Ledger,
		ScanService:      a.Scans,
		HeartbeatService: a.Heartbeats,
		SnapshotService:  a.Snapshots,
	})
	if srv.GRPCAddr != "" {
		a.grpc = grpcapi.NewServer(grpcapi.Config{
			Addr:          srv.GRPCAddr,
			CheckInterval: srv.HealthCheckInterval,
		}, a.Ledger, a.logger)
	}
	return nil
}

// Run serves until ctx is cancelled or a listener fails, then shuts every
// component down. The snapshot loop takes its final save before Run
// returns.
func (a *App) Run(ctx context.Context) error {
	a.pruner.Start(ctx)
	defer a.pruner.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(a.http.Start)
	if a.grpc != nil {
		g.Go(func() error { return a.grpc.Serve(gctx) })
	}
	g.Go(func() error { return a.Snapshots.Run(gctx, a.cfg.Snapshot.Interval) })
	if a.Simulator != nil {
		g.Go(func() error { return a.Simulator.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if a.grpc != nil {
			a.grpc.Stop()
		}
		return a.http.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases the database. Safe on a partially built App.
func (a *App) Close() {
	if a.writer != nil {
		a.writer.Close()
	}
	if a.sqlDB != nil {
		if err := a.sqlDB.Close(); err != nil {
			a.logger.Error("close database", "error", err)
		}
	}
}
