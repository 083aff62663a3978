package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store"
)

// HeartbeatPruner periodically deletes heartbeat history older than the
// retention period and, when a HeartbeatService is attached, marks silent
// access points offline.
//
// A retention of 0 disables pruning. With no stale check either, Start
// does nothing.
type HeartbeatPruner struct {
	store         store.HeartbeatStore
	stale         *HeartbeatService
	retention     time.Duration
	interval      time.Duration
	staleInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
	cancel        context.CancelFunc
	done          chan struct{}
}

type PrunerConfig struct {
	// RetentionDays is how many days of heartbeat history to keep.
	// 0 keeps everything.
	RetentionDays int

	// IntervalHours is how often pruning runs. Defaults to 6.
	IntervalHours int

	// Stale, when set, has MarkStale called every StaleInterval
	// (default one minute).
	Stale         *HeartbeatService
	StaleInterval time.Duration

	Now func() time.Time
}

// NewHeartbeatPruner creates a pruner but does not start it.
func NewHeartbeatPruner(s store.HeartbeatStore, cfg PrunerConfig, logger *slog.Logger) *HeartbeatPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	staleInterval := cfg.StaleInterval
	if staleInterval <= 0 {
		staleInterval = time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &HeartbeatPruner{
		store:         s,
		stale:         cfg.Stale,
		retention:     time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:      interval,
		staleInterval: staleInterval,
		now:           now,
		logger:        logger,
		done:          make(chan struct{}),
	}
}

// Start runs one pass immediately, then repeats on the configured
// intervals until ctx is cancelled or Stop is called.
func (p *HeartbeatPruner) Start(ctx context.Context) {
	if p.retention <= 0 && p.stale == nil {
		p.logger.Info("heartbeat pruner disabled", "retention_days", 0)
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.logger.Info("heartbeat pruner started",
		"retention_days", int(p.retention.Hours()/24),
		"interval", p.interval,
		"stale_check", p.stale != nil,
	)
}

// Stop signals the loop to exit and waits for it. Safe to call more than
// once.
func (p *HeartbeatPruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *HeartbeatPruner) loop(ctx context.Context) {
	defer close(p.done)

	p.prune(ctx)
	p.markStale(ctx)

	pruneTicker := time.NewTicker(p.interval)
	defer pruneTicker.Stop()
	staleTicker := time.NewTicker(p.staleInterval)
	defer staleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pruneTicker.C:
			p.prune(ctx)
		case <-staleTicker.C:
			p.markStale(ctx)
		}
	}
}

func (p *HeartbeatPruner) prune(ctx context.Context) {
	if p.retention <= 0 {
		return
	}
	cutoff := p.now().UTC().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("heartbeat prune", "error", err)
		return
	}
	if deleted > 0 {
		p.logger.Info("heartbeat prune", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
}

func (p *HeartbeatPruner) markStale(ctx context.Context) {
	if p.stale == nil {
		return
	}
	p.stale.MarkStale(ctx, p.now().UTC())
}
