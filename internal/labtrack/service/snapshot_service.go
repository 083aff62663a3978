package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/ledger"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

type SnapshotOptions struct {
	// Keep is how many snapshots survive each save; 0 keeps all of them.
	Keep int

	// Now defaults to time.Now.
	Now func() time.Time
}

// SnapshotService copies the ledger to a SnapshotStore and restores it at
// startup.
type SnapshotService struct {
	ledger *ledger.Ledger
	store  store.SnapshotStore
	keep   int
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	stored  ledgerMark // ledger state held by the newest stored snapshot
	hasMark bool
}

// ledgerMark identifies a ledger state. The sequence only grows, so equal
// length and last id mean equal content.
type ledgerMark struct {
	length int
	lastID uint64
}

func NewSnapshotService(l *ledger.Ledger, st store.SnapshotStore, opts SnapshotOptions, logger *slog.Logger) *SnapshotService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	keep := opts.Keep
	if keep < 0 {
		keep = 0
	}
	return &SnapshotService{ledger: l, store: st, keep: keep, now: now, logger: logger}
}

// Save persists the current event sequence under a fresh id, then prunes
// snapshots beyond the retention count. The ledger is only read.
func (s *SnapshotService) Save(ctx context.Context) (store.SnapshotMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx)
}

// Caller holds mu.
func (s *SnapshotService) save(ctx context.Context) (store.SnapshotMeta, error) {
	events := s.ledger.Events()
	mark := markOf(events)
	meta := store.SnapshotMeta{
		ID:         uuid.NewString(),
		CreatedAt:  s.now().UTC(),
		EventCount: len(events),
	}
	if err := s.store.SaveSnapshot(ctx, meta, events); err != nil {
		return store.SnapshotMeta{}, fmt.Errorf("save snapshot: %w", err)
	}
	s.stored, s.hasMark = mark, true
	s.logger.Info("snapshot saved", "snapshot_id", meta.ID, "events", meta.EventCount)

	if s.keep > 0 {
		removed, err := s.store.PruneKeepLatest(ctx, s.keep)
		if err != nil {
			s.logger.Error("prune snapshots", "error", err)
		} else if removed > 0 {
			s.logger.Info("old snapshots pruned", "removed", removed, "kept", s.keep)
		}
	}
	return meta, nil
}

// SaveIfChanged saves only when the ledger differs from the newest stored
// snapshot and is not empty. It reports whether a snapshot was written.
func (s *SnapshotService) SaveIfChanged(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := ledgerMark{length: s.ledger.Len(), lastID: s.ledger.LastID()}
	if cur.length == 0 || (s.hasMark && cur == s.stored) {
		return false, nil
	}
	if _, err := s.save(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func markOf(events []types.AccessEvent) ledgerMark {
	m := ledgerMark{length: len(events)}
	for _, ev := range events {
		if ev.ID > m.lastID {
			m.lastID = ev.ID
		}
	}
	return m
}

// Restore loads the latest snapshot into the ledger, which must be empty.
// It reports false when no snapshot exists.
func (s *SnapshotService) Restore(ctx context.Context) (bool, error) {
	if s.ledger.Len() > 0 {
		return false, ledger.ErrLedgerNotEmpty
	}
	meta, events, err := s.store.LatestSnapshot(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if err := s.ledger.Restore(events); err != nil {
		return false, fmt.Errorf("restore snapshot %s: %w", meta.ID, err)
	}
	s.mu.Lock()
	s.stored, s.hasMark = markOf(events), true
	s.mu.Unlock()
	s.logger.Info("snapshot restored", "snapshot_id", meta.ID, "events", len(events), "created_at", meta.CreatedAt)
	return true, nil
}

// Run saves a snapshot every interval until ctx is done, then takes a
// final one. Saves are skipped while the ledger is unchanged since the last
// stored snapshot, and an empty ledger is never saved so it cannot shadow
// an older snapshot. Failures are logged and the loop continues.
func (s *SnapshotService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if _, err := s.SaveIfChanged(final); err != nil {
				s.logger.Error("final snapshot", "error", err)
			}
			cancel()
			return nil
		case <-ticker.C:
			if _, err := s.SaveIfChanged(ctx); err != nil {
				s.logger.Error("periodic snapshot", "error", err)
			}
		}
	}
}
