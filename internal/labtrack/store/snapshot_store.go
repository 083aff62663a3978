package store

import (
	"context"
	"errors"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

var ErrNoSnapshot = errors.New("no snapshot stored")

type SnapshotMeta struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	EventCount int       `json:"event_count"`
}

// SnapshotStore persists full copies of the event sequence.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, meta SnapshotMeta, events []types.AccessEvent) error
	// LatestSnapshot returns ErrNoSnapshot when nothing has been saved.
	LatestSnapshot(ctx context.Context) (SnapshotMeta, []types.AccessEvent, error)
	// PruneKeepLatest deletes all but the keep most recent snapshots and
	// returns how many were removed. keep <= 0 removes nothing.
	PruneKeepLatest(ctx context.Context, keep int) (int64, error)
}
