package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

type HeartbeatRecord struct {
	AccessPointID string
	Status        types.AccessPointStatus
	Known         bool
	ReceivedAt    time.Time
}

// HeartbeatStore keeps an append-only heartbeat history.
type HeartbeatStore interface {
	RecordHeartbeat(ctx context.Context, rec HeartbeatRecord) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
