package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

// ReferenceData is the complete set of users, zones and access points the
// ledger validates events against.
type ReferenceData struct {
	Users        []types.User
	Zones        []types.Zone
	AccessPoints []types.AccessPoint
}

type ReferenceStore interface {
	LoadReference(ctx context.Context) (ReferenceData, error)
	// SetAccessPointStatus persists the latest status of a known access point.
	SetAccessPointStatus(ctx context.Context, id string, status types.AccessPointStatus, at time.Time) error
}
