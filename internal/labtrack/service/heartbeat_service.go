package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

var (
	ErrInvalidAccessPointID = errors.New("access_point_id is required")
	ErrInvalidStatus        = errors.New("status must be online, offline or error")
)

type HeartbeatOptions struct {
	// OfflineAfter is how long an access point may stay silent before
	// MarkStale reports it offline. Zero disables stale detection.
	OfflineAfter time.Duration
	Now          func() time.Time
}

// HeartbeatService applies reader status reports to the registry and keeps
// their history.
type HeartbeatService struct {
	registry     *Registry
	refs         store.ReferenceStore
	history      store.HeartbeatStore
	offlineAfter time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewHeartbeatService wires the service. refs may be nil when status
// changes need not outlive the process.
func NewHeartbeatService(reg *Registry, refs store.ReferenceStore, history store.HeartbeatStore, opts HeartbeatOptions, logger *slog.Logger) *HeartbeatService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &HeartbeatService{
		registry:     reg,
		refs:         refs,
		history:      history,
		offlineAfter: opts.OfflineAfter,
		now:          now,
		logger:       logger,
	}
}

func (s *HeartbeatService) Record(ctx context.Context, req types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	id := strings.TrimSpace(req.AccessPointID)
	if id == "" {
		return types.HeartbeatResponse{}, ErrInvalidAccessPointID
	}

	status := types.StatusOnline
	if raw := strings.ToLower(strings.TrimSpace(req.Status)); raw != "" {
		status = types.AccessPointStatus(raw)
		if !status.Valid() {
			return types.HeartbeatResponse{}, ErrInvalidStatus
		}
	}

	now := s.now().UTC()
	_, known := s.registry.AccessPoint(id)
	if known {
		if err := s.registry.SetAccessPointStatus(id, status, now); err != nil {
			return types.HeartbeatResponse{}, err
		}
		s.persistStatus(ctx, id, status, now)
	}

	if err := s.history.RecordHeartbeat(ctx, store.HeartbeatRecord{
		AccessPointID: id,
		Status:        status,
		Known:         known,
		ReceivedAt:    now,
	}); err != nil {
		return types.HeartbeatResponse{}, err
	}

	return types.HeartbeatResponse{
		OK:            true,
		Known:         known,
		AccessPointID: id,
		Status:        status,
		ServerTime:    now.Format(time.RFC3339Nano),
	}, nil
}

// MarkStale switches access points silent for longer than OfflineAfter to
// offline and returns their ids. Readers that never reported are left as
// loaded.
func (s *HeartbeatService) MarkStale(ctx context.Context, now time.Time) []string {
	if s.offlineAfter <= 0 {
		return nil
	}
	cutoff := now.Add(-s.offlineAfter)

	var changed []string
	for _, ap := range s.registry.AccessPoints() {
		if ap.Status == types.StatusOffline || ap.LastHeartbeat.IsZero() || !ap.LastHeartbeat.Before(cutoff) {
			continue
		}
		if err := s.registry.SetAccessPointStatus(ap.ID, types.StatusOffline, ap.LastHeartbeat); err != nil {
			continue
		}
		s.persistStatus(ctx, ap.ID, types.StatusOffline, ap.LastHeartbeat)
		changed = append(changed, ap.ID)
	}
	if len(changed) > 0 {
		s.logger.Info("access points marked offline", "ids", changed, "silent_for", s.offlineAfter)
	}
	return changed
}

// persistStatus is best effort: the in-memory registry stays authoritative
// for the running process.
func (s *HeartbeatService) persistStatus(ctx context.Context, id string, status types.AccessPointStatus, at time.Time) {
	if s.refs == nil {
		return
	}
	if err := s.refs.SetAccessPointStatus(ctx, id, status, at); err != nil {
		s.logger.Warn("persist access point status", "access_point_id", id, "error", err)
	}
}
