package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/ledger"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

var (
	ErrInvalidBadgeID    = errors.New("badge_id is required")
	ErrInvalidUserID     = errors.New("user_id is required")
	ErrUnknownBadge      = errors.New("unknown badge")
	ErrInvalidObservedAt = errors.New("observed_at must be an RFC3339 timestamp")
	ErrInvalidDirection  = errors.New("direction must be enter or exit")
)

// ScanService turns reader observations into ledger events.
type ScanService struct {
	registry *Registry
	ledger   *ledger.Ledger
	now      func() time.Time
	logger   *slog.Logger

	// mu keeps direction inference and append atomic per scan.
	mu sync.Mutex
}

func NewScanService(reg *Registry, l *ledger.Ledger, now func() time.Time, logger *slog.Logger) *ScanService {
	if now == nil {
		now = time.Now
	}
	return &ScanService{registry: reg, ledger: l, now: now, logger: logger}
}

// Scan resolves the badge and access point, infers the direction from the
// user's history and appends the event. An unresolvable badge never
// reaches the ledger.
func (s *ScanService) Scan(ctx context.Context, req types.ScanRequest) (types.ScanResponse, error) {
	badgeID := strings.TrimSpace(req.BadgeID)
	apID := strings.TrimSpace(req.AccessPointID)

	if badgeID == "" {
		return types.ScanResponse{}, ErrInvalidBadgeID
	}
	if apID == "" {
		return types.ScanResponse{}, ErrInvalidAccessPointID
	}

	user, ok := s.registry.UserByBadge(badgeID)
	if !ok {
		s.logger.Warn("scan rejected", "badge_id", badgeID, "access_point_id", apID, "reason", "unknown_badge")
		return types.ScanResponse{}, fmt.Errorf("%w %q", ErrUnknownBadge, badgeID)
	}
	ap, ok := s.registry.AccessPoint(apID)
	if !ok {
		return types.ScanResponse{}, fmt.Errorf("%w %q", ErrUnknownAccessPoint, apID)
	}
	ts, err := s.observedAt(req.ObservedAt)
	if err != nil {
		return types.ScanResponse{}, err
	}

	return s.append(ctx, types.AccessEvent{
		UserID:        user.ID,
		ZoneID:        ap.ZoneID,
		AccessPointID: ap.ID,
		Timestamp:     ts,
	})
}

// Record appends an event with a caller-chosen direction. The zone defaults
// to the access point's zone and an empty direction is inferred as in Scan.
func (s *ScanService) Record(ctx context.Context, req types.EventRequest) (types.ScanResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	apID := strings.TrimSpace(req.AccessPointID)
	zoneID := strings.TrimSpace(req.ZoneID)

	if userID == "" {
		return types.ScanResponse{}, ErrInvalidUserID
	}
	if apID == "" {
		return types.ScanResponse{}, ErrInvalidAccessPointID
	}

	var dir types.Direction
	if strings.TrimSpace(req.Direction) != "" {
		d, err := types.ParseDirection(req.Direction)
		if err != nil {
			return types.ScanResponse{}, ErrInvalidDirection
		}
		dir = d
	}

	if zoneID == "" {
		ap, ok := s.registry.AccessPoint(apID)
		if !ok {
			return types.ScanResponse{}, fmt.Errorf("%w %q", ErrUnknownAccessPoint, apID)
		}
		zoneID = ap.ZoneID
	}

	ts, err := s.observedAt(req.ObservedAt)
	if err != nil {
		return types.ScanResponse{}, err
	}

	return s.append(ctx, types.AccessEvent{
		UserID:        userID,
		ZoneID:        zoneID,
		AccessPointID: apID,
		Timestamp:     ts,
		Direction:     dir,
	})
}

func (s *ScanService) append(ctx context.Context, ev types.AccessEvent) (types.ScanResponse, error) {
	if err := ctx.Err(); err != nil {
		return types.ScanResponse{}, err
	}

	s.mu.Lock()
	if ev.Direction == "" {
		ev.Direction = s.ledger.InferNextDirection(ev.UserID)
	}
	stored, err := s.ledger.Append(ev)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("event rejected",
			"user_id", ev.UserID,
			"zone_id", ev.ZoneID,
			"access_point_id", ev.AccessPointID,
			"error", err,
		)
		return types.ScanResponse{}, err
	}

	s.logger.Debug("event appended",
		"id", stored.ID,
		"user_id", stored.UserID,
		"zone_id", stored.ZoneID,
		"direction", stored.Direction,
	)

	return types.ScanResponse{
		OK:               true,
		Event:            stored,
		ZoneOccupancy:    s.ledger.OccupancyCount(stored.ZoneID),
		ZoneOccupancyPct: s.ledger.OccupancyPercent(stored.ZoneID),
		ServerTime:       s.now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// observedAt parses an optional device timestamp; empty means now.
func (s *ScanService) observedAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, ErrInvalidObservedAt
}
