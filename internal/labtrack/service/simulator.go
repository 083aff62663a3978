package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

var ErrNothingToSimulate = errors.New("simulator: no users or online access points")

type SimulatorConfig struct {
	ScanInterval   time.Duration
	StatusInterval time.Duration
	// StatusFlipProb is the chance per access point per status tick of
	// reporting a random new status.
	StatusFlipProb float64
}

// Simulator generates reader traffic for demos: badge scans at online
// access points and occasional status changes.
type Simulator struct {
	registry   *Registry
	scans      *ScanService
	heartbeats *HeartbeatService
	cfg        SimulatorConfig
	logger     *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulator(reg *Registry, scans *ScanService, hb *HeartbeatService, cfg SimulatorConfig, rng *rand.Rand, logger *slog.Logger) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulator{
		registry:   reg,
		scans:      scans,
		heartbeats: hb,
		cfg:        cfg,
		logger:     logger,
		rng:        rng,
	}
}

// Tick scans a random user's badge at a random online access point.
func (s *Simulator) Tick(ctx context.Context) (types.ScanResponse, error) {
	users := s.registry.Users()
	var online []types.AccessPoint
	for _, ap := range s.registry.AccessPoints() {
		if ap.Status == types.StatusOnline {
			online = append(online, ap)
		}
	}
	if len(users) == 0 || len(online) == 0 {
		return types.ScanResponse{}, ErrNothingToSimulate
	}

	s.mu.Lock()
	u := users[s.rng.IntN(len(users))]
	ap := online[s.rng.IntN(len(online))]
	s.mu.Unlock()

	return s.scans.Scan(ctx, types.ScanRequest{BadgeID: u.BadgeID, AccessPointID: ap.ID})
}

// FlipStatuses reports a random status for each access point with
// probability StatusFlipProb and returns the ids that reported.
func (s *Simulator) FlipStatuses(ctx context.Context) []string {
	statuses := []types.AccessPointStatus{types.StatusOnline, types.StatusOffline, types.StatusError}

	var flipped []string
	for _, ap := range s.registry.AccessPoints() {
		s.mu.Lock()
		hit := s.rng.Float64() < s.cfg.StatusFlipProb
		next := statuses[s.rng.IntN(len(statuses))]
		s.mu.Unlock()
		if !hit {
			continue
		}
		if _, err := s.heartbeats.Record(ctx, types.HeartbeatRequest{AccessPointID: ap.ID, Status: string(next)}); err != nil {
			s.logger.Warn("simulated status report", "access_point_id", ap.ID, "error", err)
			continue
		}
		flipped = append(flipped, ap.ID)
	}
	return flipped
}

// SeedHistory appends visits random past visits within the week before now:
// an enter at the zone's first access point followed by an exit one to
// three hours later. It returns the number of events appended.
func (s *Simulator) SeedHistory(ctx context.Context, visits int, now time.Time) (int, error) {
	users := s.registry.Users()
	zones := s.registry.Zones()
	firstAP := make(map[string]string)
	for _, ap := range s.registry.AccessPoints() {
		if _, ok := firstAP[ap.ZoneID]; !ok {
			firstAP[ap.ZoneID] = ap.ID
		}
	}
	if len(users) == 0 || len(firstAP) == 0 {
		return 0, ErrNothingToSimulate
	}

	const week = 7 * 24 * time.Hour
	appended := 0
	for i := 0; i < visits; i++ {
		s.mu.Lock()
		u := users[s.rng.IntN(len(users))]
		z := zones[s.rng.IntN(len(zones))]
		enterAt := now.Add(-time.Duration(s.rng.Int64N(int64(week))))
		stay := time.Hour + time.Duration(s.rng.Int64N(int64(2*time.Hour)))
		s.mu.Unlock()

		apID, ok := firstAP[z.ID]
		if !ok {
			continue
		}
		exitAt := enterAt.Add(stay)
		if exitAt.After(now) {
			exitAt = now
		}

		for _, step := range []struct {
			dir types.Direction
			at  time.Time
		}{{types.DirectionEnter, enterAt}, {types.DirectionExit, exitAt}} {
			if _, err := s.scans.Record(ctx, types.EventRequest{
				UserID:        u.ID,
				AccessPointID: apID,
				ZoneID:        z.ID,
				Direction:     string(step.dir),
				ObservedAt:    step.at.UTC().Format(time.RFC3339Nano),
			}); err != nil {
				return appended, err
			}
			appended++
		}
	}
	s.logger.Info("seeded access history", "events", appended)
	return appended, nil
}

// Run drives Tick and FlipStatuses on their intervals until ctx is done.
// A zero interval disables that half.
func (s *Simulator) Run(ctx context.Context) error {
	var scanC, statusC <-chan time.Time
	if s.cfg.ScanInterval > 0 {
		t := time.NewTicker(s.cfg.ScanInterval)
		defer t.Stop()
		scanC = t.C
	}
	if s.cfg.StatusInterval > 0 {
		t := time.NewTicker(s.cfg.StatusInterval)
		defer t.Stop()
		statusC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-scanC:
			if _, err := s.Tick(ctx); err != nil && !errors.Is(err, ErrNothingToSimulate) {
				s.logger.Warn("simulated scan", "error", err)
			}
		case <-statusC:
			if ids := s.FlipStatuses(ctx); len(ids) > 0 {
				s.logger.Debug("simulated status change", "access_points", ids)
			}
		}
	}
}
