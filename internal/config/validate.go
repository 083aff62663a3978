package config

import (
	"fmt"
	"strings"
)

// Validate checks values the loader cannot. Load calls it.
func (c *Config) Validate() error {
	if c.Server.HealthCheckInterval < 0 {
		return fmt.Errorf("server.health_check_interval must be >= 0 (got %s)", c.Server.HealthCheckInterval)
	}

	switch c.Database.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("database.backend must be sqlite or memory (got %q)", c.Database.Backend)
	}
	if c.Database.Env != "dev" && c.Database.Env != "prod" {
		return fmt.Errorf("database.env must be dev or prod (got %q)", c.Database.Env)
	}
	if c.Database.Backend == "sqlite" && strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required for the sqlite backend")
	}

	if _, err := c.Ledger.Location(); err != nil {
		return fmt.Errorf("ledger.time_zone: %w", err)
	}
	if c.Ledger.MaxFutureSkew < 0 {
		return fmt.Errorf("ledger.max_future_skew must be >= 0 (got %s)", c.Ledger.MaxFutureSkew)
	}

	if c.Heartbeat.RetentionDays < 0 {
		return fmt.Errorf("heartbeat.retention_days must be >= 0 (got %d)", c.Heartbeat.RetentionDays)
	}
	if c.Heartbeat.PruneIntervalHours <= 0 {
		return fmt.Errorf("heartbeat.prune_interval_hours must be > 0 (got %d)", c.Heartbeat.PruneIntervalHours)
	}
	if c.Heartbeat.OfflineAfter < 0 {
		return fmt.Errorf("heartbeat.offline_after must be >= 0 (got %s)", c.Heartbeat.OfflineAfter)
	}

	if c.Snapshot.Interval < 0 {
		return fmt.Errorf("snapshot.interval must be >= 0 (got %s)", c.Snapshot.Interval)
	}
	if c.Snapshot.Keep < 0 {
		return fmt.Errorf("snapshot.keep must be >= 0 (got %d)", c.Snapshot.Keep)
	}

	if err := c.Simulator.validate(); err != nil {
		return fmt.Errorf("simulator: %w", err)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}
	return nil
}

func (s *SimulatorConfig) validate() error {
	if !s.Enabled {
		return nil
	}
	if s.ScanInterval <= 0 {
		return fmt.Errorf("scan_interval must be > 0 (got %s)", s.ScanInterval)
	}
	if s.StatusInterval <= 0 {
		return fmt.Errorf("status_interval must be > 0 (got %s)", s.StatusInterval)
	}
	if s.StatusFlipProb < 0 || s.StatusFlipProb > 1 {
		return fmt.Errorf("status_flip_prob must be within [0,1] (got %v)", s.StatusFlipProb)
	}
	if s.SeedVisits < 0 {
		return fmt.Errorf("seed_visits must be >= 0 (got %d)", s.SeedVisits)
	}
	return nil
}
