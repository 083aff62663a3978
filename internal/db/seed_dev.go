package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store"
)

// SeedDev upserts reference data so a dev database starts with a usable
// roster. Existing rows are updated in place; access point status is left
// alone once a row exists so heartbeats are not overwritten on restart.
func SeedDev(ctx context.Context, db *sql.DB, data store.ReferenceData) error {
	now := time.Now().UTC().UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, z := range data.Zones {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO zones(zone_id, name, location, capacity, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(zone_id) DO UPDATE SET
  name = excluded.name,
  location = excluded.location,
  capacity = excluded.capacity,
  updated_at_ms = excluded.updated_at_ms;
`, z.ID, z.Name, z.Location, z.Capacity, now, now); err != nil {
			return fmt.Errorf("seed zone %s: %w", z.ID, err)
		}
	}

	for _, u := range data.Users {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO users(user_id, display_name, role, badge_id, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  display_name = excluded.display_name,
  role = excluded.role,
  badge_id = excluded.badge_id,
  updated_at_ms = excluded.updated_at_ms;
`, u.ID, u.DisplayName, string(u.Role), u.BadgeID, now, now); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}

	for _, ap := range data.AccessPoints {
		var hb any
		if !ap.LastHeartbeat.IsZero() {
			hb = ap.LastHeartbeat.UTC().UnixMilli()
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_points(access_point_id, zone_id, status, last_heartbeat_ms, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(access_point_id) DO UPDATE SET
  zone_id = excluded.zone_id,
  updated_at_ms = excluded.updated_at_ms;
`, ap.ID, ap.ZoneID, string(ap.Status), hb, now, now); err != nil {
			return fmt.Errorf("seed access point %s: %w", ap.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}
	return nil
}
