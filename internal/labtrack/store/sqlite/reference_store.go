package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/labtrack/internal/db"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

type ReferenceStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewReferenceStore(db *sql.DB, writer *dbpkg.Worker) *ReferenceStore {
	return &ReferenceStore{db: db, writer: writer}
}

func (s *ReferenceStore) LoadReference(ctx context.Context) (store.ReferenceData, error) {
	var out store.ReferenceData
	var err error

	if out.Users, err = s.loadUsers(ctx); err != nil {
		return store.ReferenceData{}, err
	}
	if out.Zones, err = s.loadZones(ctx); err != nil {
		return store.ReferenceData{}, err
	}
	if out.AccessPoints, err = s.loadAccessPoints(ctx); err != nil {
		return store.ReferenceData{}, err
	}
	return out, nil
}

func (s *ReferenceStore) loadUsers(ctx context.Context) ([]types.User, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT user_id, display_name, role, badge_id
FROM users
ORDER BY user_id;`)
	if err != nil {
		return nil, fmt.Errorf("LoadReference users: %w", err)
	}
	defer rows.Close()

	var out []types.User
	for rows.Next() {
		var u types.User
		var role string
		if err := rows.Scan(&u.ID, &u.DisplayName, &role, &u.BadgeID); err != nil {
			return nil, fmt.Errorf("LoadReference scan user: %w", err)
		}
		u.Role = types.Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *ReferenceStore) loadZones(ctx context.Context) ([]types.Zone, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT zone_id, name, location, capacity
FROM zones
ORDER BY zone_id;`)
	if err != nil {
		return nil, fmt.Errorf("LoadReference zones: %w", err)
	}
	defer rows.Close()

	var out []types.Zone
	for rows.Next() {
		var z types.Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.Location, &z.Capacity); err != nil {
			return nil, fmt.Errorf("LoadReference scan zone: %w", err)
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

func (s *ReferenceStore) loadAccessPoints(ctx context.Context) ([]types.AccessPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT access_point_id, zone_id, status, last_heartbeat_ms
FROM access_points
ORDER BY access_point_id;`)
	if err != nil {
		return nil, fmt.Errorf("LoadReference access points: %w", err)
	}
	defer rows.Close()

	var out []types.AccessPoint
	for rows.Next() {
		var ap types.AccessPoint
		var status string
		var hb sql.NullInt64
		if err := rows.Scan(&ap.ID, &ap.ZoneID, &status, &hb); err != nil {
			return nil, fmt.Errorf("LoadReference scan access point: %w", err)
		}
		ap.Status = types.AccessPointStatus(status)
		if hb.Valid {
			ap.LastHeartbeat = time.UnixMilli(hb.Int64).UTC()
		}
		out = append(out, ap)
	}
	return out, rows.Err()
}

func (s *ReferenceStore) SetAccessPointStatus(ctx context.Context, id string, status types.AccessPointStatus, at time.Time) error {
	atMs := at.UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE access_points
SET status = ?,
    last_heartbeat_ms = ?,
    updated_at_ms = ?
WHERE access_point_id = ?;
`, string(status), atMs, atMs, id)
		if err != nil {
			return fmt.Errorf("SetAccessPointStatus: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("SetAccessPointStatus: unknown access point %q", id)
		}
		return nil
	})
}
