package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/labtrack/internal/db"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

type SnapshotStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewSnapshotStore(db *sql.DB, writer *dbpkg.Worker) *SnapshotStore {
	return &SnapshotStore{db: db, writer: writer}
}

// SaveSnapshot writes the header row and every event in one transaction.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, meta store.SnapshotMeta, events []types.AccessEvent) error {
	if meta.ID == "" {
		return errors.New("SaveSnapshot: empty snapshot id")
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO snapshots(snapshot_id, created_at_ms, event_count)
VALUES (?, ?, ?);
`, meta.ID, meta.CreatedAt.UTC().UnixMilli(), len(events)); err != nil {
			return fmt.Errorf("SaveSnapshot header: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO snapshot_events(
  snapshot_id, event_id, user_id, zone_id, access_point_id, timestamp_ns, direction
) VALUES (?, ?, ?, ?, ?, ?, ?);
`)
		if err != nil {
			return fmt.Errorf("SaveSnapshot prepare: %w", err)
		}
		defer stmt.Close()

		for _, ev := range events {
			if _, err := stmt.ExecContext(ctx,
				meta.ID, int64(ev.ID), ev.UserID, ev.ZoneID, ev.AccessPointID,
				ev.Timestamp.UnixNano(), string(ev.Direction),
			); err != nil {
				return fmt.Errorf("SaveSnapshot event %d: %w", ev.ID, err)
			}
		}
		return nil
	})
}

// LatestSnapshot loads the most recently created snapshot with its events
// in (timestamp, id) order.
func (s *SnapshotStore) LatestSnapshot(ctx context.Context) (store.SnapshotMeta, []types.AccessEvent, error) {
	var meta store.SnapshotMeta
	var createdMs int64
	err := s.db.QueryRowContext(ctx, `
SELECT snapshot_id, created_at_ms, event_count
FROM snapshots
ORDER BY created_at_ms DESC, rowid DESC
LIMIT 1;`).Scan(&meta.ID, &createdMs, &meta.EventCount)
	if errors.Is(err, sql.ErrNoRows) {
		return store.SnapshotMeta{}, nil, store.ErrNoSnapshot
	}
	if err != nil {
		return store.SnapshotMeta{}, nil, fmt.Errorf("LatestSnapshot: %w", err)
	}
	meta.CreatedAt = time.UnixMilli(createdMs).UTC()

	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, user_id, zone_id, access_point_id, timestamp_ns, direction
FROM snapshot_events
WHERE snapshot_id = ?
ORDER BY timestamp_ns, event_id;`, meta.ID)
	if err != nil {
		return store.SnapshotMeta{}, nil, fmt.Errorf("LatestSnapshot events: %w", err)
	}
	defer rows.Close()

	events := make([]types.AccessEvent, 0, meta.EventCount)
	for rows.Next() {
		var ev types.AccessEvent
		var id, ts int64
		var dir string
		if err := rows.Scan(&id, &ev.UserID, &ev.ZoneID, &ev.AccessPointID, &ts, &dir); err != nil {
			return store.SnapshotMeta{}, nil, fmt.Errorf("LatestSnapshot scan: %w", err)
		}
		ev.ID = uint64(id)
		ev.Timestamp = time.Unix(0, ts).UTC()
		ev.Direction = types.Direction(dir)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return store.SnapshotMeta{}, nil, fmt.Errorf("LatestSnapshot rows: %w", err)
	}
	return meta, events, nil
}

// PruneKeepLatest deletes every snapshot older than the keep newest; their
// events go with them through the cascading foreign key.
func (s *SnapshotStore) PruneKeepLatest(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	var removed int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM snapshots
WHERE snapshot_id NOT IN (
  SELECT snapshot_id FROM snapshots
  ORDER BY created_at_ms DESC, rowid DESC
  LIMIT ?
);`, keep)
		if err != nil {
			return fmt.Errorf("PruneKeepLatest: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}
