package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/labtrack/internal/db"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store"
)

type HeartbeatStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewHeartbeatStore(db *sql.DB, writer *dbpkg.Worker) *HeartbeatStore {
	return &HeartbeatStore{db: db, writer: writer}
}

// RecordHeartbeat appends one row to the history. Records without an access
// point id are dropped.
func (s *HeartbeatStore) RecordHeartbeat(ctx context.Context, rec store.HeartbeatRecord) error {
	id := strings.TrimSpace(rec.AccessPointID)
	if id == "" {
		return nil
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}

	var known int
	if rec.Known {
		known = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_point_heartbeats(access_point_id, known, status, received_at_ms)
VALUES (?, ?, ?, ?);
`, id, known, string(rec.Status), rec.ReceivedAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("RecordHeartbeat: %w", err)
		}
		return nil
	})
}

// PruneOlderThan deletes history rows received before cutoff and returns
// how many were removed. Access point rows are untouched.
func (s *HeartbeatStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM access_point_heartbeats
WHERE received_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
