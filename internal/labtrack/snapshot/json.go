// Package snapshot serializes the full access event sequence for backup
// and interop. Both encodings keep the field order id, user, zone, access
// point, timestamp, direction.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

// Record is the JSON shape of one exported event.
type Record struct {
	ID            uint64 `json:"id"`
	UserID        string `json:"user_id"`
	ZoneID        string `json:"zone_id"`
	AccessPointID string `json:"access_point_id"`
	Timestamp     string `json:"timestamp"`
	Direction     string `json:"direction"`
}

func toRecord(ev types.AccessEvent) Record {
	return Record{
		ID:            ev.ID,
		UserID:        ev.UserID,
		ZoneID:        ev.ZoneID,
		AccessPointID: ev.AccessPointID,
		Timestamp:     ev.Timestamp.UTC().Format(time.RFC3339Nano),
		Direction:     string(ev.Direction),
	}
}

func (r Record) event() (types.AccessEvent, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return types.AccessEvent{}, fmt.Errorf("event %d: timestamp: %w", r.ID, err)
	}
	dir, err := types.ParseDirection(r.Direction)
	if err != nil {
		return types.AccessEvent{}, fmt.Errorf("event %d: %w", r.ID, err)
	}
	return types.AccessEvent{
		ID:            r.ID,
		UserID:        r.UserID,
		ZoneID:        r.ZoneID,
		AccessPointID: r.AccessPointID,
		Timestamp:     ts.UTC(),
		Direction:     dir,
	}, nil
}

// WriteJSON writes events as an indented JSON array.
func WriteJSON(w io.Writer, events []types.AccessEvent) error {
	recs := make([]Record, len(events))
	for i, ev := range events {
		recs[i] = toRecord(ev)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return fmt.Errorf("snapshot: encode json: %w", err)
	}
	return nil
}

func ReadJSON(r io.Reader) ([]types.AccessEvent, error) {
	var recs []Record
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("snapshot: decode json: %w", err)
	}
	out := make([]types.AccessEvent, 0, len(recs))
	for _, rec := range recs {
		ev, err := rec.event()
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}
