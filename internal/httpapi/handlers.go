package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/ledger"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/snapshot"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"status": "ok", "events": s.ledger.Len()})
}

// ── Ingestion ────────────────────────────────────────────────────────────────

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req types.HeartbeatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		_ = render.Render(w, r, errInvalidRequest("bad_json", err))
		return
	}

	resp, err := s.heartbeats.Record(r.Context(), req)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, &heartbeatView{resp})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req types.ScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		_ = render.Render(w, r, errInvalidRequest("bad_json", err))
		return
	}

	resp, err := s.scans.Scan(r.Context(), req)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	_ = render.Render(w, r, &scanView{resp})
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var req types.EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		_ = render.Render(w, r, errInvalidRequest("bad_json", err))
		return
	}

	resp, err := s.scans.Record(r.Context(), req)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	_ = render.Render(w, r, &scanView{resp})
}

// ── Queries ──────────────────────────────────────────────────────────────────

// handleSearchEvents serves ?q=&field=user|user_id|badge|zone&sort=timestamp|user|zone&order=asc|desc&limit=N.
func (s *Server) handleSearchEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	field, ok := ledger.ParseSearchField(q.Get("field"))
	if !ok {
		_ = render.Render(w, r, errInvalidRequest("invalid_field", fmt.Errorf("field must be user, user_id, badge or zone")))
		return
	}
	key, ok := ledger.ParseSortKey(q.Get("sort"))
	if !ok {
		_ = render.Render(w, r, errInvalidRequest("invalid_sort", fmt.Errorf("sort must be timestamp, user or zone")))
		return
	}
	order, ok := ledger.ParseOrder(q.Get("order"))
	if !ok {
		_ = render.Render(w, r, errInvalidRequest("invalid_order", fmt.Errorf("order must be asc or desc")))
		return
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			_ = render.Render(w, r, errInvalidRequest("invalid_limit", fmt.Errorf("limit must be a non-negative integer")))
			return
		}
		limit = n
	}

	views := s.ledger.Search(ledger.MatchText(field, q.Get("q")))
	ledger.SortViews(views, key, order)
	if limit > 0 && len(views) > limit {
		views = views[:limit]
	}
	_ = render.Render(w, r, &eventsView{Events: views, Count: len(views)})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users := s.registry.Users()
	out := make([]render.Renderer, 0, len(users))
	for _, u := range users {
		out = append(out, &userView{User: u, NextDirection: s.ledger.InferNextDirection(u.ID)})
	}
	_ = render.RenderList(w, r, out)
}

func (s *Server) handleNextDirection(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if _, ok := s.registry.User(userID); !ok {
		_ = render.Render(w, r, errNotFound("unknown_user", fmt.Errorf("unknown user %q", userID)))
		return
	}
	_ = render.Render(w, r, &nextDirectionView{UserID: userID, Direction: s.ledger.InferNextDirection(userID)})
}

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	zones := s.registry.Zones()
	out := make([]render.Renderer, 0, len(zones))
	for _, z := range zones {
		pct := s.ledger.OccupancyPercent(z.ID)
		out = append(out, &zoneView{
			Zone:             z,
			Occupancy:        s.ledger.OccupancyCount(z.ID),
			OccupancyPercent: pct,
			Level:            occupancyLevel(pct),
		})
	}
	_ = render.RenderList(w, r, out)
}

// handleZoneOccupancy answers for any zone id; ids without history have no
// occupants.
func (s *Server) handleZoneOccupancy(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneID")

	ids := s.ledger.CurrentOccupants(zoneID)
	occupants := make([]occupantView, 0, len(ids))
	for _, id := range ids {
		v := occupantView{UserID: id}
		if u, ok := s.registry.User(id); ok {
			v.DisplayName, v.Role, v.BadgeID = u.DisplayName, u.Role, u.BadgeID
		}
		occupants = append(occupants, v)
	}

	pct := s.ledger.OccupancyPercent(zoneID)
	_ = render.Render(w, r, &zoneOccupancyView{
		ZoneID:           zoneID,
		Count:            len(ids),
		OccupancyPercent: pct,
		Level:            occupancyLevel(pct),
		Occupants:        occupants,
	})
}

func (s *Server) handleListAccessPoints(w http.ResponseWriter, r *http.Request) {
	aps := s.registry.AccessPoints()
	online := 0
	for _, ap := range aps {
		if ap.Status == types.StatusOnline {
			online++
		}
	}
	_ = render.Render(w, r, &accessPointsView{
		AccessPoints:  aps,
		Online:        online,
		Total:         len(aps),
		OnlinePercent: ledger.Percent(online, len(aps)),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	asOf := s.now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("as_of")); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			_ = render.Render(w, r, errInvalidRequest("invalid_as_of", fmt.Errorf("as_of must be an RFC3339 timestamp")))
			return
		}
		asOf = t.UTC()
	}
	st := s.ledger.GlobalStats(asOf)
	_ = render.Render(w, r, newStatsView(st, len(s.registry.Users())))
}

// ── Snapshots ────────────────────────────────────────────────────────────────

// handleExport serves the full sequence as JSON, or as protobuf wire format
// when the client accepts application/x-protobuf.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	events := s.ledger.Events()
	if wantsProtobuf(r) {
		writeBinary(w, http.StatusOK, snapshot.MarshalBinary(events))
		return
	}

	var buf bytes.Buffer
	if err := snapshot.WriteJSON(&buf, events); err != nil {
		s.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="labtrack-events.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleImport restores an exported sequence into an empty ledger.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := readLimited(w, r, maxImportBody)
	if err != nil {
		_ = render.Render(w, r, errInvalidRequest("bad_body", err))
		return
	}

	var events []types.AccessEvent
	if isProtobuf(r) {
		events, err = snapshot.UnmarshalBinary(body)
	} else {
		events, err = snapshot.ReadJSON(bytes.NewReader(body))
	}
	if err != nil {
		_ = render.Render(w, r, errInvalidRequest("bad_snapshot", err))
		return
	}

	if err := s.ledger.Restore(events); err != nil {
		var rej *ledger.RejectionError
		if errors.Is(err, ledger.ErrLedgerNotEmpty) || errors.As(err, &rej) {
			s.renderError(w, r, err)
			return
		}
		_ = render.Render(w, r, errInvalidRequest("bad_snapshot", err))
		return
	}
	s.logger.Info("events imported", "count", len(events))
	render.Status(r, http.StatusCreated)
	_ = render.Render(w, r, &importView{Restored: len(events)})
}

func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		_ = render.Render(w, r, &ErrResponse{HTTPStatusCode: http.StatusNotImplemented, Code: "snapshots_disabled", Message: "snapshot storage is not configured"})
		return
	}
	meta, err := s.snapshots.Save(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, meta)
}
