package httpapi_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/labtrack/internal/httpapi"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/ledger"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/service"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/snapshot"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store/memory"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

var t0 = time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testServer struct {
	*httptest.Server
	clock     *clock
	ledger    *ledger.Ledger
	snapshots *memory.SnapshotStore
}

// newTestServer wires the full dependency graph over the demo roster and
// in-memory stores.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := &clock{t: t0}
	refs := memory.NewReferenceStore(memory.DemoReference())
	snaps := memory.NewSnapshotStore()

	reg := service.NewRegistry()
	require.NoError(t, reg.Load(context.Background(), refs))

	l := ledger.New(reg, ledger.Options{Now: clk.Now, MaxFutureSkew: time.Minute})
	scans := service.NewScanService(reg, l, clk.Now, logger)
	hb := service.NewHeartbeatService(reg, refs, memory.NewHeartbeatStore(),
		service.HeartbeatOptions{OfflineAfter: 5 * time.Minute, Now: clk.Now}, logger)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:           logger,
		Addr:             ":0",
		Registry:         reg,
		Ledger:           l,
		ScanService:      scans,
		HeartbeatService: hb,
		SnapshotService:  service.NewSnapshotService(l, snaps, service.SnapshotOptions{Now: clk.Now}, logger),
		Now:              clk.Now,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, clock: clk, ledger: l, snapshots: snaps}
}

func (ts *testServer) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// scan posts a badge scan and advances the clock so later scans sort after it.
func (ts *testServer) scan(t *testing.T, badge, ap string) types.ScanResponse {
	t.Helper()
	resp := ts.post(t, "/v1/scans", `{"badge_id":"`+badge+`","access_point_id":"`+ap+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out types.ScanResponse
	decode(t, resp, &out)
	ts.clock.Advance(time.Second)
	return out
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

type errBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func requireError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	var body errBody
	decode(t, resp, &body)
	assert.Equal(t, code, body.Error)
	assert.NotEmpty(t, body.Message)
}

// ── Health ───────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.get(t, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

// ── Heartbeat ────────────────────────────────────────────────────────────────

func TestHeartbeat_KnownAccessPoint(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.post(t, "/v1/heartbeat", `{"access_point_id":"4"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var hb types.HeartbeatResponse
	decode(t, resp, &hb)
	assert.True(t, hb.OK)
	assert.True(t, hb.Known)
	assert.Equal(t, types.StatusOnline, hb.Status)

	var aps struct {
		Online int `json:"online"`
	}
	decode(t, ts.get(t, "/v1/access-points"), &aps)
	assert.Equal(t, 4, aps.Online)
}

func TestHeartbeat_UnknownAccessPointStillAccepted(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.post(t, "/v1/heartbeat", `{"access_point_id":"ghost"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var hb types.HeartbeatResponse
	decode(t, resp, &hb)
	assert.True(t, hb.OK)
	assert.False(t, hb.Known)
}

func TestHeartbeat_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	requireError(t, ts.post(t, "/v1/heartbeat", `{"access_point_id":""}`), http.StatusBadRequest, "invalid_access_point_id")
	requireError(t, ts.post(t, "/v1/heartbeat", `{"access_point_id":"1","status":"melting"}`), http.StatusBadRequest, "invalid_status")
	requireError(t, ts.post(t, "/v1/heartbeat", `{"access_point_id":"1","extra":true}`), http.StatusBadRequest, "bad_json")
	requireError(t, ts.post(t, "/v1/heartbeat", `not json`), http.StatusBadRequest, "bad_json")
}

// ── Scans and events ─────────────────────────────────────────────────────────

func TestScan_AlternatesDirection(t *testing.T) {
	ts := newTestServer(t)

	first := ts.scan(t, "RF001", "1")
	assert.True(t, first.OK)
	assert.Equal(t, types.DirectionEnter, first.Event.Direction)
	assert.Equal(t, "1", first.Event.UserID)
	assert.Equal(t, "1", first.Event.ZoneID)
	assert.Equal(t, 1, first.ZoneOccupancy)
	assert.Equal(t, 3, first.ZoneOccupancyPct)

	second := ts.scan(t, "RF001", "2")
	assert.Equal(t, types.DirectionExit, second.Event.Direction)
	assert.Equal(t, 0, second.ZoneOccupancy)
	assert.Greater(t, second.Event.ID, first.Event.ID)
}

func TestScan_Rejections(t *testing.T) {
	ts := newTestServer(t)

	requireError(t, ts.post(t, "/v1/scans", `{"badge_id":"RF999","access_point_id":"1"}`), http.StatusNotFound, "unknown_badge")
	requireError(t, ts.post(t, "/v1/scans", `{"badge_id":"RF001","access_point_id":"99"}`), http.StatusNotFound, "unknown_access_point")
	requireError(t, ts.post(t, "/v1/scans", `{"badge_id":"","access_point_id":"1"}`), http.StatusBadRequest, "invalid_badge_id")
	requireError(t, ts.post(t, "/v1/scans", `{"badge_id":"RF001","access_point_id":"1","observed_at":"yesterday"}`), http.StatusBadRequest, "invalid_observed_at")

	assert.Equal(t, 0, ts.ledger.Len())
}

func TestRecordEvent(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/v1/events", `{"user_id":"3","access_point_id":"3","direction":"in"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out types.ScanResponse
	decode(t, resp, &out)
	assert.Equal(t, types.DirectionEnter, out.Event.Direction)
	assert.Equal(t, "2", out.Event.ZoneID)
}

func TestRecordEvent_Rejections(t *testing.T) {
	ts := newTestServer(t)

	requireError(t, ts.post(t, "/v1/events", `{"user_id":"1","access_point_id":"3","zone_id":"1","direction":"enter"}`),
		http.StatusUnprocessableEntity, string(ledger.ReasonZoneMismatch))
	requireError(t, ts.post(t, "/v1/events", `{"user_id":"42","access_point_id":"1","direction":"enter"}`),
		http.StatusUnprocessableEntity, string(ledger.ReasonUnknownReference))
	requireError(t, ts.post(t, "/v1/events", `{"user_id":"1","access_point_id":"1","direction":"sideways"}`),
		http.StatusBadRequest, "invalid_direction")
	requireError(t, ts.post(t, "/v1/events", `{"user_id":"1","access_point_id":"1","direction":"enter","observed_at":"2026-02-16T10:00:00Z"}`),
		http.StatusUnprocessableEntity, string(ledger.ReasonInvalidTimestamp))

	assert.Equal(t, 0, ts.ledger.Len())
}

func TestSearchEvents(t *testing.T) {
	ts := newTestServer(t)
	ts.scan(t, "RF001", "1") // John Doe, Computer Science Lab
	ts.scan(t, "RF002", "3") // Jane Smith, Biomedical Lab
	ts.scan(t, "RF001", "1")

	var all struct {
		Events []types.EventView `json:"events"`
		Count  int               `json:"count"`
	}
	decode(t, ts.get(t, "/v1/events?order=desc"), &all)
	require.Equal(t, 3, all.Count)
	assert.Equal(t, types.DirectionExit, all.Events[0].Direction)
	assert.Equal(t, "John Doe", all.Events[0].UserName)

	var byUser struct {
		Count int `json:"count"`
	}
	decode(t, ts.get(t, "/v1/events?q=john&field=user"), &byUser)
	assert.Equal(t, 2, byUser.Count)

	var byID struct {
		Events []types.EventView `json:"events"`
	}
	decode(t, ts.get(t, "/v1/events?q=2&field=user_id"), &byID)
	require.Len(t, byID.Events, 1)
	assert.Equal(t, "Jane Smith", byID.Events[0].UserName)

	var byZone struct {
		Events []types.EventView `json:"events"`
	}
	decode(t, ts.get(t, "/v1/events?q=biomed&field=zone"), &byZone)
	require.Len(t, byZone.Events, 1)
	assert.Equal(t, "RF002", byZone.Events[0].BadgeID)

	var limited struct {
		Count int `json:"count"`
	}
	decode(t, ts.get(t, "/v1/events?sort=user&limit=1"), &limited)
	assert.Equal(t, 1, limited.Count)
}

func TestSearchEvents_BadParams(t *testing.T) {
	ts := newTestServer(t)

	requireError(t, ts.get(t, "/v1/events?field=shoe"), http.StatusBadRequest, "invalid_field")
	requireError(t, ts.get(t, "/v1/events?sort=height"), http.StatusBadRequest, "invalid_sort")
	requireError(t, ts.get(t, "/v1/events?order=up"), http.StatusBadRequest, "invalid_order")
	requireError(t, ts.get(t, "/v1/events?limit=-2"), http.StatusBadRequest, "invalid_limit")
}

// ── Reference views ──────────────────────────────────────────────────────────

func TestUsers_NextDirection(t *testing.T) {
	ts := newTestServer(t)
	ts.scan(t, "RF002", "1")

	var users []struct {
		ID            string          `json:"id"`
		DisplayName   string          `json:"display_name"`
		NextDirection types.Direction `json:"next_direction"`
	}
	decode(t, ts.get(t, "/v1/users"), &users)
	require.Len(t, users, 7)
	assert.Equal(t, "1", users[0].ID)
	assert.Equal(t, types.DirectionEnter, users[0].NextDirection)
	assert.Equal(t, "Jane Smith", users[1].DisplayName)
	assert.Equal(t, types.DirectionExit, users[1].NextDirection)

	var next struct {
		Direction types.Direction `json:"direction"`
	}
	decode(t, ts.get(t, "/v1/users/2/next-direction"), &next)
	assert.Equal(t, types.DirectionExit, next.Direction)

	requireError(t, ts.get(t, "/v1/users/404/next-direction"), http.StatusNotFound, "unknown_user")
}

func TestZones_Occupancy(t *testing.T) {
	ts := newTestServer(t)
	ts.scan(t, "RF001", "1")
	ts.scan(t, "RF003", "2")

	var zones []struct {
		ID               string `json:"id"`
		Capacity         int    `json:"capacity"`
		Occupancy        int    `json:"occupancy"`
		OccupancyPercent int    `json:"occupancy_percent"`
		Level            string `json:"level"`
	}
	decode(t, ts.get(t, "/v1/zones"), &zones)
	require.Len(t, zones, 4)
	assert.Equal(t, "1", zones[0].ID)
	assert.Equal(t, 2, zones[0].Occupancy)
	assert.Equal(t, 7, zones[0].OccupancyPercent)
	assert.Equal(t, httpapi.LevelLow, zones[0].Level)
	assert.Equal(t, 0, zones[1].Occupancy)

	var occ struct {
		Count     int `json:"count"`
		Occupants []struct {
			UserID      string `json:"user_id"`
			DisplayName string `json:"display_name"`
		} `json:"occupants"`
	}
	decode(t, ts.get(t, "/v1/zones/1/occupancy"), &occ)
	assert.Equal(t, 2, occ.Count)
	require.Len(t, occ.Occupants, 2)
	assert.ElementsMatch(t, []string{"John Doe", "Dr. Robert Brown"},
		[]string{occ.Occupants[0].DisplayName, occ.Occupants[1].DisplayName})
}

func TestZoneOccupancy_UnknownZoneIsEmpty(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.get(t, "/v1/zones/nowhere/occupancy")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var occ struct {
		Count     int   `json:"count"`
		Occupants []any `json:"occupants"`
	}
	decode(t, resp, &occ)
	assert.Zero(t, occ.Count)
	assert.Empty(t, occ.Occupants)
}

func TestAccessPoints(t *testing.T) {
	ts := newTestServer(t)

	var body struct {
		AccessPoints  []types.AccessPoint `json:"access_points"`
		Online        int                 `json:"online"`
		Total         int                 `json:"total"`
		OnlinePercent int                 `json:"online_percent"`
	}
	decode(t, ts.get(t, "/v1/access-points"), &body)
	assert.Len(t, body.AccessPoints, 5)
	assert.Equal(t, 3, body.Online)
	assert.Equal(t, 5, body.Total)
	assert.Equal(t, 60, body.OnlinePercent)
}

func TestStats(t *testing.T) {
	ts := newTestServer(t)
	ts.scan(t, "RF001", "1")
	ts.scan(t, "RF002", "3")
	ts.scan(t, "RF002", "3")

	var st struct {
		ActiveUsers   int        `json:"active_users"`
		EventsToday   int        `json:"events_today"`
		TotalUsers    int        `json:"total_users"`
		LastEventTime *time.Time `json:"last_event_time"`
	}
	decode(t, ts.get(t, "/v1/stats"), &st)
	assert.Equal(t, 1, st.ActiveUsers)
	assert.Equal(t, 3, st.EventsToday)
	assert.Equal(t, 7, st.TotalUsers)
	require.NotNil(t, st.LastEventTime)
	assert.True(t, st.LastEventTime.Equal(t0.Add(2*time.Second)))

	var before struct {
		ActiveUsers   int        `json:"active_users"`
		LastEventTime *time.Time `json:"last_event_time"`
	}
	decode(t, ts.get(t, "/v1/stats?as_of=2026-02-15T12:00:00Z"), &before)
	assert.Zero(t, before.ActiveUsers)
	assert.Nil(t, before.LastEventTime)

	requireError(t, ts.get(t, "/v1/stats?as_of=noon"), http.StatusBadRequest, "invalid_as_of")
}

// ── Export, import and snapshots ─────────────────────────────────────────────

func TestExportImport_JSON(t *testing.T) {
	src := newTestServer(t)
	src.scan(t, "RF001", "1")
	src.scan(t, "RF004", "4")

	resp := src.get(t, "/v1/export")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	exported, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	dst := newTestServer(t)
	imp := dst.post(t, "/v1/import", string(exported))
	require.Equal(t, http.StatusCreated, imp.StatusCode)
	var out struct {
		Restored int `json:"restored"`
	}
	decode(t, imp, &out)
	assert.Equal(t, 2, out.Restored)
	assert.Equal(t, src.ledger.Events(), dst.ledger.Events())

	// A second import must not merge into existing history.
	requireError(t, dst.post(t, "/v1/import", string(exported)), http.StatusConflict, "ledger_not_empty")
}

func TestExportImport_Protobuf(t *testing.T) {
	src := newTestServer(t)
	src.scan(t, "RF005", "5")

	req, err := http.NewRequest(http.MethodGet, src.URL+"/v1/export", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", snapshot.ContentType)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, snapshot.ContentType, resp.Header.Get("Content-Type"))
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	dst := newTestServer(t)
	imp, err := http.Post(dst.URL+"/v1/import", snapshot.ContentType, bytes.NewReader(payload))
	require.NoError(t, err)
	defer imp.Body.Close()
	require.Equal(t, http.StatusCreated, imp.StatusCode)
	assert.Equal(t, src.ledger.Events(), dst.ledger.Events())
}

func TestImport_Malformed(t *testing.T) {
	ts := newTestServer(t)
	requireError(t, ts.post(t, "/v1/import", `{"not":"an array"}`), http.StatusBadRequest, "bad_snapshot")

	resp, err := http.Post(ts.URL+"/v1/import", snapshot.ContentType, bytes.NewReader([]byte{0x0a, 0xff}))
	require.NoError(t, err)
	defer resp.Body.Close()
	requireError(t, resp, http.StatusBadRequest, "bad_snapshot")
}

func TestImport_RejectsUnresolvedReferences(t *testing.T) {
	cases := []struct {
		name string
		body string
		code string
	}{
		{"unknown user", `[{"id":1,"user_id":"ghost","zone_id":"1","access_point_id":"1","timestamp":"2026-02-16T08:00:00Z","direction":"enter"}]`, string(ledger.ReasonUnknownReference)},
		{"unknown access point", `[{"id":1,"user_id":"1","zone_id":"1","access_point_id":"99","timestamp":"2026-02-16T08:00:00Z","direction":"enter"}]`, string(ledger.ReasonUnknownReference)},
		{"zone mismatch", `[{"id":1,"user_id":"1","zone_id":"2","access_point_id":"1","timestamp":"2026-02-16T08:00:00Z","direction":"enter"}]`, string(ledger.ReasonZoneMismatch)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			requireError(t, ts.post(t, "/v1/import", tc.body), http.StatusUnprocessableEntity, tc.code)
			assert.Equal(t, 0, ts.ledger.Len())

			var occ struct {
				Count int `json:"count"`
			}
			decode(t, ts.get(t, "/v1/zones/1/occupancy"), &occ)
			assert.Zero(t, occ.Count)
		})
	}
}

func TestSaveSnapshot(t *testing.T) {
	ts := newTestServer(t)
	ts.scan(t, "RF001", "1")

	resp := ts.post(t, "/v1/snapshots", ``)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var meta struct {
		ID         string `json:"id"`
		EventCount int    `json:"event_count"`
	}
	decode(t, resp, &meta)
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, 1, meta.EventCount)
	assert.Equal(t, 1, ts.snapshots.Len())
}

// ── Stream ───────────────────────────────────────────────────────────────────

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	ts.scan(t, "RF006", "3")

	sc := bufio.NewScanner(resp.Body)
	var data string
	for sc.Scan() {
		if line, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
			data = line
			break
		}
	}
	require.NotEmpty(t, data, "no event received: %v", sc.Err())

	var view types.EventView
	require.NoError(t, json.Unmarshal([]byte(data), &view))
	assert.Equal(t, "6", view.UserID)
	assert.Equal(t, "Michael Chen", view.UserName)
	assert.Equal(t, types.DirectionEnter, view.Direction)
}
