package httpapi

import (
	"net/http"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/ledger"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

// Occupancy display levels, matching the dashboard colouring.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

func occupancyLevel(pct int) string {
	switch {
	case pct > 80:
		return LevelHigh
	case pct > 50:
		return LevelMedium
	default:
		return LevelLow
	}
}

type userView struct {
	types.User
	NextDirection types.Direction `json:"next_direction"`
}

func (v *userView) Render(w http.ResponseWriter, r *http.Request) error { return nil }

type nextDirectionView struct {
	UserID    string          `json:"user_id"`
	Direction types.Direction `json:"direction"`
}

func (v *nextDirectionView) Render(w http.ResponseWriter, r *http.Request) error { return nil }

type zoneView struct {
	types.Zone
	Occupancy        int    `json:"occupancy"`
	OccupancyPercent int    `json:"occupancy_percent"`
	Level            string `json:"level"`
}

func (v *zoneView) Render(w http.ResponseWriter, r *http.Request) error { return nil }

type occupantView struct {
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Role        types.Role `json:"role"`
	BadgeID     string     `json:"badge_id"`
}

type zoneOccupancyView struct {
	ZoneID           string         `json:"zone_id"`
	Count            int            `json:"count"`
	OccupancyPercent int            `json:"occupancy_percent"`
	Level            string         `json:"level"`
	Occupants        []occupantView `json:"occupants"`
}

func (v *zoneOccupancyView) Render(w http.ResponseWriter, r *http.Request) error { return nil }

type accessPointsView struct {
	AccessPoints  []types.AccessPoint `json:"access_points"`
	Online        int                 `json:"online"`
	Total         int                 `json:"total"`
	OnlinePercent int                 `json:"online_percent"`
}

func (v *accessPointsView) Render(w http.ResponseWriter, r *http.Request) error { return nil }

type statsView struct {
	ActiveUsers   int        `json:"active_users"`
	EventsToday   int        `json:"events_today"`
	TotalUsers    int        `json:"total_users"`
	LastEventTime *time.Time `json:"last_event_time"`
	AsOf          time.Time  `json:"as_of"`
}

func (v *statsView) Render(w http.ResponseWriter, r *http.Request) error { return nil }

func newStatsView(st ledger.Stats, totalUsers int) *statsView {
	return &statsView{
		ActiveUsers:   st.ActiveUsers,
		EventsToday:   st.EventsOnDay,
		TotalUsers:    totalUsers,
		LastEventTime: st.LastEventTime,
		AsOf:          st.AsOf,
	}
}

type eventsView struct {
	Events []types.EventView `json:"events"`
	Count  int               `json:"count"`
}

func (v *eventsView) Render(w http.ResponseWriter, r *http.Request) error { return nil }

type scanView struct {
	types.ScanResponse
}

func (v *scanView) Render(w http.ResponseWriter, r *http.Request) error { return nil }

type heartbeatView struct {
	types.HeartbeatResponse
}

func (v *heartbeatView) Render(w http.ResponseWriter, r *http.Request) error { return nil }

type importView struct {
	Restored int `json:"restored"`
}

func (v *importView) Render(w http.ResponseWriter, r *http.Request) error { return nil }
