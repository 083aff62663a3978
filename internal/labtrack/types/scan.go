package types

// ScanRequest is a raw reader observation: a badge seen at an access point.
type ScanRequest struct {
	BadgeID       string `json:"badge_id"`
	AccessPointID string `json:"access_point_id"`
	ObservedAt    string `json:"observed_at,omitempty"` // optional RFC3339 device timestamp
}

// EventRequest appends an event with an explicit direction.
type EventRequest struct {
	UserID        string `json:"user_id"`
	AccessPointID string `json:"access_point_id"`
	ZoneID        string `json:"zone_id,omitempty"` // defaults to the access point's zone
	Direction     string `json:"direction"`
	ObservedAt    string `json:"observed_at,omitempty"`
}

type ScanResponse struct {
	OK               bool        `json:"ok"`
	Event            AccessEvent `json:"event"`
	ZoneOccupancy    int         `json:"zone_occupancy"`
	ZoneOccupancyPct int         `json:"zone_occupancy_pct"`
	ServerTime       string      `json:"server_time"`
}
