package types

type HeartbeatRequest struct {
	AccessPointID string `json:"access_point_id"`
	Status        string `json:"status,omitempty"` // defaults to "online"
}

type HeartbeatResponse struct {
	OK            bool              `json:"ok"`
	Known         bool              `json:"known"`
	AccessPointID string            `json:"access_point_id"`
	Status        AccessPointStatus `json:"status"`
	ServerTime    string            `json:"server_time"`
}
