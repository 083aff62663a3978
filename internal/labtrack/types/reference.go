package types

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	BadgeID     string `json:"badge_id"`
}

// Zone is a lab or room tracked for occupancy.
type Zone struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Capacity int    `json:"capacity"`
}

type AccessPointStatus string

const (
	StatusOnline  AccessPointStatus = "online"
	StatusOffline AccessPointStatus = "offline"
	StatusError   AccessPointStatus = "error"
)

func (s AccessPointStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusError:
		return true
	}
	return false
}

// AccessPoint is a badge reader fixed to exactly one zone.
type AccessPoint struct {
	ID            string            `json:"id"`
	ZoneID        string            `json:"zone_id"`
	Status        AccessPointStatus `json:"status"`
	LastHeartbeat time.Time         `json:"last_heartbeat"`
}
