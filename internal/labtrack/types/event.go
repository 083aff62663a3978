package types

import (
	"fmt"
	"strings"
	"time"
)

type Direction string

const (
	DirectionEnter Direction = "enter"
	DirectionExit  Direction = "exit"
)

// Opposite returns the direction a following scan would take.
func (d Direction) Opposite() Direction {
	if d == DirectionEnter {
		return DirectionExit
	}
	return DirectionEnter
}

func (d Direction) Valid() bool {
	return d == DirectionEnter || d == DirectionExit
}

// ParseDirection accepts "enter"/"exit" as well as the dashboard's "in"/"out".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enter", "in":
		return DirectionEnter, nil
	case "exit", "out":
		return DirectionExit, nil
	}
	return "", fmt.Errorf("invalid direction %q", s)
}

// AccessEvent is a single directional badge scan. Events are immutable once
// appended to the ledger.
type AccessEvent struct {
	ID            uint64    `json:"id"`
	UserID        string    `json:"user_id"`
	ZoneID        string    `json:"zone_id"`
	AccessPointID string    `json:"access_point_id"`
	Timestamp     time.Time `json:"timestamp"`
	Direction     Direction `json:"direction"`
}

// EventView is an AccessEvent joined with the reference data the dashboard
// displays next to it.
type EventView struct {
	AccessEvent
	UserName string `json:"user_name"`
	UserRole Role   `json:"user_role"`
	BadgeID  string `json:"badge_id"`
	ZoneName string `json:"zone_name"`
}
