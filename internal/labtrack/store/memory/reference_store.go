package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

// ReferenceStore serves fixed reference data. It is intended for tests and
// for running without a database.
type ReferenceStore struct {
	mu   sync.RWMutex
	data store.ReferenceData
}

func NewReferenceStore(data store.ReferenceData) *ReferenceStore {
	return &ReferenceStore{data: cloneReference(data)}
}

func (s *ReferenceStore) LoadReference(_ context.Context) (store.ReferenceData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneReference(s.data), nil
}

func (s *ReferenceStore) SetAccessPointStatus(_ context.Context, id string, status types.AccessPointStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.AccessPoints {
		if s.data.AccessPoints[i].ID == id {
			s.data.AccessPoints[i].Status = status
			s.data.AccessPoints[i].LastHeartbeat = at.UTC()
			return nil
		}
	}
	return fmt.Errorf("SetAccessPointStatus: unknown access point %q", id)
}

func cloneReference(d store.ReferenceData) store.ReferenceData {
	return store.ReferenceData{
		Users:        append([]types.User(nil), d.Users...),
		Zones:        append([]types.Zone(nil), d.Zones...),
		AccessPoints: append([]types.AccessPoint(nil), d.AccessPoints...),
	}
}

// DemoReference is the lab roster the dashboard ships with.
func DemoReference() store.ReferenceData {
	return store.ReferenceData{
		Users: []types.User{
			{ID: "1", DisplayName: "John Doe", Role: types.RoleStudent, BadgeID: "RF001"},
			{ID: "2", DisplayName: "Jane Smith", Role: types.RoleStudent, BadgeID: "RF002"},
			{ID: "3", DisplayName: "Dr. Robert Brown", Role: types.RoleStaff, BadgeID: "RF003"},
			{ID: "4", DisplayName: "Emma Wilson", Role: types.RoleStudent, BadgeID: "RF004"},
			{ID: "5", DisplayName: "Prof. Sarah Johnson", Role: types.RoleStaff, BadgeID: "RF005"},
			{ID: "6", DisplayName: "Michael Chen", Role: types.RoleStudent, BadgeID: "RF006"},
			{ID: "7", DisplayName: "Admin User", Role: types.RoleAdmin, BadgeID: "RF007"},
		},
		Zones: []types.Zone{
			{ID: "1", Name: "Computer Science Lab", Location: "Building A, Floor 2", Capacity: 30},
			{ID: "2", Name: "Biomedical Lab", Location: "Building B, Floor 1", Capacity: 25},
			{ID: "3", Name: "Electronics Lab", Location: "Building A, Floor 3", Capacity: 20},
			{ID: "4", Name: "Research Lab", Location: "Building C, Floor 2", Capacity: 15},
		},
		AccessPoints: []types.AccessPoint{
			{ID: "1", ZoneID: "1", Status: types.StatusOnline},
			{ID: "2", ZoneID: "1", Status: types.StatusOnline},
			{ID: "3", ZoneID: "2", Status: types.StatusOnline},
			{ID: "4", ZoneID: "3", Status: types.StatusOffline},
			{ID: "5", ZoneID: "4", Status: types.StatusError},
		},
	}
}
