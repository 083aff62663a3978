package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

var ErrUnknownAccessPoint = errors.New("unknown access point")

// Registry holds the reference data in memory and resolves badges. It
// satisfies ledger.Directory.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]types.User
	badges map[string]string // badge id -> user id
	zones  map[string]types.Zone
	aps    map[string]types.AccessPoint
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]types.User),
		badges: make(map[string]string),
		zones:  make(map[string]types.Zone),
		aps:    make(map[string]types.AccessPoint),
	}
}

// Load replaces the registry contents with what st returns. The data is
// checked first; on error the previous contents stay in place.
func (r *Registry) Load(ctx context.Context, st store.ReferenceStore) error {
	data, err := st.LoadReference(ctx)
	if err != nil {
		return fmt.Errorf("load reference data: %w", err)
	}

	users := make(map[string]types.User, len(data.Users))
	badges := make(map[string]string, len(data.Users))
	for _, u := range data.Users {
		if !u.Role.Valid() {
			return fmt.Errorf("user %q: invalid role %q", u.ID, u.Role)
		}
		if _, dup := users[u.ID]; dup {
			return fmt.Errorf("duplicate user id %q", u.ID)
		}
		if owner, dup := badges[u.BadgeID]; dup {
			return fmt.Errorf("badge %q assigned to users %q and %q", u.BadgeID, owner, u.ID)
		}
		users[u.ID] = u
		badges[u.BadgeID] = u.ID
	}

	zones := make(map[string]types.Zone, len(data.Zones))
	for _, z := range data.Zones {
		if z.Capacity <= 0 {
			return fmt.Errorf("zone %q: capacity must be positive, got %d", z.ID, z.Capacity)
		}
		zones[z.ID] = z
	}

	aps := make(map[string]types.AccessPoint, len(data.AccessPoints))
	for _, ap := range data.AccessPoints {
		if _, ok := zones[ap.ZoneID]; !ok {
			return fmt.Errorf("access point %q: unknown zone %q", ap.ID, ap.ZoneID)
		}
		if !ap.Status.Valid() {
			ap.Status = types.StatusOffline
		}
		aps[ap.ID] = ap
	}

	r.mu.Lock()
	r.users, r.badges, r.zones, r.aps = users, badges, zones, aps
	r.mu.Unlock()
	return nil
}

func (r *Registry) User(id string) (types.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

// UserByBadge resolves a badge id exactly after trimming surrounding space.
func (r *Registry) UserByBadge(badgeID string) (types.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.badges[strings.TrimSpace(badgeID)]
	if !ok {
		return types.User{}, false
	}
	return r.users[id], true
}

func (r *Registry) Zone(id string) (types.Zone, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	z, ok := r.zones[id]
	return z, ok
}

func (r *Registry) AccessPoint(id string) (types.AccessPoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ap, ok := r.aps[id]
	return ap, ok
}

func (r *Registry) Users() []types.User {
	r.mu.RLock()
	out := make([]types.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out
}

func (r *Registry) Zones() []types.Zone {
	r.mu.RLock()
	out := make([]types.Zone, 0, len(r.zones))
	for _, z := range r.zones {
		out = append(out, z)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out
}

func (r *Registry) AccessPoints() []types.AccessPoint {
	r.mu.RLock()
	out := make([]types.AccessPoint, 0, len(r.aps))
	for _, ap := range r.aps {
		out = append(out, ap)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out
}

// SetAccessPointStatus records a status report. The zone assignment never
// changes here.
func (r *Registry) SetAccessPointStatus(id string, status types.AccessPointStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ap, ok := r.aps[id]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownAccessPoint, id)
	}
	ap.Status = status
	ap.LastHeartbeat = at.UTC()
	r.aps[id] = ap
	return nil
}

// idLess orders numeric ids numerically ("2" < "10") and everything else
// lexically.
func idLess(a, b string) bool {
	if isDigits(a) && isDigits(b) && len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
