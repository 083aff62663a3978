package ledger

import (
	"fmt"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

// presenceIndex is the state obtained by folding events in timestamp order.
type presenceIndex struct {
	occupants map[string]map[string]struct{} // zone -> users present
	lastDir   map[string]types.Direction     // user -> most recent direction, any zone
	latest    time.Time                      // timestamp of the last folded event
	folded    int
}

func newPresenceIndex() *presenceIndex {
	return &presenceIndex{
		occupants: make(map[string]map[string]struct{}),
		lastDir:   make(map[string]types.Direction),
	}
}

// fold applies one event. Enter is set insertion, exit is set removal, so
// repeated same-direction events are harmless.
func (ix *presenceIndex) fold(ev types.AccessEvent) {
	switch ev.Direction {
	case types.DirectionEnter:
		set, ok := ix.occupants[ev.ZoneID]
		if !ok {
			set = make(map[string]struct{})
			ix.occupants[ev.ZoneID] = set
		}
		set[ev.UserID] = struct{}{}
	case types.DirectionExit:
		if set, ok := ix.occupants[ev.ZoneID]; ok {
			delete(set, ev.UserID)
			if len(set) == 0 {
				delete(ix.occupants, ev.ZoneID)
			}
		}
	}
	ix.lastDir[ev.UserID] = ev.Direction
	ix.latest = ev.Timestamp
	ix.folded++
}

// accepts reports whether ev can be folded on top of the current state
// without reordering.
func (ix *presenceIndex) accepts(ev types.AccessEvent) bool {
	return ix.folded == 0 || !ev.Timestamp.Before(ix.latest)
}

func (ix *presenceIndex) activeUsers() int {
	n := 0
	for _, d := range ix.lastDir {
		if d == types.DirectionEnter {
			n++
		}
	}
	return n
}

func replay(events []types.AccessEvent) *presenceIndex {
	ix := newPresenceIndex()
	for _, ev := range events {
		ix.fold(ev)
	}
	return ix
}

// equal compares two indexes and describes the first difference found.
func (ix *presenceIndex) equal(other *presenceIndex) error {
	if ix.folded != other.folded {
		return fmt.Errorf("folded %d events, replay folded %d", ix.folded, other.folded)
	}
	if len(ix.occupants) != len(other.occupants) {
		return fmt.Errorf("%d occupied zones, replay has %d", len(ix.occupants), len(other.occupants))
	}
	for zone, set := range ix.occupants {
		want := other.occupants[zone]
		if len(set) != len(want) {
			return fmt.Errorf("zone %q has %d occupants, replay has %d", zone, len(set), len(want))
		}
		for u := range set {
			if _, ok := want[u]; !ok {
				return fmt.Errorf("zone %q: user %q present only incrementally", zone, u)
			}
		}
	}
	if len(ix.lastDir) != len(other.lastDir) {
		return fmt.Errorf("%d users seen, replay has %d", len(ix.lastDir), len(other.lastDir))
	}
	for u, d := range ix.lastDir {
		if other.lastDir[u] != d {
			return fmt.Errorf("user %q last direction %s, replay %s", u, d, other.lastDir[u])
		}
	}
	return nil
}
