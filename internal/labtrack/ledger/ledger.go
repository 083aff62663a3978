// Package ledger keeps the append-only access event sequence and answers
// presence queries derived from it.
//
// The event sequence, iterated in timestamp order, is the only source of
// truth for who is where. A presence index is maintained incrementally for
// in-order appends; an append that lands before the latest folded event
// marks the index dirty and the next query rebuilds it by full replay.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

// Directory resolves the reference data an event must point at.
type Directory interface {
	User(id string) (types.User, bool)
	Zone(id string) (types.Zone, bool)
	AccessPoint(id string) (types.AccessPoint, bool)
}

type Options struct {
	// Location decides calendar-day boundaries for GlobalStats.
	// Defaults to UTC.
	Location *time.Location

	// MaxFutureSkew rejects events stamped further than this ahead of Now.
	// Zero disables the check.
	MaxFutureSkew time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

type Ledger struct {
	dir  Directory
	loc  *time.Location
	skew time.Duration
	now  func() time.Time

	mu     sync.RWMutex
	events []types.AccessEvent // ordered by timestamp, then arrival
	lastID uint64
	index  *presenceIndex
	dirty  bool

	subMu   sync.Mutex
	subs    map[int]chan types.AccessEvent
	nextSub int
}

func New(dir Directory, opts Options) *Ledger {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		dir:   dir,
		loc:   loc,
		skew:  opts.MaxFutureSkew,
		now:   now,
		index: newPresenceIndex(),
		subs:  make(map[int]chan types.AccessEvent),
	}
}

// Append validates ev against the directory, assigns it the next id and
// inserts it into the sequence by timestamp. Equal timestamps keep arrival
// order. ev.ID is ignored. Validation failures leave the ledger untouched.
func (l *Ledger) Append(ev types.AccessEvent) (types.AccessEvent, error) {
	if err := l.validate(ev); err != nil {
		return types.AccessEvent{}, err
	}

	l.mu.Lock()
	l.lastID++
	ev.ID = l.lastID
	ev.Timestamp = ev.Timestamp.UTC()

	pos := l.insertionPoint(ev.Timestamp)
	l.events = append(l.events, types.AccessEvent{})
	copy(l.events[pos+1:], l.events[pos:])
	l.events[pos] = ev

	if !l.dirty && l.index.accepts(ev) {
		l.index.fold(ev)
	} else {
		l.dirty = true
	}
	// Published under mu so subscribers see events in id order.
	l.publish(ev)
	l.mu.Unlock()

	return ev, nil
}

func (l *Ledger) validate(ev types.AccessEvent) error {
	if ev.Timestamp.IsZero() {
		return &RejectionError{Reason: ReasonInvalidTimestamp, Kind: "timestamp", Detail: "timestamp is required"}
	}
	if l.skew > 0 && ev.Timestamp.After(l.now().Add(l.skew)) {
		return &RejectionError{
			Reason: ReasonInvalidTimestamp,
			Kind:   "timestamp",
			Detail: fmt.Sprintf("%s is more than %s in the future", ev.Timestamp.UTC().Format(time.RFC3339), l.skew),
		}
	}
	if !ev.Direction.Valid() {
		return &RejectionError{Reason: ReasonInvalidDirection, Kind: "direction", ID: string(ev.Direction)}
	}
	return l.checkReferences(ev)
}

// checkReferences resolves the event's user, zone and access point and
// requires the access point to sit in the event's zone.
func (l *Ledger) checkReferences(ev types.AccessEvent) error {
	if _, ok := l.dir.User(ev.UserID); !ok {
		return unknown("user", ev.UserID)
	}
	if _, ok := l.dir.Zone(ev.ZoneID); !ok {
		return unknown("zone", ev.ZoneID)
	}
	ap, ok := l.dir.AccessPoint(ev.AccessPointID)
	if !ok {
		return unknown("access point", ev.AccessPointID)
	}
	if ap.ZoneID != ev.ZoneID {
		return &RejectionError{
			Reason: ReasonZoneMismatch,
			Kind:   "access point",
			ID:     ev.AccessPointID,
			Detail: fmt.Sprintf("belongs to zone %q, not %q", ap.ZoneID, ev.ZoneID),
		}
	}
	return nil
}

// insertionPoint returns the index after every event stamped at or before t.
// Caller holds mu.
func (l *Ledger) insertionPoint(t time.Time) int {
	return sort.Search(len(l.events), func(i int) bool {
		return l.events[i].Timestamp.After(t)
	})
}

// Restore loads a previously exported sequence into an empty ledger. Ids
// are preserved and the next assigned id follows the largest restored one.
// Every event must resolve against the directory as on Append; only the
// future-skew check is skipped. Any failure leaves the ledger untouched.
func (l *Ledger) Restore(events []types.AccessEvent) error {
	seen := make(map[uint64]struct{}, len(events))
	for _, ev := range events {
		if ev.ID == 0 {
			return fmt.Errorf("restore: event without id")
		}
		if _, dup := seen[ev.ID]; dup {
			return fmt.Errorf("restore: duplicate event id %d", ev.ID)
		}
		seen[ev.ID] = struct{}{}
		if !ev.Direction.Valid() {
			return fmt.Errorf("restore: event %d: %w", ev.ID,
				&RejectionError{Reason: ReasonInvalidDirection, Kind: "direction", ID: string(ev.Direction)})
		}
		if ev.Timestamp.IsZero() {
			return fmt.Errorf("restore: event %d: %w", ev.ID,
				&RejectionError{Reason: ReasonInvalidTimestamp, Kind: "timestamp", Detail: "timestamp is required"})
		}
		if err := l.checkReferences(ev); err != nil {
			return fmt.Errorf("restore: event %d: %w", ev.ID, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) > 0 {
		return ErrLedgerNotEmpty
	}

	restored := make([]types.AccessEvent, len(events))
	copy(restored, events)
	sort.SliceStable(restored, func(i, j int) bool {
		a, b := restored[i], restored[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
	for i := range restored {
		restored[i].Timestamp = restored[i].Timestamp.UTC()
		if restored[i].ID > l.lastID {
			l.lastID = restored[i].ID
		}
	}
	l.events = restored
	l.index = replay(l.events)
	l.dirty = false
	return nil
}

// withIndex runs fn against an up-to-date index while holding the ledger
// lock, so fn may also read l.events. A dirty index is rebuilt under the
// write lock so readers never see a partial rebuild.
func (l *Ledger) withIndex(fn func(ix *presenceIndex)) {
	l.mu.RLock()
	if !l.dirty {
		defer l.mu.RUnlock()
		fn(l.index)
		return
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dirty {
		l.index = replay(l.events)
		l.dirty = false
	}
	fn(l.index)
}

// Verify replays the stored sequence from empty state and compares the
// result with the incrementally maintained index. A dirty index is rebuilt
// instead; there is nothing incremental left to check and Verify returns
// nil.
func (l *Ledger) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	fresh := replay(l.events)
	if l.dirty {
		l.index = fresh
		l.dirty = false
		return nil
	}
	if diff := l.index.equal(fresh); diff != nil {
		return fmt.Errorf("%w: %v", ErrIndexRebuild, diff)
	}
	return nil
}

// CurrentOccupants returns the users present in zoneID, sorted. Unknown
// zones and zones without history have no occupants.
func (l *Ledger) CurrentOccupants(zoneID string) []string {
	var out []string
	l.withIndex(func(ix *presenceIndex) {
		set := ix.occupants[zoneID]
		out = make([]string, 0, len(set))
		for u := range set {
			out = append(out, u)
		}
	})
	sort.Strings(out)
	return out
}

func (l *Ledger) OccupancyCount(zoneID string) int {
	var n int
	l.withIndex(func(ix *presenceIndex) {
		n = len(ix.occupants[zoneID])
	})
	return n
}

// OccupancyPercent is occupants/capacity as a whole percentage, rounded
// half up and clamped to 100. Unknown zones report 0.
func (l *Ledger) OccupancyPercent(zoneID string) int {
	z, ok := l.dir.Zone(zoneID)
	if !ok {
		return 0
	}
	return Percent(l.OccupancyCount(zoneID), z.Capacity)
}

// Percent computes round-half-up(count*100/capacity) clamped to [0,100].
func Percent(count, capacity int) int {
	if capacity <= 0 || count <= 0 {
		return 0
	}
	p := (count*200 + capacity) / (capacity * 2)
	if p > 100 {
		return 100
	}
	return p
}

// InferNextDirection returns the opposite of the user's most recent
// direction in any zone, or enter when the user has no history.
func (l *Ledger) InferNextDirection(userID string) types.Direction {
	d := types.DirectionExit
	l.withIndex(func(ix *presenceIndex) {
		if last, ok := ix.lastDir[userID]; ok {
			d = last
		}
	})
	return d.Opposite()
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// LastID is the largest id assigned or restored so far; 0 for an empty
// ledger.
func (l *Ledger) LastID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastID
}

// Events returns a copy of the full sequence in timestamp order.
func (l *Ledger) Events() []types.AccessEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.AccessEvent, len(l.events))
	copy(out, l.events)
	return out
}

// View joins ev with the directory. Missing references leave the display
// fields empty.
func (l *Ledger) View(ev types.AccessEvent) types.EventView {
	v := types.EventView{AccessEvent: ev}
	if u, ok := l.dir.User(ev.UserID); ok {
		v.UserName = u.DisplayName
		v.UserRole = u.Role
		v.BadgeID = u.BadgeID
	}
	if z, ok := l.dir.Zone(ev.ZoneID); ok {
		v.ZoneName = z.Name
	}
	return v
}

