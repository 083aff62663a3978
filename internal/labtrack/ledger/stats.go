package ledger

import (
	"sort"
	"time"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

type Stats struct {
	// ActiveUsers counts users whose latest event at or before AsOf, in any
	// zone, is an enter.
	ActiveUsers int `json:"active_users"`

	// EventsOnDay counts events stamped on the calendar day of AsOf in the
	// ledger's location.
	EventsOnDay int `json:"events_on_day"`

	// LastEventTime is the latest timestamp at or before AsOf, nil when no
	// such event exists.
	LastEventTime *time.Time `json:"last_event_time"`

	AsOf time.Time `json:"as_of"`
}

func (l *Ledger) GlobalStats(asOf time.Time) Stats {
	st := Stats{AsOf: asOf}

	y, m, d := asOf.In(l.loc).Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, l.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	l.withIndex(func(ix *presenceIndex) {
		cut := l.insertionPoint(asOf)
		if cut > 0 {
			t := l.events[cut-1].Timestamp
			st.LastEventTime = &t
		}
		from := sort.Search(len(l.events), func(i int) bool {
			return !l.events[i].Timestamp.Before(dayStart)
		})
		to := sort.Search(len(l.events), func(i int) bool {
			return !l.events[i].Timestamp.Before(dayEnd)
		})
		st.EventsOnDay = to - from

		if cut == len(l.events) {
			st.ActiveUsers = ix.activeUsers()
			return
		}
		lastDir := make(map[string]types.Direction)
		for _, ev := range l.events[:cut] {
			lastDir[ev.UserID] = ev.Direction
		}
		for _, dir := range lastDir {
			if dir == types.DirectionEnter {
				st.ActiveUsers++
			}
		}
	})
	return st
}
