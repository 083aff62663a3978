package ledger

import (
	"sort"
	"strings"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

// SearchField selects which denormalized field a text query matches.
type SearchField string

const (
	FieldUser   SearchField = "user"    // user display name
	FieldUserID SearchField = "user_id" // user id, exact
	FieldBadge  SearchField = "badge"   // badge id
	FieldZone   SearchField = "zone"    // zone name
)

func ParseSearchField(s string) (SearchField, bool) {
	switch SearchField(strings.ToLower(strings.TrimSpace(s))) {
	case FieldUser, "":
		return FieldUser, true
	case FieldUserID:
		return FieldUserID, true
	case FieldBadge:
		return FieldBadge, true
	case FieldZone:
		return FieldZone, true
	}
	return "", false
}

type SortKey string

const (
	SortTimestamp SortKey = "timestamp"
	SortUser      SortKey = "user"
	SortZone      SortKey = "zone"
)

func ParseSortKey(s string) (SortKey, bool) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortTimestamp, "":
		return SortTimestamp, true
	case SortUser:
		return SortUser, true
	case SortZone:
		return SortZone, true
	}
	return "", false
}

type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

func ParseOrder(s string) (Order, bool) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case Asc, "":
		return Asc, true
	case Desc:
		return Desc, true
	}
	return "", false
}

// Search returns the denormalized views matching pred, in timestamp order.
// A nil predicate matches everything.
func (l *Ledger) Search(pred func(types.EventView) bool) []types.EventView {
	events := l.Events()
	out := make([]types.EventView, 0, len(events))
	for _, ev := range events {
		v := l.View(ev)
		if pred == nil || pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// MatchText builds a case-insensitive substring predicate on field.
// FieldUserID is the exception: it matches the trimmed id exactly. An
// empty query matches every event.
func MatchText(field SearchField, query string) func(types.EventView) bool {
	id := strings.TrimSpace(query)
	if id == "" {
		return nil
	}
	if field == FieldUserID {
		return func(v types.EventView) bool { return v.UserID == id }
	}
	q := strings.ToLower(id)
	return func(v types.EventView) bool {
		var s string
		switch field {
		case FieldBadge:
			s = v.BadgeID
		case FieldZone:
			s = v.ZoneName
		default:
			s = v.UserName
		}
		return strings.Contains(strings.ToLower(s), q)
	}
}

// SortedView returns the full sequence ordered by key. Ties fall back to
// the ledger's own order, so the sort is stable across calls.
func (l *Ledger) SortedView(key SortKey, order Order) []types.EventView {
	views := l.Search(nil)
	SortViews(views, key, order)
	return views
}

// SortViews orders views in place.
func SortViews(views []types.EventView, key SortKey, order Order) {
	less := func(a, b types.EventView) int {
		switch key {
		case SortUser:
			return strings.Compare(a.UserName, b.UserName)
		case SortZone:
			return strings.Compare(a.ZoneName, b.ZoneName)
		default:
			return a.Timestamp.Compare(b.Timestamp)
		}
	}
	sort.SliceStable(views, func(i, j int) bool {
		c := less(views[i], views[j])
		if order == Desc {
			return c > 0
		}
		return c < 0
	})
}
