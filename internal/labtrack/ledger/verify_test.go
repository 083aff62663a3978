package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

type openDirectory struct{}

func (openDirectory) User(id string) (types.User, bool) { return types.User{ID: id}, true }
func (openDirectory) Zone(id string) (types.Zone, bool) { return types.Zone{ID: id, Capacity: 10}, true }
func (openDirectory) AccessPoint(id string) (types.AccessPoint, bool) {
	return types.AccessPoint{ID: id, ZoneID: "Z1"}, true
}

func appendEnter(t *testing.T, l *Ledger, user string, ts time.Time) {
	t.Helper()
	_, err := l.Append(types.AccessEvent{UserID: user, ZoneID: "Z1", AccessPointID: "AP1", Direction: types.DirectionEnter, Timestamp: ts})
	require.NoError(t, err)
}

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestVerify_DetectsDriftInCleanIndex(t *testing.T) {
	l := New(openDirectory{}, Options{})
	appendEnter(t, l, "U1", base)
	appendEnter(t, l, "U2", base.Add(time.Minute))
	require.NoError(t, l.Verify())

	l.mu.Lock()
	delete(l.index.occupants["Z1"], "U2")
	l.mu.Unlock()

	assert.ErrorIs(t, l.Verify(), ErrIndexRebuild)
}

// A dirty index has no incremental state worth comparing; Verify rebuilds
// it and the next check runs against a clean index.
func TestVerify_DirtyIndexIsRebuilt(t *testing.T) {
	l := New(openDirectory{}, Options{})
	appendEnter(t, l, "U1", base.Add(time.Minute))
	appendEnter(t, l, "U2", base)

	l.mu.RLock()
	dirty := l.dirty
	l.mu.RUnlock()
	require.True(t, dirty)

	require.NoError(t, l.Verify())

	l.mu.RLock()
	assert.False(t, l.dirty)
	assert.Equal(t, 2, l.index.folded)
	l.mu.RUnlock()

	assert.Equal(t, []string{"U1", "U2"}, l.CurrentOccupants("Z1"))
	assert.NoError(t, l.Verify())
}
