package snapshot_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/snapshot"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

func sampleEvents() []types.AccessEvent {
	base := time.Date(2026, 2, 15, 12, 0, 0, 123456789, time.UTC)
	return []types.AccessEvent{
		{ID: 1, UserID: "1", ZoneID: "1", AccessPointID: "2", Timestamp: base, Direction: types.DirectionEnter},
		{ID: 2, UserID: "3", ZoneID: "2", AccessPointID: "3", Timestamp: base.Add(time.Hour), Direction: types.DirectionExit},
	}
}

func TestWriteJSON_FieldOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, snapshot.WriteJSON(&buf, sampleEvents()[:1]))

	out := buf.String()
	keys := []string{`"id"`, `"user_id"`, `"zone_id"`, `"access_point_id"`, `"timestamp"`, `"direction"`}
	last := -1
	for _, k := range keys {
		i := bytes.Index(buf.Bytes(), []byte(k))
		require.GreaterOrEqual(t, i, 0, "missing key %s in %s", k, out)
		assert.Greater(t, i, last, "key %s out of order", k)
		last = i
	}
	assert.Contains(t, out, `"timestamp": "2026-02-15T12:00:00.123456789Z"`)
	assert.Contains(t, out, `"direction": "enter"`)
}

func TestWriteJSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, snapshot.WriteJSON(&buf, nil))

	var v []any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &v))
	assert.NotNil(t, v)
	assert.Len(t, v, 0)
}

func TestReadJSON_AcceptsDashboardDirections(t *testing.T) {
	in := `[{"id":4,"user_id":"1","zone_id":"1","access_point_id":"1","timestamp":"2026-02-15T08:00:00+07:00","direction":"in"}]`

	events, err := snapshot.ReadJSON(bytes.NewBufferString(in))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.DirectionEnter, events[0].Direction)
	assert.Equal(t, time.Date(2026, 2, 15, 1, 0, 0, 0, time.UTC), events[0].Timestamp)
}

func TestReadJSON_BadTimestamp(t *testing.T) {
	in := `[{"id":1,"user_id":"1","zone_id":"1","access_point_id":"1","timestamp":"yesterday","direction":"enter"}]`
	_, err := snapshot.ReadJSON(bytes.NewBufferString(in))
	require.Error(t, err)
}

func TestBinary_RoundTripPreservesEvents(t *testing.T) {
	in := sampleEvents()

	out, err := snapshot.UnmarshalBinary(snapshot.MarshalBinary(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBinary_Empty(t *testing.T) {
	assert.Empty(t, snapshot.MarshalBinary(nil))

	out, err := snapshot.UnmarshalBinary(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBinary_Truncated(t *testing.T) {
	b := snapshot.MarshalBinary(sampleEvents())

	_, err := snapshot.UnmarshalBinary(b[:len(b)-3])
	require.Error(t, err)
	assert.True(t, errors.Is(err, snapshot.ErrMalformed))
}
