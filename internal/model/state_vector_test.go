package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionSourceFromIndex(t *testing.T) {
	assert.Equal(t, ADSB, PositionSourceFromIndex(0))
	assert.Equal(t, ASTERIX, PositionSourceFromIndex(1))
	assert.Equal(t, MLAT, PositionSourceFromIndex(2))
	assert.Equal(t, FLARM, PositionSourceFromIndex(3))

	for _, i := range []int{-1, 4, 5, 8, 1 << 30} {
		assert.Equal(t, Unknown, PositionSourceFromIndex(i), "index %d", i)
	}
}

func TestPositionSource_String(t *testing.T) {
	assert.Equal(t, "ADS_B", ADSB.String())
	assert.Equal(t, "FLARM", FLARM.String())
	assert.Equal(t, "UNKNOWN", Unknown.String())
	assert.Equal(t, "UNKNOWN", PositionSource(42).String())
}

func TestSerialSet_JSONKeepsAbsentAndEmptyApart(t *testing.T) {
	absent, err := json.Marshal(StateVector{ICAO24: "cabeef"})
	require.NoError(t, err)
	assert.Contains(t, string(absent), `"sensors":null`)

	empty, err := json.Marshal(StateVector{ICAO24: "cabeef", Serials: NewSerialSet()})
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"sensors":[]`)

	some, err := json.Marshal(StateVector{ICAO24: "cabeef", Serials: NewSerialSet(6543, 1234)})
	require.NoError(t, err)
	assert.Contains(t, string(some), `"sensors":[1234,6543]`)
	assert.Contains(t, string(some), `"position_source":"ADS_B"`)
}

func TestSerialSet_Has(t *testing.T) {
	s := NewSerialSet(1234)
	assert.True(t, s.Has(1234))
	assert.False(t, s.Has(6543))

	var absent SerialSet
	assert.False(t, absent.Has(1234))
	assert.Nil(t, absent.Sorted())
}

func TestStateVector_Times(t *testing.T) {
	pos := 1507198218.5
	sv := &StateVector{ICAO24: "a086d8", LastPositionUpdate: &pos}

	at, ok := sv.PositionTime()
	require.True(t, ok)
	assert.Equal(t, time.Unix(1507198218, int64(500*time.Millisecond)), at)

	_, ok = sv.LastContactTime()
	assert.False(t, ok)
	assert.False(t, sv.HasPosition())
}

func TestStatesSnapshot_Len(t *testing.T) {
	var nilSnap *StatesSnapshot
	assert.Equal(t, 0, nilSnap.Len())
	assert.True(t, nilSnap.Timestamp().IsZero())

	snap := &StatesSnapshot{Time: 1002, States: []*StateVector{{ICAO24: "cabeef"}}}
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, int64(1002), snap.Timestamp().Unix())
}
