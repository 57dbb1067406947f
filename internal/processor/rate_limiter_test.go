package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openskynetwork/opensky-api/internal/metrics"
	"github.com/openskynetwork/opensky-api/internal/model"
)

type sliceSink struct {
	got []*model.StateVector
}

func (s *sliceSink) Push(sv *model.StateVector) {
	s.got = append(s.got, sv)
}

func snapshotOf(icao24s ...string) *model.StatesSnapshot {
	snap := &model.StatesSnapshot{Time: 1002}
	for _, icao24 := range icao24s {
		snap.States = append(snap.States, &model.StateVector{ICAO24: icao24})
	}
	return snap
}

func TestRateLimiter_BurstThenDrop(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Unix(1_700_000_000, 0)

	assert.True(t, rl.AllowAt(now))
	assert.True(t, rl.AllowAt(now))
	assert.False(t, rl.AllowAt(now))

	assert.True(t, rl.AllowAt(now.Add(time.Second)))

	processed, dropped := rl.GetStats()
	assert.Equal(t, int64(3), processed)
	assert.Equal(t, int64(1), dropped)

	rl.ResetStats()
	processed, dropped = rl.GetStats()
	assert.Zero(t, processed)
	assert.Zero(t, dropped)
}

func TestRateLimiter_UpdateLimit(t *testing.T) {
	rl := NewRateLimiter(10, 20)
	rl.UpdateLimit(5, 7)

	sps, burst := rl.GetLimit()
	assert.Equal(t, 5, sps)
	assert.Equal(t, 7, burst)
}

func TestStateProcessor_Ingest(t *testing.T) {
	sink := &sliceSink{}
	m := metrics.NewMetrics()
	p := NewStateProcessor(NewRateLimiter(1, 3), sink, m)
	p.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	admitted := p.Ingest(snapshotOf("a", "b", "c", "d", "e"))

	assert.Equal(t, 3, admitted)
	assert.Len(t, sink.got, 3)
	assert.Equal(t, "a", sink.got[0].ICAO24)
	assert.Equal(t, int64(5), m.GetStatesReceived())
	assert.Equal(t, int64(3), m.GetStatesProcessed())
	assert.Equal(t, int64(2), m.GetStatesDropped())
}

func TestStateProcessor_NilSnapshot(t *testing.T) {
	sink := &sliceSink{}
	p := NewStateProcessor(NewRateLimiter(1, 1), sink, nil)

	assert.Zero(t, p.Ingest(nil))
	assert.Zero(t, p.Ingest(&model.StatesSnapshot{Time: 1}))
	assert.Empty(t, sink.got)
}
