package throttle

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestThrottler_Anonymous(t *testing.T) {
	clock := newFakeClock()
	th := New(clock)

	assert.True(t, th.Allow(KeyAllStates, AllStatesPolicy, false), "first call")
	assert.False(t, th.Allow(KeyAllStates, AllStatesPolicy, false), "immediate second call")

	clock.Advance(9901 * time.Millisecond)
	assert.True(t, th.Allow(KeyAllStates, AllStatesPolicy, false), "after 9901ms")
}

func TestThrottler_AnonymousThresholdIsExclusive(t *testing.T) {
	clock := newFakeClock()
	th := New(clock)

	require.True(t, th.Allow(KeyAllStates, AllStatesPolicy, false))
	clock.Advance(9900 * time.Millisecond)
	assert.False(t, th.Allow(KeyAllStates, AllStatesPolicy, false))
}

func TestThrottler_Authenticated(t *testing.T) {
	clock := newFakeClock()
	th := New(clock)

	assert.True(t, th.Allow(KeyAllStates, AllStatesPolicy, true))
	assert.False(t, th.Allow(KeyAllStates, AllStatesPolicy, true))

	clock.Advance(4901 * time.Millisecond)
	assert.True(t, th.Allow(KeyAllStates, AllStatesPolicy, true))
}

func TestThrottler_DeniedCallsResetWindow(t *testing.T) {
	clock := newFakeClock()
	th := New(clock)

	require.True(t, th.Allow(KeyAllStates, AllStatesPolicy, true))

	// polling every 3s never gets through even though 4.9s pass overall
	for i := 0; i < 5; i++ {
		clock.Advance(3 * time.Second)
		assert.False(t, th.Allow(KeyAllStates, AllStatesPolicy, true), "poll %d", i)
	}

	last, ok := th.LastAttempt(KeyAllStates)
	require.True(t, ok)
	assert.Equal(t, clock.Now(), last)
}

func TestThrottler_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	th := New(clock)

	assert.True(t, th.Allow(KeyAllStates, AllStatesPolicy, true))
	assert.True(t, th.Allow(KeyMyStates, MyStatesPolicy, true))
	assert.False(t, th.Allow(KeyMyStates, MyStatesPolicy, true))

	clock.Advance(901 * time.Millisecond)
	assert.True(t, th.Allow(KeyMyStates, MyStatesPolicy, true))
	assert.False(t, th.Allow(KeyAllStates, AllStatesPolicy, true))
}

func TestThrottler_ZeroThresholdStillNeedsElapsedTime(t *testing.T) {
	th := New(nil)
	at := time.Unix(100, 0)

	assert.True(t, th.AllowAt(KeyMyStates, at, MyStatesPolicy, false))
	assert.False(t, th.AllowAt(KeyMyStates, at, MyStatesPolicy, false))
	assert.True(t, th.AllowAt(KeyMyStates, at.Add(time.Millisecond), MyStatesPolicy, false))
}

func TestThrottler_Reset(t *testing.T) {
	th := New(newFakeClock())

	require.True(t, th.Allow(KeyAllStates, AllStatesPolicy, false))
	th.Reset()
	assert.True(t, th.Allow(KeyAllStates, AllStatesPolicy, false))
}

func TestThrottler_ConcurrentFirstCallAllowsExactlyOne(t *testing.T) {
	th := New(newFakeClock())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if th.Allow(KeyAllStates, AllStatesPolicy, true) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, allowed)
}
