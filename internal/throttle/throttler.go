// Package throttle keeps clients from sending requests the server would
// reject anyway. The same checks are applied on the server side.
package throttle

import (
	"sync"
	"time"
)

// Endpoint keys.
const (
	KeyAllStates = "all-states"
	KeyMyStates  = "my-states"
)

// Policy is the minimum spacing between two attempts on one endpoint.
type Policy struct {
	Authenticated time.Duration
	Anonymous     time.Duration
}

var (
	// AllStatesPolicy mirrors the server limits for /states/all.
	AllStatesPolicy = Policy{Authenticated: 4900 * time.Millisecond, Anonymous: 9900 * time.Millisecond}
	// MyStatesPolicy mirrors the server limits for /states/own, which also
	// requires authentication.
	MyStatesPolicy = Policy{Authenticated: 900 * time.Millisecond, Anonymous: 0}
)

func (p Policy) threshold(authenticated bool) time.Duration {
	if authenticated {
		return p.Authenticated
	}
	return p.Anonymous
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock. time.Time from time.Now carries a
// monotonic reading, so elapsed time is immune to clock steps.
var SystemClock Clock = systemClock{}

// Throttler tracks the last attempt per endpoint key. It is safe for
// concurrent use.
type Throttler struct {
	clock Clock

	mu   sync.Mutex
	last map[string]time.Time
}

// New creates a Throttler; a nil clock means SystemClock.
func New(clock Clock) *Throttler {
	if clock == nil {
		clock = SystemClock
	}
	return &Throttler{
		clock: clock,
		last:  make(map[string]time.Time),
	}
}

// Allow is AllowAt with the throttler's clock.
func (t *Throttler) Allow(key string, policy Policy, authenticated bool) bool {
	return t.AllowAt(key, t.clock.Now(), policy, authenticated)
}

// AllowAt reports whether a request on key may be sent at now. The first
// attempt on a key is always allowed; later ones only once more than the
// policy threshold has passed since the previous attempt.
//
// Every call records now as the last attempt, including denied ones. A
// caller polling faster than the threshold is therefore never allowed
// through again until it slows down.
func (t *Throttler) AllowAt(key string, now time.Time, policy Policy, authenticated bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, seen := t.last[key]
	t.last[key] = now
	if !seen {
		return true
	}
	return now.Sub(prev) > policy.threshold(authenticated)
}

// LastAttempt returns the time of the last recorded attempt on key.
func (t *Throttler) LastAttempt(key string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	at, ok := t.last[key]
	return at, ok
}

// Reset forgets all recorded attempts.
func (t *Throttler) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = make(map[string]time.Time)
}
