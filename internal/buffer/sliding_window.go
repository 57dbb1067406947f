package buffer

import (
	"sync"
	"time"

	"github.com/openskynetwork/opensky-api/internal/model"
)

// SlidingWindowBuffer stores state vectors with their arrival time and
// forgets those older than the window
type SlidingWindowBuffer struct {
	states     []timestampedState
	windowSize time.Duration
	maxSize    int
	now        func() time.Time
	mu         sync.Mutex
}

type timestampedState struct {
	state     *model.StateVector
	timestamp time.Time
}

// NewSlidingWindowBuffer creates a new sliding window buffer
func NewSlidingWindowBuffer(windowSize time.Duration, maxSize int) *SlidingWindowBuffer {
	return &SlidingWindowBuffer{
		states:     make([]timestampedState, 0, maxSize),
		windowSize: windowSize,
		maxSize:    maxSize,
		now:        time.Now,
	}
}

// Push adds a new state vector stamped with the current time
func (swb *SlidingWindowBuffer) Push(sv *model.StateVector) {
	swb.mu.Lock()
	defer swb.mu.Unlock()

	swb.removeExpired()

	swb.states = append(swb.states, timestampedState{state: sv, timestamp: swb.now()})

	// over capacity: drop the oldest
	if len(swb.states) > swb.maxSize {
		swb.states = swb.states[len(swb.states)-swb.maxSize:]
	}
}

// removeExpired must be called with the lock held
func (swb *SlidingWindowBuffer) removeExpired() {
	cutoff := swb.now().Add(-swb.windowSize)

	firstValid := 0
	for firstValid < len(swb.states) && !swb.states[firstValid].timestamp.After(cutoff) {
		firstValid++
	}
	if firstValid > 0 {
		swb.states = swb.states[firstValid:]
	}
}

// GetAll returns all state vectors within the time window
func (swb *SlidingWindowBuffer) GetAll() []*model.StateVector {
	swb.mu.Lock()
	defer swb.mu.Unlock()

	swb.removeExpired()
	return swb.collect(len(swb.states))
}

func (swb *SlidingWindowBuffer) collect(n int) []*model.StateVector {
	if n == 0 {
		return nil
	}
	out := make([]*model.StateVector, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, swb.states[i].state)
	}
	return out
}

// PopBatch removes and returns up to n oldest state vectors
func (swb *SlidingWindowBuffer) PopBatch(n int) []*model.StateVector {
	swb.mu.Lock()
	defer swb.mu.Unlock()

	swb.removeExpired()

	if n > len(swb.states) {
		n = len(swb.states)
	}
	if n <= 0 {
		return nil
	}

	out := swb.collect(n)
	swb.states = swb.states[n:]
	return out
}

// Count returns the number of state vectors in the window
func (swb *SlidingWindowBuffer) Count() int {
	swb.mu.Lock()
	defer swb.mu.Unlock()

	swb.removeExpired()
	return len(swb.states)
}

// Capacity returns the maximum number of state vectors kept
func (swb *SlidingWindowBuffer) Capacity() int {
	return swb.maxSize
}

// IsFull returns true if the window holds maxSize state vectors
func (swb *SlidingWindowBuffer) IsFull() bool {
	return swb.Count() >= swb.maxSize
}

// IsEmpty returns true if the buffer is empty
func (swb *SlidingWindowBuffer) IsEmpty() bool {
	return swb.Count() == 0
}

// Clear removes all state vectors from the buffer
func (swb *SlidingWindowBuffer) Clear() {
	swb.mu.Lock()
	defer swb.mu.Unlock()

	swb.states = make([]timestampedState, 0, swb.maxSize)
}

// Latest returns the most recent state vector per ICAO24 address within
// the window
func (swb *SlidingWindowBuffer) Latest() []*model.StateVector {
	return latestByICAO24(swb.GetAll())
}
