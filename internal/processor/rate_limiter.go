package processor

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/openskynetwork/opensky-api/internal/metrics"
	"github.com/openskynetwork/opensky-api/internal/model"
)

// RateLimiter caps how many state vectors per second are admitted, using
// a token bucket
type RateLimiter struct {
	limiter      *rate.Limiter
	statesPerSec int
	burstSize    int

	mu        sync.RWMutex
	processed int64
	dropped   int64
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(statesPerSecond, burstSize int) *RateLimiter {
	return &RateLimiter{
		limiter:      rate.NewLimiter(rate.Limit(statesPerSecond), burstSize),
		statesPerSec: statesPerSecond,
		burstSize:    burstSize,
	}
}

// AllowAt checks if a state vector can be admitted at the given instant
func (rl *RateLimiter) AllowAt(now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	allowed := rl.limiter.AllowN(now, 1)
	if allowed {
		rl.processed++
	} else {
		rl.dropped++
	}
	return allowed
}

// UpdateLimit dynamically updates the rate limit
func (rl *RateLimiter) UpdateLimit(statesPerSecond, burstSize int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.statesPerSec = statesPerSecond
	rl.burstSize = burstSize
	rl.limiter.SetLimit(rate.Limit(statesPerSecond))
	rl.limiter.SetBurst(burstSize)
}

// GetStats returns admitted and dropped counts
func (rl *RateLimiter) GetStats() (processed, dropped int64) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	return rl.processed, rl.dropped
}

// ResetStats resets the statistics
func (rl *RateLimiter) ResetStats() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.processed = 0
	rl.dropped = 0
}

// GetLimit returns current rate limit settings
func (rl *RateLimiter) GetLimit() (statesPerSec, burstSize int) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	return rl.statesPerSec, rl.burstSize
}

// StateSink receives admitted state vectors.
type StateSink interface {
	Push(sv *model.StateVector)
}

// StateProcessor moves the state vectors of a snapshot into a sink,
// dropping those the rate limiter rejects.
type StateProcessor struct {
	rateLimiter *RateLimiter
	sink        StateSink
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewStateProcessor creates a new processor; m may be nil
func NewStateProcessor(rateLimiter *RateLimiter, sink StateSink, m *metrics.Metrics) *StateProcessor {
	return &StateProcessor{
		rateLimiter: rateLimiter,
		sink:        sink,
		metrics:     m,
		now:         time.Now,
	}
}

// Ingest pushes the admitted state vectors of snap and returns how many
// were admitted. A nil snapshot is a no-op.
func (p *StateProcessor) Ingest(snap *model.StatesSnapshot) int {
	if snap == nil {
		return 0
	}
	if p.metrics != nil {
		p.metrics.AddStatesReceived(len(snap.States))
	}

	now := p.now()
	admitted := 0
	for _, sv := range snap.States {
		if !p.rateLimiter.AllowAt(now) {
			if p.metrics != nil {
				p.metrics.IncrementStatesDropped()
			}
			continue
		}
		p.sink.Push(sv)
		admitted++
		if p.metrics != nil {
			p.metrics.IncrementStatesProcessed()
		}
	}
	return admitted
}

// GetStats returns processing statistics
func (p *StateProcessor) GetStats() (processed, dropped int64) {
	return p.rateLimiter.GetStats()
}
