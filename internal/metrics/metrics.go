package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects and tracks client and daemon metrics
type Metrics struct {
	// State vector metrics
	statesReceived  atomic.Int64
	statesProcessed atomic.Int64
	statesDropped   atomic.Int64

	// Rate metrics
	statesPerSecond atomic.Int64
	lastSecondCount atomic.Int64

	// Buffer metrics
	bufferSize     atomic.Int64
	bufferCapacity atomic.Int64

	// API metrics
	apiRequests     atomic.Int64
	apiErrors       atomic.Int64
	apiThrottled    atomic.Int64
	decodeErrors    atomic.Int64
	apiLatencySum   atomic.Int64
	apiLatencyCount atomic.Int64

	// HTTP metrics
	httpRequests atomic.Int64
	httpErrors   atomic.Int64

	startTime time.Time
	mu        sync.RWMutex
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// Run updates the states-per-second rate once a second until ctx is done.
func (m *Metrics) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tickRate()
		}
	}
}

func (m *Metrics) tickRate() {
	current := m.statesProcessed.Load()
	last := m.lastSecondCount.Swap(current)
	m.statesPerSecond.Store(current - last)
}

// State vector metrics methods

func (m *Metrics) AddStatesReceived(n int) {
	m.statesReceived.Add(int64(n))
}

func (m *Metrics) IncrementStatesProcessed() {
	m.statesProcessed.Add(1)
}

func (m *Metrics) IncrementStatesDropped() {
	m.statesDropped.Add(1)
}

func (m *Metrics) GetStatesReceived() int64 {
	return m.statesReceived.Load()
}

func (m *Metrics) GetStatesProcessed() int64 {
	return m.statesProcessed.Load()
}

func (m *Metrics) GetStatesDropped() int64 {
	return m.statesDropped.Load()
}

func (m *Metrics) GetStatesPerSecond() int64 {
	return m.statesPerSecond.Load()
}

// Buffer metrics methods

func (m *Metrics) SetBufferSize(size int64) {
	m.bufferSize.Store(size)
}

func (m *Metrics) SetBufferCapacity(capacity int64) {
	m.bufferCapacity.Store(capacity)
}

func (m *Metrics) GetBufferSize() int64 {
	return m.bufferSize.Load()
}

func (m *Metrics) GetBufferCapacity() int64 {
	return m.bufferCapacity.Load()
}

func (m *Metrics) GetBufferUtilization() float64 {
	size := float64(m.bufferSize.Load())
	capacity := float64(m.bufferCapacity.Load())
	if capacity == 0 {
		return 0
	}
	return (size / capacity) * 100
}

// API metrics methods

func (m *Metrics) IncrementAPIRequests() {
	m.apiRequests.Add(1)
}

func (m *Metrics) IncrementAPIErrors() {
	m.apiErrors.Add(1)
}

func (m *Metrics) IncrementAPIThrottled() {
	m.apiThrottled.Add(1)
}

func (m *Metrics) IncrementDecodeErrors() {
	m.decodeErrors.Add(1)
}

func (m *Metrics) RecordAPILatency(latencyMs int64) {
	m.apiLatencySum.Add(latencyMs)
	m.apiLatencyCount.Add(1)
}

func (m *Metrics) GetAPIRequests() int64 {
	return m.apiRequests.Load()
}

func (m *Metrics) GetAPIErrors() int64 {
	return m.apiErrors.Load()
}

func (m *Metrics) GetAPIThrottled() int64 {
	return m.apiThrottled.Load()
}

func (m *Metrics) GetDecodeErrors() int64 {
	return m.decodeErrors.Load()
}

func (m *Metrics) GetAPIAverageLatency() float64 {
	count := m.apiLatencyCount.Load()
	if count == 0 {
		return 0
	}
	sum := m.apiLatencySum.Load()
	return float64(sum) / float64(count)
}

// HTTP metrics methods

func (m *Metrics) IncrementHTTPRequests() {
	m.httpRequests.Add(1)
}

func (m *Metrics) IncrementHTTPErrors() {
	m.httpErrors.Add(1)
}

func (m *Metrics) GetHTTPRequests() int64 {
	return m.httpRequests.Load()
}

func (m *Metrics) GetHTTPErrors() int64 {
	return m.httpErrors.Load()
}

// General metrics methods

func (m *Metrics) GetUptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Since(m.startTime)
}

func (m *Metrics) Reset() {
	m.statesReceived.Store(0)
	m.statesProcessed.Store(0)
	m.statesDropped.Store(0)
	m.statesPerSecond.Store(0)
	m.lastSecondCount.Store(0)
	m.apiRequests.Store(0)
	m.apiErrors.Store(0)
	m.apiThrottled.Store(0)
	m.decodeErrors.Store(0)
	m.apiLatencySum.Store(0)
	m.apiLatencyCount.Store(0)
	m.httpRequests.Store(0)
	m.httpErrors.Store(0)

	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

// Snapshot represents a point-in-time snapshot of all metrics
type Snapshot struct {
	// State vector metrics
	StatesReceived  int64 `json:"states_received"`
	StatesProcessed int64 `json:"states_processed"`
	StatesDropped   int64 `json:"states_dropped"`
	StatesPerSecond int64 `json:"states_per_second"`

	// Buffer metrics
	BufferSize        int64   `json:"buffer_size"`
	BufferCapacity    int64   `json:"buffer_capacity"`
	BufferUtilization float64 `json:"buffer_utilization_percent"`

	// API metrics
	APIRequests   int64   `json:"api_requests"`
	APIErrors     int64   `json:"api_errors"`
	APIThrottled  int64   `json:"api_throttled"`
	DecodeErrors  int64   `json:"decode_errors"`
	APIAvgLatency float64 `json:"api_avg_latency_ms"`

	// HTTP metrics
	HTTPRequests int64 `json:"http_requests"`
	HTTPErrors   int64 `json:"http_errors"`

	// System metrics
	UptimeSeconds int64 `json:"uptime_seconds"`
	Timestamp     int64 `json:"timestamp"`
}

// GetSnapshot returns a snapshot of all current metrics
func (m *Metrics) GetSnapshot() *Snapshot {
	return &Snapshot{
		StatesReceived:    m.GetStatesReceived(),
		StatesProcessed:   m.GetStatesProcessed(),
		StatesDropped:     m.GetStatesDropped(),
		StatesPerSecond:   m.GetStatesPerSecond(),
		BufferSize:        m.GetBufferSize(),
		BufferCapacity:    m.GetBufferCapacity(),
		BufferUtilization: m.GetBufferUtilization(),
		APIRequests:       m.GetAPIRequests(),
		APIErrors:         m.GetAPIErrors(),
		APIThrottled:      m.GetAPIThrottled(),
		DecodeErrors:      m.GetDecodeErrors(),
		APIAvgLatency:     m.GetAPIAverageLatency(),
		HTTPRequests:      m.GetHTTPRequests(),
		HTTPErrors:        m.GetHTTPErrors(),
		UptimeSeconds:     int64(m.GetUptime().Seconds()),
		Timestamp:         time.Now().Unix(),
	}
}
