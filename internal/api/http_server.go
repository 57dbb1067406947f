package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/openskynetwork/opensky-api/internal/metrics"
	"github.com/openskynetwork/opensky-api/internal/model"
	"github.com/openskynetwork/opensky-api/pkg/logger"
	"github.com/openskynetwork/opensky-api/pkg/utils"
)

const defaultBatchSize = 100

// StateBuffer is the buffer the server reads state vectors from.
type StateBuffer interface {
	GetAll() []*model.StateVector
	Latest() []*model.StateVector
	PopBatch(n int) []*model.StateVector
	Count() int
	Capacity() int
	IsFull() bool
	IsEmpty() bool
	Clear()
}

// RateControl is the ingest rate limiter as seen by the server.
type RateControl interface {
	GetLimit() (statesPerSec, burstSize int)
	GetStats() (processed, dropped int64)
	UpdateLimit(statesPerSec, burstSize int)
	ResetStats()
}

// Server represents the HTTP API server
type Server struct {
	logger     *logger.Logger
	metrics    *metrics.Metrics
	buffer     StateBuffer
	bufferType string
	rateLimit  RateControl
	now        func() time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(log *logger.Logger, m *metrics.Metrics, buf StateBuffer, bufferType string, rl RateControl) *Server {
	return &Server{
		logger:     log,
		metrics:    m,
		buffer:     buf,
		bufferType: bufferType,
		rateLimit:  rl,
		now:        time.Now,
	}
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/states", s.handleStates)
	mux.HandleFunc("/states/batch", s.handleStatesBatch)
	mux.HandleFunc("/buffer/stats", s.handleBufferStats)
	mux.HandleFunc("/rate_limit", s.handleRateLimit)
}

// handleHealth returns the health status of the service
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r) {
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": utils.FormatTimestamp(s.now().Unix()),
		"uptime":    s.metrics.GetUptime().String(),
	})
}

// handleMetrics returns current metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r) {
		return
	}

	s.metrics.SetBufferSize(int64(s.buffer.Count()))
	s.metrics.SetBufferCapacity(int64(s.buffer.Capacity()))

	s.writeJSON(w, s.metrics.GetSnapshot())
}

// handleStates returns the buffered state vectors. With ?latest=true only
// the most recent vector per aircraft is returned; ?max_age=30s drops
// vectors whose last contact is older than that. DELETE empties the buffer.
func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodDelete {
		s.metrics.IncrementHTTPRequests()
		cleared := s.buffer.Count()
		s.buffer.Clear()
		s.metrics.SetBufferSize(0)
		s.logger.Info("Cleared state buffer", "cleared", cleared)
		s.writeJSON(w, map[string]interface{}{
			"cleared":   cleared,
			"timestamp": s.now().Unix(),
		})
		return
	}
	if !s.begin(w, r) {
		return
	}

	query := r.URL.Query()

	var maxAge time.Duration
	if raw := query.Get("max_age"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			s.fail(w, fmt.Sprintf("invalid max_age %q", raw), http.StatusBadRequest)
			return
		}
		maxAge = d
	}

	var states []*model.StateVector
	if latest, _ := strconv.ParseBool(query.Get("latest")); latest {
		states = s.buffer.Latest()
	} else {
		states = s.buffer.GetAll()
	}
	if maxAge > 0 {
		states = s.recent(states, maxAge)
	}
	if states == nil {
		states = []*model.StateVector{}
	}

	s.writeJSON(w, map[string]interface{}{
		"states":    states,
		"count":     len(states),
		"timestamp": s.now().Unix(),
	})
}

func (s *Server) recent(states []*model.StateVector, maxAge time.Duration) []*model.StateVector {
	now := s.now()
	out := make([]*model.StateVector, 0, len(states))
	for _, sv := range states {
		if sv.LastContact == nil {
			continue
		}
		if utils.IsWithinWindow(int64(*sv.LastContact), maxAge, now) {
			out = append(out, sv)
		}
	}
	return out
}

// handleStatesBatch removes and returns a batch of state vectors
func (s *Server) handleStatesBatch(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r) {
		return
	}

	batchSize := defaultBatchSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := parsePositiveInt(raw)
		if err != nil {
			s.fail(w, fmt.Sprintf("invalid batch size %q", raw), http.StatusBadRequest)
			return
		}
		batchSize = n
	}

	states := s.buffer.PopBatch(batchSize)
	if states == nil {
		states = []*model.StateVector{}
	}

	s.writeJSON(w, map[string]interface{}{
		"states":     states,
		"batch_size": batchSize,
		"count":      len(states),
		"timestamp":  s.now().Unix(),
	})
}

// handleBufferStats returns buffer statistics
func (s *Server) handleBufferStats(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r) {
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"type":      s.bufferType,
		"count":     s.buffer.Count(),
		"capacity":  s.buffer.Capacity(),
		"is_full":   s.buffer.IsFull(),
		"is_empty":  s.buffer.IsEmpty(),
		"timestamp": s.now().Unix(),
	})
}

// handleRateLimit reports the ingest limit and its counters on GET. POST
// with states_per_second and burst_size replaces the limit and restarts
// the counters.
func (s *Server) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		s.metrics.IncrementHTTPRequests()
		query := r.URL.Query()
		sps, err := parsePositiveInt(query.Get("states_per_second"))
		if err != nil {
			s.fail(w, fmt.Sprintf("invalid states_per_second %q", query.Get("states_per_second")), http.StatusBadRequest)
			return
		}
		burst, err := parsePositiveInt(query.Get("burst_size"))
		if err != nil {
			s.fail(w, fmt.Sprintf("invalid burst_size %q", query.Get("burst_size")), http.StatusBadRequest)
			return
		}
		s.rateLimit.UpdateLimit(sps, burst)
		s.rateLimit.ResetStats()
		s.logger.Info("Updated ingest rate limit", "states_per_second", sps, "burst_size", burst)
	} else if !s.begin(w, r) {
		return
	}

	sps, burst := s.rateLimit.GetLimit()
	processed, dropped := s.rateLimit.GetStats()

	s.writeJSON(w, map[string]interface{}{
		"states_per_second": sps,
		"burst_size":        burst,
		"processed":         processed,
		"dropped":           dropped,
		"timestamp":         s.now().Unix(),
	})
}

// begin rejects everything but GET and counts the request
func (s *Server) begin(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	s.metrics.IncrementHTTPRequests()
	return true
}

func (s *Server) fail(w http.ResponseWriter, msg string, code int) {
	s.metrics.IncrementHTTPErrors()
	http.Error(w, msg, code)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
		s.metrics.IncrementHTTPErrors()
	}
}

// parsePositiveInt parses a string to a positive integer
func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("value must be positive")
	}
	return n, nil
}
