package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openskynetwork/opensky-api/internal/buffer"
	"github.com/openskynetwork/opensky-api/internal/metrics"
	"github.com/openskynetwork/opensky-api/internal/model"
	"github.com/openskynetwork/opensky-api/internal/processor"
	"github.com/openskynetwork/opensky-api/pkg/logger"
)

func newTestServer(t *testing.T, icao24s ...string) (*http.ServeMux, *metrics.Metrics, *buffer.RingBuffer) {
	t.Helper()

	rb := buffer.NewRingBuffer(10)
	for _, id := range icao24s {
		rb.Push(&model.StateVector{ICAO24: id})
	}

	m := metrics.NewMetrics()
	s := NewServer(logger.Nop(), m, rb, "ring", processor.NewRateLimiter(100, 200))
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux, m, rb
}

func get(t *testing.T, mux *http.ServeMux, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	return do(t, mux, http.MethodGet, target)
}

func do(t *testing.T, mux *http.ServeMux, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body map[string]interface{}
	if rec.Code == http.StatusOK {
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	mux, m, _ := newTestServer(t)

	rec, body := get(t, mux, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2023-11-14T22:13:20Z", body["timestamp"])
	assert.Equal(t, int64(1), m.GetHTTPRequests())
}

func TestMethodNotAllowed(t *testing.T) {
	mux, m, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/states", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, m.GetHTTPRequests())
}

func TestStates(t *testing.T) {
	mux, _, rb := newTestServer(t, "a", "b", "a")

	rec, body := get(t, mux, "/states")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["count"])
	states := body["states"].([]interface{})
	require.Len(t, states, 3)
	first := states[0].(map[string]interface{})
	assert.Equal(t, "a", first["icao24"])
	assert.Equal(t, "ADS_B", first["position_source"])
	assert.Nil(t, first["sensors"])

	// reading does not consume
	assert.Equal(t, 3, rb.Count())
}

func TestStatesLatest(t *testing.T) {
	mux, _, _ := newTestServer(t, "a", "b", "a")

	_, body := get(t, mux, "/states?latest=true")

	assert.EqualValues(t, 2, body["count"])
}

func TestStatesMaxAge(t *testing.T) {
	mux, _, rb := newTestServer(t)
	fresh, stale := 1_699_999_990.0, 1_699_999_000.0
	rb.Push(&model.StateVector{ICAO24: "fresh", LastContact: &fresh})
	rb.Push(&model.StateVector{ICAO24: "stale", LastContact: &stale})
	rb.Push(&model.StateVector{ICAO24: "unknown"})

	_, body := get(t, mux, "/states?max_age=1m")

	states := body["states"].([]interface{})
	require.Len(t, states, 1)
	assert.Equal(t, "fresh", states[0].(map[string]interface{})["icao24"])

	rec, _ := get(t, mux, "/states?max_age=soon")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatesDelete(t *testing.T) {
	mux, m, rb := newTestServer(t, "a", "b")

	rec, body := do(t, mux, http.MethodDelete, "/states")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["cleared"])
	assert.True(t, rb.IsEmpty())
	assert.Zero(t, m.GetBufferSize())
}

func TestStatesEmpty(t *testing.T) {
	mux, _, _ := newTestServer(t)

	_, body := get(t, mux, "/states")

	assert.Equal(t, []interface{}{}, body["states"])
}

func TestStatesBatch(t *testing.T) {
	mux, _, rb := newTestServer(t, "a", "b", "c")

	rec, body := get(t, mux, "/states/batch?size=2")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["batch_size"])
	assert.EqualValues(t, 2, body["count"])
	assert.Equal(t, 1, rb.Count())

	_, body = get(t, mux, "/states/batch")
	assert.EqualValues(t, defaultBatchSize, body["batch_size"])
	assert.EqualValues(t, 1, body["count"])
	assert.True(t, rb.IsEmpty())
}

func TestStatesBatch_InvalidSize(t *testing.T) {
	mux, m, rb := newTestServer(t, "a")

	for _, size := range []string{"0", "-3", "abc"} {
		rec, _ := get(t, mux, "/states/batch?size="+size)
		assert.Equal(t, http.StatusBadRequest, rec.Code, size)
	}
	assert.Equal(t, int64(3), m.GetHTTPErrors())
	assert.Equal(t, 1, rb.Count())
}

func TestBufferStats(t *testing.T) {
	mux, _, _ := newTestServer(t, "a", "b")

	_, body := get(t, mux, "/buffer/stats")

	assert.Equal(t, "ring", body["type"])
	assert.EqualValues(t, 2, body["count"])
	assert.EqualValues(t, 10, body["capacity"])
	assert.Equal(t, false, body["is_full"])
	assert.Equal(t, false, body["is_empty"])
}

func TestBufferStats_Full(t *testing.T) {
	mux, _, rb := newTestServer(t)
	for i := 0; i < rb.Capacity(); i++ {
		rb.Push(&model.StateVector{ICAO24: "a"})
	}

	_, body := get(t, mux, "/buffer/stats")

	assert.Equal(t, true, body["is_full"])
	assert.Equal(t, false, body["is_empty"])
}

func TestRateLimit_Get(t *testing.T) {
	mux, _, _ := newTestServer(t)

	_, body := get(t, mux, "/rate_limit")

	assert.EqualValues(t, 100, body["states_per_second"])
	assert.EqualValues(t, 200, body["burst_size"])
	assert.EqualValues(t, 0, body["processed"])
	assert.EqualValues(t, 0, body["dropped"])
}

func TestRateLimit_Update(t *testing.T) {
	mux, m, _ := newTestServer(t)

	rec, body := do(t, mux, http.MethodPost, "/rate_limit?states_per_second=5&burst_size=7")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 5, body["states_per_second"])
	assert.EqualValues(t, 7, body["burst_size"])

	for _, target := range []string{
		"/rate_limit?states_per_second=0&burst_size=7",
		"/rate_limit?states_per_second=5",
	} {
		rec, _ = do(t, mux, http.MethodPost, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Equal(t, int64(2), m.GetHTTPErrors())

	_, body = get(t, mux, "/rate_limit")
	assert.EqualValues(t, 5, body["states_per_second"])
}

func TestMetrics(t *testing.T) {
	mux, m, _ := newTestServer(t, "a", "b")
	m.IncrementAPIRequests()

	_, body := get(t, mux, "/metrics")

	assert.EqualValues(t, 1, body["api_requests"])
	assert.EqualValues(t, 2, body["buffer_size"])
	assert.EqualValues(t, 10, body["buffer_capacity"])
	assert.EqualValues(t, 1, body["http_requests"])
}

func TestParsePositiveInt(t *testing.T) {
	n, err := parsePositiveInt("42")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = parsePositiveInt("0")
	assert.Error(t, err)
	_, err = parsePositiveInt("1.5")
	assert.Error(t, err)
}
