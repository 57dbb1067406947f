package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/openskynetwork/opensky-api/internal/auth"
	"github.com/openskynetwork/opensky-api/internal/metrics"
	"github.com/openskynetwork/opensky-api/internal/model"
	"github.com/openskynetwork/opensky-api/internal/throttle"
	"github.com/openskynetwork/opensky-api/internal/wire"
	"github.com/openskynetwork/opensky-api/pkg/logger"
)

const (
	DefaultBaseURL   = "https://opensky-network.org/api"
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "opensky-api-go/1.0"

	statesAllPath = "/states/all"
	statesOwnPath = "/states/own"
)

var (
	// ErrAuthorization is returned for own-states requests on a client
	// without credentials. No request is attempted.
	ErrAuthorization = errors.New("anonymous access of own states not allowed")

	ErrNonOKResponse      = errors.New("non-OK response")
	ErrMissingCharset     = errors.New("could not read charset in response")
	ErrUnsupportedCharset = errors.New("unsupported response charset")
)

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatesQuery selects state vectors from /states/all. Time 0 means the
// most recent data; nil filters are not sent.
type StatesQuery struct {
	Time   int64
	ICAO24 []string
	BBox   *model.BoundingBox
}

func (q StatesQuery) values() url.Values {
	v := url.Values{}
	v.Set("time", strconv.FormatInt(q.Time, 10))
	for _, icao24 := range q.ICAO24 {
		v.Add("icao24", icao24)
	}
	if q.BBox != nil {
		v.Set("lamin", formatDegrees(q.BBox.MinLatitude()))
		v.Set("lamax", formatDegrees(q.BBox.MaxLatitude()))
		v.Set("lomin", formatDegrees(q.BBox.MinLongitude()))
		v.Set("lomax", formatDegrees(q.BBox.MaxLongitude()))
	}
	return v
}

// OwnStatesQuery selects state vectors seen by the account's own sensors.
type OwnStatesQuery struct {
	Time    int64
	ICAO24  []string
	Serials []int
}

func (q OwnStatesQuery) values() url.Values {
	v := url.Values{}
	v.Set("time", strconv.FormatInt(q.Time, 10))
	for _, icao24 := range q.ICAO24 {
		v.Add("icao24", icao24)
	}
	for _, serial := range q.Serials {
		v.Add("serials", strconv.Itoa(serial))
	}
	return v
}

func formatDegrees(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}

// FetchResult is the outcome of one states call. Issued is false when the
// throttler denied the call and nothing was sent. Snapshot is nil when the
// call was throttled or the server answered null.
type FetchResult struct {
	Snapshot *model.StatesSnapshot
	Issued   bool
}

// Option configures an OpenSkyClient
type Option func(*OpenSkyClient)

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *OpenSkyClient) { c.timeout = d }
}

// WithBasicAuth authenticates with username and password.
func WithBasicAuth(username, password string) Option {
	return func(c *OpenSkyClient) { c.auth = auth.Basic{Username: username, Password: password} }
}

// WithAuthenticator authenticates every request with a.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(c *OpenSkyClient) { c.auth = a }
}

// WithProxy routes the default HTTP client through the given proxy URL.
func WithProxy(proxyURL string) Option {
	return func(c *OpenSkyClient) { c.proxyURL = proxyURL }
}

// WithHTTPClient replaces the default HTTP client. Timeout and proxy
// settings are then up to the caller.
func WithHTTPClient(d Doer) Option {
	return func(c *OpenSkyClient) { c.httpClient = d }
}

// WithClock sets the clock used for throttling.
func WithClock(clock throttle.Clock) Option {
	return func(c *OpenSkyClient) { c.clock = clock }
}

func WithLogger(log *logger.Logger) Option {
	return func(c *OpenSkyClient) { c.logger = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *OpenSkyClient) { c.metrics = m }
}

func WithUserAgent(ua string) Option {
	return func(c *OpenSkyClient) { c.userAgent = ua }
}

// OpenSkyClient is a client for the OpenSky Network states API. It is safe
// for concurrent use; each client throttles its own requests.
type OpenSkyClient struct {
	baseURL    string
	httpClient Doer
	auth       auth.Authenticator
	throttler  *throttle.Throttler
	logger     *logger.Logger
	metrics    *metrics.Metrics

	timeout   time.Duration
	proxyURL  string
	clock     throttle.Clock
	userAgent string
}

// NewOpenSkyClient creates a client for the API rooted at baseURL; an
// empty baseURL selects DefaultBaseURL. Without an authentication option
// the client is anonymous.
func NewOpenSkyClient(baseURL string, opts ...Option) (*OpenSkyClient, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	c := &OpenSkyClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logger.Nop()
	}
	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if c.proxyURL != "" {
			proxy, err := url.Parse(c.proxyURL)
			if err != nil {
				return nil, fmt.Errorf("invalid proxy URL %q: %w", c.proxyURL, err)
			}
			transport.Proxy = http.ProxyURL(proxy)
		}
		c.httpClient = &http.Client{Timeout: c.timeout, Transport: transport}
	}
	c.throttler = throttle.New(c.clock)

	return c, nil
}

// Authenticated reports whether the client sends credentials.
func (c *OpenSkyClient) Authenticated() bool {
	return c.auth != nil
}

// GetStates retrieves state vectors for timeSecs (Unix seconds); 0 takes the
// most recent ones. icao24 and bbox are optional filters.
//
// A nil snapshot with a nil error means either that the request was
// throttled or that the server had no states. Use FetchStates to tell
// the two apart.
func (c *OpenSkyClient) GetStates(ctx context.Context, timeSecs int64, icao24 []string, bbox *model.BoundingBox) (*model.StatesSnapshot, error) {
	res, err := c.FetchStates(ctx, StatesQuery{Time: timeSecs, ICAO24: icao24, BBox: bbox})
	return res.Snapshot, err
}

// GetMyStates retrieves state vectors seen by the account's own sensors.
// It requires an authenticated client and returns ErrAuthorization
// otherwise.
func (c *OpenSkyClient) GetMyStates(ctx context.Context, timeSecs int64, icao24 []string, serials []int) (*model.StatesSnapshot, error) {
	res, err := c.FetchMyStates(ctx, OwnStatesQuery{Time: timeSecs, ICAO24: icao24, Serials: serials})
	return res.Snapshot, err
}

// FetchStates is GetStates with the throttling outcome exposed.
func (c *OpenSkyClient) FetchStates(ctx context.Context, q StatesQuery) (FetchResult, error) {
	return c.fetchThrottled(ctx, throttle.KeyAllStates, throttle.AllStatesPolicy, statesAllPath, q.values())
}

// FetchMyStates is GetMyStates with the throttling outcome exposed.
func (c *OpenSkyClient) FetchMyStates(ctx context.Context, q OwnStatesQuery) (FetchResult, error) {
	if !c.Authenticated() {
		return FetchResult{}, ErrAuthorization
	}
	return c.fetchThrottled(ctx, throttle.KeyMyStates, throttle.MyStatesPolicy, statesOwnPath, q.values())
}

func (c *OpenSkyClient) fetchThrottled(ctx context.Context, key string, policy throttle.Policy, path string, params url.Values) (FetchResult, error) {
	if !c.throttler.Allow(key, policy, c.Authenticated()) {
		c.logger.Debug("Blocking request due to rate limit", "endpoint", key)
		if c.metrics != nil {
			c.metrics.IncrementAPIThrottled()
		}
		return FetchResult{}, nil
	}

	snap, err := c.fetchStates(ctx, path, params)
	return FetchResult{Snapshot: snap, Issued: true}, err
}

// fetchStates performs the GET and decodes the response body
func (c *OpenSkyClient) fetchStates(ctx context.Context, path string, params url.Values) (*model.StatesSnapshot, error) {
	startTime := time.Now()
	target := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		c.logger.Error("Failed to create request", "url", target, "error", err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.auth != nil {
		if err := c.auth.Authenticate(req); err != nil {
			c.logger.Error("Failed to authenticate request", "error", err)
			c.countError()
			return nil, fmt.Errorf("failed to authenticate request: %w", err)
		}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	if c.metrics != nil {
		c.metrics.IncrementAPIRequests()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to fetch data from OpenSky", "path", path, "error", err)
		c.countError()
		return nil, fmt.Errorf("failed to fetch data: %w", err)
	}
	defer resp.Body.Close()

	latency := time.Since(startTime).Milliseconds()
	if c.metrics != nil {
		c.metrics.RecordAPILatency(latency)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("OpenSky API returned an error status", "path", path, "status", resp.StatusCode)
		c.countError()
		return nil, fmt.Errorf("could not get OpenSky vectors: %w: %s", ErrNonOKResponse, resp.Status)
	}

	body, err := charsetReader(resp.Header.Get("Content-Type"), resp.Body)
	if err != nil {
		c.logger.Error("Failed to select response charset", "error", err)
		c.countError()
		return nil, err
	}

	snap, err := wire.Decode(body)
	if err != nil {
		c.logger.Error("Failed to decode states", "path", path, "error", err)
		if c.metrics != nil {
			c.metrics.IncrementDecodeErrors()
		}
		return nil, fmt.Errorf("failed to decode states: %w", err)
	}

	c.logger.Debug("Fetched flight states from OpenSky API", "path", path, "count", snap.Len(), "latency_ms", latency)

	return snap, nil
}

func (c *OpenSkyClient) countError() {
	if c.metrics != nil {
		c.metrics.IncrementAPIErrors()
	}
}

// charsetReader returns body decoded to UTF-8 according to the charset
// parameter of contentType.
func charsetReader(contentType string, body io.Reader) (io.Reader, error) {
	if contentType == "" {
		return nil, fmt.Errorf("%w: no Content-Type", ErrMissingCharset)
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: Content-Type is %q: %v", ErrMissingCharset, contentType, err)
	}
	name := params["charset"]
	if name == "" {
		return nil, fmt.Errorf("%w: Content-Type is %q", ErrMissingCharset, contentType)
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCharset, name)
	}
	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		return body, nil
	}
	return transform.NewReader(body, enc.NewDecoder()), nil
}
