package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openskynetwork/opensky-api/internal/auth"
	"github.com/openskynetwork/opensky-api/internal/model"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	OpenSky   OpenSkyConfig   `yaml:"opensky"`
	Poll      PollConfig      `yaml:"poll"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Buffer    BufferConfig    `yaml:"buffer"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type OpenSkyConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	ClientID       string        `yaml:"client_id"`
	ClientSecret   string        `yaml:"client_secret"`
	TokenURL       string        `yaml:"token_url"`
	ProxyURL       string        `yaml:"proxy_url"`
}

// HasBasicAuth reports whether username and password are both set.
func (o OpenSkyConfig) HasBasicAuth() bool {
	return o.Username != "" && o.Password != ""
}

// HasClientCredentials reports whether an OAuth2 client is configured.
func (o OpenSkyConfig) HasClientCredentials() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
	ICAO24   []string      `yaml:"icao24"`
	BBox     *BBoxConfig   `yaml:"bbox"`
}

type BBoxConfig struct {
	MinLatitude  float64 `yaml:"min_latitude"`
	MaxLatitude  float64 `yaml:"max_latitude"`
	MinLongitude float64 `yaml:"min_longitude"`
	MaxLongitude float64 `yaml:"max_longitude"`
}

// BoundingBox returns the validated box, or nil when none is configured.
func (p PollConfig) BoundingBox() (*model.BoundingBox, error) {
	if p.BBox == nil {
		return nil, nil
	}
	bbox, err := model.NewBoundingBox(p.BBox.MinLatitude, p.BBox.MaxLatitude, p.BBox.MinLongitude, p.BBox.MaxLongitude)
	if err != nil {
		return nil, err
	}
	return &bbox, nil
}

type RateLimitConfig struct {
	StatesPerSecond int `yaml:"states_per_second"`
	BurstSize       int `yaml:"burst_size"`
}

type BufferConfig struct {
	Type   string        `yaml:"type"` // "ring" or "sliding_window"
	Size   int           `yaml:"size"`
	Window time.Duration `yaml:"window"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // "DEBUG", "INFO", "WARN", "ERROR"
	Format string `yaml:"format"` // "text" or "json"
}

func Load(configPath string) (*Config, error) {
	config := &Config{}

	// Set defaults
	config.setDefaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.loadFromEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func (c *Config) setDefaults() {
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 15 * time.Second
	c.Server.IdleTimeout = 60 * time.Second

	c.OpenSky.BaseURL = "https://opensky-network.org/api"
	c.OpenSky.RequestTimeout = 15 * time.Second
	c.OpenSky.TokenURL = auth.DefaultTokenURL

	// anonymous clients may only fetch all states every 10s
	c.Poll.Interval = 11 * time.Second

	c.RateLimit.StatesPerSecond = 5000
	c.RateLimit.BurstSize = 20000

	c.Buffer.Type = "ring"
	c.Buffer.Size = 20000
	c.Buffer.Window = 5 * time.Minute

	c.Logging.Level = "INFO"
	c.Logging.Format = "text"
}

func (c *Config) loadFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if baseURL := os.Getenv("OPENSKY_BASE_URL"); baseURL != "" {
		c.OpenSky.BaseURL = baseURL
	}

	if username := os.Getenv("OPENSKY_USERNAME"); username != "" {
		c.OpenSky.Username = username
	}

	if password := os.Getenv("OPENSKY_PASSWORD"); password != "" {
		c.OpenSky.Password = password
	}

	if clientID := os.Getenv("OPENSKY_CLIENT_ID"); clientID != "" {
		c.OpenSky.ClientID = clientID
	}

	if secret := os.Getenv("OPENSKY_CLIENT_SECRET"); secret != "" {
		c.OpenSky.ClientSecret = secret
	}

	if proxy := os.Getenv("OPENSKY_PROXY_URL"); proxy != "" {
		c.OpenSky.ProxyURL = proxy
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	if sps := os.Getenv("RATE_LIMIT_SPS"); sps != "" {
		if r, err := strconv.Atoi(sps); err == nil {
			c.RateLimit.StatesPerSecond = r
		}
	}

	if bufferType := os.Getenv("BUFFER_TYPE"); bufferType != "" {
		c.Buffer.Type = bufferType
	}

	if bufferSize := os.Getenv("BUFFER_SIZE"); bufferSize != "" {
		if s, err := strconv.Atoi(bufferSize); err == nil {
			c.Buffer.Size = s
		}
	}
}

// Validate checks the configuration; Load calls it after applying
// overrides, callers changing fields afterwards should call it again.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if c.OpenSky.BaseURL == "" {
		return fmt.Errorf("opensky base URL cannot be empty")
	}

	if c.OpenSky.RequestTimeout <= 0 {
		return fmt.Errorf("opensky request timeout must be positive")
	}

	if (c.OpenSky.Username == "") != (c.OpenSky.Password == "") {
		return fmt.Errorf("opensky username and password must be set together")
	}

	if (c.OpenSky.ClientID == "") != (c.OpenSky.ClientSecret == "") {
		return fmt.Errorf("opensky client id and client secret must be set together")
	}

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if _, err := c.Poll.BoundingBox(); err != nil {
		return fmt.Errorf("poll bbox: %w", err)
	}

	if c.RateLimit.StatesPerSecond < 1 {
		return fmt.Errorf("states per second must be at least 1")
	}

	if c.RateLimit.BurstSize < 1 {
		return fmt.Errorf("burst size must be at least 1")
	}

	if c.Buffer.Type != "ring" && c.Buffer.Type != "sliding_window" {
		return fmt.Errorf("buffer type must be 'ring' or 'sliding_window'")
	}

	if c.Buffer.Size < 1 {
		return fmt.Errorf("buffer size must be at least 1")
	}

	if c.Buffer.Type == "sliding_window" && c.Buffer.Window <= 0 {
		return fmt.Errorf("buffer window must be positive")
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("log level must be 'DEBUG', 'INFO', 'WARN', or 'ERROR'")
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("log format must be 'text' or 'json'")
	}

	return nil
}
