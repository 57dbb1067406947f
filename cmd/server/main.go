package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/openskynetwork/opensky-api/internal/api"
	"github.com/openskynetwork/opensky-api/internal/auth"
	"github.com/openskynetwork/opensky-api/internal/buffer"
	"github.com/openskynetwork/opensky-api/internal/config"
	"github.com/openskynetwork/opensky-api/internal/fetcher"
	"github.com/openskynetwork/opensky-api/internal/metrics"
	"github.com/openskynetwork/opensky-api/internal/model"
	"github.com/openskynetwork/opensky-api/internal/processor"
	"github.com/openskynetwork/opensky-api/pkg/logger"
)

// stateBuffer is written by the processor and read by the API.
type stateBuffer interface {
	api.StateBuffer
	processor.StateSink
}

func main() {
	configPath := pflag.StringP("config", "c", "", "path to YAML config file")
	logLevel := pflag.String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	port := pflag.IntP("port", "p", 0, "HTTP port to listen on")
	pflag.Parse()

	if err := run(*configPath, *logLevel, *port); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, logLevel string, port int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewWithWriter(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	slog.SetDefault(log.Slog())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()
	go m.Run(ctx)

	client, err := newClient(ctx, cfg.OpenSky, log, m)
	if err != nil {
		return err
	}

	buf := newBuffer(cfg.Buffer)
	m.SetBufferCapacity(int64(buf.Capacity()))

	rl := processor.NewRateLimiter(cfg.RateLimit.StatesPerSecond, cfg.RateLimit.BurstSize)
	proc := processor.NewStateProcessor(rl, buf, m)

	bbox, err := cfg.Poll.BoundingBox()
	if err != nil {
		return err
	}
	query := fetcher.StatesQuery{ICAO24: cfg.Poll.ICAO24, BBox: bbox}

	go client.PollContinuously(ctx, cfg.Poll.Interval, query, func(snap *model.StatesSnapshot) {
		admitted := proc.Ingest(snap)
		m.SetBufferSize(int64(buf.Count()))
		log.Debug("Ingested states", "time", snap.Time, "received", snap.Len(), "admitted", admitted)
	})

	srv := api.NewServer(log, m, buf, cfg.Buffer.Type, rl)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	log.Info("OpenSky states service started",
		"authenticated", client.Authenticated(),
		"buffer", cfg.Buffer.Type,
		"poll_interval", cfg.Poll.Interval,
	)

	return serveHTTP(ctx, cfg.Server, mux, log)
}

func newClient(ctx context.Context, cfg config.OpenSkyConfig, log *logger.Logger, m *metrics.Metrics) (*fetcher.OpenSkyClient, error) {
	opts := []fetcher.Option{
		fetcher.WithTimeout(cfg.RequestTimeout),
		fetcher.WithLogger(log.With("component", "fetcher")),
		fetcher.WithMetrics(m),
	}
	if cfg.ProxyURL != "" {
		opts = append(opts, fetcher.WithProxy(cfg.ProxyURL))
	}

	switch {
	case cfg.HasBasicAuth():
		opts = append(opts, fetcher.WithBasicAuth(cfg.Username, cfg.Password))
	case cfg.HasClientCredentials():
		opts = append(opts, fetcher.WithAuthenticator(
			auth.NewClientCredentials(ctx, cfg.ClientID, cfg.ClientSecret, cfg.TokenURL),
		))
	}

	return fetcher.NewOpenSkyClient(cfg.BaseURL, opts...)
}

func newBuffer(cfg config.BufferConfig) stateBuffer {
	if cfg.Type == "sliding_window" {
		return buffer.NewSlidingWindowBuffer(cfg.Window, cfg.Size)
	}
	return buffer.NewRingBuffer(cfg.Size)
}
