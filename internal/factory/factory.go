package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mcoot/holdem-lobby/internal/api"
	"github.com/mcoot/holdem-lobby/internal/dependencies/clock"
	"github.com/mcoot/holdem-lobby/internal/dependencies/random"
	"github.com/mcoot/holdem-lobby/internal/metrics"
	"github.com/mcoot/holdem-lobby/internal/realtime"
	"github.com/mcoot/holdem-lobby/internal/services/auth"
	"github.com/mcoot/holdem-lobby/internal/services/registry"
	"github.com/mcoot/holdem-lobby/internal/storage"
	"github.com/mcoot/holdem-lobby/internal/storage/memory"
	redisstorage "github.com/mcoot/holdem-lobby/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Observability
	Metrics        metrics.Recorder
	MetricsHandler http.Handler

	// Services
	AuthService *auth.Service
	Registry    *registry.Registry

	// Transports
	WSGateway   *realtime.WSGateway
	SSEStreamer *realtime.SSEStreamer

	logger *slog.Logger
	closer io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// RegistryConfig holds countdown and delivery settings (optional)
	// If zero value, defaults to registry.DefaultConfig()
	RegistryConfig registry.Config
	// RealtimeConfig holds websocket and SSE settings (optional)
	// If zero value, defaults to realtime.DefaultConfig()
	RealtimeConfig realtime.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// DisableMetrics turns off the Prometheus registry and /metrics
	DisableMetrics bool
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var (
		store  storage.Storage
		closer io.Closer
	)
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
		closer = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	var (
		recorder       metrics.Recorder = metrics.NoOp{}
		metricsHandler http.Handler
	)
	if !cfg.DisableMetrics {
		prom := metrics.NewPrometheusWithRegistry(prometheus.NewRegistry())
		recorder = prom
		metricsHandler = prom.Handler()
	}

	app := newWithDependencies(store, clk, rnd, recorder, withDefaults(cfg), logger)
	app.MetricsHandler = metricsHandler
	app.closer = closer
	return app, nil
}

// withDefaults fills in zero-valued sub-configs
func withDefaults(cfg Config) Config {
	if cfg.AuthConfig.TokenDuration == 0 {
		cfg.AuthConfig.TokenDuration = auth.DefaultConfig().TokenDuration
	}
	if cfg.RegistryConfig.Session.TickInterval == 0 {
		cfg.RegistryConfig = registry.DefaultConfig()
	}
	if cfg.RealtimeConfig.SendQueueSize == 0 {
		cfg.RealtimeConfig = realtime.DefaultConfig()
	}
	return cfg
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	recorder metrics.Recorder,
	cfg Config,
	logger *slog.Logger,
) *App {
	authService := auth.New(store, clk, rnd, cfg.AuthConfig, logger)
	reg := registry.New(store, clk, rnd, recorder, cfg.RegistryConfig, logger)
	wsGateway := realtime.NewWSGateway(cfg.RealtimeConfig, rnd, logger)
	sseStreamer := realtime.NewSSEStreamer(cfg.RealtimeConfig, rnd, logger)

	return &App{
		Storage:     store,
		Clock:       clk,
		Random:      rnd,
		Metrics:     recorder,
		AuthService: authService,
		Registry:    reg,
		WSGateway:   wsGateway,
		SSEStreamer: sseStreamer,
		logger:      logger,
	}
}

// Router builds the HTTP handler serving the API, live streams and metrics
func (a *App) Router(allowedOrigins []string) http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:         a.logger,
		AuthService:    a.AuthService,
		Registry:       a.Registry,
		WSGateway:      a.WSGateway,
		SSEStreamer:    a.SSEStreamer,
		MetricsHandler: a.MetricsHandler,
		AllowedOrigins: allowedOrigins,
	})
}

// RunBackground runs housekeeping loops until ctx is cancelled
func (a *App) RunBackground(ctx context.Context, cleanupInterval time.Duration) {
	a.AuthService.RunCleanup(ctx, cleanupInterval)
}

// Close releases the storage backend
func (a *App) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}
