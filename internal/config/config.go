package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mcoot/holdem-lobby/internal/api"
	"github.com/mcoot/holdem-lobby/internal/factory"
	"github.com/mcoot/holdem-lobby/internal/realtime"
	"github.com/mcoot/holdem-lobby/internal/services/auth"
	"github.com/mcoot/holdem-lobby/internal/services/registry"
	redisstorage "github.com/mcoot/holdem-lobby/internal/storage/redis"
)

// Config is the server's environment-driven configuration
type Config struct {
	Host     string
	Port     int
	LogLevel slog.Level

	StorageType string
	RedisURL    string

	DefaultDelay     time.Duration
	MaxDelay         time.Duration
	TickInterval     time.Duration
	SendTimeout      time.Duration
	MaxParallelSends int

	TokenDuration   time.Duration
	CleanupInterval time.Duration
	AllowUnverified bool

	AllowedOrigins []string
	DisableMetrics bool
}

// Default returns the configuration used when no variables are set
func Default() Config {
	reg := registry.DefaultConfig()
	return Config{
		Port:             api.DefaultServerConfig().Port,
		LogLevel:         slog.LevelInfo,
		StorageType:      factory.StorageTypeMemory,
		DefaultDelay:     reg.DefaultCountdown,
		MaxDelay:         reg.MaxCountdown,
		TickInterval:     reg.Session.TickInterval,
		SendTimeout:      reg.Session.SendTimeout,
		MaxParallelSends: reg.Session.MaxParallelSends,
		TokenDuration:    auth.DefaultConfig().TokenDuration,
		CleanupInterval:  10 * time.Minute,
	}
}

// Load reads .env style files into the process environment, then parses
// it. Missing files are skipped; variables already set win.
func Load(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv parses the configuration from environment variables
func FromEnv() (Config, error) {
	cfg := Default()
	var errs []error

	cfg.Host = getEnv("HOST", cfg.Host)
	cfg.Port = getInt("PORT", cfg.Port, &errs)
	cfg.StorageType = getEnv("STORAGE_TYPE", cfg.StorageType)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)

	cfg.DefaultDelay = getDuration("LOBBY_DEFAULT_DELAY", cfg.DefaultDelay, &errs)
	cfg.MaxDelay = getDuration("LOBBY_MAX_DELAY", cfg.MaxDelay, &errs)
	cfg.TickInterval = getDuration("LOBBY_TICK_INTERVAL", cfg.TickInterval, &errs)
	cfg.SendTimeout = getDuration("LOBBY_SEND_TIMEOUT", cfg.SendTimeout, &errs)
	cfg.MaxParallelSends = getInt("LOBBY_MAX_PARALLEL_SENDS", cfg.MaxParallelSends, &errs)

	cfg.TokenDuration = getDuration("AUTH_TOKEN_DURATION", cfg.TokenDuration, &errs)
	cfg.CleanupInterval = getDuration("AUTH_CLEANUP_INTERVAL", cfg.CleanupInterval, &errs)
	cfg.AllowUnverified = getBool("LOBBY_ALLOW_UNVERIFIED", cfg.AllowUnverified, &errs)

	cfg.DisableMetrics = getBool("METRICS_DISABLED", cfg.DisableMetrics, &errs)
	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if level := getEnv("LOG_LEVEL", ""); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints
func (c Config) Validate() error {
	switch c.StorageType {
	case factory.StorageTypeMemory:
	case factory.StorageTypeRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL required when STORAGE_TYPE=redis")
		}
	default:
		return fmt.Errorf("invalid STORAGE_TYPE %q: must be 'memory' or 'redis'", c.StorageType)
	}
	if c.DefaultDelay < 0 || c.DefaultDelay > c.MaxDelay {
		return fmt.Errorf("LOBBY_DEFAULT_DELAY %s must be within [0, %s]", c.DefaultDelay, c.MaxDelay)
	}
	if c.TickInterval <= 0 {
		return errors.New("LOBBY_TICK_INTERVAL must be positive")
	}
	if c.SendTimeout <= 0 {
		return errors.New("LOBBY_SEND_TIMEOUT must be positive")
	}
	return nil
}

// Factory converts the configuration into application factory settings
func (c Config) Factory(logger *slog.Logger) factory.Config {
	reg := registry.DefaultConfig()
	reg.DefaultCountdown = c.DefaultDelay
	reg.MaxCountdown = c.MaxDelay
	reg.Session.TickInterval = c.TickInterval
	reg.Session.SendTimeout = c.SendTimeout
	reg.Session.MaxParallelSends = c.MaxParallelSends

	rt := realtime.DefaultConfig()
	rt.WriteTimeout = c.SendTimeout
	rt.OriginPatterns = originHosts(c.AllowedOrigins)

	fc := factory.Config{
		AuthConfig: auth.Config{
			TokenDuration:   c.TokenDuration,
			AllowUnverified: c.AllowUnverified,
		},
		RegistryConfig: reg,
		RealtimeConfig: rt,
		Logger:         logger,
		StorageType:    c.StorageType,
		DisableMetrics: c.DisableMetrics,
	}
	if c.StorageType == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.RedisURL
		fc.RedisConfig = &redisCfg
	}
	return fc
}

// Server returns the HTTP server settings
func (c Config) Server() api.ServerConfig {
	sc := api.DefaultServerConfig()
	sc.Host = c.Host
	sc.Port = c.Port
	return sc
}

// originHosts strips schemes so CORS origins double as websocket origin patterns
func originHosts(origins []string) []string {
	var hosts []string
	for _, o := range origins {
		if o == "*" {
			hosts = append(hosts, "*")
			continue
		}
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		hosts = append(hosts, strings.TrimSuffix(o, "/"))
	}
	return hosts
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		// Bare numbers are seconds
		if n, nerr := strconv.Atoi(val); nerr == nil {
			return time.Duration(n) * time.Second
		}
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func getBool(key string, fallback bool, errs *[]error) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}
