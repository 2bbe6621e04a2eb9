// Package config loads runtime settings from the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/flipflow/flipflow/internal/bus"
	"github.com/flipflow/flipflow/pkg/api"
)

type (
	// Config holds configuration settings for the service
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Checkpoint store
		StoreDriver string
		StoreDSN    string

		// Event bus
		BusDriver string
		Redis     bus.RedisConfig

		// Capabilities & platforms
		CapabilityURL     string
		CapabilityTimeout time.Duration
		BridgeURL         string
		BridgeTimeout     time.Duration
		Platforms         []api.Platform

		// Image storage
		BucketURL string

		// Engine
		Retry           api.RetryPolicy
		PollInterval    time.Duration
		ShutdownTimeout time.Duration
	}
)

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultStoreDriver = "sqlite"
	DefaultStoreDSN    = "flipflow.db"

	DefaultBusDriver     = "memory"
	DefaultRedisEndpoint = "localhost:6379"
	DefaultRedisPrefix   = "flipflow"

	DefaultCapabilityURL     = "http://localhost:8090/capabilities"
	DefaultCapabilityTimeout = 60 * time.Second
	DefaultBridgeURL         = "http://localhost:8091/platforms"
	DefaultBridgeTimeout     = 30 * time.Second

	DefaultBucketURL = "file://./images"

	DefaultRetryMaxRetries  = 3
	DefaultRetryInitBackoff = 1000
	DefaultMaxRetryBackoff  = 30000
	DefaultRetryBackoffType = api.BackoffTypeExponential

	DefaultPollInterval    = 5 * time.Minute
	DefaultShutdownTimeout = 10 * time.Second

	MinRetryMaxRetries  = -1
	MaxRetryMaxRetries  = 1000
	MaxRetryInitBackoff = 24 * 60 * 60 * 1000 // 1 day in ms
	MaxRetryMaxBackoff  = MaxRetryInitBackoff
)

var (
	ErrInvalidAPIPort      = errors.New("invalid API port")
	ErrInvalidStoreDriver  = errors.New("invalid store driver")
	ErrInvalidBusDriver    = errors.New("invalid bus driver")
	ErrInvalidPollInterval = errors.New("poll interval must be positive")
	ErrNoPlatforms         = errors.New("at least one platform required")

	ErrInvalidRetryInitBackoff = errors.New(
		"retry initial backoff must be positive",
	)
	ErrInvalidRetryMaxBackoff = errors.New(
		"retry max backoff must be positive",
	)
	ErrRetryMaxBackoffTooSmall = errors.New(
		"retry max backoff must be >= retry initial backoff",
	)
)

// NewDefaultConfig creates a configuration with sensible defaults for
// all service settings
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:     DefaultAPIHost,
		APIPort:     DefaultAPIPort,
		LogLevel:    "info",
		StoreDriver: DefaultStoreDriver,
		StoreDSN:    DefaultStoreDSN,
		BusDriver:   DefaultBusDriver,
		Redis: bus.RedisConfig{
			Addr:   DefaultRedisEndpoint,
			Prefix: DefaultRedisPrefix,
		},
		CapabilityURL:     DefaultCapabilityURL,
		CapabilityTimeout: DefaultCapabilityTimeout,
		BridgeURL:         DefaultBridgeURL,
		BridgeTimeout:     DefaultBridgeTimeout,
		Platforms: []api.Platform{
			api.PlatformEbay,
			api.PlatformVinted,
			api.PlatformDepop,
		},
		BucketURL: DefaultBucketURL,
		Retry: api.RetryPolicy{
			MaxRetries:  DefaultRetryMaxRetries,
			InitBackoff: DefaultRetryInitBackoff,
			MaxBackoff:  DefaultMaxRetryBackoff,
			BackoffType: DefaultRetryBackoffType,
		},
		PollInterval:    DefaultPollInterval,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment
// variables. Returns an error if any env var cannot be parsed
func (c *Config) LoadFromEnv() error {
	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		c.StoreDriver = driver
	}
	if dsn := os.Getenv("STORE_DSN"); dsn != "" {
		c.StoreDSN = dsn
	}
	if driver := os.Getenv("BUS_DRIVER"); driver != "" {
		c.BusDriver = driver
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
		c.Redis.Prefix = prefix
	}
	if url := os.Getenv("CAPABILITY_URL"); url != "" {
		c.CapabilityURL = url
	}
	if url := os.Getenv("BRIDGE_URL"); url != "" {
		c.BridgeURL = url
	}
	if url := os.Getenv("BUCKET_URL"); url != "" {
		c.BucketURL = url
	}
	if platforms := os.Getenv("PLATFORMS"); platforms != "" {
		c.Platforms = parsePlatforms(platforms)
	}
	if backoffType := os.Getenv("RETRY_BACKOFF_TYPE"); backoffType != "" {
		c.Retry.BackoffType = backoffType
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"REDIS_DB", &c.Redis.DB, -1, 15,
	); err != nil {
		return err
	}
	// 0 disables retries, -1 removes the cap
	if err := loadEnvInt(
		"RETRY_MAX_RETRIES", &c.Retry.MaxRetries, MinRetryMaxRetries-1,
		MaxRetryMaxRetries,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RETRY_INITIAL_BACKOFF", &c.Retry.InitBackoff, 0,
		MaxRetryInitBackoff,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RETRY_MAX_BACKOFF", &c.Retry.MaxBackoff, 0, MaxRetryMaxBackoff,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"POLL_INTERVAL", &c.PollInterval,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout,
	); err != nil {
		return err
	}

	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	switch c.StoreDriver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStoreDriver, c.StoreDriver)
	}

	switch c.BusDriver {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidBusDriver, c.BusDriver)
	}

	if len(c.Platforms) == 0 {
		return ErrNoPlatforms
	}

	if c.Retry.InitBackoff <= 0 {
		return ErrInvalidRetryInitBackoff
	}
	if c.Retry.MaxBackoff <= 0 {
		return ErrInvalidRetryMaxBackoff
	}
	if c.Retry.MaxBackoff < c.Retry.InitBackoff {
		return ErrRetryMaxBackoffTooSmall
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("%w: %s", err, c.Retry.BackoffType)
	}

	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}

	return nil
}

func parsePlatforms(s string) []api.Platform {
	var res []api.Platform
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, api.Platform(p))
		}
	}
	return res
}

// loadEnvInt reads key from the environment, parses it as an integer,
// and sets *dst if the value is in the range (min, max). Returns an
// error if the value cannot be parsed or falls outside the valid range
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

// loadEnvDuration reads key from the environment and parses it as a
// positive Go duration
func loadEnvDuration(key string, dst *time.Duration) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil || v <= 0 {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	*dst = v
	return nil
}
