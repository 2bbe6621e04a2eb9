package config_test

import (
	"testing"
	"time"

	"github.com/flipflow/flipflow/internal/assert"
	"github.com/flipflow/flipflow/internal/config"
	"github.com/flipflow/flipflow/pkg/api"
)

func TestDefaultConfig(t *testing.T) {
	as := assert.New(t)
	cfg := config.NewDefaultConfig()

	as.Equal(config.DefaultAPIHost, cfg.APIHost)
	as.Equal(config.DefaultAPIPort, cfg.APIPort)
	as.Equal("sqlite", cfg.StoreDriver)
	as.Equal("memory", cfg.BusDriver)
	as.Equal(config.DefaultCapabilityURL, cfg.CapabilityURL)
	as.Equal(config.DefaultBucketURL, cfg.BucketURL)
	as.Equal(5*time.Minute, cfg.PollInterval)
	as.Len(cfg.Platforms, 3)
	as.NoError(cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	as := assert.New(t)

	t.Setenv("API_HOST", "127.0.0.1")
	t.Setenv("API_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("STORE_DSN", "postgres://localhost/flipflow")
	t.Setenv("BUS_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("PLATFORMS", "ebay, vinted")
	t.Setenv("RETRY_MAX_RETRIES", "5")
	t.Setenv("RETRY_BACKOFF_TYPE", "linear")
	t.Setenv("POLL_INTERVAL", "30s")

	cfg := config.NewDefaultConfig()
	as.NoError(cfg.LoadFromEnv())

	as.Equal("127.0.0.1", cfg.APIHost)
	as.Equal(9999, cfg.APIPort)
	as.Equal("debug", cfg.LogLevel)
	as.Equal("postgres", cfg.StoreDriver)
	as.Equal("postgres://localhost/flipflow", cfg.StoreDSN)
	as.Equal("redis", cfg.BusDriver)
	as.Equal("redis.internal:6379", cfg.Redis.Addr)
	as.Equal(3, cfg.Redis.DB)
	as.Equal(
		[]api.Platform{api.PlatformEbay, api.PlatformVinted},
		cfg.Platforms,
	)
	as.Equal(5, cfg.Retry.MaxRetries)
	as.Equal(api.BackoffTypeLinear, cfg.Retry.BackoffType)
	as.Equal(30*time.Second, cfg.PollInterval)
	as.NoError(cfg.Validate())
}

func TestLoadFromEnvRetryBounds(t *testing.T) {
	scenarios := []struct {
		value  string
		expect int
	}{
		{"0", 0},   // retries disabled
		{"-1", -1}, // uncapped
		{"1000", 1000},
	}

	for _, s := range scenarios {
		t.Run(s.value, func(t *testing.T) {
			as := assert.New(t)
			t.Setenv("RETRY_MAX_RETRIES", s.value)

			cfg := config.NewDefaultConfig()
			as.NoError(cfg.LoadFromEnv())
			as.Equal(s.expect, cfg.Retry.MaxRetries)
			as.NoError(cfg.Validate())
		})
	}
}

func TestLoadFromEnvRetryOutOfRange(t *testing.T) {
	as := assert.New(t)
	t.Setenv("RETRY_MAX_RETRIES", "-2")

	cfg := config.NewDefaultConfig()
	as.Error(cfg.LoadFromEnv())
}

func TestLoadFromEnvBadInt(t *testing.T) {
	as := assert.New(t)
	t.Setenv("API_PORT", "not-a-port")

	cfg := config.NewDefaultConfig()
	as.Error(cfg.LoadFromEnv())
}

func TestLoadFromEnvOutOfRange(t *testing.T) {
	as := assert.New(t)
	t.Setenv("API_PORT", "70000")

	cfg := config.NewDefaultConfig()
	as.Error(cfg.LoadFromEnv())
}

func TestLoadFromEnvBadDuration(t *testing.T) {
	as := assert.New(t)
	t.Setenv("POLL_INTERVAL", "-5s")

	cfg := config.NewDefaultConfig()
	as.Error(cfg.LoadFromEnv())
}

func TestValidateErrors(t *testing.T) {
	scenarios := []struct {
		name   string
		mutate func(*config.Config)
		expect error
	}{
		{"bad port", func(c *config.Config) {
			c.APIPort = 0
		}, config.ErrInvalidAPIPort},
		{"bad store driver", func(c *config.Config) {
			c.StoreDriver = "cassandra"
		}, config.ErrInvalidStoreDriver},
		{"bad bus driver", func(c *config.Config) {
			c.BusDriver = "kafka"
		}, config.ErrInvalidBusDriver},
		{"no platforms", func(c *config.Config) {
			c.Platforms = nil
		}, config.ErrNoPlatforms},
		{"bad init backoff", func(c *config.Config) {
			c.Retry.InitBackoff = 0
		}, config.ErrInvalidRetryInitBackoff},
		{"backoff inversion", func(c *config.Config) {
			c.Retry.InitBackoff = 5000
			c.Retry.MaxBackoff = 1000
		}, config.ErrRetryMaxBackoffTooSmall},
		{"bad backoff type", func(c *config.Config) {
			c.Retry.BackoffType = "quadratic"
		}, api.ErrInvalidBackoffType},
		{"bad poll interval", func(c *config.Config) {
			c.PollInterval = 0
		}, config.ErrInvalidPollInterval},
	}

	for _, s := range scenarios {
		t.Run(s.name, func(t *testing.T) {
			as := assert.New(t)
			cfg := config.NewDefaultConfig()
			s.mutate(cfg)
			as.ErrorIs(cfg.Validate(), s.expect)
		})
	}
}
