package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig verifies that DefaultConfig returns valid defaults
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "storefront", cfg.Name)
	assert.Equal(t, "http://localhost:3000", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Session.CheckInterval)
	assert.Equal(t, "inmemory", cfg.Storage.Provider)
	assert.Equal(t, 8, cfg.Catalog.PageSize)
	assert.Equal(t, 1, cfg.Catalog.DefaultShopID)
	assert.Equal(t, 50.4501, cfg.Order.DeliveryLatitude)
	assert.Equal(t, 30.5234, cfg.Order.DeliveryLongitude)
	assert.True(t, cfg.Resilience.CircuitBreaker.Enabled)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{
			name:    "relative base URL",
			mutate:  func(c *Config) { c.API.BaseURL = "/api" },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "non-http scheme",
			mutate:  func(c *Config) { c.API.BaseURL = "ftp://example.com" },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "zero page size",
			mutate:  func(c *Config) { c.Catalog.PageSize = 0 },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "zero shop id",
			mutate:  func(c *Config) { c.Catalog.DefaultShopID = 0 },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "non-positive session interval",
			mutate:  func(c *Config) { c.Session.CheckInterval = 0 },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "unknown storage provider",
			mutate:  func(c *Config) { c.Storage.Provider = "etcd" },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name: "redis without URL",
			mutate: func(c *Config) {
				c.Storage.Provider = "redis"
				c.Storage.RedisURL = ""
			},
			wantErr: ErrMissingConfiguration,
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Storage.Provider = "sqlite"
				c.Storage.SQLitePath = ""
			},
			wantErr: ErrMissingConfiguration,
		},
		{
			name: "otlp without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Exporter = "otlp"
			},
			wantErr: ErrMissingConfiguration,
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Order.Timezone = "Mars/Olympus" },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:   "known timezone",
			mutate: func(c *Config) { c.Order.Timezone = "Europe/Kyiv" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var se *StoreError
			assert.True(t, errors.As(err, &se))
			assert.Equal(t, "config", se.Kind)
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STOREFRONT_API_BASE_URL", "http://shop.test:8080")
	t.Setenv("STOREFRONT_STORAGE_PROVIDER", "sqlite")
	t.Setenv("STOREFRONT_STORAGE_SQLITE_PATH", "/tmp/cart.db")
	t.Setenv("STOREFRONT_SESSION_CHECK_INTERVAL", "30s")
	t.Setenv("STOREFRONT_CATALOG_PAGE_SIZE", "12")
	t.Setenv("STOREFRONT_RESILIENCE_CB_THRESHOLD", "2")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "http://shop.test:8080", cfg.API.BaseURL)
	assert.Equal(t, "sqlite", cfg.Storage.Provider)
	assert.Equal(t, "/tmp/cart.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 30*time.Second, cfg.Session.CheckInterval)
	assert.Equal(t, 12, cfg.Catalog.PageSize)
	assert.Equal(t, 2, cfg.Resilience.CircuitBreaker.Threshold)

	// untouched values keep their defaults
	assert.Equal(t, 1, cfg.Catalog.DefaultShopID)
}

func TestLoadFromEnvInvalidValue(t *testing.T) {
	t.Setenv("STOREFRONT_CATALOG_PAGE_SIZE", "lots")

	err := DefaultConfig().LoadFromEnv()
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestLoadFromEnvDevMode(t *testing.T) {
	t.Setenv(EnvDevMode, "yes")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	assert.True(t, cfg.Development.Enabled)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "storefront.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: http://yaml.test
  timeout: 3s
catalog:
  page_size: 4
storage:
  provider: redis
  redis_url: redis://localhost:6379/2
`), 0o600))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(path))
		assert.Equal(t, "http://yaml.test", cfg.API.BaseURL)
		assert.Equal(t, 3*time.Second, cfg.API.Timeout)
		assert.Equal(t, 4, cfg.Catalog.PageSize)
		assert.Equal(t, "redis", cfg.Storage.Provider)
		assert.Equal(t, "redis://localhost:6379/2", cfg.Storage.RedisURL)
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "storefront.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"api":{"base_url":"http://json.test"},"catalog":{"default_shop_id":3}}`), 0o600))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(path))
		assert.Equal(t, "http://json.test", cfg.API.BaseURL)
		assert.Equal(t, 3, cfg.Catalog.DefaultShopID)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		err := DefaultConfig().LoadFromFile(filepath.Join(dir, "storefront.toml"))
		assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yml")
		require.NoError(t, os.WriteFile(path, []byte("api: [unclosed"), 0o600))
		err := DefaultConfig().LoadFromFile(path)
		assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	})
}

// TestNewConfigPrecedence checks defaults < file < env < options.
func TestNewConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: http://file.test
catalog:
  page_size: 4
  default_shop_id: 2
`), 0o600))

	t.Setenv("STOREFRONT_CATALOG_PAGE_SIZE", "6")
	t.Setenv("STOREFRONT_API_BASE_URL", "http://env.test")

	cfg, err := NewConfig(path, WithBaseURL("http://option.test/"))
	require.NoError(t, err)

	assert.Equal(t, "http://option.test", cfg.API.BaseURL)
	assert.Equal(t, 6, cfg.Catalog.PageSize)
	assert.Equal(t, 2, cfg.Catalog.DefaultShopID)
	assert.Equal(t, 5*time.Minute, cfg.Session.CheckInterval)
}

func TestFunctionalOptions(t *testing.T) {
	cfg, err := NewConfig("",
		WithSQLitePath("/tmp/x.db"),
		WithPageSize(10),
		WithSessionInterval(time.Minute),
		WithCircuitBreaker(3, time.Second),
		WithLogLevel("debug"),
		WithLogFormat("text"),
		WithTimezone("UTC"),
	)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Provider)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 10, cfg.Catalog.PageSize)
	assert.Equal(t, time.Minute, cfg.Session.CheckInterval)
	assert.Equal(t, 3, cfg.Resilience.CircuitBreaker.Threshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "UTC", cfg.Order.Timezone)

	_, err = NewConfig("", WithPageSize(0))
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	_, err = NewConfig("", WithTimeout(-time.Second))
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	_, err = NewConfig("", WithStorage("redis"), WithRedisURL(""))
	assert.True(t, errors.Is(err, ErrMissingConfiguration))
}
