package core

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the storefront client.
// It supports layered configuration priority:
//  1. Default values (lowest priority)
//  2. Config file (JSON or YAML)
//  3. Environment variables
//  4. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithBaseURL("http://localhost:3000"),
//	    WithStorage("sqlite"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	Name string `json:"name" yaml:"name"`

	// Backend API
	API APIConfig `json:"api" yaml:"api"`

	// Anonymous session handling
	Session SessionConfig `json:"session" yaml:"session"`

	// Client-local storage for the user id and carts
	Storage StorageConfig `json:"storage" yaml:"storage"`

	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	Order OrderConfig `json:"order" yaml:"order"`

	Resilience ResilienceConfig `json:"resilience" yaml:"resilience"`

	// Telemetry configuration (optional module)
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	Logging LoggingConfig `json:"logging" yaml:"logging"`

	Development DevelopmentConfig `json:"development" yaml:"development"`
}

// APIConfig points the client at the flower-shop backend.
type APIConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url" envconfig:"BASE_URL"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" envconfig:"TIMEOUT"`
	// UserAgent is sent on every request.
	UserAgent string `json:"user_agent" yaml:"user_agent" envconfig:"USER_AGENT"`
}

// SessionConfig controls the periodic session re-check.
type SessionConfig struct {
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval" envconfig:"CHECK_INTERVAL"`
	// PersistCookies keeps backend session cookies in storage so a new
	// process resumes the same session.
	PersistCookies bool `json:"persist_cookies" yaml:"persist_cookies" envconfig:"PERSIST_COOKIES"`
}

// StorageConfig selects the client-local storage provider.
// Valid providers: "inmemory", "sqlite" and "redis".
type StorageConfig struct {
	Provider   string `json:"provider" yaml:"provider" envconfig:"PROVIDER"`
	SQLitePath string `json:"sqlite_path" yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	RedisURL   string `json:"redis_url" yaml:"redis_url" envconfig:"REDIS_URL"`
	// Namespace prefixes every key in shared stores (Redis).
	Namespace string `json:"namespace" yaml:"namespace" envconfig:"KEY_PREFIX"`
}

// CatalogConfig holds listing defaults.
type CatalogConfig struct {
	PageSize      int `json:"page_size" yaml:"page_size" envconfig:"PAGE_SIZE"`
	DefaultShopID int `json:"default_shop_id" yaml:"default_shop_id" envconfig:"DEFAULT_SHOP_ID"`
}

// OrderConfig holds values sent with every order that the user does not enter.
type OrderConfig struct {
	DeliveryLatitude  float64 `json:"delivery_latitude" yaml:"delivery_latitude" envconfig:"DELIVERY_LATITUDE"`
	DeliveryLongitude float64 `json:"delivery_longitude" yaml:"delivery_longitude" envconfig:"DELIVERY_LONGITUDE"`
	// Timezone overrides the detected client timezone (IANA name).
	Timezone string `json:"timezone" yaml:"timezone" envconfig:"TIMEZONE"`
}

// ResilienceConfig contains fault tolerance settings for backend calls.
// There are no automatic retries; the circuit breaker only fails fast.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker" envconfig:"CB"`
}

// CircuitBreakerConfig defines circuit breaker pattern settings.
// After Threshold consecutive failures the circuit opens for Timeout,
// then lets HalfOpenRequests probes through.
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled" yaml:"enabled" envconfig:"ENABLED"`
	Threshold        int           `json:"threshold" yaml:"threshold" envconfig:"THRESHOLD"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" envconfig:"TIMEOUT"`
	HalfOpenRequests int           `json:"half_open_requests" yaml:"half_open_requests" envconfig:"HALF_OPEN"`
}

// TelemetryConfig contains observability configuration for metrics and tracing.
// Exporter "stdout" writes spans to stdout; "otlp" sends them to Endpoint.
type TelemetryConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled" envconfig:"ENABLED"`
	Exporter       string  `json:"exporter" yaml:"exporter" envconfig:"EXPORTER"`
	Endpoint       string  `json:"endpoint" yaml:"endpoint" envconfig:"ENDPOINT"`
	ServiceName    string  `json:"service_name" yaml:"service_name" envconfig:"SERVICE_NAME"`
	SamplingRate   float64 `json:"sampling_rate" yaml:"sampling_rate" envconfig:"SAMPLING_RATE"`
	Insecure       bool    `json:"insecure" yaml:"insecure" envconfig:"INSECURE"`
	MetricsEnabled bool    `json:"metrics_enabled" yaml:"metrics_enabled" envconfig:"METRICS"`
}

// LoggingConfig contains logging configuration.
// Supports structured (json) and human-readable (text) formats.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" envconfig:"LEVEL"`
	Format string `json:"format" yaml:"format" envconfig:"FORMAT"`
	Output string `json:"output" yaml:"output" envconfig:"OUTPUT"`
}

// DevelopmentConfig contains settings for local development.
type DevelopmentConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled" envconfig:"ENABLED"`
	PrettyLogs bool `json:"pretty_logs" yaml:"pretty_logs" envconfig:"PRETTY_LOGS"`
}

// Option is a functional option for configuring the client.
// Options are applied in order and can return an error if the configuration is invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name: "storefront",
		API: APIConfig{
			BaseURL:   DefaultBaseURL,
			Timeout:   15 * time.Second,
			UserAgent: "storefront-cli",
		},
		Session: SessionConfig{
			CheckInterval:  DefaultSessionInterval,
			PersistCookies: true,
		},
		Storage: StorageConfig{
			Provider:   "inmemory",
			SQLitePath: DefaultSQLitePath,
			Namespace:  DefaultRedisPrefix,
		},
		Catalog: CatalogConfig{
			PageSize:      DefaultPageSize,
			DefaultShopID: DefaultShopID,
		},
		Order: OrderConfig{
			DeliveryLatitude:  DefaultDeliveryLatitude,
			DeliveryLongitude: DefaultDeliveryLongitude,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				Threshold:        5,
				Timeout:          30 * time.Second,
				HalfOpenRequests: 1,
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			Exporter:       "stdout",
			ServiceName:    "storefront",
			SamplingRate:   1.0,
			Insecure:       true,
			MetricsEnabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
// Variables use the STOREFRONT_ prefix and the struct path, for example
// STOREFRONT_API_BASE_URL or STOREFRONT_STORAGE_PROVIDER. envconfig also
// falls back to the unprefixed tag name, so a plain REDIS_URL is honoured.
func (c *Config) LoadFromEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to process environment: %v: %w", err, ErrInvalidConfiguration)
	}

	if v := os.Getenv(EnvDevMode); v != "" && parseBool(v) {
		c.applyDevelopment()
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file.
// Keys are the snake_case field names, for example:
//
//	api:
//	  base_url: http://localhost:3000
//	storage:
//	  provider: sqlite
//	  sqlite_path: /home/me/.storefront.db
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(cleanPath) // nosec G304 -- path comes from the operator
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", ErrInvalidConfiguration)
		}
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
//
// Validation rules:
//   - API base URL must be an absolute http(s) URL
//   - Page size and default shop id must be positive
//   - Storage provider must be known, with its location set
//   - Telemetry endpoint is required for the otlp exporter
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &StoreError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid API base URL: %q", c.API.BaseURL),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Catalog.PageSize < 1 {
		return &StoreError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid page size: %d", c.Catalog.PageSize),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Catalog.DefaultShopID < 1 {
		return &StoreError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid default shop id: %d", c.Catalog.DefaultShopID),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Session.CheckInterval <= 0 {
		return &StoreError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "session check interval must be positive",
			Err:     ErrInvalidConfiguration,
		}
	}

	switch c.Storage.Provider {
	case "inmemory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return &StoreError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: "sqlite path is required for the sqlite storage provider",
				Err:     ErrMissingConfiguration,
			}
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			return &StoreError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: "redis URL is required for the redis storage provider",
				Err:     ErrMissingConfiguration,
			}
		}
	default:
		return &StoreError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("unknown storage provider: %q", c.Storage.Provider),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.Exporter == "otlp" && c.Telemetry.Endpoint == "" {
		return &StoreError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "telemetry endpoint is required for the otlp exporter",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Order.Timezone != "" {
		if _, err := time.LoadLocation(c.Order.Timezone); err != nil {
			return &StoreError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: fmt.Sprintf("unknown timezone: %q", c.Order.Timezone),
				Err:     ErrInvalidConfiguration,
			}
		}
	}

	return nil
}

func (c *Config) applyDevelopment() {
	c.Development.Enabled = true
	c.Development.PrettyLogs = true
	c.Logging.Format = "text"
	c.Logging.Level = "debug"
}

// parseBool converts a string to a boolean value.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Functional Options

// WithBaseURL sets the backend base URL, e.g. "http://localhost:3000".
func WithBaseURL(baseURL string) Option {
	return func(c *Config) error {
		c.API.BaseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive: %w", ErrInvalidConfiguration)
		}
		c.API.Timeout = timeout
		return nil
	}
}

// WithStorage sets the client-local storage provider.
// Valid providers:
//   - "inmemory": process-local, lost on exit (default)
//   - "sqlite": a local database file (see WithSQLitePath)
//   - "redis": shared storage (see WithRedisURL)
func WithStorage(provider string) Option {
	return func(c *Config) error {
		c.Storage.Provider = provider
		return nil
	}
}

// WithSQLitePath sets the SQLite database file and selects the sqlite provider.
func WithSQLitePath(path string) Option {
	return func(c *Config) error {
		c.Storage.Provider = "sqlite"
		c.Storage.SQLitePath = path
		return nil
	}
}

// WithRedisURL sets the Redis connection URL and selects the redis provider.
// Format: redis://[user:password@]host:port/db
func WithRedisURL(redisURL string) Option {
	return func(c *Config) error {
		c.Storage.Provider = "redis"
		c.Storage.RedisURL = redisURL
		return nil
	}
}

// WithPageSize sets the catalog page size.
func WithPageSize(size int) Option {
	return func(c *Config) error {
		if size < 1 {
			return fmt.Errorf("invalid page size %d: %w", size, ErrInvalidConfiguration)
		}
		c.Catalog.PageSize = size
		return nil
	}
}

// WithSessionInterval sets how often the session is re-checked.
func WithSessionInterval(interval time.Duration) Option {
	return func(c *Config) error {
		c.Session.CheckInterval = interval
		return nil
	}
}

// WithTimezone overrides the timezone sent with orders.
func WithTimezone(tz string) Option {
	return func(c *Config) error {
		c.Order.Timezone = tz
		return nil
	}
}

// WithLogLevel sets the minimum logging level.
// Valid levels: "error", "warn", "info" (default), "debug".
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the logging output format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithTelemetry enables telemetry with the given exporter.
// For "otlp" the endpoint is the collector address, e.g. "localhost:4317".
func WithTelemetry(exporter, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.Exporter = exporter
		c.Telemetry.Endpoint = endpoint
		return nil
	}
}

// WithCircuitBreaker configures the breaker around backend calls.
// Parameters:
//   - threshold: consecutive failures before opening the circuit
//   - timeout: how long the circuit stays open before a probe
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(c *Config) error {
		c.Resilience.CircuitBreaker.Enabled = true
		c.Resilience.CircuitBreaker.Threshold = threshold
		c.Resilience.CircuitBreaker.Timeout = timeout
		return nil
	}
}

// WithoutCircuitBreaker disables the breaker.
func WithoutCircuitBreaker() Option {
	return func(c *Config) error {
		c.Resilience.CircuitBreaker.Enabled = false
		return nil
	}
}

// WithConfigFile loads configuration from a JSON or YAML file.
// Note that NewConfig loads files passed this way before the environment.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// WithDevelopmentMode enables text logs at debug level.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.applyDevelopment()
		}
		return nil
	}
}

// NewConfig creates a new configuration. It is built in the following order:
//  1. Default values from DefaultConfig()
//  2. Config file, when configFile is not empty
//  3. Environment variables via LoadFromEnv()
//  4. Functional options (highest priority)
//  5. Validation via Validate()
func NewConfig(configFile string, opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
