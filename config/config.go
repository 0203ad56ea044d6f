package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`
	Ticker   TickerConfig   `yaml:"ticker"`
	Search   SearchConfig   `yaml:"search"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                  int    `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeoutSeconds    int    `yaml:"read_timeout_seconds" default:"15" validate:"gt=0"`
	WriteTimeoutSeconds   int    `yaml:"write_timeout_seconds" default:"30" validate:"gt=0"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" default:"20" validate:"gt=0"`
	CORSAllowedOrigins    string `yaml:"cors_allowed_origins" default:"*"`
}

// UpstreamConfig holds configuration of the remote quote/search API
type UpstreamConfig struct {
	BaseURL         string `yaml:"base_url" default:"https://portal.tradebrains.in/api/assignment" validate:"required,url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" default:"10" validate:"gt=0"`
	UserAgent       string `yaml:"user_agent" default:"StockTickerApp/1.0" validate:"required"`
	MaxRetries      int    `yaml:"max_retries" validate:"gte=0,lte=5"`
	DetailsEnabled  bool   `yaml:"details_enabled"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds" validate:"gte=0"`
}

// CacheConfig selects the response cache backend. An empty RedisURL keeps
// the cache in process memory.
type CacheConfig struct {
	RedisURL string `yaml:"redis_url" validate:"omitempty,url"`
}

// TickerConfig holds ticker poller configuration
type TickerConfig struct {
	Index           string `yaml:"index" default:"NIFTY" validate:"required"`
	IntervalSeconds int    `yaml:"interval_seconds" default:"30" validate:"gt=0"`
}

// SearchConfig holds search-as-you-type configuration
type SearchConfig struct {
	DebounceMS     int `yaml:"debounce_ms" default:"300" validate:"gt=0"`
	MinQueryLength int `yaml:"min_query_length" default:"2" validate:"gte=1"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"text" validate:"oneof=text json"`
}

var validate = validator.New()

// Load builds the configuration from struct defaults, then the optional YAML
// file at path (or $CONFIG_FILE when path is empty), then environment
// variables, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeoutSeconds = getEnvInt("SERVER_READ_TIMEOUT_SECONDS", cfg.Server.ReadTimeoutSeconds)
	cfg.Server.WriteTimeoutSeconds = getEnvInt("SERVER_WRITE_TIMEOUT_SECONDS", cfg.Server.WriteTimeoutSeconds)
	cfg.Server.RequestTimeoutSeconds = getEnvInt("REQUEST_TIMEOUT_SECONDS", cfg.Server.RequestTimeoutSeconds)
	cfg.Server.CORSAllowedOrigins = getEnvString("CORS_ALLOWED_ORIGINS", cfg.Server.CORSAllowedOrigins)

	cfg.Upstream.BaseURL = strings.TrimRight(getEnvString("UPSTREAM_BASE_URL", cfg.Upstream.BaseURL), "/")
	cfg.Upstream.TimeoutSeconds = getEnvInt("UPSTREAM_TIMEOUT_SECONDS", cfg.Upstream.TimeoutSeconds)
	cfg.Upstream.UserAgent = getEnvString("UPSTREAM_USER_AGENT", cfg.Upstream.UserAgent)
	cfg.Upstream.MaxRetries = getEnvNonNegativeInt("UPSTREAM_MAX_RETRIES", cfg.Upstream.MaxRetries)
	cfg.Upstream.DetailsEnabled = getEnvBool("UPSTREAM_DETAILS_ENABLED", cfg.Upstream.DetailsEnabled)
	cfg.Upstream.CacheTTLSeconds = getEnvNonNegativeInt("UPSTREAM_CACHE_TTL_SECONDS", cfg.Upstream.CacheTTLSeconds)

	cfg.Cache.RedisURL = getEnvString("REDIS_URL", cfg.Cache.RedisURL)

	cfg.Ticker.Index = getEnvString("TICKER_INDEX", cfg.Ticker.Index)
	cfg.Ticker.IntervalSeconds = getEnvInt("TICKER_INTERVAL_SECONDS", cfg.Ticker.IntervalSeconds)

	cfg.Search.DebounceMS = getEnvInt("SEARCH_DEBOUNCE_MS", cfg.Search.DebounceMS)
	cfg.Search.MinQueryLength = getEnvInt("SEARCH_MIN_QUERY_LENGTH", cfg.Search.MinQueryLength)

	cfg.Log.Level = strings.ToLower(getEnvString("LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(getEnvString("LOG_FORMAT", cfg.Log.Format))
}

// Validate validates the configuration
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return fmt.Errorf("invalid configuration: %s failed %q (got %v)", fe.Namespace(), fieldRule(fe), fe.Value())
	}
	return fmt.Errorf("invalid configuration: %w", err)
}

func fieldRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// ReadTimeout returns the server read timeout
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the server write timeout
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// RequestTimeout bounds the handling of a single request
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Timeout returns the per-request upstream timeout
func (c UpstreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long raw upstream bodies are cached
func (c UpstreamConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Interval returns the ticker polling interval
func (c TickerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Debounce returns the search debounce delay
func (c SearchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// HasResponseCache returns true if upstream responses should be cached
func (c *Config) HasResponseCache() bool {
	return c.Upstream.CacheTTLSeconds > 0
}

// HasRedis returns true if the response cache should use Redis
func (c *Config) HasRedis() bool {
	return c.Cache.RedisURL != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvNonNegativeInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                  8080,
			ReadTimeoutSeconds:    15,
			WriteTimeoutSeconds:   30,
			RequestTimeoutSeconds: 20,
			CORSAllowedOrigins:    "*",
		},
		Upstream: UpstreamConfig{
			BaseURL:        "https://portal.tradebrains.in/api/assignment",
			TimeoutSeconds: 10,
			UserAgent:      "StockTickerApp/1.0",
		},
		Ticker: TickerConfig{
			Index:           "NIFTY",
			IntervalSeconds: 30,
		},
		Search: SearchConfig{
			DebounceMS:     300,
			MinQueryLength: 2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
