package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Env       string
	Server    ServerConfig
	Snowstorm SnowstormConfig
	Search    SearchConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Log       LogConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	SSEPort        int
	AllowedOrigins []string
}

// SnowstormConfig holds terminology server configuration
type SnowstormConfig struct {
	URL            string
	Branch         string
	Version        string
	AcceptLanguage string
	Timeout        time.Duration
	TotalTimeout   time.Duration
	MaxAttempts    int
}

// SearchConfig holds pagination and session settings
type SearchConfig struct {
	PageSize       int
	SessionIdleTTL time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds cache TTLs
type CacheConfig struct {
	ConceptTTLSeconds  int
	ResponseTTLSeconds int
}

// LogConfig holds logger settings. An empty Format means console output in
// development and JSON elsewhere.
type LogConfig struct {
	Level  string
	Format string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Env: getEnv("ENV", "production"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			SSEPort:        getEnvAsInt("SSE_PORT", 8081),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Snowstorm: SnowstormConfig{
			URL:            getEnv("SNOWSTORM_URL", "https://snowstorm.snomedtools.org/snowstorm/snomed-ct"),
			Branch:         getEnv("SNOWSTORM_BRANCH", "MAIN"),
			Version:        getEnv("SNOWSTORM_VERSION", "2025-04-01"),
			AcceptLanguage: getEnv("SNOWSTORM_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			Timeout:        getEnvAsDuration("SNOWSTORM_TIMEOUT", 30*time.Second),
			TotalTimeout:   getEnvAsDuration("SNOWSTORM_TOTAL_TIMEOUT", 30*time.Second),
			MaxAttempts:    getEnvAsInt("SNOWSTORM_MAX_ATTEMPTS", 3),
		},
		Search: SearchConfig{
			PageSize:       getEnvAsInt("SEARCH_PAGE_SIZE", 20),
			SessionIdleTTL: getEnvAsDuration("SESSION_IDLE_TTL", 30*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			ConceptTTLSeconds:  getEnvAsInt("CACHE_CONCEPT_TTL_SECONDS", 3600),
			ResponseTTLSeconds: getEnvAsInt("CACHE_RESPONSE_TTL_SECONDS", 300),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", ""),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "")),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "snomed-endoproc-lookup"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at request time
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Snowstorm.URL) == "" {
		return fmt.Errorf("SNOWSTORM_URL must not be empty")
	}
	if c.Search.PageSize <= 0 {
		return fmt.Errorf("SEARCH_PAGE_SIZE must be positive, got %d", c.Search.PageSize)
	}
	if c.Snowstorm.MaxAttempts <= 0 {
		return fmt.Errorf("SNOWSTORM_MAX_ATTEMPTS must be positive, got %d", c.Snowstorm.MaxAttempts)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format)
	}
	if c.Snowstorm.TotalTimeout <= 0 {
		return fmt.Errorf("SNOWSTORM_TOTAL_TIMEOUT must be positive, got %s", c.Snowstorm.TotalTimeout)
	}
	return nil
}

// ConsoleLogs reports whether logs should be written in human-readable form
func (c *Config) ConsoleLogs() bool {
	if c.Log.Format != "" {
		return c.Log.Format == "console"
	}
	return c.Env == "development"
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
