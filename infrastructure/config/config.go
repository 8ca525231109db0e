package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AI providers
const (
	ProviderMock   = "mock"
	ProviderOpenAI = "openai"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string        `yaml:"serverAddress"`
	Environment     string        `yaml:"environment"`
	Version         string        `yaml:"version"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// Logging
	LogLevel string `yaml:"logLevel"`
	LogFile  string `yaml:"logFile"`

	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	AI        AIConfig        `yaml:"ai"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	NATS      NATSConfig      `yaml:"nats"`
	Tracing   TracingConfig   `yaml:"tracing"`

	PrometheusEnabled  bool     `yaml:"prometheusEnabled"`
	AdminJWTSecret     string   `yaml:"adminJwtSecret"`
	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins"`
	SeedDemoData       bool     `yaml:"seedDemoData"`

	// ConfigFile is the YAML overlay this config was read from, if any
	ConfigFile string `yaml:"-"`
}

// DatabaseConfig configures the relational store. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"maxOpenConns"`
	AutoMigrate  bool   `yaml:"autoMigrate"`
}

// CacheConfig configures the response cache backend
type CacheConfig struct {
	RedisURL   string `yaml:"redisUrl"`
	InMemory   bool   `yaml:"inMemory"`
	MaxEntries int    `yaml:"maxEntries"`
}

// RateLimitConfig configures the per-client limiter
type RateLimitConfig struct {
	Strategy string        `yaml:"strategy"`
	Max      int           `yaml:"max"`
	Window   time.Duration `yaml:"window"`
}

// AIConfig configures the analyzers
type AIConfig struct {
	Provider       string        `yaml:"provider"`
	OpenAIAPIKey   string        `yaml:"openaiApiKey"`
	OpenAIModel    string        `yaml:"openaiModel"`
	OpenAIBaseURL  string        `yaml:"openaiBaseUrl"`
	PrimaryTimeout time.Duration `yaml:"primaryTimeout"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the circuit breaker around the primary analyzer
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	MaxRequests      uint32        `yaml:"maxRequests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failureThreshold"`
	MinRequests      uint32        `yaml:"minRequests"`
}

// AnalysisConfig sizes the background analysis worker pool
type AnalysisConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queueSize"`
}

// NATSConfig configures event notifications. An empty URL disables them.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		ServerAddress:   ":3001",
		Environment:     "development",
		Version:         "1.0.0",
		ShutdownTimeout: 30 * time.Second,
		LogLevel:        "info",
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			AutoMigrate:  true,
		},
		Cache: CacheConfig{
			MaxEntries: 1000,
		},
		RateLimit: RateLimitConfig{
			Strategy: "sliding",
			Max:      100,
			Window:   15 * time.Minute,
		},
		AI: AIConfig{
			Provider:       ProviderMock,
			OpenAIModel:    "gpt-4o-mini",
			PrimaryTimeout: 10 * time.Second,
			Breaker: BreakerConfig{
				Enabled:          true,
				MaxRequests:      5,
				Interval:         30 * time.Second,
				Timeout:          60 * time.Second,
				FailureThreshold: 0.8,
				MinRequests:      5,
			},
		},
		Analysis: AnalysisConfig{
			Workers:   4,
			QueueSize: 100,
		},
		NATS: NATSConfig{
			SubjectPrefix: "signalwatcher",
		},
		Tracing: TracingConfig{
			Endpoint:   "localhost:4317",
			SampleRate: 0.1,
		},
		PrometheusEnabled:  true,
		CORSAllowedOrigins: []string{"*"},
	}
}

// LoadConfig loads defaults, then the YAML file named by CONFIG_FILE, then
// environment variables
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	cfg.applyEnv()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("ENVIRONMENT", getEnv("NODE_ENV", c.Environment))
	if port := os.Getenv("PORT"); port != "" {
		c.ServerAddress = ":" + port
	}
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Version = getEnv("VERSION", c.Version)
	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.AutoMigrate = getEnvBool("AUTO_MIGRATE", c.Database.AutoMigrate)

	c.Cache.RedisURL = getEnv("REDIS_URL", c.Cache.RedisURL)
	c.Cache.InMemory = getEnvBool("CACHE_IN_MEMORY", c.Cache.InMemory)
	c.Cache.MaxEntries = getEnvInt("CACHE_MAX_ENTRIES", c.Cache.MaxEntries)

	c.RateLimit.Strategy = getEnv("RATE_LIMIT_STRATEGY", c.RateLimit.Strategy)
	c.RateLimit.Max = getEnvInt("RATE_LIMIT_MAX", c.RateLimit.Max)
	c.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", c.RateLimit.Window)

	c.AI.Provider = strings.ToLower(getEnv("AI_PROVIDER", c.AI.Provider))
	c.AI.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.AI.OpenAIAPIKey)
	c.AI.OpenAIModel = getEnv("OPENAI_MODEL", c.AI.OpenAIModel)
	c.AI.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.AI.OpenAIBaseURL)
	c.AI.PrimaryTimeout = getEnvDuration("AI_PRIMARY_TIMEOUT", c.AI.PrimaryTimeout)
	c.AI.Breaker.Enabled = getEnvBool("AI_BREAKER_ENABLED", c.AI.Breaker.Enabled)
	c.AI.Breaker.MaxRequests = uint32(getEnvInt("AI_BREAKER_MAX_REQUESTS", int(c.AI.Breaker.MaxRequests)))
	c.AI.Breaker.Interval = getEnvDuration("AI_BREAKER_INTERVAL", c.AI.Breaker.Interval)
	c.AI.Breaker.Timeout = getEnvDuration("AI_BREAKER_TIMEOUT", c.AI.Breaker.Timeout)
	c.AI.Breaker.FailureThreshold = getEnvFloat("AI_BREAKER_FAILURE_THRESHOLD", c.AI.Breaker.FailureThreshold)
	c.AI.Breaker.MinRequests = uint32(getEnvInt("AI_BREAKER_MIN_REQUESTS", int(c.AI.Breaker.MinRequests)))

	c.Analysis.Workers = getEnvInt("ANALYSIS_WORKERS", c.Analysis.Workers)
	c.Analysis.QueueSize = getEnvInt("ANALYSIS_QUEUE_SIZE", c.Analysis.QueueSize)

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)

	c.Tracing.Enabled = getEnvBool("TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnv("OTLP_ENDPOINT", c.Tracing.Endpoint)
	c.Tracing.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", c.Tracing.SampleRate)

	c.PrometheusEnabled = getEnvBool("PROMETHEUS_ENABLED", c.PrometheusEnabled)
	c.AdminJWTSecret = getEnv("ADMIN_JWT_SECRET", c.AdminJWTSecret)
	c.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.CORSAllowedOrigins)
	c.SeedDemoData = getEnvBool("SEED_DEMO_DATA", c.SeedDemoData)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ProviderMock, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AI.Provider)
	}

	switch c.RateLimit.Strategy {
	case "sliding", "token", "redis":
	default:
		return fmt.Errorf("unknown RATE_LIMIT_STRATEGY %q", c.RateLimit.Strategy)
	}

	if c.RateLimit.Max <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.Analysis.Workers <= 0 || c.Analysis.QueueSize <= 0 {
		return fmt.Errorf("ANALYSIS_WORKERS and ANALYSIS_QUEUE_SIZE must be positive")
	}
	if c.AI.PrimaryTimeout <= 0 {
		return fmt.Errorf("AI_PRIMARY_TIMEOUT must be positive")
	}

	if c.IsProduction() && c.AI.Provider == ProviderOpenAI && c.AI.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required in production when AI_PROVIDER is openai")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UsesOpenAI reports whether the primary analyzer is the OpenAI adapter
func (c *Config) UsesOpenAI() bool {
	return c.AI.Provider == ProviderOpenAI && c.AI.OpenAIAPIKey != ""
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15m") or a bare number of milliseconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
