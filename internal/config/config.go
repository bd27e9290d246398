package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Log         LogConfig         `mapstructure:"log"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	ReadTimeout    int    `mapstructure:"read_timeout"`
	WriteTimeout   int    `mapstructure:"write_timeout"`
	MaxHeaderBytes int    `mapstructure:"max_header_bytes"`
}

// DatabaseConfig holds database configuration.
// Driver is postgres, sqlite or memory; Path is only used by sqlite.
// MigrationsDir overrides the embedded SQL migrations when set.
type DatabaseConfig struct {
	Driver        string `mapstructure:"driver"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	Name          string `mapstructure:"name"`
	SSLMode       string `mapstructure:"ssl_mode"`
	Path          string `mapstructure:"path"`
	MigrationsDir string `mapstructure:"migrations_dir"`
	LogQueries    bool   `mapstructure:"log_queries"`
}

// CacheConfig holds redis configuration
type CacheConfig struct {
	Type       string `mapstructure:"type"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	PoolSize   int    `mapstructure:"pool_size"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// LedgerConfig configures the catalog's client for the user ledger
type LedgerConfig struct {
	ServiceName    string               `mapstructure:"service_name"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold int32         `mapstructure:"failure_threshold"`
	SuccessThreshold int32         `mapstructure:"success_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

// DiscoveryConfig is the static service name -> base URL map
type DiscoveryConfig struct {
	Services map[string]string `mapstructure:"services"`
}

// CatalogConfig holds the borrow/return coordination settings
type CatalogConfig struct {
	ConsistencyMode     string `mapstructure:"consistency_mode"`
	EligibilityPrecheck bool   `mapstructure:"eligibility_precheck"`
}

// QueueConfig holds the ledger sync queue configuration
type QueueConfig struct {
	Type        string `mapstructure:"type"`
	BufferSize  int    `mapstructure:"buffer_size"`
	Workers     int    `mapstructure:"workers"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

type RetryConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
}

type IdempotencyConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Store           string        `mapstructure:"store"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type TracingConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

var config *Config

// Init initializes the configuration
func Init() {
	config = &Config{}

	// Set default values
	setDefaults()

	viper.SetEnvPrefix("LIBRARY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Unmarshal configuration from viper
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}
}

// Get returns the global configuration
func Get() *Config {
	if config == nil {
		Init()
	}
	return config
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "library-services")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 15)
	viper.SetDefault("server.write_timeout", 15)
	viper.SetDefault("server.max_header_bytes", 1048576)

	// Database defaults
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.name", "library")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.path", "library.db")
	viper.SetDefault("database.migrations_dir", "")
	viper.SetDefault("database.log_queries", false)

	// Cache defaults
	viper.SetDefault("cache.type", "redis")
	viper.SetDefault("cache.host", "localhost")
	viper.SetDefault("cache.port", 6379)
	viper.SetDefault("cache.password", "")
	viper.SetDefault("cache.db", 0)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.max_retries", 3)

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file_path", "")

	// Ledger client defaults
	viper.SetDefault("ledger.service_name", "user-service")
	viper.SetDefault("ledger.timeout", 3*time.Second)
	viper.SetDefault("ledger.circuit_breaker.enabled", false)
	viper.SetDefault("ledger.circuit_breaker.failure_threshold", 5)
	viper.SetDefault("ledger.circuit_breaker.success_threshold", 2)
	viper.SetDefault("ledger.circuit_breaker.open_timeout", 30*time.Second)

	// Discovery defaults
	viper.SetDefault("discovery.services", map[string]string{
		"user-service": "http://localhost:8081",
		"book-service": "http://localhost:8080",
	})

	// Catalog defaults
	viper.SetDefault("catalog.consistency_mode", "none")
	viper.SetDefault("catalog.eligibility_precheck", true)

	// Queue defaults
	viper.SetDefault("queue.type", "memory")
	viper.SetDefault("queue.buffer_size", 1000)
	viper.SetDefault("queue.workers", 2)
	viper.SetDefault("queue.max_attempts", 5)

	// Retry defaults
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.initial_backoff", 100*time.Millisecond)
	viper.SetDefault("retry.max_backoff", 5*time.Second)
	viper.SetDefault("retry.backoff_multiplier", 2.0)

	// Idempotency defaults
	viper.SetDefault("idempotency.enabled", true)
	viper.SetDefault("idempotency.store", "memory")
	viper.SetDefault("idempotency.ttl", 24*time.Hour)
	viper.SetDefault("idempotency.cleanup_interval", 10*time.Minute)

	// Observability defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("tracing.endpoint", "")
}
