package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Cache policies selectable at startup
const (
	CachePolicyLFU       = "lfu"
	CachePolicyUnbounded = "unbounded"
)

// Response body formats selectable at startup
const (
	FormatJSON    = "json"
	FormatExplain = "explain"
)

// Config holds all configuration for the valuation service
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis (shared rate limit for the valuation API)
	Redis RedisConfig

	// External valuation API
	FMP FMPConfig

	// Report cache
	Cache CacheConfig

	// Saga timeouts and background persistence
	Saga SagaConfig

	// Ticker whitelist override; the embedded list is used when empty
	TickerFile string

	// Response body format: json or explain
	ResponseFormat string

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// FMPConfig holds Financial Modeling Prep API configuration
type FMPConfig struct {
	APIKey      string
	BaseURL     string
	HTTPTimeout time.Duration
	RatePerSec  int
	RateBurst   int
	DailyLimit  int // shared limit enforced through Redis when enabled
}

// CacheConfig selects and sizes the report cache
type CacheConfig struct {
	Policy             string // lfu, unbounded
	Capacity           int
	RebalanceThreshold int
	Shards             int
}

// SagaConfig holds the per-tier deadlines and the persistence pool sizing
type SagaConfig struct {
	APICallTimeout   time.Duration
	DBQueryTimeout   time.Duration
	OverallTimeout   time.Duration
	PersistWorkers   int
	PersistQueueSize int
	PersistTimeout   time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		FMP: FMPConfig{
			APIKey:      getEnv("FMP_API_KEY", ""),
			BaseURL:     getEnv("FMP_BASE_URL", "https://financialmodelingprep.com"),
			HTTPTimeout: getEnvAsDuration("FMP_HTTP_TIMEOUT", "10s"),
			RatePerSec:  getEnvAsInt("FMP_RATE_LIMIT_PER_SEC", 5),
			RateBurst:   getEnvAsInt("FMP_RATE_LIMIT_BURST", 5),
			DailyLimit:  getEnvAsInt("FMP_DAILY_LIMIT", 250),
		},

		Cache: CacheConfig{
			Policy:             getEnv("CACHE_POLICY", CachePolicyLFU),
			Capacity:           getEnvAsInt("CACHE_CAPACITY", 1000),
			RebalanceThreshold: getEnvAsInt("CACHE_REBALANCE_THRESHOLD", 100),
			Shards:             getEnvAsInt("CACHE_SHARDS", 16),
		},

		Saga: SagaConfig{
			APICallTimeout:   getEnvAsDuration("SAGA_API_TIMEOUT", "2500ms"),
			DBQueryTimeout:   getEnvAsDuration("SAGA_DB_TIMEOUT", "2s"),
			OverallTimeout:   getEnvAsDuration("SAGA_OVERALL_TIMEOUT", "5s"),
			PersistWorkers:   getEnvAsInt("PERSIST_WORKERS", 4),
			PersistQueueSize: getEnvAsInt("PERSIST_QUEUE_SIZE", 256),
			PersistTimeout:   getEnvAsDuration("PERSIST_TIMEOUT", "10s"),
		},

		TickerFile:     getEnv("TICKER_FILE", ""),
		ResponseFormat: getEnv("RESPONSE_FORMAT", FormatJSON),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Cache.Policy {
	case CachePolicyUnbounded:
	case CachePolicyLFU:
		if c.Cache.Capacity <= 0 || c.Cache.RebalanceThreshold <= 0 {
			return fmt.Errorf("CACHE_CAPACITY and CACHE_REBALANCE_THRESHOLD must be positive for the lfu policy")
		}
	default:
		return fmt.Errorf("CACHE_POLICY must be one of: %s, %s", CachePolicyLFU, CachePolicyUnbounded)
	}

	if c.Saga.APICallTimeout <= 0 || c.Saga.DBQueryTimeout <= 0 || c.Saga.OverallTimeout <= 0 {
		return fmt.Errorf("saga timeouts must be positive")
	}

	if c.ResponseFormat != FormatJSON && c.ResponseFormat != FormatExplain {
		return fmt.Errorf("RESPONSE_FORMAT must be one of: %s, %s", FormatJSON, FormatExplain)
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
