package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cache backends for the result cache
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Gemini      GeminiConfig      `mapstructure:"gemini"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Fingerprint FingerprintConfig `mapstructure:"fingerprint"`
	Matching    MatchingConfig    `mapstructure:"matching"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CatalogConfig holds affiliate catalog API configuration
type CatalogConfig struct {
	AppKey        string        `mapstructure:"app_key"`
	AppSecret     string        `mapstructure:"app_secret"`
	TrackingID    string        `mapstructure:"tracking_id"`
	BaseURL       string        `mapstructure:"base_url"`
	PageSize      int           `mapstructure:"page_size"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
}

// GeminiConfig holds language model configuration
type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds result cache configuration
type CacheConfig struct {
	Type        string        `mapstructure:"type"` // "memory", "redis" or "postgres"
	RedisURL    string        `mapstructure:"redis_url"`
	DatabaseURL string        `mapstructure:"database_url"`
	PositiveTTL time.Duration `mapstructure:"positive_ttl"`
	NegativeTTL time.Duration `mapstructure:"negative_ttl"`
	Retention   time.Duration `mapstructure:"retention"`
}

// FingerprintConfig holds image fingerprint cache configuration
type FingerprintConfig struct {
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MatchingConfig holds the thresholds of the matching pipeline
type MatchingConfig struct {
	CandidateLimit        int           `mapstructure:"candidate_limit"`
	MinPriceRatio         float64       `mapstructure:"min_price_ratio"`
	FastPassThreshold     float64       `mapstructure:"fast_pass_threshold"`
	VerifyThreshold       float64       `mapstructure:"verify_threshold"`
	MinVerifierConfidence float64       `mapstructure:"min_verifier_confidence"`
	KeywordTitleLength    int           `mapstructure:"keyword_title_length"`
	CompareTimeout        time.Duration `mapstructure:"compare_timeout"`
	EnableDebugLogging    bool          `mapstructure:"enable_debug_logging"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cheapmatch/")

	// Environment variables: CHEAPMATCH_CACHE_REDIS_URL -> cache.redis_url
	v.SetEnvPrefix("CHEAPMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can see it during Unmarshal
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*"})

	// Catalog defaults; credentials have no default
	v.SetDefault("catalog.app_key", "")
	v.SetDefault("catalog.app_secret", "")
	v.SetDefault("catalog.tracking_id", "")
	v.SetDefault("catalog.base_url", "https://api-sg.aliexpress.com/sync")
	v.SetDefault("catalog.page_size", 40)
	v.SetDefault("catalog.timeout", "15s")
	v.SetDefault("catalog.rate_per_second", 5)
	v.SetDefault("catalog.burst", 10)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash-lite")
	v.SetDefault("gemini.timeout", "10s")

	// Cache defaults
	v.SetDefault("cache.type", CacheMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.database_url", "")
	v.SetDefault("cache.positive_ttl", "12h")
	v.SetDefault("cache.negative_ttl", "24h")
	v.SetDefault("cache.retention", "720h") // 30 days

	// Fingerprint cache defaults
	v.SetDefault("fingerprint.capacity", 10000)
	v.SetDefault("fingerprint.ttl", "168h") // 7 days
	v.SetDefault("fingerprint.timeout", "5s")

	// Matching defaults
	v.SetDefault("matching.candidate_limit", 20)
	v.SetDefault("matching.min_price_ratio", 0.3)
	v.SetDefault("matching.fast_pass_threshold", 88)
	v.SetDefault("matching.verify_threshold", 70)
	v.SetDefault("matching.min_verifier_confidence", 70)
	v.SetDefault("matching.keyword_title_length", 50)
	v.SetDefault("matching.compare_timeout", "60s")
	v.SetDefault("matching.enable_debug_logging", false)
}

// validate validates the configuration. Missing catalog credentials are not
// an error: the service starts and answers every request with no match.
func validate(config *Config) error {
	switch config.Cache.Type {
	case CacheMemory:
	case CacheRedis:
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required when cache type is 'redis' (set CHEAPMATCH_CACHE_REDIS_URL)")
		}
	case CachePostgres:
		if config.Cache.DatabaseURL == "" {
			return fmt.Errorf("database URL is required when cache type is 'postgres' (set CHEAPMATCH_CACHE_DATABASE_URL)")
		}
	default:
		return fmt.Errorf("cache type must be 'memory', 'redis' or 'postgres', got: %s", config.Cache.Type)
	}

	if config.Cache.PositiveTTL <= 0 || config.Cache.NegativeTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	m := config.Matching
	if m.CompareTimeout <= 0 {
		return fmt.Errorf("matching.compare_timeout must be positive")
	}
	if m.MinPriceRatio < 0 || m.MinPriceRatio >= 1 {
		return fmt.Errorf("matching.min_price_ratio must be in [0, 1), got: %v", m.MinPriceRatio)
	}
	if m.VerifyThreshold > m.FastPassThreshold {
		return fmt.Errorf("matching.verify_threshold (%v) must not exceed matching.fast_pass_threshold (%v)", m.VerifyThreshold, m.FastPassThreshold)
	}

	return nil
}

// CatalogConfigured reports whether all three catalog credentials are set
func (c *Config) CatalogConfigured() bool {
	return c.Catalog.AppKey != "" && c.Catalog.AppSecret != "" && c.Catalog.TrackingID != ""
}
