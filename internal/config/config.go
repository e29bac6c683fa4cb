package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	APIKey             string        `mapstructure:"usagey_api_key"`
	APIURL             string        `mapstructure:"usagey_api_url"`
	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`

	RetryMaxAttempts    int           `mapstructure:"retry_max_attempts"`
	RetryInitialDelayMs int64         `mapstructure:"retry_initial_delay_ms"`
	RetryInitialDelay   time.Duration `mapstructure:"-"`

	PublishersFile string `mapstructure:"publishers_file"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and an optional .env file.
// The API key is not required here; commands that call the API check it via RequireAPIKey.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()

	v.SetDefault("app_name", "usagey")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "warn")
	v.SetDefault("usagey_api_key", "")
	v.SetDefault("usagey_api_url", "https://usagey.com")
	v.SetDefault("http_timeout_seconds", 30)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_initial_delay_ms", 1000)
	v.SetDefault("publishers_file", "")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/receipts.db")
	v.SetDefault("storage_ttl_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	cfg.PublishersFile = strings.TrimSpace(cfg.PublishersFile)

	if cfg.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	if cfg.RetryMaxAttempts < 0 {
		return fmt.Errorf("invalid retry_max_attempts (must not be negative)")
	}
	if cfg.RetryInitialDelayMs <= 0 {
		return fmt.Errorf("invalid retry_initial_delay_ms (must be positive milliseconds)")
	}
	cfg.RetryInitialDelay = time.Duration(cfg.RetryInitialDelayMs) * time.Millisecond

	if cfg.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return nil
}

// RequireAPIKey reports a descriptive error when no API key is configured.
func (cfg *Config) RequireAPIKey() error {
	if cfg == nil || cfg.APIKey == "" {
		return fmt.Errorf("USAGEY_API_KEY is not set")
	}
	return nil
}

// Redacted returns a copy safe for logging.
func (cfg Config) Redacted() Config {
	if cfg.APIKey != "" {
		cfg.APIKey = redact(cfg.APIKey)
	}
	return cfg
}

func redact(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}
