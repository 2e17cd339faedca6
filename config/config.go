package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Registry RegistryConfig
	OCR      OCRConfig
	AI       AIConfig
	Matching MatchingConfig
	Cache    CacheConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RegistryConfig holds compound registry API configuration
type RegistryConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`

	// RefreshInterval re-pulls the registry snapshot periodically. Zero
	// disables refresh; staleness is then bounded only by process restart.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// OCRConfig holds text extraction engine configuration
type OCRConfig struct {
	APIKey    string  `mapstructure:"api_key"`
	BaseURL   string  `mapstructure:"base_url"`
	Model     string  `mapstructure:"model"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

// AIConfig holds AI parsing/research service configuration. The API key is
// optional: without it the ingredient parser runs rules-only and the research
// endpoint reports a credential error.
type AIConfig struct {
	APIKey    string  `mapstructure:"api_key"`
	BaseURL   string  `mapstructure:"base_url"`
	Model     string  `mapstructure:"model"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

// MatchingConfig holds compound matching configuration
type MatchingConfig struct {
	MinConfidence      float64 `mapstructure:"min_confidence"`
	EnableDebugLogging bool    `mapstructure:"enable_debug_logging"`
}

// CacheConfig holds research cache configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/labelscan/")

	v.SetEnvPrefix("LABELSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults cover everything.
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
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Registry defaults
	v.SetDefault("registry.base_url", "http://localhost:8000")
	v.SetDefault("registry.refresh_interval", "0s")

	// OCR defaults
	v.SetDefault("ocr.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("ocr.model", "mistral-ocr-latest")
	v.SetDefault("ocr.rate_limit", 6.0)

	// AI defaults
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.rate_limit", 2.0)

	// Matching defaults
	v.SetDefault("matching.min_confidence", 0.4)
	v.SetDefault("matching.enable_debug_logging", false)

	// Cache defaults
	v.SetDefault("cache.ttl", "24h")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Registry.BaseURL == "" {
		return fmt.Errorf("registry base URL is required (set LABELSCAN_REGISTRY_BASE_URL)")
	}

	if config.OCR.APIKey == "" {
		return fmt.Errorf("OCR API key is required (set LABELSCAN_OCR_API_KEY)")
	}

	if config.Matching.MinConfidence < 0 || config.Matching.MinConfidence > 1 {
		return fmt.Errorf("matching confidence threshold must be in [0,1], got: %g", config.Matching.MinConfidence)
	}

	return nil
}
