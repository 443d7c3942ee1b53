package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sydlexius/soundalike/internal/validation"
)

// DefaultPath is the config file read when SA_CONFIG_PATH is unset.
const DefaultPath = "config.yaml"

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Catalog CatalogConfig `yaml:"catalog"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              int    `yaml:"port" validate:"min=1,max=65535"`
	BasePath          string `yaml:"base_path"`
	RequestsPerMinute int    `yaml:"requests_per_minute" validate:"gte=0"`
}

// CatalogConfig holds music catalog credentials and client settings.
type CatalogConfig struct {
	ClientID          string        `yaml:"client_id" validate:"required"`
	ClientSecret      string        `yaml:"client_secret" validate:"required"`
	BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
	TokenURL          string        `yaml:"token_url" validate:"omitempty,url"`
	Market            string        `yaml:"market" validate:"omitempty,len=2"`
	RequestTimeout    time.Duration `yaml:"request_timeout" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	Breaker           BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of the catalog.
type BreakerConfig struct {
	FailureRatio float64       `yaml:"failure_ratio" validate:"gt=0,lte=1"`
	MinRequests  uint32        `yaml:"min_requests" validate:"min=1"`
	OpenTimeout  time.Duration `yaml:"open_timeout" validate:"gt=0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"omitempty,oneof=json text"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxFiles   int    `yaml:"max_files" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			BasePath:          "/",
			RequestsPerMinute: 60,
		},
		Catalog: CatalogConfig{
			Market:            "US",
			RequestTimeout:    10 * time.Second,
			RequestsPerSecond: 5,
			Breaker: BreakerConfig{
				FailureRatio: 0.6,
				MinRequests:  10,
				OpenTimeout:  30 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxFiles:   5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// Path returns the config file path from SA_CONFIG_PATH, or DefaultPath.
func Path() string {
	if v := os.Getenv("SA_CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// LoadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadLogging re-reads only the logging section from path, layered over
// defaults and the environment. It is used for runtime reloads.
func LoadLogging(path string) (LoggingConfig, error) {
	cfg := Default()
	if err := cfg.loadFromFile(path); err != nil {
		return LoggingConfig{}, fmt.Errorf("loading config file: %w", err)
	}
	cfg.loadLoggingEnv()
	if err := validation.Struct(&cfg.Logging); err != nil {
		return LoggingConfig{}, fmt.Errorf("validating logging config: %w", err)
	}
	return cfg.Logging, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() error {
	if v := os.Getenv("SA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SA_BASE_PATH"); v != "" {
		c.Server.BasePath = v
	}
	if v := os.Getenv("SA_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Catalog.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Catalog.ClientSecret = v
	}
	if v := os.Getenv("SA_MARKET"); v != "" {
		c.Catalog.Market = strings.ToUpper(v)
	}
	if v := os.Getenv("SA_CATALOG_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing SA_CATALOG_TIMEOUT: %w", err)
		}
		c.Catalog.RequestTimeout = d
	}
	c.loadLoggingEnv()
	return nil
}

func (c *Config) loadLoggingEnv() {
	if v := os.Getenv("SA_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SA_LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("SA_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
}

func (c *Config) validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		c.Server.BasePath = "/" + c.Server.BasePath
	}
	return nil
}
