// Package common provides shared utilities for Aether
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Aether
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Market      MarketConfig  `toml:"market"`
	Clients     ClientsConfig `toml:"clients"`
	Auth        AuthConfig    `toml:"auth"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig selects and configures the trade ledger backend.
type StorageConfig struct {
	Backend   string `toml:"backend"` // "file" (default) or "surrealdb"
	Path      string `toml:"path"`    // file backend: path of the trades JSON file
	Backups   int    `toml:"backups"` // file backend: rotated copies kept alongside the file
	Address   string `toml:"address"` // surrealdb backend: ws://host:port/rpc
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// MarketConfig holds market data synchronization settings
type MarketConfig struct {
	Interval      string   `toml:"interval"`
	Timeout       string   `toml:"timeout"`
	StableSymbols []string `toml:"stable_symbols"`
}

// GetInterval parses and returns the sync interval
func (c *MarketConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetTimeout parses and returns the per-sync provider timeout
func (c *MarketConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Binance BinanceConfig `toml:"binance"`
	Gemini  GeminiConfig  `toml:"gemini"`
}

// BinanceConfig holds Binance public API configuration
type BinanceConfig struct {
	BaseURL    string `toml:"base_url"`
	QuoteAsset string `toml:"quote_asset"`
	RateLimit  int    `toml:"rate_limit"`
	Timeout    string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *BinanceConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// AuthConfig holds API authentication settings. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

// Enabled reports whether bearer token auth is switched on.
func (c *AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend:   "file",
			Path:      "data/trades.json",
			Backups:   3,
			Address:   "ws://localhost:8000/rpc",
			Namespace: "aether",
			Database:  "aether",
			Username:  "root",
			Password:  "root",
		},
		Market: MarketConfig{
			Interval:      "30s",
			Timeout:       "15s",
			StableSymbols: []string{"USDT", "USDC"},
		},
		Clients: ClientsConfig{
			Binance: BinanceConfig{
				BaseURL:    "https://api.binance.com",
				QuoteAsset: "USDT",
				RateLimit:  5,
				Timeout:    "10s",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	applyEnvOverrides(config)
	normalizeStableSymbols(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("AETHER_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("AETHER_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("AETHER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("AETHER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("AETHER_DATA_PATH"); path != "" {
		config.Storage.Path = filepath.Join(path, "trades.json")
	}

	if backend := os.Getenv("AETHER_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = strings.ToLower(backend)
	}

	if addr := os.Getenv("AETHER_STORAGE_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}

	if interval := os.Getenv("AETHER_SYNC_INTERVAL"); interval != "" {
		config.Market.Interval = interval
	}

	if secret := os.Getenv("AETHER_JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
}

// normalizeStableSymbols upper-cases and de-duplicates the stable symbol list.
func normalizeStableSymbols(config *Config) {
	seen := make(map[string]bool, len(config.Market.StableSymbols))
	out := make([]string, 0, len(config.Market.StableSymbols))
	for _, s := range config.Market.StableSymbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	config.Market.StableSymbols = out
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from environment or fallback
func ResolveAPIKey(name string, fallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key": {"GEMINI_API_KEY", "AETHER_GEMINI_API_KEY", "GOOGLE_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}
