// Package config provides configuration management for the alert service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"stockwatch/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Poll          PollConfig         `mapstructure:"poll"`
	Oracle        OracleConfig       `mapstructure:"oracle"`
	Store         StoreConfig        `mapstructure:"store"`
	API           APIConfig          `mapstructure:"api"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// PollConfig drives the evaluation cycle.
type PollConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
}

// OracleConfig holds quote API settings.
type OracleConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// StoreConfig holds target repository settings.
type StoreConfig struct {
	Path string `mapstructure:"path"` // empty means <config dir>/stockwatch.db
}

// APIConfig holds the target management HTTP API settings.
type APIConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

// TelegramConfig holds Telegram delivery configuration.
// User references are Telegram chat IDs.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
}

// WebhookConfig holds webhook delivery configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stockwatch"
	}
	return filepath.Join(home, ".config", "stockwatch")
}

// DefaultStorePath returns the database path for a config directory.
func DefaultStorePath(configDir string) string {
	return filepath.Join(configDir, "stockwatch.db")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		// First run: write a template so the user has something to edit.
		if werr := createTemplateConfig(configDir); werr != nil {
			return nil, fmt.Errorf("creating config template: %w", werr)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath(configDir)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("poll.interval", "60s")
	v.SetDefault("poll.fetch_concurrency", 4)
	v.SetDefault("poll.fetch_timeout", "10s")
	v.SetDefault("oracle.base_url", "https://finnhub.io/api/v1")
	v.SetDefault("oracle.requests_per_second", 1.0)
	v.SetDefault("oracle.burst", 10)
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen_addr", ":8090")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
}

// applyEnvOverrides applies environment variable overrides for secrets
// and deployment-specific values.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		cfg.Oracle.APIKey = key
	}
	if token := os.Getenv("STOCKWATCH_TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Notifications.Telegram.BotToken = token
		cfg.Notifications.Telegram.Enabled = true
	}
	if url := os.Getenv("STOCKWATCH_WEBHOOK_URL"); url != "" {
		cfg.Notifications.Webhook.URL = url
		cfg.Notifications.Webhook.Enabled = true
	}
	if path := os.Getenv("STOCKWATCH_DB_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if addr := os.Getenv("STOCKWATCH_LISTEN_ADDR"); addr != "" {
		cfg.API.ListenAddr = addr
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Poll.Interval <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalid, "poll.interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.FetchConcurrency < 1 {
		return errors.Wrapf(errors.ErrConfigInvalid, "poll.fetch_concurrency must be at least 1, got %d", c.Poll.FetchConcurrency)
	}
	if c.Poll.FetchTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalid, "poll.fetch_timeout must be positive, got %s", c.Poll.FetchTimeout)
	}
	if c.Poll.FetchTimeout > c.Poll.Interval {
		return errors.Wrapf(errors.ErrConfigInvalid, "poll.fetch_timeout %s exceeds poll.interval %s", c.Poll.FetchTimeout, c.Poll.Interval)
	}
	if c.Oracle.BaseURL == "" {
		return errors.Wrap(errors.ErrConfigInvalid, "oracle.base_url must not be empty")
	}
	if c.Oracle.RequestsPerSecond <= 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "oracle.requests_per_second must be positive")
	}
	if c.Notifications.Telegram.Enabled && c.Notifications.Telegram.BotToken == "" {
		return errors.Wrap(errors.ErrConfigInvalid, "notifications.telegram.bot_token required when telegram is enabled")
	}
	if c.Notifications.Webhook.Enabled && c.Notifications.Webhook.URL == "" {
		return errors.Wrap(errors.ErrConfigInvalid, "notifications.webhook.url required when webhook is enabled")
	}
	return nil
}

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	template := `# stockwatch configuration

[poll]
interval = "60s"          # how often targets are checked
fetch_concurrency = 4     # parallel price fetches per cycle
fetch_timeout = "10s"     # per-symbol fetch timeout

[oracle]
base_url = "https://finnhub.io/api/v1"
api_key = ""              # or set FINNHUB_API_KEY
requests_per_second = 1.0
burst = 10

[store]
path = ""                 # defaults to <config dir>/stockwatch.db

[api]
enabled = true
listen_addr = ":8090"

[notifications.telegram]
enabled = false
bot_token = ""            # or set STOCKWATCH_TELEGRAM_BOT_TOKEN

[notifications.webhook]
enabled = false
url = ""                  # or set STOCKWATCH_WEBHOOK_URL

[logging]
level = "info"
console = true
file = true
file_path = ""            # defaults to <config dir>/logs/stockwatch.log
`

	return os.WriteFile(path, []byte(template), 0644)
}
