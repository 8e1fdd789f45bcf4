// Package config provides configuration management functionality.
//
// This package handles loading configuration from environment variables (.env file)
// and updating configuration from the settings database. Settings database values
// take precedence over environment variables.
//
// Configuration Loading Order:
// 1. Load from .env file (if exists)
// 2. Load from environment variables
// 3. Update from settings database (takes precedence)
//
// This allows credentials and other sensitive settings to be managed via the
// settings table instead of requiring .env file changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/canslim/sentinel/internal/repository"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
//
// Most tunables (distribution-day thresholds, regime weights, scoring
// table, position sizing) live in the settings table and are loaded via
// UpdateFromSettings; this struct holds the bootstrap values needed
// before a database connection exists, plus credentials that may be
// overridden from settings.
type Config struct {
	DataDir  string // base directory for sentinel.db (always absolute)
	LogLevel string
	Port     int // IPC/health HTTP port
	DevMode  bool

	IBKR       IBKRConfig
	MarketData MarketDataConfig
	Discord    DiscordConfig
	Backup     BackupConfig
}

// IBKRConfig addresses the realtime quote provider's gateway.
type IBKRConfig struct {
	Host     string
	Port     int
	ClientID int
}

// MarketDataConfig addresses the historical-bars / sentiment REST provider.
type MarketDataConfig struct {
	APIKey  string
	BaseURL string
	Timeout int // seconds
}

// DiscordConfig carries webhook URLs for the notifier, keyed by channel
// (e.g. "alerts", "critical", "regime").
type DiscordConfig struct {
	Webhooks map[string]string
}

// BackupConfig gates the optional S3 snapshot archival, per spec's
// Non-goals leaving offline analytics out of the core but still wanting
// its inputs durable.
type BackupConfig struct {
	Enabled bool
	Bucket  string
	Prefix  string
	Region  string
}

// Load reads configuration from environment variables.
//
// dataDirOverride - optional CLI flag override for data directory (takes highest priority)
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("SENTINEL_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("SENTINEL_PORT", 8090),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		IBKR: IBKRConfig{
			Host:     getEnv("IBKR_HOST", "127.0.0.1"),
			Port:     getEnvAsInt("IBKR_PORT", 7496),
			ClientID: getEnvAsInt("IBKR_CLIENT_ID", 1),
		},
		MarketData: MarketDataConfig{
			APIKey:  getEnv("MARKET_DATA_API_KEY", ""),
			BaseURL: getEnv("MARKET_DATA_BASE_URL", ""),
			Timeout: getEnvAsInt("MARKET_DATA_TIMEOUT", 15),
		},
		Discord: DiscordConfig{
			Webhooks: map[string]string{
				"alerts":   getEnv("DISCORD_WEBHOOK_ALERTS", ""),
				"critical": getEnv("DISCORD_WEBHOOK_CRITICAL", ""),
				"regime":   getEnv("DISCORD_WEBHOOK_REGIME", ""),
			},
		},
		Backup: BackupConfig{
			Enabled: getEnvAsBool("BACKUP_ENABLED", false),
			Bucket:  getEnv("BACKUP_S3_BUCKET", ""),
			Prefix:  getEnv("BACKUP_S3_PREFIX", "sentinel-snapshots"),
			Region:  getEnv("BACKUP_S3_REGION", "us-east-1"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateFromSettings updates configuration from the settings table.
//
// Settings database values take precedence over environment variables;
// an empty or missing settings value leaves the env-derived default in
// place, matching the teacher's credential-fallback pattern.
func (c *Config) UpdateFromSettings(settings *repository.SettingsRepository) error {
	if v, err := settings.Get("market_data.api_key"); err != nil {
		return fmt.Errorf("failed to get market_data.api_key from settings: %w", err)
	} else if v != nil && *v != "" {
		c.MarketData.APIKey = *v
	}

	if v, err := settings.Get("discord.webhooks.alerts"); err != nil {
		return fmt.Errorf("failed to get discord.webhooks.alerts from settings: %w", err)
	} else if v != nil && *v != "" {
		c.Discord.Webhooks["alerts"] = *v
	}

	if v, err := settings.Get("discord.webhooks.critical"); err != nil {
		return fmt.Errorf("failed to get discord.webhooks.critical from settings: %w", err)
	} else if v != nil && *v != "" {
		c.Discord.Webhooks["critical"] = *v
	}

	if v, err := settings.Get("discord.webhooks.regime"); err != nil {
		return fmt.Errorf("failed to get discord.webhooks.regime from settings: %w", err)
	} else if v != nil && *v != "" {
		c.Discord.Webhooks["regime"] = *v
	}

	return nil
}

// Validate checks if required configuration is present.
//
// IBKR / market-data credentials are optional at startup: research mode
// and backtesting over seeded data don't require a live broker
// connection, and missing credentials surface as provider errors at
// call time rather than a fail-fast here.
func (c *Config) Validate() error {
	return nil
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
