// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/vixwatch/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvPath is the optional dotenv file loaded before the environment layer.
// Variables already set in the process environment win.
var DotEnvPath = ".env"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8000,
			Host:             "",
			ReadTimeout:      10 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      60 * time.Second,
			ShutdownTimeout:  10 * time.Second,
			SetTimeRateLimit: 30,
			APIRateLimit:     120,
			RateLimitWindow:  time.Minute,
			CORSOrigins:      []string{"*"},
		},
		Schedule: ScheduleConfig{
			TargetHour:        8,
			TargetMinute:      0,
			Timezone:          "Asia/Seoul",
			ReferenceTimezone: "America/New_York",
			DSTCorrection:     true,
			ExcludedWeekdays:  []string{"sunday", "monday"},
			CheckInterval:     60 * time.Second,
			CatchUpSlack:      time.Hour,
		},
		Delivery: DeliveryConfig{
			Channel:        "telegram",
			MaxAttempts:    3,
			BaseDelay:      time.Second,
			MaxDelay:       30 * time.Second,
			AttemptTimeout: 20 * time.Second,
		},
		Telegram: TelegramConfig{
			BaseURL: "https://api.telegram.org",
			Timeout: 15 * time.Second,
		},
		Market: MarketConfig{
			BaseURL:         "https://query1.finance.yahoo.com",
			UserAgent:       "Mozilla/5.0 (compatible; vixwatch/1.0)",
			VIXSymbol:       "^VIX",
			SPXSymbol:       "^GSPC",
			Lookback:        180 * 24 * time.Hour,
			Timeout:         15 * time.Second,
			RateLimit:       2,
			Burst:           2,
			BreakerFailures: 5,
			BreakerTimeout:  2 * time.Minute,
			CacheTTL:        10 * time.Minute,
		},
		Producer: ProducerConfig{
			MaxAttempts:    4,
			BaseDelay:      5 * time.Second,
			MaxDelay:       time.Minute,
			AttemptTimeout: 45 * time.Second,
		},
		Chart: ChartConfig{
			Workers:   1,
			QueueSize: 4,
			Width:     1000,
			Height:    600,
		},
		Liveness: LivenessConfig{
			Interval: 10 * time.Minute,
			Timeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults
//  2. Config file (optional YAML)
//  3. Environment variables (after .env, if present)
//
// The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	if err := loadDotEnv(DotEnvPath); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// TELEGRAM_BOT_TOKEN -> telegram.bot_token, PORT -> server.port, ...
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set through
// the environment.
var sliceConfigPaths = []string{
	"schedule.excluded_weekdays",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}

		// An empty value is an explicit empty list.
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	// Server
	"port":                    "server.port",
	"host":                    "server.host",
	"set_time_rate_limit":     "server.set_time_rate_limit",
	"api_rate_limit":          "server.api_rate_limit",
	"cors_origins":            "server.cors_origins",
	"server_shutdown_timeout": "server.shutdown_timeout",

	// Schedule
	"target_hour":        "schedule.target_hour",
	"target_minute":      "schedule.target_minute",
	"schedule_timezone":  "schedule.timezone",
	"reference_timezone": "schedule.reference_timezone",
	"dst_correction":     "schedule.dst_correction",
	"excluded_weekdays":  "schedule.excluded_weekdays",
	"monitor_interval":   "schedule.check_interval",
	"catch_up_slack":     "schedule.catch_up_slack",

	// Delivery
	"delivery_channel":         "delivery.channel",
	"delivery_max_attempts":    "delivery.max_attempts",
	"delivery_base_delay":      "delivery.base_delay",
	"delivery_attempt_timeout": "delivery.attempt_timeout",
	"telegram_bot_token":       "telegram.bot_token",
	"telegram_target_chat_id":  "telegram.chat_id",
	"telegram_api_url":         "telegram.base_url",
	"discord_bot_token":        "discord.bot_token",
	"discord_channel_id":       "discord.channel_id",

	// Market data and report production
	"market_base_url":          "market.base_url",
	"market_lookback":          "market.lookback",
	"market_rate_limit":        "market.rate_limit",
	"market_cache_ttl":         "market.cache_ttl",
	"producer_max_attempts":    "producer.max_attempts",
	"producer_base_delay":      "producer.base_delay",
	"producer_attempt_timeout": "producer.attempt_timeout",
	"chart_workers":            "chart.workers",

	// Liveness
	"liveness_url":        "liveness.url",
	"render_external_url": "liveness.render_external_url",
	"liveness_interval":   "liveness.interval",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
