// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

// Package config loads the service configuration.
//
// Sources are layered with koanf, lowest priority first:
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, or config.yaml in the working directory)
//  3. Environment variables, including any loaded from a .env file
//
// Missing delivery credentials are not an error: the service starts, Warnings
// reports them, and every send short-circuits until they are provided. An
// unparseable port, an unknown timezone or an invalid weekday name fails Load.
package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/vixwatch/internal/retry"
	"github.com/tomtom215/vixwatch/internal/schedule"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Schedule ScheduleConfig `koanf:"schedule"`
	Delivery DeliveryConfig `koanf:"delivery"`
	Telegram TelegramConfig `koanf:"telegram"`
	Discord  DiscordConfig  `koanf:"discord"`
	Market   MarketConfig   `koanf:"market"`
	Producer ProducerConfig `koanf:"producer"`
	Chart    ChartConfig    `koanf:"chart"`
	Liveness LivenessConfig `koanf:"liveness"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the HTTP status surface.
type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// SetTimeRateLimit bounds POST /set-time per client IP per RateLimitWindow.
	SetTimeRateLimit int           `koanf:"set_time_rate_limit" validate:"min=1"`
	APIRateLimit     int           `koanf:"api_rate_limit" validate:"min=1"`
	RateLimitWindow  time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	CORSOrigins      []string      `koanf:"cors_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ScheduleConfig configures the daily trigger and the monitor loop.
type ScheduleConfig struct {
	TargetHour        int           `koanf:"target_hour" validate:"min=0,max=23"`
	TargetMinute      int           `koanf:"target_minute" validate:"min=0,max=59"`
	Timezone          string        `koanf:"timezone" validate:"iana_tz"`
	ReferenceTimezone string        `koanf:"reference_timezone" validate:"iana_tz"`
	DSTCorrection     bool          `koanf:"dst_correction"`
	ExcludedWeekdays  []string      `koanf:"excluded_weekdays"`
	CheckInterval     time.Duration `koanf:"check_interval" validate:"gte=1s"`
	CatchUpSlack      time.Duration `koanf:"catch_up_slack" validate:"gte=0"`
}

// Target returns the initial schedule configuration.
func (s ScheduleConfig) Target() schedule.Config {
	return schedule.Config{
		Hour:                  s.TargetHour,
		Minute:                s.TargetMinute,
		ObservesDSTCorrection: s.DSTCorrection,
	}
}

// Excluded parses ExcludedWeekdays.
func (s ScheduleConfig) Excluded() (schedule.WeekdaySet, error) {
	return schedule.ParseWeekdays(s.ExcludedWeekdays)
}

// DeliveryConfig selects the delivery channel and its retry budget.
type DeliveryConfig struct {
	Channel        string        `koanf:"channel" validate:"oneof=telegram discord"`
	MaxAttempts    int           `koanf:"max_attempts" validate:"min=1,max=10"`
	BaseDelay      time.Duration `koanf:"base_delay" validate:"gte=0"`
	MaxDelay       time.Duration `koanf:"max_delay" validate:"gte=0"`
	AttemptTimeout time.Duration `koanf:"attempt_timeout" validate:"gt=0"`
}

// Policy returns the retry policy for sends.
func (d DeliveryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:    d.MaxAttempts,
		BaseDelay:      d.BaseDelay,
		MaxDelay:       d.MaxDelay,
		Multiplier:     2,
		AttemptTimeout: d.AttemptTimeout,
	}
}

// TelegramConfig holds Bot API credentials.
type TelegramConfig struct {
	BotToken string        `koanf:"bot_token"`
	ChatID   string        `koanf:"chat_id"`
	BaseURL  string        `koanf:"base_url" validate:"url"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
}

// DiscordConfig holds bot credentials for the Discord channel.
type DiscordConfig struct {
	BotToken  string `koanf:"bot_token"`
	ChannelID string `koanf:"channel_id"`
}

// MarketConfig configures the market-data client.
type MarketConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"url"`
	UserAgent string        `koanf:"user_agent"`
	VIXSymbol string        `koanf:"vix_symbol" validate:"required"`
	SPXSymbol string        `koanf:"spx_symbol" validate:"required"`
	Lookback  time.Duration `koanf:"lookback" validate:"gte=24h"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`

	// RateLimit is requests per second; Burst is the token bucket size.
	RateLimit float64 `koanf:"rate_limit" validate:"gt=0"`
	Burst     int     `koanf:"burst" validate:"min=1"`

	BreakerFailures int           `koanf:"breaker_failures" validate:"min=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`

	// CacheTTL keeps fetched series for producer retries. Zero disables it.
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gte=0"`
}

// ProducerConfig is the report producer's retry budget.
type ProducerConfig struct {
	MaxAttempts    int           `koanf:"max_attempts" validate:"min=1,max=10"`
	BaseDelay      time.Duration `koanf:"base_delay" validate:"gte=0"`
	MaxDelay       time.Duration `koanf:"max_delay" validate:"gte=0"`
	AttemptTimeout time.Duration `koanf:"attempt_timeout" validate:"gt=0"`
}

// Policy returns the retry policy for report production.
func (p ProducerConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:    p.MaxAttempts,
		BaseDelay:      p.BaseDelay,
		MaxDelay:       p.MaxDelay,
		Multiplier:     2,
		AttemptTimeout: p.AttemptTimeout,
	}
}

// ChartConfig configures the render pool.
type ChartConfig struct {
	Workers   int `koanf:"workers" validate:"min=1,max=16"`
	QueueSize int `koanf:"queue_size" validate:"min=1"`
	Width     int `koanf:"width" validate:"min=200,max=4000"`
	Height    int `koanf:"height" validate:"min=150,max=4000"`
}

// LivenessConfig configures the self-ping prober.
type LivenessConfig struct {
	URL string `koanf:"url" validate:"omitempty,url"`

	// RenderExternalURL is the platform-provided public URL, used when URL is
	// empty.
	RenderExternalURL string        `koanf:"render_external_url" validate:"omitempty,url"`
	Interval          time.Duration `koanf:"interval" validate:"gte=1s"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
}

// Target returns the URL to probe, or "" when self-ping is disabled.
func (l LivenessConfig) Target() string {
	if l.URL != "" {
		return l.URL
	}
	return l.RenderExternalURL
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Load loads configuration from defaults, an optional config file and the
// environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
