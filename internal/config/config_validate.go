// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/vixwatch/internal/delivery"
	"github.com/tomtom215/vixwatch/internal/validation"
)

// Validate checks ranges, timezones and weekday names. It does not require
// delivery credentials; see Warnings.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if _, err := c.Schedule.Excluded(); err != nil {
		return fmt.Errorf("EXCLUDED_WEEKDAYS: %w", err)
	}

	if c.Schedule.CatchUpSlack > 0 && c.Schedule.CatchUpSlack < c.Schedule.CheckInterval {
		return fmt.Errorf("CATCH_UP_SLACK (%s) must not be shorter than MONITOR_INTERVAL (%s)",
			c.Schedule.CatchUpSlack, c.Schedule.CheckInterval)
	}

	if c.Producer.AttemptTimeout >= c.Schedule.CatchUpSlack && c.Schedule.CatchUpSlack > 0 {
		return fmt.Errorf("PRODUCER_ATTEMPT_TIMEOUT (%s) must be shorter than CATCH_UP_SLACK (%s)",
			c.Producer.AttemptTimeout, c.Schedule.CatchUpSlack)
	}

	return nil
}

// Warnings returns problems that do not prevent startup.
func (c *Config) Warnings() []string {
	var warnings []string

	switch c.Delivery.Channel {
	case "discord":
		if isUnset(c.Discord.BotToken) {
			warnings = append(warnings, "DISCORD_BOT_TOKEN is not set; report delivery is disabled")
		}
		if isUnset(c.Discord.ChannelID) {
			warnings = append(warnings, "DISCORD_CHANNEL_ID is not set; report delivery is disabled")
		}
	default:
		if isUnset(c.Telegram.BotToken) {
			warnings = append(warnings, "TELEGRAM_BOT_TOKEN is not set; report delivery is disabled")
		}
		if isUnset(c.Telegram.ChatID) {
			warnings = append(warnings, "TELEGRAM_TARGET_CHAT_ID is not set; report delivery is disabled")
		}
	}

	if c.Liveness.Target() == "" {
		warnings = append(warnings, "LIVENESS_URL and RENDER_EXTERNAL_URL are unset; self-ping is disabled")
	}

	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			warnings = append(warnings, "CORS_ORIGINS allows any origin on /api/v1")
			break
		}
	}

	return warnings
}

func isUnset(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == delivery.PlaceholderBotToken || v == delivery.PlaceholderChatID
}
