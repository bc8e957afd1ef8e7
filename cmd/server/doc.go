// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

/*
Package main is the entry point for VIXWatch.

VIXWatch sends a chart of the VIX against the S&P 500 once per day at a
configured time in the scheduling timezone (Asia/Seoul by default). The
effective hour follows the US market's daylight-saving regime when
DST_CORRECTION is on, so the report lands the same interval after the New
York close all year round.

# Application Architecture

	RootSupervisor ("vixwatch")
	├── SchedulingSupervisor ("scheduling-layer")
	│   ├── chart-render-pool
	│   ├── monitor
	│   └── liveness-prober
	└── APISupervisor ("api-layer")
	    └── http-server

Component initialization order:

 1. Configuration: koanf v2 over defaults, an optional YAML file, .env and the environment
 2. Logging: zerolog, JSON or console
 3. Clock resolver and schedule store
 4. Market client (rate limited, behind a circuit breaker), chart pool and report producer
 5. Delivery channel (Telegram or Discord) behind the retrying sender
 6. Monitor and liveness prober
 7. HTTP router and server
 8. Supervisor tree

# Configuration

The common variables:

	TELEGRAM_BOT_TOKEN       Telegram bot credential
	TELEGRAM_TARGET_CHAT_ID  Telegram destination
	TARGET_HOUR              initial target hour (default 8)
	TARGET_MINUTE            initial target minute (default 0)
	PORT                     listen port (default 8000)
	EXCLUDED_WEEKDAYS        days without a report (default sunday,monday)
	DELIVERY_CHANNEL         telegram or discord

Missing credentials do not stop startup. They are logged once, and every
cycle then ends as not_configured until they are provided.

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains
in-flight requests for SERVER_SHUTDOWN_TIMEOUT; the monitor abandons a cycle
in progress.

# Example Usage

	export TELEGRAM_BOT_TOKEN=123456:ABC
	export TELEGRAM_TARGET_CHAT_ID=-1001234567890
	export TARGET_HOUR=6
	./vixwatch
*/
package main
