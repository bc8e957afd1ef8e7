// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/vixwatch/internal/api"
	"github.com/tomtom215/vixwatch/internal/chart"
	"github.com/tomtom215/vixwatch/internal/clock"
	"github.com/tomtom215/vixwatch/internal/config"
	"github.com/tomtom215/vixwatch/internal/delivery"
	"github.com/tomtom215/vixwatch/internal/liveness"
	"github.com/tomtom215/vixwatch/internal/logging"
	"github.com/tomtom215/vixwatch/internal/market"
	"github.com/tomtom215/vixwatch/internal/monitor"
	"github.com/tomtom215/vixwatch/internal/report"
	"github.com/tomtom215/vixwatch/internal/schedule"
	"github.com/tomtom215/vixwatch/internal/supervisor"
	"github.com/tomtom215/vixwatch/internal/supervisor/services"
)

func main() {
	// Configuration errors are logged with the default logger.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("target", cfg.Schedule.Target().String()).
		Str("timezone", cfg.Schedule.Timezone).
		Str("reference_timezone", cfg.Schedule.ReferenceTimezone).
		Bool("dst_correction", cfg.Schedule.DSTCorrection).
		Str("delivery_channel", cfg.Delivery.Channel).
		Str("addr", cfg.Server.Addr()).
		Msg("Starting VIXWatch")

	for _, w := range cfg.Warnings() {
		logging.Warn().Msg(w)
	}

	resolver, err := clock.LoadResolver(cfg.Schedule.Timezone, cfg.Schedule.ReferenceTimezone, clock.System{})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load timezones")
	}
	excluded, err := cfg.Schedule.Excluded()
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid EXCLUDED_WEEKDAYS")
	}

	store := schedule.NewStore(cfg.Schedule.Target(), resolver)

	marketClient := market.NewClient(market.Config{
		BaseURL:         cfg.Market.BaseURL,
		UserAgent:       cfg.Market.UserAgent,
		Timeout:         cfg.Market.Timeout,
		RateLimit:       cfg.Market.RateLimit,
		Burst:           cfg.Market.Burst,
		BreakerFailures: cfg.Market.BreakerFailures,
		BreakerTimeout:  cfg.Market.BreakerTimeout,
		CacheTTL:        cfg.Market.CacheTTL,
	}, logging.WithComponent("market"))

	renderer := chart.NewRenderer(cfg.Chart.Width, cfg.Chart.Height)
	pool := chart.NewPool(renderer.Render, cfg.Chart.Workers, cfg.Chart.QueueSize, logging.WithComponent("chart"))
	defer pool.Close()

	producer := report.NewChartProducer(marketClient, pool, resolver, report.Config{
		VIXSymbol: cfg.Market.VIXSymbol,
		SPXSymbol: cfg.Market.SPXSymbol,
		Lookback:  cfg.Market.Lookback,
		Policy:    cfg.Producer.Policy(),
	}, logging.WithComponent("report"))

	channel, err := newChannel(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create delivery channel")
	}
	sender := delivery.NewSender(channel, cfg.Delivery.Policy(), logging.WithComponent("delivery"))

	mon := monitor.New(store, producer, sender, monitor.Config{
		CheckInterval: cfg.Schedule.CheckInterval,
		CatchUpSlack:  cfg.Schedule.CatchUpSlack,
		Excluded:      excluded,
	}, logging.Logger())

	prober := liveness.NewProber(liveness.Config{
		URL:      cfg.Liveness.Target(),
		Interval: cfg.Liveness.Interval,
		Timeout:  cfg.Liveness.Timeout,
	}, store, logging.Logger())

	handler, err := api.NewHandler(store, mon, sender.Ready)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create HTTP handler")
	}
	router := api.NewRouter(handler, &api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		CORSMaxAge:         86400,
		APIRateLimit:       cfg.Server.APIRateLimit,
		SetTimeRateLimit:   cfg.Server.SetTimeRateLimit,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	})
	httpHandler := router.Setup()

	httpService := services.NewHTTPServerService(func() services.HTTPServer {
		return &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           httpHandler,
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
			IdleTimeout:       cfg.Server.IdleTimeout,
		}
	}, cfg.Server.ShutdownTimeout, logging.Logger())

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddSchedulingService(pool)
	tree.AddSchedulingService(mon)
	tree.AddSchedulingService(prober)
	tree.AddAPIService(httpService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().
		Dur("check_interval", mon.Config().CheckInterval).
		Str("excluded_weekdays", excluded.String()).
		Bool("liveness", prober.Enabled()).
		Msg("Supervisor tree starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logUnstopped(tree)
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
		pool.Close()
		os.Exit(1)
	}

	logUnstopped(tree)
	logging.Info().Msg("VIXWatch stopped")
}

// newChannel builds the configured delivery channel.
func newChannel(cfg *config.Config) (delivery.Channel, error) {
	switch cfg.Delivery.Channel {
	case "discord":
		return delivery.NewDiscordChannel(delivery.DiscordConfig{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.Discord.ChannelID,
			Timeout:   cfg.Telegram.Timeout,
		})
	default:
		return delivery.NewTelegramChannel(delivery.TelegramConfig{
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
			BaseURL:  cfg.Telegram.BaseURL,
			Timeout:  cfg.Telegram.Timeout,
		}), nil
	}
}

func logUnstopped(tree *supervisor.SupervisorTree) {
	unstopped, err := tree.UnstoppedServiceReport()
	if err != nil {
		logging.Warn().Err(err).Msg("Could not collect unstopped service report")
		return
	}
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the shutdown timeout")
	}
}
