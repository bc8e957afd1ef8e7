// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/vixwatch/internal/chart"
	"github.com/tomtom215/vixwatch/internal/clock"
	"github.com/tomtom215/vixwatch/internal/market"
	"github.com/tomtom215/vixwatch/internal/retry"
)

// PairFetcher fetches aligned VIX and S&P 500 closes. *market.Client
// satisfies it.
type PairFetcher interface {
	FetchPair(ctx context.Context, vixSymbol, spxSymbol string, lookback time.Duration) (*market.Pair, error)
}

// ChartRenderer renders a chart. *chart.Pool satisfies it.
type ChartRenderer interface {
	Render(ctx context.Context, req chart.Request) ([]byte, error)
}

// Config configures a ChartProducer.
type Config struct {
	VIXSymbol string
	SPXSymbol string
	Lookback  time.Duration
	Policy    retry.Policy
}

// ChartProducer is the Producer that fetches market data and renders the
// comparison chart.
type ChartProducer struct {
	fetcher  PairFetcher
	renderer ChartRenderer
	clock    clock.Clock
	cfg      Config
	retrier  *retry.Retrier
	logger   zerolog.Logger
}

// NewChartProducer creates a ChartProducer. c supplies the report date and
// should be the scheduling-timezone resolver.
func NewChartProducer(fetcher PairFetcher, renderer ChartRenderer, c clock.Clock, cfg Config, logger zerolog.Logger) *ChartProducer {
	if cfg.VIXSymbol == "" {
		cfg.VIXSymbol = "^VIX"
	}
	if cfg.SPXSymbol == "" {
		cfg.SPXSymbol = "^GSPC"
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 180 * 24 * time.Hour
	}

	return &ChartProducer{
		fetcher:  fetcher,
		renderer: renderer,
		clock:    c,
		cfg:      cfg,
		retrier:  retry.New("produce_report", cfg.Policy, logger),
		logger:   logger.With().Str("component", "producer").Logger(),
	}
}

// WithSleep replaces the backoff sleep. Tests use it to skip waiting.
func (p *ChartProducer) WithSleep(fn retry.SleepFunc) *ChartProducer {
	p.retrier.WithSleep(fn)
	return p
}

// Produce implements Producer. It returns a *retry.ExhaustedError when every
// attempt fails.
func (p *ChartProducer) Produce(ctx context.Context) (*Artifact, error) {
	var artifact *Artifact

	err := p.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		a, err := p.attempt(ctx)
		if err != nil {
			return err
		}
		p.logger.Debug().Int("attempt", attempt).Int("bytes", a.Size()).Msg("report produced")
		artifact = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

func (p *ChartProducer) attempt(ctx context.Context) (*Artifact, error) {
	pair, err := p.fetcher.FetchPair(ctx, p.cfg.VIXSymbol, p.cfg.SPXSymbol, p.cfg.Lookback)
	if err != nil {
		return nil, fmt.Errorf("fetch market data: %w", err)
	}

	vix, ok := pair.VIX.Last()
	if !ok {
		return nil, fmt.Errorf("fetch market data: %w", market.ErrNoData)
	}
	spx, _ := pair.SPX.Last()

	png, err := p.renderer.Render(ctx, chart.Request{Pair: pair})
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}

	summary := Summary{
		VIX:        vix.Close,
		SPX:        spx.Close,
		Band:       BandFor(vix.Close),
		MarketDate: vix.Date,
		Points:     pair.VIX.Len(),
	}

	return &Artifact{
		Image:       png,
		Caption:     Caption(summary, p.clock.Now()),
		Filename:    Filename,
		ContentType: ContentType,
		Summary:     summary,
	}, nil
}
