// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

// Package liveness keeps the service's own public URL warm.
//
// Free-tier hosts spin an instance down after a period without inbound
// traffic, which would stop the monitor loop. The Prober requests the
// external URL on a fixed interval so the platform sees activity.
package liveness

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/vixwatch/internal/metrics"
)

// Recorder stores the time of the last successful probe.
// *schedule.Store satisfies it.
type Recorder interface {
	RecordLivenessProbe(t time.Time)
}

// Config configures a Prober.
type Config struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// Prober periodically requests the service's external URL. It implements
// suture.Service.
type Prober struct {
	url      string
	interval time.Duration
	client   *http.Client
	recorder Recorder
	now      func() time.Time
	logger   zerolog.Logger
}

// NewProber creates a Prober. An empty URL disables probing.
func NewProber(cfg Config, recorder Recorder, logger zerolog.Logger) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	target := strings.TrimSpace(cfg.URL)
	if target != "" && !strings.HasSuffix(target, "/") {
		target += "/"
	}
	return &Prober{
		url:      target,
		interval: cfg.Interval,
		client:   &http.Client{Timeout: cfg.Timeout},
		recorder: recorder,
		now:      time.Now,
		logger:   logger.With().Str("component", "liveness").Logger(),
	}
}

// String implements fmt.Stringer for suture logging.
func (p *Prober) String() string {
	return "liveness-prober"
}

// Enabled reports whether a target URL is configured.
func (p *Prober) Enabled() bool {
	return p.url != ""
}

// Serve implements suture.Service. Without a URL it idles until ctx is done.
func (p *Prober) Serve(ctx context.Context) error {
	if !p.Enabled() {
		p.logger.Info().Msg("no external URL configured, self-ping disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	p.logger.Info().Str("url", p.url).Dur("interval", p.interval).Msg("self-ping started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Probe(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn().Err(err).Msg("self-ping failed")
			}
		}
	}
}

// Probe sends one HEAD request, retrying as GET when the server does not
// allow HEAD. A 2xx response is recorded.
func (p *Prober) Probe(ctx context.Context) error {
	status, err := p.request(ctx, http.MethodHead)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		status, err = p.request(ctx, http.MethodGet)
	}

	if err == nil && (status < 200 || status > 299) {
		err = fmt.Errorf("self-ping: unexpected status %d", status)
	}
	metrics.RecordLivenessProbe(err == nil)
	if err != nil {
		return err
	}

	p.recorder.RecordLivenessProbe(p.now())
	p.logger.Debug().Int("status", status).Msg("self-ping ok")
	return nil
}

func (p *Prober) request(ctx context.Context, method string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.url, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("self-ping: failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "vixwatch-liveness/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("self-ping %s: %w", method, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	return resp.StatusCode, nil
}
