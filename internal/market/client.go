// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

/*
Package market fetches daily close histories from a Yahoo-compatible chart
API.

Each request passes through a token-bucket rate limiter and a circuit
breaker. The client makes a single HTTP attempt per call; retrying is the
caller's job (the report producer wraps FetchPair in a retry.Retrier). Errors
carry retry markers so the retrier can tell them apart:

  - 404 and other 4xx responses: retry.Permanent
  - 429: retry.WithRetryAfter using the Retry-After header
  - 5xx, network errors, open breaker: plain (transient) errors

Endpoint:

	GET {base}/v8/finance/chart/{symbol}?period1={unix}&period2={unix}&interval=1d
*/
package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tomtom215/vixwatch/internal/metrics"
	"github.com/tomtom215/vixwatch/internal/retry"
)

// maxErrorBodySize bounds how much of an error response is read.
const maxErrorBodySize = 8 * 1024

// Config configures a Client.
type Config struct {
	BaseURL         string
	UserAgent       string
	Timeout         time.Duration
	RateLimit       float64
	Burst           int
	BreakerFailures int
	BreakerTimeout  time.Duration
	// CacheTTL keeps successful fetches for this long. Zero disables caching.
	CacheTTL time.Duration
}

// Client fetches daily closes.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[*Series]
	cache     *seriesCache
	logger    zerolog.Logger
	now       func() time.Time
}

// NewClient creates a Client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.BreakerFailures < 1 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 2 * time.Minute
	}

	logger = logger.With().Str("component", "market").Logger()

	return &Client{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		breaker:   newBreaker("market-data", uint32(cfg.BreakerFailures), cfg.BreakerTimeout, logger),
		cache:     newSeriesCache(cfg.CacheTTL),
		logger:    logger,
		now:       time.Now,
	}
}

// BreakerState returns the circuit breaker state name.
func (c *Client) BreakerState() string {
	return stateToString(c.breaker.State())
}

// FetchSeries fetches lookback worth of daily closes for symbol. A series
// fetched within CacheTTL is served from memory without touching the breaker.
func (c *Client) FetchSeries(ctx context.Context, symbol string, lookback time.Duration) (*Series, error) {
	key := cacheKey(symbol, lookback)
	if cached, ok := c.cache.get(key, c.now()); ok {
		return cached, nil
	}

	start := time.Now()

	series, err := c.breaker.Execute(func() (*Series, error) {
		return c.fetch(ctx, symbol, lookback)
	})
	metrics.RecordMarketFetch(symbol, time.Since(start), err)

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(c.breaker.Name(), "success").Inc()
		c.cache.set(key, series, c.now())
		return series, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(c.breaker.Name(), "rejected").Inc()
		return nil, fmt.Errorf("fetch %s: market data circuit %s: %w", symbol, c.BreakerState(), err)
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(c.breaker.Name(), "failure").Inc()
		return nil, err
	}
}

// FetchPair fetches both symbols concurrently and aligns them on common
// trading dates.
func (c *Client) FetchPair(ctx context.Context, vixSymbol, spxSymbol string, lookback time.Duration) (*Pair, error) {
	var vix, spx *Series

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := c.FetchSeries(gctx, vixSymbol, lookback)
		vix = s
		return err
	})
	g.Go(func() error {
		s, err := c.FetchSeries(gctx, spxSymbol, lookback)
		spx = s
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Align(vix, spx)
}

func (c *Client) fetch(ctx context.Context, symbol string, lookback time.Duration) (*Series, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch %s: rate limiter: %w", symbol, err)
	}

	end := c.now()
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(end.Add(-lookback).Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	params.Set("interval", "1d")
	params.Set("includePrePost", "false")
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("fetch %s: failed to create request: %w", symbol, err))
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: HTTP request failed: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(symbol, resp)
	}

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("fetch %s: failed to decode response: %w", symbol, err)
	}

	series, err := body.series(symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}

	c.logger.Debug().Str("symbol", symbol).Int("points", series.Len()).Msg("market data fetched")
	return series, nil
}

func statusError(symbol string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	err := fmt.Errorf("fetch %s: status %d: %s", symbol, resp.StatusCode, string(body))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.WithRetryAfter(err, parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		return err
	default:
		return retry.Permanent(err)
	}
}

// parseRetryAfter accepts delay-seconds or an HTTP date. It returns 0 when
// the header is absent or unparseable.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// chartResponse is the subset of the chart API payload the client reads.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (r *chartResponse) series(symbol string) (*Series, error) {
	if r.Chart.Error != nil {
		return nil, retry.Permanent(fmt.Errorf("chart API error %s: %s", r.Chart.Error.Code, r.Chart.Error.Description))
	}
	if len(r.Chart.Result) == 0 || len(r.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, ErrNoData
	}

	res := r.Chart.Result[0]
	closes := res.Indicators.Quote[0].Close
	n := len(res.Timestamp)
	if len(closes) < n {
		n = len(closes)
	}

	points := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		if closes[i] == nil {
			continue
		}
		local := time.Unix(res.Timestamp[i]+res.Meta.GMTOffset, 0).UTC()
		date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

		// The live bar can share a date with the previous close; keep the newest.
		if len(points) > 0 && points[len(points)-1].Date.Equal(date) {
			points[len(points)-1].Close = *closes[i]
			continue
		}
		points = append(points, Point{Date: date, Close: *closes[i]})
	}
	if len(points) == 0 {
		return nil, ErrNoData
	}

	return &Series{Symbol: symbol, Points: points}, nil
}
