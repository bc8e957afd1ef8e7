// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package market

import (
	"strconv"
	"sync"
	"time"

	"github.com/tomtom215/vixwatch/internal/metrics"
)

type cacheEntry struct {
	series    *Series
	expiresAt time.Time
}

// seriesCache holds recent fetches keyed by symbol and lookback. Expired
// entries are dropped on the next set, so the map never outgrows the set of
// symbols in use. A nil cache never hits.
type seriesCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newSeriesCache(ttl time.Duration) *seriesCache {
	if ttl <= 0 {
		return nil
	}
	return &seriesCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func cacheKey(symbol string, lookback time.Duration) string {
	return symbol + "|" + strconv.FormatInt(int64(lookback/time.Second), 10)
}

func (c *seriesCache) get(key string, now time.Time) (*Series, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		metrics.MarketCacheRequests.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.MarketCacheRequests.WithLabelValues("hit").Inc()
	return e.series, true
}

func (c *seriesCache) set(key string, s *Series, now time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{series: s, expiresAt: now.Add(c.ttl)}
}

func (c *seriesCache) size() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
