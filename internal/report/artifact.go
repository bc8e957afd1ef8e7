// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

// Package report produces the daily report: market data is fetched, the
// chart is rendered and a caption is composed, with bounded retries around
// the whole attempt.
//
// The monitor owns each Artifact from Produce until it calls Release after
// the send attempt.
package report

import (
	"context"
	"time"
)

// Default attachment metadata.
const (
	Filename    = "vix_plot.png"
	ContentType = "image/png"
)

// Summary is the data the caption is built from.
type Summary struct {
	VIX        float64   `json:"vix"`
	SPX        float64   `json:"spx"`
	Band       Band      `json:"band"`
	MarketDate time.Time `json:"market_date"`
	Points     int       `json:"points"`
}

// Artifact is one produced report.
type Artifact struct {
	Image       []byte
	Caption     string
	Filename    string
	ContentType string
	Summary     Summary
}

// Size returns the image size in bytes.
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Image)
}

// Release drops the image buffer. Safe on a nil or already released artifact.
func (a *Artifact) Release() {
	if a == nil {
		return
	}
	a.Image = nil
}

// Producer creates a fresh Artifact. Implementations bound their own retries
// and return an error once the attempt budget is spent.
type Producer interface {
	Produce(ctx context.Context) (*Artifact, error)
}
