// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

// Package chart renders the VIX versus S&P 500 comparison chart as a PNG.
//
// Rendering is CPU-bound, so callers go through Pool, which runs the
// Renderer on a fixed set of worker goroutines.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/tomtom215/vixwatch/internal/market"
	"github.com/tomtom215/vixwatch/internal/retry"
)

// Threshold is a horizontal reference line on the VIX axis.
type Threshold struct {
	Value float64
	Label string
	Color drawing.Color
}

// Thresholds are the VIX sentiment levels drawn on every chart.
var Thresholds = []Threshold{
	{Value: 15, Label: "VIX 15 (greed)", Color: drawing.ColorFromHex("90EE90")},
	{Value: 30, Label: "VIX 30 (warning)", Color: drawing.ColorFromHex("CD853F")},
	{Value: 40, Label: "VIX 40 (fear)", Color: drawing.ColorFromHex("FFA500")},
}

var (
	backgroundColor = drawing.ColorFromHex("222222")
	canvasColor     = drawing.ColorFromHex("2E2E2E")
	vixColor        = drawing.ColorFromHex("FF6B6B")
	spxColor        = drawing.ColorFromHex("6BCBFF")
	textColor       = drawing.ColorWhite
	gridColor       = drawing.ColorFromHex("444444")
)

// Request describes one chart.
type Request struct {
	Pair *market.Pair
}

// Renderer draws charts of a fixed size.
type Renderer struct {
	width  int
	height int
}

// NewRenderer creates a Renderer. Non-positive sizes fall back to 1000x600.
func NewRenderer(width, height int) *Renderer {
	if width <= 0 {
		width = 1000
	}
	if height <= 0 {
		height = 600
	}
	return &Renderer{width: width, height: height}
}

// Title returns the chart title, carrying the last close of each series.
func Title(p *market.Pair) string {
	vix, _ := p.VIX.Last()
	spx, _ := p.SPX.Last()
	return fmt.Sprintf("VIX (%.2f) vs S&P 500 (%.2f)", vix.Close, spx.Close)
}

// Render draws req as a PNG.
func (r *Renderer) Render(req Request) ([]byte, error) {
	p := req.Pair
	if p == nil || p.VIX.Len() < 2 || p.SPX.Len() < 2 {
		// Retrying cannot add data points.
		return nil, retry.Permanent(errors.New("render chart: need at least two aligned points"))
	}

	dates := make([]time.Time, p.VIX.Len())
	vix := make([]float64, p.VIX.Len())
	spx := make([]float64, p.SPX.Len())
	for i := range p.VIX.Points {
		dates[i] = p.VIX.Points[i].Date
		vix[i] = p.VIX.Points[i].Close
		spx[i] = p.SPX.Points[i].Close
	}

	axisStyle := chart.Style{
		FontColor:   textColor,
		StrokeColor: gridColor,
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name:    "S&P 500",
			YAxis:   chart.YAxisSecondary,
			XValues: dates,
			YValues: spx,
			Style:   chart.Style{StrokeColor: spxColor, StrokeWidth: 1.5},
		},
		chart.TimeSeries{
			Name:    "VIX",
			XValues: dates,
			YValues: vix,
			Style:   chart.Style{StrokeColor: vixColor, StrokeWidth: 1.5},
		},
	}
	first, last := dates[0], dates[len(dates)-1]
	for _, th := range Thresholds {
		series = append(series, chart.TimeSeries{
			Name:    th.Label,
			XValues: []time.Time{first, last},
			YValues: []float64{th.Value, th.Value},
			Style: chart.Style{
				StrokeColor:     th.Color,
				StrokeWidth:     1.2,
				StrokeDashArray: []float64{5, 5},
			},
		})
	}

	graph := chart.Chart{
		Title:      Title(p),
		TitleStyle: chart.Style{FontColor: textColor, FontSize: 12},
		Width:      r.width,
		Height:     r.height,
		Background: chart.Style{
			FillColor: backgroundColor,
			Padding:   chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: chart.Style{FillColor: canvasColor},
		XAxis: chart.XAxis{
			Style:          axisStyle,
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
		},
		YAxis: chart.YAxis{
			Name:      "VIX",
			NameStyle: chart.Style{FontColor: vixColor},
			Style:     axisStyle,
		},
		YAxisSecondary: chart.YAxis{
			Name:      "S&P 500",
			NameStyle: chart.Style{FontColor: spxColor},
			Style:     axisStyle,
			Range:     paddedRange(&p.SPX),
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{
		chart.LegendThin(&graph, chart.Style{FillColor: canvasColor, FontColor: textColor, StrokeColor: gridColor}),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// paddedRange widens a flat series so the axis never has a zero span.
func paddedRange(s *market.Series) chart.Range {
	lo, hi := s.Range()
	if hi > lo {
		return &chart.ContinuousRange{Min: lo, Max: hi}
	}
	return &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
}
