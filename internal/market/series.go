// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package market

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrNoData is returned when a symbol has no usable closes, or when two
// series share no trading dates.
var ErrNoData = errors.New("no market data")

// Point is one daily close. Date is midnight UTC of the exchange-local
// trading date.
type Point struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Series is a daily close history for one symbol, oldest first.
type Series struct {
	Symbol string  `json:"symbol"`
	Points []Point `json:"points"`
}

// Len returns the number of points.
func (s *Series) Len() int {
	return len(s.Points)
}

// Last returns the most recent point.
func (s *Series) Last() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Range returns the minimum and maximum close.
func (s *Series) Range() (lo, hi float64) {
	for i, p := range s.Points {
		if i == 0 || p.Close < lo {
			lo = p.Close
		}
		if i == 0 || p.Close > hi {
			hi = p.Close
		}
	}
	return lo, hi
}

// Pair is two series restricted to their common trading dates, so
// VIX.Points[i] and SPX.Points[i] always share a date.
type Pair struct {
	VIX Series `json:"vix"`
	SPX Series `json:"spx"`
}

// Start returns the first common date.
func (p *Pair) Start() time.Time {
	if len(p.VIX.Points) == 0 {
		return time.Time{}
	}
	return p.VIX.Points[0].Date
}

// End returns the last common date.
func (p *Pair) End() time.Time {
	if len(p.VIX.Points) == 0 {
		return time.Time{}
	}
	return p.VIX.Points[len(p.VIX.Points)-1].Date
}

// Align keeps only the dates present in both series. The two inputs need not
// be sorted. Duplicate dates keep the last value seen.
func Align(vix, spx *Series) (*Pair, error) {
	if vix == nil || vix.Len() == 0 {
		return nil, fmt.Errorf("%w for VIX series", ErrNoData)
	}
	if spx == nil || spx.Len() == 0 {
		return nil, fmt.Errorf("%w for S&P 500 series", ErrNoData)
	}

	spxByDate := make(map[time.Time]float64, spx.Len())
	for _, p := range spx.Points {
		spxByDate[p.Date] = p.Close
	}

	vixByDate := make(map[time.Time]float64, vix.Len())
	for _, p := range vix.Points {
		if _, ok := spxByDate[p.Date]; ok {
			vixByDate[p.Date] = p.Close
		}
	}
	if len(vixByDate) == 0 {
		return nil, fmt.Errorf("%w: %s and %s share no trading dates", ErrNoData, vix.Symbol, spx.Symbol)
	}

	dates := make([]time.Time, 0, len(vixByDate))
	for d := range vixByDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	pair := &Pair{
		VIX: Series{Symbol: vix.Symbol, Points: make([]Point, len(dates))},
		SPX: Series{Symbol: spx.Symbol, Points: make([]Point, len(dates))},
	}
	for i, d := range dates {
		pair.VIX.Points[i] = Point{Date: d, Close: vixByDate[d]}
		pair.SPX.Points[i] = Point{Date: d, Close: spxByDate[d]}
	}
	return pair, nil
}
