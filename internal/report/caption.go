// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package report

import (
	"fmt"
	"strings"
	"time"
)

// Band is a VIX sentiment band.
type Band string

// Sentiment bands, bounded by the chart's threshold lines.
const (
	BandGreed   Band = "greed"
	BandNeutral Band = "neutral"
	BandWarning Band = "warning"
	BandFear    Band = "fear"
)

// BandFor classifies a VIX level. Boundaries belong to the higher band.
func BandFor(vix float64) Band {
	switch {
	case vix >= 40:
		return BandFear
	case vix >= 30:
		return BandWarning
	case vix >= 15:
		return BandNeutral
	default:
		return BandGreed
	}
}

func (b Band) description() string {
	switch b {
	case BandGreed:
		return "greed, below 15"
	case BandNeutral:
		return "neutral, 15 to 30"
	case BandWarning:
		return "warning, 30 to 40"
	case BandFear:
		return "fear, 40 and above"
	default:
		return string(b)
	}
}

// Caption builds the message caption. now is the report time in the
// scheduling timezone.
func Caption(s Summary, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "VIX vs S&P 500, %s\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "VIX %.2f (%s)\n", s.VIX, s.Band.description())
	fmt.Fprintf(&b, "S&P 500 %.2f", s.SPX)
	if !s.MarketDate.IsZero() {
		fmt.Fprintf(&b, "\nLast close %s", s.MarketDate.Format("2006-01-02"))
	}
	return b.String()
}
