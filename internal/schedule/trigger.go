// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package schedule

import (
	"time"

	"github.com/tomtom215/vixwatch/internal/clock"
)

// Config is the configured target time-of-day.
type Config struct {
	Hour                  int  `json:"hour" validate:"min=0,max=23"`
	Minute                int  `json:"minute" validate:"min=0,max=59"`
	ObservesDSTCorrection bool `json:"observes_dst_correction"`
}

// String formats the target as HH:MM.
func (c Config) String() string {
	return time.Date(0, 1, 1, c.Hour, c.Minute, 0, 0, time.UTC).Format("15:04")
}

// candidate returns the trigger instant for day, applying that day's DST
// regime. The correction moves the instant itself, so a target of 00:00 lands
// at 23:00 on the previous civil day while still belonging to day.
func candidate(day Date, cfg Config, r *clock.Resolver) time.Time {
	loc := r.Location()
	base := day.At(cfg.Hour, cfg.Minute, loc)
	if !cfg.ObservesDSTCorrection {
		return base
	}
	offset := r.DSTOffsetFor(day.At(12, 0, loc), cfg.Hour, cfg.Minute)
	return base.Add(-time.Duration(offset) * time.Hour)
}

// DateKey returns the calendar day a trigger belongs to. It is the trigger's
// own civil date unless the DST correction pulled the next day's trigger back
// across midnight.
func DateKey(trigger time.Time, cfg Config, r *clock.Resolver) Date {
	d := DateOf(trigger, r.Location())
	if next := d.AddDays(1); candidate(next, cfg, r).Equal(trigger) {
		return next
	}
	return d
}

// NextTrigger returns the next trigger instant strictly after now.
//
// Today's candidate is used if now is still before it. Otherwise tomorrow's
// candidate is returned, with the effective hour recomputed for tomorrow so a
// DST transition between the two days is honoured. NextTrigger is pure:
// identical arguments always yield identical results.
func NextTrigger(now time.Time, cfg Config, r *clock.Resolver) time.Time {
	today := DateOf(now, r.Location())

	c := candidate(today, cfg, r)
	if now.Before(c) {
		return c
	}

	next := candidate(today.AddDays(1), cfg, r)
	if !next.After(now) {
		// Tomorrow's shifted trigger may already be behind a late-evening now.
		next = candidate(today.AddDays(2), cfg, r)
	}
	return next
}

// InWindow reports whether now falls inside the half-open trigger window
// [trigger, trigger+interval).
func InWindow(now, trigger time.Time, interval time.Duration) bool {
	if trigger.IsZero() {
		return false
	}
	return !now.Before(trigger) && now.Before(trigger.Add(interval))
}
