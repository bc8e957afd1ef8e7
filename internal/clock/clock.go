// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

// Package clock resolves wall-clock time into the scheduling timezone and
// determines the daylight-saving correction that applies on a given date.
//
// Two timezones are involved:
//   - Scheduling timezone: the civil zone the target send time is written in
//     (default Asia/Seoul).
//   - Reference timezone: the market's home zone whose DST rule shifts the
//     effective trigger hour (default America/New_York).
//
// The DST offset is recomputed on every call. The reference zone's DST
// boundary can fall on any date of the year, so a value captured at process
// start goes stale after the first seasonal transition.
package clock

import (
	"fmt"
	"time"
)

// Clock supplies the current instant. Production code uses System; tests
// inject a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// Func adapts a plain function to the Clock interface.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}

// Resolver converts instants into the scheduling timezone and computes the
// reference-timezone DST correction.
type Resolver struct {
	scheduling *time.Location
	reference  *time.Location
	clock      Clock
}

// NewResolver creates a Resolver. A nil clock defaults to System.
func NewResolver(scheduling, reference *time.Location, c Clock) *Resolver {
	if scheduling == nil {
		scheduling = time.UTC
	}
	if reference == nil {
		reference = scheduling
	}
	if c == nil {
		c = System{}
	}
	return &Resolver{
		scheduling: scheduling,
		reference:  reference,
		clock:      c,
	}
}

// LoadResolver loads both timezones by IANA name.
func LoadResolver(schedulingTZ, referenceTZ string, c Clock) (*Resolver, error) {
	sched, err := time.LoadLocation(schedulingTZ)
	if err != nil {
		return nil, fmt.Errorf("load scheduling timezone %q: %w", schedulingTZ, err)
	}
	ref, err := time.LoadLocation(referenceTZ)
	if err != nil {
		return nil, fmt.Errorf("load reference timezone %q: %w", referenceTZ, err)
	}
	return NewResolver(sched, ref, c), nil
}

// Now returns the current instant expressed in the scheduling timezone.
func (r *Resolver) Now() time.Time {
	return r.clock.Now().In(r.scheduling)
}

// Location returns the scheduling timezone.
func (r *Resolver) Location() *time.Location {
	return r.scheduling
}

// Reference returns the reference (market) timezone.
func (r *Resolver) Reference() *time.Location {
	return r.reference
}

// In converts t into the scheduling timezone.
func (r *Resolver) In(t time.Time) time.Time {
	return t.In(r.scheduling)
}

// DSTOffsetFor returns 1 when the reference timezone observes daylight-saving
// time at hour:minute on day's civil date (read in the scheduling timezone),
// and 0 otherwise.
func (r *Resolver) DSTOffsetFor(day time.Time, hour, minute int) int {
	local := day.In(r.scheduling)
	instant := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, r.scheduling)
	if instant.In(r.reference).IsDST() {
		return 1
	}
	return 0
}

// EffectiveHour returns the trigger hour for day's civil date. When observe is
// set the base hour moves one hour earlier while the reference timezone is in
// daylight-saving time. The result is an hour of day and wraps at midnight;
// the scheduler applies the shift to the trigger instant instead.
func (r *Resolver) EffectiveHour(day time.Time, hour, minute int, observe bool) int {
	if !observe {
		return hour
	}
	return (hour - r.DSTOffsetFor(day, hour, minute) + 24) % 24
}
