// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

/*
Package schedule holds the in-memory schedule: the configured target time,
the mutable schedule state, and the pure next-trigger calculation.

State is volatile. A restart resets LastSentDate to SentinelDate, so at most
one send per day may repeat across a restart.

# Ownership

Store is the single owned instance shared by the running tasks. Every write
path has exactly one owner:

  - Monitor: RecordCheck, SetNextTrigger, MarkSent
  - Liveness prober: RecordLivenessProbe
  - /set-time handler: UpdateConfig (which also recomputes NextTrigger)

Readers take copies through Snapshot and Config.
*/
package schedule

import (
	"sync"
	"time"

	"github.com/tomtom215/vixwatch/internal/clock"
)

// State is the mutable schedule record.
type State struct {
	LastSentDate      Date       `json:"last_sent_date"`
	LastCheck         time.Time  `json:"last_check"`
	NextTrigger       time.Time  `json:"next_trigger"`
	LastLivenessProbe *time.Time `json:"last_liveness_probe,omitempty"`
}

// Store guards Config and State.
type Store struct {
	mu       sync.RWMutex
	cfg      Config
	state    State
	resolver *clock.Resolver
}

// NewStore creates a Store with LastSentDate at SentinelDate and no pending
// trigger.
func NewStore(cfg Config, resolver *clock.Resolver) *Store {
	return &Store{
		cfg:      cfg,
		state:    State{LastSentDate: SentinelDate},
		resolver: resolver,
	}
}

// Resolver returns the resolver the store computes triggers with.
func (s *Store) Resolver() *clock.Resolver {
	return s.resolver
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	if st.LastLivenessProbe != nil {
		probe := *st.LastLivenessProbe
		st.LastLivenessProbe = &probe
	}
	return st
}

// Config returns the current schedule configuration.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// RecordCheck stores the instant of the latest monitor tick.
func (s *Store) RecordCheck(now time.Time) {
	s.mu.Lock()
	s.state.LastCheck = now
	s.mu.Unlock()
}

// SetNextTrigger stores the pending trigger instant.
func (s *Store) SetNextTrigger(t time.Time) {
	s.mu.Lock()
	s.state.NextTrigger = t
	s.mu.Unlock()
}

// MarkSent records a successful delivery for day. The date only moves forward:
// a day that is not after the stored LastSentDate is ignored and false is
// returned.
func (s *Store) MarkSent(day Date) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !day.After(s.state.LastSentDate) {
		return false
	}
	s.state.LastSentDate = day
	return true
}

// RecordLivenessProbe stores the instant of the latest successful self-ping.
func (s *Store) RecordLivenessProbe(t time.Time) {
	s.mu.Lock()
	s.state.LastLivenessProbe = &t
	s.mu.Unlock()
}

// UpdateConfig replaces the schedule configuration and recomputes NextTrigger
// from now under the same lock. The previous configuration is discarded.
func (s *Store) UpdateConfig(cfg Config, now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
	s.state.NextTrigger = NextTrigger(now, cfg, s.resolver)
	return s.state.NextTrigger
}
