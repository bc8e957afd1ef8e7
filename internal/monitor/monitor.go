// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

// Package monitor runs the daily report loop.
//
// Every CheckInterval the Monitor wakes, records the check and decides
// whether the current instant falls in the trigger window
// [NextTrigger, NextTrigger+CheckInterval). Inside the window it sends at
// most one report per calendar date in the scheduling timezone:
//
//	WAITING --(in window, not sent, not excluded)--> CHECKING
//	CHECKING --(produce, deliver, release)--> WAITING
//
// The next trigger is recomputed whenever the window is visited, whatever
// the cycle outcome, and again when the stored trigger is more than
// CatchUpSlack in the past (suspended process, clock jump).
//
// Each tick runs behind a recover boundary. A failing or panicking tick
// leaves the schedule state as of its last successful mutation and the loop
// carries on.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/vixwatch/internal/delivery"
	"github.com/tomtom215/vixwatch/internal/logging"
	"github.com/tomtom215/vixwatch/internal/metrics"
	"github.com/tomtom215/vixwatch/internal/report"
	"github.com/tomtom215/vixwatch/internal/schedule"
)

// Phase is the loop state shown on the status page.
type Phase string

// Loop phases.
const (
	PhaseWaiting  Phase = "WAITING"
	PhaseChecking Phase = "CHECKING"
)

// Outcome is the result of one tick.
type Outcome string

// Tick outcomes.
const (
	OutcomeWaiting        Outcome = "waiting"
	OutcomeAlreadySent    Outcome = "already_sent"
	OutcomeSkippedWeekday Outcome = "skipped_weekday"
	OutcomeSent           Outcome = "sent"
	OutcomeProduceFailed  Outcome = "produce_failed"
	OutcomeDeliveryFailed Outcome = "delivery_failed"
	OutcomeNotConfigured  Outcome = "not_configured"
	OutcomeCaughtUp       Outcome = "caught_up"
	OutcomePanicked       Outcome = "panicked"
)

// Deliverer sends one attachment with its own retries. *delivery.Sender
// satisfies it.
type Deliverer interface {
	Channel() string
	Ready() error
	Send(ctx context.Context, att *delivery.Attachment) error
}

// Config configures a Monitor.
type Config struct {
	CheckInterval time.Duration
	CatchUpSlack  time.Duration
	Excluded      schedule.WeekdaySet
}

// TickReport describes one tick.
type TickReport struct {
	Outcome     Outcome       `json:"outcome"`
	At          time.Time     `json:"at"`
	DateKey     schedule.Date `json:"date_key"`
	NextTrigger time.Time     `json:"next_trigger"`
	CycleID     string        `json:"cycle_id,omitempty"`
	Err         error         `json:"-"`
}

// Status is the monitor's view for the status surface.
type Status struct {
	Phase       Phase     `json:"phase"`
	LastOutcome Outcome   `json:"last_outcome,omitempty"`
	LastTick    time.Time `json:"last_tick,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Channel     string    `json:"channel"`
}

// Monitor is the report loop. It implements suture.Service.
type Monitor struct {
	store    *schedule.Store
	producer report.Producer
	sender   Deliverer
	cfg      Config
	logger   zerolog.Logger

	mu    sync.RWMutex
	phase Phase
	last  TickReport
}

// New creates a Monitor.
func New(store *schedule.Store, producer report.Producer, sender Deliverer, cfg Config, logger zerolog.Logger) *Monitor {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.CatchUpSlack <= 0 {
		cfg.CatchUpSlack = time.Hour
	}
	if cfg.CatchUpSlack < cfg.CheckInterval {
		cfg.CatchUpSlack = cfg.CheckInterval
	}
	if cfg.Excluded == nil {
		cfg.Excluded = schedule.NewWeekdaySet()
	}
	return &Monitor{
		store:    store,
		producer: producer,
		sender:   sender,
		cfg:      cfg,
		logger:   logger.With().Str("component", "monitor").Logger(),
		phase:    PhaseWaiting,
	}
}

// String implements fmt.Stringer for suture logging.
func (m *Monitor) String() string {
	return "monitor"
}

// Config returns the loop configuration.
func (m *Monitor) Config() Config {
	return m.cfg
}

// Status returns the current phase and the last tick's outcome.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{
		Phase:       m.phase,
		LastOutcome: m.last.Outcome,
		LastTick:    m.last.At,
		Channel:     m.sender.Channel(),
	}
	if m.last.Err != nil {
		s.LastError = m.last.Err.Error()
	}
	return s
}

// Serve implements suture.Service. It ticks once immediately, then every
// CheckInterval. Ticks never overlap; a slow tick makes the ticker drop the
// ticks it missed.
func (m *Monitor) Serve(ctx context.Context) error {
	m.logger.Info().
		Dur("check_interval", m.cfg.CheckInterval).
		Dur("catch_up_slack", m.cfg.CatchUpSlack).
		Str("excluded_weekdays", m.cfg.Excluded.String()).
		Str("channel", m.sender.Channel()).
		Msg("monitor loop started")

	if err := m.sender.Ready(); err != nil {
		m.logger.Error().Err(err).Msg("delivery is not configured; cycles will be skipped")
	}

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	m.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("monitor loop stopped")
			return ctx.Err()
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one iteration behind the recover boundary.
func (m *Monitor) Tick(ctx context.Context) TickReport {
	start := time.Now()
	rep := m.safeTick(ctx)
	metrics.RecordTick(string(rep.Outcome), time.Since(start))

	m.mu.Lock()
	m.phase = PhaseWaiting
	m.last = rep
	m.mu.Unlock()

	return rep
}

// safeTick converts a panic anywhere in the tick into an error report.
func (m *Monitor) safeTick(ctx context.Context) (rep TickReport) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("monitor tick panicked")
			rep = TickReport{
				Outcome: OutcomePanicked,
				At:      time.Now(),
				Err:     fmt.Errorf("tick panicked: %v", r),
			}
		}
	}()
	return m.tick(ctx)
}

func (m *Monitor) tick(ctx context.Context) TickReport {
	r := m.store.Resolver()
	now := r.Now()

	m.store.RecordCheck(now)
	state := m.store.Snapshot()
	cfg := m.store.Config()

	if state.NextTrigger.IsZero() {
		// Seeding from one interval back keeps a window that is already open,
		// so a process started inside it still sends today.
		state.NextTrigger = schedule.NextTrigger(now.Add(-m.cfg.CheckInterval), cfg, r)
		m.store.SetNextTrigger(state.NextTrigger)
		metrics.SetNextTrigger(state.NextTrigger)
		m.logger.Info().
			Time("next_trigger", state.NextTrigger).
			Str("target", cfg.String()).
			Msg("schedule initialized")
	}

	dateKey := schedule.DateKey(state.NextTrigger, cfg, r)
	rep := TickReport{Outcome: OutcomeWaiting, At: now, DateKey: dateKey, NextTrigger: state.NextTrigger}

	switch {
	case schedule.InWindow(now, state.NextTrigger, m.cfg.CheckInterval):
		switch {
		case dateKey.Equal(state.LastSentDate):
			rep.Outcome = OutcomeAlreadySent
		case m.cfg.Excluded.Contains(dateKey.Weekday()):
			rep.Outcome = OutcomeSkippedWeekday
			m.logger.Info().
				Stringer("date", dateKey).
				Str("weekday", dateKey.Weekday().String()).
				Msg("excluded weekday, skipping report")
		default:
			rep.CycleID = logging.GenerateCorrelationID()
			cycleCtx := logging.ContextWithCorrelationID(ctx, rep.CycleID)
			rep.Outcome, rep.Err = m.runCycle(cycleCtx, dateKey)
		}

		rep.NextTrigger = m.advance(r.Now(), "window visited")

	case now.After(state.NextTrigger.Add(m.cfg.CatchUpSlack)):
		rep.Outcome = OutcomeCaughtUp
		m.logger.Warn().
			Time("stale_trigger", state.NextTrigger).
			Time("now", now).
			Msg("trigger window missed, recomputing")
		rep.NextTrigger = m.advance(now, "catch-up")
	}

	return rep
}

// advance recomputes the next trigger from the current config.
func (m *Monitor) advance(now time.Time, reason string) time.Time {
	next := schedule.NextTrigger(now, m.store.Config(), m.store.Resolver())
	m.store.SetNextTrigger(next)
	metrics.SetNextTrigger(next)
	m.logger.Info().Time("next_trigger", next).Str("reason", reason).Msg("next trigger scheduled")
	return next
}

// runCycle produces and delivers one report. The artifact is released on
// every path.
func (m *Monitor) runCycle(ctx context.Context, day schedule.Date) (Outcome, error) {
	m.mu.Lock()
	m.phase = PhaseChecking
	m.mu.Unlock()

	log := m.logger.With().
		Str("correlation_id", logging.CorrelationIDFromContext(ctx)).
		Stringer("date", day).
		Logger()
	log.Info().Msg("trigger window reached, starting report cycle")

	if err := m.sender.Ready(); err != nil {
		log.Error().Err(err).Msg("delivery not configured, skipping cycle")
		metrics.RecordCycle(string(OutcomeNotConfigured))
		return OutcomeNotConfigured, err
	}

	artifact, err := m.producer.Produce(ctx)
	if err == nil && artifact == nil {
		err = errors.New("producer returned no artifact")
	}
	if err != nil {
		log.Error().Err(err).Msg("report production failed")
		metrics.RecordCycle(string(OutcomeProduceFailed))
		return OutcomeProduceFailed, err
	}
	defer artifact.Release()

	err = m.sender.Send(ctx, &delivery.Attachment{
		Data:        artifact.Image,
		Filename:    artifact.Filename,
		ContentType: artifact.ContentType,
		Caption:     artifact.Caption,
	})
	if err != nil {
		outcome := OutcomeDeliveryFailed
		if errors.Is(err, delivery.ErrNotConfigured) {
			outcome = OutcomeNotConfigured
		}
		log.Error().Err(err).Msg("report delivery failed")
		metrics.RecordCycle(string(outcome))
		return outcome, err
	}

	m.store.MarkSent(day)
	metrics.SetLastSent(time.Now())
	metrics.RecordCycle(string(OutcomeSent))
	log.Info().
		Float64("vix", artifact.Summary.VIX).
		Str("band", string(artifact.Summary.Band)).
		Int("bytes", artifact.Size()).
		Msg("report sent")
	return OutcomeSent, nil
}
