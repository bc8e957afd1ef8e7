// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/vixwatch/internal/logging"
	"github.com/tomtom215/vixwatch/internal/metrics"
	"github.com/tomtom215/vixwatch/internal/monitor"
	"github.com/tomtom215/vixwatch/internal/schedule"
	"github.com/tomtom215/vixwatch/internal/validation"
)

//go:embed templates/status.html.tmpl
var templateFS embed.FS

// MonitorView is the part of the monitor the handlers read.
// *monitor.Monitor satisfies it.
type MonitorView interface {
	Status() monitor.Status
	Config() monitor.Config
}

// DeliveryCheck reports whether delivery credentials are usable.
type DeliveryCheck func() error

// Handler serves the status surface and the reconfiguration endpoint.
type Handler struct {
	store     *schedule.Store
	monitor   MonitorView
	ready     DeliveryCheck
	startTime time.Time
	page      *template.Template
}

// NewHandler creates a Handler.
func NewHandler(store *schedule.Store, mon MonitorView, ready DeliveryCheck) (*Handler, error) {
	page, err := template.New("status.html.tmpl").Funcs(template.FuncMap{
		"fmtTime": formatTime,
		"join":    strings.Join,
	}).ParseFS(templateFS, "templates/status.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse status template: %w", err)
	}
	if ready == nil {
		ready = func() error { return nil }
	}
	return &Handler{
		store:     store,
		monitor:   mon,
		ready:     ready,
		startTime: time.Now(),
		page:      page,
	}, nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05 MST")
}

// StatusView is the status snapshot served as HTML and JSON.
type StatusView struct {
	Status               string          `json:"status"`
	Message              string          `json:"message"`
	Target               string          `json:"target"`
	Schedule             schedule.Config `json:"schedule"`
	EffectiveHour        int             `json:"effective_hour"`
	Timezone             string          `json:"timezone"`
	ReferenceTimezone    string          `json:"reference_timezone"`
	LastSentDate         schedule.Date   `json:"last_sent_date"`
	NeverSent            bool            `json:"never_sent"`
	LastCheck            *time.Time      `json:"last_check"`
	NextTrigger          *time.Time      `json:"next_trigger"`
	LastLivenessProbe    *time.Time      `json:"last_liveness_probe"`
	Phase                monitor.Phase   `json:"phase"`
	LastOutcome          monitor.Outcome `json:"last_outcome,omitempty"`
	LastError            string          `json:"last_error,omitempty"`
	CheckIntervalSeconds float64         `json:"check_interval_seconds"`
	ExcludedWeekdays     []string        `json:"excluded_weekdays"`
	DeliveryChannel      string          `json:"delivery_channel"`
	DeliveryReady        bool            `json:"delivery_ready"`
	UptimeSeconds        float64         `json:"uptime_seconds"`
}

// snapshot assembles a StatusView from the store and monitor.
func (h *Handler) snapshot() StatusView {
	r := h.store.Resolver()
	state := h.store.Snapshot()
	cfg := h.store.Config()
	mon := h.monitor.Status()
	monCfg := h.monitor.Config()
	now := r.Now()

	v := StatusView{
		Status:               "running",
		Target:               cfg.String(),
		Schedule:             cfg,
		EffectiveHour:        r.EffectiveHour(now, cfg.Hour, cfg.Minute, cfg.ObservesDSTCorrection),
		Timezone:             r.Location().String(),
		ReferenceTimezone:    r.Reference().String(),
		LastSentDate:         state.LastSentDate,
		NeverSent:            state.LastSentDate.Equal(schedule.SentinelDate),
		LastCheck:            localTime(state.LastCheck, r.Location()),
		NextTrigger:          localTime(state.NextTrigger, r.Location()),
		Phase:                mon.Phase,
		LastOutcome:          mon.LastOutcome,
		LastError:            mon.LastError,
		CheckIntervalSeconds: monCfg.CheckInterval.Seconds(),
		ExcludedWeekdays:     []string{},
		DeliveryChannel:      mon.Channel,
		DeliveryReady:        h.ready() == nil,
		UptimeSeconds:        time.Since(h.startTime).Seconds(),
	}
	if state.LastLivenessProbe != nil {
		v.LastLivenessProbe = localTime(*state.LastLivenessProbe, r.Location())
	}
	for _, d := range monCfg.Excluded.Days() {
		v.ExcludedWeekdays = append(v.ExcludedWeekdays, d.String())
	}

	v.Message = fmt.Sprintf("VIX scheduler is active in the background (%s check).", monCfg.CheckInterval)
	if !v.DeliveryReady {
		v.Message = "VIX scheduler is running, but delivery credentials are missing; reports will not be sent."
	}
	return v
}

func localTime(t time.Time, loc *time.Location) *time.Time {
	if t.IsZero() {
		return nil
	}
	lt := t.In(loc)
	return &lt
}

// statusPage is the template data for GET /.
type statusPage struct {
	Status StatusView
	Error  string
}

// Index renders the HTML status page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, "")
}

// IndexHead answers HEAD / for uptime checkers with an empty 200.
func (h *Handler) IndexHead(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	var buf bytes.Buffer
	if err := h.page.Execute(&buf, statusPage{Status: h.snapshot(), Error: errMsg}); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to render status page")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// setTimeRequest is the POST /set-time form.
type setTimeRequest struct {
	Hour   int `form:"hour" validate:"min=0,max=23"`
	Minute int `form:"minute" validate:"min=0,max=59"`
}

// SetTime changes the target time and recomputes the next trigger. It
// redirects to / on success and answers 400 with the reason otherwise.
func (h *Handler) SetTime(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.badRequest(w, r, "could not parse form", nil)
		return
	}

	var req setTimeRequest
	var err error
	if req.Hour, err = formInt(r, "hour"); err != nil {
		h.badRequest(w, r, err.Error(), nil)
		return
	}
	if req.Minute, err = formInt(r, "minute"); err != nil {
		h.badRequest(w, r, err.Error(), nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		h.badRequest(w, r, verr.Error(), verr.Fields)
		return
	}

	cfg := h.store.Config()
	cfg.Hour, cfg.Minute = req.Hour, req.Minute
	next := h.store.UpdateConfig(cfg, h.store.Resolver().Now())
	metrics.ScheduleUpdates.Inc()
	metrics.SetNextTrigger(next)

	logging.Ctx(r.Context()).Info().
		Str("target", cfg.String()).
		Time("next_trigger", next).
		Msg("target time updated")

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func formInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.PostFormValue(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number", name)
	}
	return v, nil
}

// badRequest answers 400. Browsers get the status page with an error banner,
// JSON clients the error envelope, everyone else plain text.
func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, msg string, fields []validation.FieldError) {
	logging.Ctx(r.Context()).Warn().Str("reason", sanitizeLogValue(msg)).Msg("rejected schedule change")

	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "text/html"):
		h.renderPage(w, r, http.StatusBadRequest, msg)
	case strings.Contains(accept, "application/json"):
		respondJSON(w, r, http.StatusBadRequest, &APIResponse{
			Status: "error",
			Error:  &APIError{Code: "VALIDATION_ERROR", Message: msg, Fields: fields},
		})
	default:
		http.Error(w, msg, http.StatusBadRequest)
	}
}

// Status serves the status snapshot as JSON.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, &APIResponse{Status: "success", Data: h.snapshot()})
}

// NotFound answers unknown /api/v1 paths with the JSON error envelope.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusNotFound, "NOT_FOUND", "no such endpoint", nil)
}

// HealthLive is a liveness probe that never touches shared state.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, &APIResponse{
		Status: "ok",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
	})
}
