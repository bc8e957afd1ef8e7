// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vixwatch/internal/clock"
	"github.com/tomtom215/vixwatch/internal/monitor"
	"github.com/tomtom215/vixwatch/internal/schedule"
)

type fakeMonitor struct {
	status monitor.Status
	cfg    monitor.Config
}

func (f *fakeMonitor) Status() monitor.Status { return f.status }
func (f *fakeMonitor) Config() monitor.Config { return f.cfg }

type testEnv struct {
	store   *schedule.Store
	handler *Handler
	server  http.Handler
	kst     *time.Location
}

func newTestEnv(t *testing.T, mwConfig *ChiMiddlewareConfig, ready DeliveryCheck) *testEnv {
	t.Helper()

	kst, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	now := time.Date(2026, 4, 8, 5, 0, 0, 0, kst)
	resolver, err := clock.LoadResolver("Asia/Seoul", "America/New_York", clock.Fixed(now))
	if err != nil {
		t.Fatalf("LoadResolver: %v", err)
	}

	store := schedule.NewStore(schedule.Config{Hour: 6, Minute: 0}, resolver)
	store.UpdateConfig(store.Config(), now)

	mon := &fakeMonitor{
		status: monitor.Status{Phase: monitor.PhaseWaiting, Channel: "telegram"},
		cfg: monitor.Config{
			CheckInterval: time.Minute,
			CatchUpSlack:  time.Hour,
			Excluded:      schedule.NewWeekdaySet(time.Sunday, time.Monday),
		},
	}

	h, err := NewHandler(store, mon, ready)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return &testEnv{
		store:   store,
		handler: h,
		server:  NewRouter(h, mwConfig).Setup(),
		kst:     kst,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func postSetTime(form url.Values, accept string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/set-time", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return req
}

func TestIndex_RendersStatusPage(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"06:00",
		"Asia/Seoul",
		"never",
		"2026-04-08 06:00:00 KST",
		"WAITING",
		"60s",
		"Sunday, Monday",
		"telegram",
		`action="/set-time"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("status page missing %q", want)
		}
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers not applied")
	}
}

func TestIndex_WarnsWhenDeliveryNotReady(t *testing.T) {
	env := newTestEnv(t, nil, func() error { return errors.New("no token") })

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), "delivery credentials are missing") {
		t.Error("expected missing-credentials message")
	}
}

func TestIndexHead_EmptyOK(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(httptest.NewRequest(http.MethodHead, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body length = %d, want 0", rec.Body.Len())
	}
}

func TestSetTime_UpdatesScheduleAndRedirects(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(postSetTime(url.Values{"hour": {"7"}, "minute": {"30"}}, ""))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body %q", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}

	cfg := env.store.Config()
	if cfg.Hour != 7 || cfg.Minute != 30 {
		t.Errorf("config = %s, want 07:30", cfg)
	}
	want := time.Date(2026, 4, 8, 7, 30, 0, 0, env.kst)
	if got := env.store.Snapshot().NextTrigger; !got.Equal(want) {
		t.Errorf("NextTrigger = %v, want %v", got, want)
	}
}

func TestSetTime_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		wantMsg string
	}{
		{"hour out of range", url.Values{"hour": {"24"}, "minute": {"0"}}, "hour"},
		{"negative minute", url.Values{"hour": {"6"}, "minute": {"-1"}}, "minute"},
		{"minute out of range", url.Values{"hour": {"6"}, "minute": {"60"}}, "minute"},
		{"not a number", url.Values{"hour": {"six"}, "minute": {"0"}}, "hour must be a whole number"},
		{"missing minute", url.Values{"hour": {"6"}}, "minute is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, nil)
			before := env.store.Snapshot().NextTrigger

			rec := env.do(postSetTime(tt.form, ""))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantMsg) {
				t.Errorf("body %q does not mention %q", rec.Body.String(), tt.wantMsg)
			}
			if cfg := env.store.Config(); cfg.Hour != 6 || cfg.Minute != 0 {
				t.Errorf("config changed to %s", cfg)
			}
			if got := env.store.Snapshot().NextTrigger; !got.Equal(before) {
				t.Errorf("NextTrigger changed to %v", got)
			}
		})
	}
}

func TestSetTime_NegotiatesErrorFormat(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	form := url.Values{"hour": {"25"}, "minute": {"0"}}

	rec := env.do(postSetTime(form, "text/html,application/xhtml+xml"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("html: status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `class="error"`) {
		t.Error("html: expected error banner on status page")
	}

	rec = env.do(postSetTime(form, "application/json"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("json: status = %d, want 400", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code   string `json:"code"`
			Fields []struct {
				Field string `json:"field"`
				Tag   string `json:"tag"`
			} `json:"fields"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "error" || resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("unexpected envelope %+v", resp)
	}
	if len(resp.Error.Fields) != 1 || resp.Error.Fields[0].Field != "hour" || resp.Error.Fields[0].Tag != "max" {
		t.Errorf("fields = %+v, want one max error on hour", resp.Error.Fields)
	}
}

func TestSetTime_RateLimited(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.SetTimeRateLimit = 2
	env := newTestEnv(t, cfg, nil)

	form := url.Values{"hour": {"7"}, "minute": {"0"}}
	for i := 0; i < 2; i++ {
		if rec := env.do(postSetTime(form, "")); rec.Code != http.StatusSeeOther {
			t.Fatalf("request %d: status = %d, want 303", i+1, rec.Code)
		}
	}
	if rec := env.do(postSetTime(form, "")); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestStatus_JSONSnapshot(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Status string                 `json:"status"`
		Data   map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	tests := []struct {
		key  string
		want interface{}
	}{
		{"status", "running"},
		{"target", "06:00"},
		{"last_sent_date", "1970-01-01"},
		{"never_sent", true},
		{"phase", "WAITING"},
		{"check_interval_seconds", 60.0},
		{"delivery_channel", "telegram"},
		{"delivery_ready", true},
		{"timezone", "Asia/Seoul"},
		{"reference_timezone", "America/New_York"},
		{"last_liveness_probe", nil},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := resp.Data[tt.key]; got != tt.want {
				t.Errorf("%s = %v (%T), want %v", tt.key, got, got, tt.want)
			}
		})
	}

	days, ok := resp.Data["excluded_weekdays"].([]interface{})
	if !ok || len(days) != 2 {
		t.Errorf("excluded_weekdays = %v", resp.Data["excluded_weekdays"])
	}
}

func TestStatus_ReportsLivenessProbe(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	probe := time.Date(2026, 4, 8, 4, 50, 0, 0, env.kst)
	env.store.RecordLivenessProbe(probe)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if !strings.Contains(rec.Body.String(), `"last_liveness_probe":"2026-04-08T04:50:00+09:00"`) {
		t.Errorf("liveness probe missing from %s", rec.Body.String())
	}
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAPI_UnknownPathIsJSON404(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"code":"NOT_FOUND"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	env.do(httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "vixwatch_api_requests_total") {
		t.Error("api request counter not exported")
	}
}

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"line\nbreak", `line\x0abreak`},
		{"tab\tand\x7f", `tab\x09and\x7f`},
	}
	for _, tt := range tests {
		if got := sanitizeLogValue(tt.in); got != tt.want {
			t.Errorf("sanitizeLogValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
