// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Monitor Loop Metrics
	MonitorTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vixwatch_monitor_ticks_total",
			Help: "Total number of monitor ticks by outcome",
		},
		[]string{"outcome"}, // waiting, already_sent, skipped_weekday, sent, produce_failed, delivery_failed, not_configured, caught_up, panicked
	)

	MonitorTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vixwatch_monitor_tick_duration_seconds",
			Help:    "Duration of monitor ticks in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 5, 15, 30, 60, 120, 300}, // a sending tick includes fetch, render and send
		},
	)

	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vixwatch_cycles_total",
			Help: "Total number of report cycles by result",
		},
		[]string{"result"},
	)

	LastSentTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vixwatch_last_sent_timestamp_seconds",
			Help: "Unix timestamp of the last successful report delivery",
		},
	)

	NextTriggerTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vixwatch_next_trigger_timestamp_seconds",
			Help: "Unix timestamp of the pending trigger instant",
		},
	)

	// Retry Metrics
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vixwatch_retry_attempts_total",
			Help: "Total number of retried operation attempts by outcome",
		},
		[]string{"operation", "outcome"}, // outcome: success, failure, permanent, canceled
	)

	// Report Producer Metrics
	MarketFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vixwatch_market_fetch_duration_seconds",
			Help:    "Duration of market data fetches in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"symbol"},
	)

	MarketCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vixwatch_market_cache_requests_total",
			Help: "Market series cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	MarketFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vixwatch_market_fetch_errors_total",
			Help: "Total number of failed market data fetches",
		},
		[]string{"symbol"},
	)

	ChartRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vixwatch_chart_render_duration_seconds",
			Help:    "Duration of chart rendering in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	ChartQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vixwatch_chart_queue_depth",
			Help: "Current number of render jobs waiting for a worker",
		},
	)

	// Delivery Metrics
	DeliveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vixwatch_delivery_total",
			Help: "Total number of delivery attempts by channel and result",
		},
		[]string{"channel", "result"}, // result: success, transient, permanent, error
	)

	// Liveness Metrics
	LivenessProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vixwatch_liveness_probes_total",
			Help: "Total number of self-ping probes by result",
		},
		[]string{"result"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vixwatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vixwatch_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vixwatch_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vixwatch_api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vixwatch_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	ScheduleUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vixwatch_schedule_updates_total",
			Help: "Total number of accepted /set-time reconfigurations",
		},
	)
)

// RecordTick records one monitor tick.
func RecordTick(outcome string, duration time.Duration) {
	MonitorTicks.WithLabelValues(outcome).Inc()
	MonitorTickDuration.Observe(duration.Seconds())
}

// RecordCycle records the result of a report cycle.
func RecordCycle(result string) {
	CyclesTotal.WithLabelValues(result).Inc()
}

// SetLastSent updates the last successful delivery timestamp.
func SetLastSent(t time.Time) {
	LastSentTimestamp.Set(float64(t.Unix()))
}

// SetNextTrigger updates the pending trigger timestamp.
func SetNextTrigger(t time.Time) {
	if t.IsZero() {
		return
	}
	NextTriggerTimestamp.Set(float64(t.Unix()))
}

// RecordRetryAttempt records the outcome of one attempt of a retried operation.
func RecordRetryAttempt(operation, outcome string) {
	RetryAttempts.WithLabelValues(operation, outcome).Inc()
}

// RecordMarketFetch records a market data fetch for symbol.
func RecordMarketFetch(symbol string, duration time.Duration, err error) {
	MarketFetchDuration.WithLabelValues(symbol).Observe(duration.Seconds())
	if err != nil {
		MarketFetchErrors.WithLabelValues(symbol).Inc()
	}
}

// RecordChartRender records chart render latency.
func RecordChartRender(duration time.Duration) {
	ChartRenderDuration.Observe(duration.Seconds())
}

// RecordDelivery records one delivery attempt.
func RecordDelivery(channel, result string) {
	DeliveryTotal.WithLabelValues(channel, result).Inc()
}

// RecordLivenessProbe records one self-ping.
func RecordLivenessProbe(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	LivenessProbes.WithLabelValues(result).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
