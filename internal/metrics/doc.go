// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

/*
Package metrics provides Prometheus instrumentation for the scheduler.

All collectors are registered with the default registry through promauto and
exposed at /metrics by the API router:

	curl http://localhost:8000/metrics

# Available Metrics

Monitor:
  - vixwatch_monitor_ticks_total{outcome}
  - vixwatch_monitor_tick_duration_seconds
  - vixwatch_cycles_total{result}
  - vixwatch_last_sent_timestamp_seconds
  - vixwatch_next_trigger_timestamp_seconds

Report and delivery:
  - vixwatch_retry_attempts_total{operation,outcome}
  - vixwatch_market_fetch_duration_seconds{symbol}
  - vixwatch_market_fetch_errors_total{symbol}
  - vixwatch_chart_render_duration_seconds
  - vixwatch_chart_queue_depth
  - vixwatch_delivery_total{channel,result}

Liveness and resilience:
  - vixwatch_liveness_probes_total{result}
  - vixwatch_circuit_breaker_state{name} (0=closed, 1=half-open, 2=open)
  - vixwatch_circuit_breaker_requests_total{name,result}
  - vixwatch_circuit_breaker_state_transitions_total{name,from_state,to_state}

HTTP:
  - vixwatch_api_requests_total{method,endpoint,status_code}
  - vixwatch_api_request_duration_seconds{method,endpoint}
  - vixwatch_schedule_updates_total

# Usage

Record helpers wrap the collectors so callers never build label slices:

	start := time.Now()
	outcome := m.Tick(ctx)
	metrics.RecordTick(string(outcome), time.Since(start))
*/
package metrics
