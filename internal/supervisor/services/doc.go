// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

// Package services adapts components with a blocking ListenAndServe lifecycle
// to suture's context-aware Serve pattern.
//
// The monitor, the liveness prober and the chart render pool implement
// suture.Service directly; only the HTTP server needs a wrapper.
package services
