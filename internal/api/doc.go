// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

/*
Package api provides the HTTP surface of VIXWatch.

Routes:

  - GET  /                   HTML status page
  - HEAD /                   empty 200 for uptime checkers
  - POST /set-time           change the target time (form fields hour, minute)
  - GET  /api/v1/status      JSON status snapshot
  - GET  /api/v1/health/live liveness
  - GET  /metrics            Prometheus exposition

Every request gets an X-Request-ID and a correlation ID in its logging
context. /set-time is rate limited per client IP with httprate; /api/v1 sits
behind CORS and its own per-IP limit.

A successful /set-time replaces the schedule configuration and recomputes the
next trigger in one store update, then redirects to /. Invalid input leaves
the schedule untouched and answers 400.

Usage:

	handler, err := api.NewHandler(store, mon, sender.Ready)
	if err != nil {
		return err
	}
	router := api.NewRouter(handler, api.DefaultChiMiddlewareConfig())
	srv := &http.Server{Addr: addr, Handler: router.Setup()}
*/
package api
