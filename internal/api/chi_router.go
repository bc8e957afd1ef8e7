// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. A nil middleware config uses the defaults.
func NewRouter(handler *Handler, config *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(config),
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(SecurityHeaders())
	r.Use(PrometheusMetrics)
	r.Use(RequestLogger)

	// Status page and schedule control
	r.Get("/", router.handler.Index)
	r.Head("/", router.handler.IndexHead)
	r.With(router.chiMiddleware.RateLimitSetTime()).Post("/set-time", router.handler.SetTime)

	// JSON API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.CORS())
		r.Use(router.chiMiddleware.RateLimitAPI())
		r.Get("/status", router.handler.Status)
		r.Get("/health/live", router.handler.HealthLive)
		r.NotFound(router.handler.NotFound)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
