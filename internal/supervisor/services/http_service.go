// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPServer is the lifecycle subset of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// ServerFactory builds a fresh server for each run. An *http.Server cannot
// be reused after Shutdown, so a restarted service needs a new one.
type ServerFactory func() HTTPServer

// HTTPServerService runs an HTTP server as a supervised service.
//
//	svc := services.NewHTTPServerService(func() services.HTTPServer {
//		return &http.Server{Addr: ":8000", Handler: router.Setup()}
//	}, 10*time.Second, logger)
//	tree.AddAPIService(svc)
type HTTPServerService struct {
	newServer       ServerFactory
	shutdownTimeout time.Duration
	name            string
	logger          zerolog.Logger
}

// NewHTTPServerService creates the service. shutdownTimeout bounds how long
// in-flight requests may drain on shutdown; non-positive means 10s.
func NewHTTPServerService(newServer ServerFactory, shutdownTimeout time.Duration, logger zerolog.Logger) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		newServer:       newServer,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
		logger:          logger.With().Str("component", "http-server").Logger(),
	}
}

// Serve implements suture.Service. It returns ctx.Err() after a graceful
// shutdown, or the listener error if the server stops on its own, which makes
// the supervisor restart it.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	server := h.newServer()

	addr := ""
	if s, ok := server.(*http.Server); ok {
		addr = s.Addr
	}
	h.logger.Info().Str("addr", addr).Msg("http server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			h.logger.Error().Err(err).Str("addr", addr).Msg("http server failed")
			return fmt.Errorf("http server failed: %w", err)
		}
		return errors.New("http server stopped unexpectedly")

	case <-ctx.Done():
		// ctx is already canceled; drain on a fresh deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		h.logger.Info().Msg("http server stopped")
		return ctx.Err()
	}
}

// String implements fmt.Stringer for suture logging.
func (h *HTTPServerService) String() string {
	return h.name
}
