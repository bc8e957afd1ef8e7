// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/vixwatch/internal/metrics"
	"github.com/tomtom215/vixwatch/internal/retry"
)

// FailedError describes the last unsuccessful Result.
type FailedError struct {
	Channel string
	Result  *Result
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%s delivery failed: %s: %s", e.Channel, e.Result.ErrorCode, e.Result.ErrorMessage)
}

// Sender delivers attachments through one Channel with bounded retries.
type Sender struct {
	channel Channel
	retrier *retry.Retrier
	logger  zerolog.Logger
}

// NewSender creates a Sender.
func NewSender(channel Channel, policy retry.Policy, logger zerolog.Logger) *Sender {
	return &Sender{
		channel: channel,
		retrier: retry.New("deliver_"+channel.Name(), policy, logger),
		logger:  logger.With().Str("component", "delivery").Str("channel", channel.Name()).Logger(),
	}
}

// WithSleep replaces the backoff sleep. Tests use it to skip waiting.
func (s *Sender) WithSleep(fn retry.SleepFunc) *Sender {
	s.retrier.WithSleep(fn)
	return s
}

// Channel returns the wrapped channel name.
func (s *Sender) Channel() string {
	return s.channel.Name()
}

// Ready reports whether the channel has usable credentials.
func (s *Sender) Ready() error {
	return s.channel.Ready()
}

// Send delivers att. It returns nil on success, ErrNotConfigured (wrapped)
// when credentials are missing, a *FailedError for a rejected message, or a
// *retry.ExhaustedError when every attempt failed transiently.
func (s *Sender) Send(ctx context.Context, att *Attachment) error {
	name := s.channel.Name()

	if err := s.channel.Ready(); err != nil {
		metrics.RecordDelivery(name, "not_configured")
		return err
	}

	var externalID string
	err := s.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		result, err := s.channel.Send(ctx, att)
		if err != nil {
			if errors.Is(err, ErrNotConfigured) {
				return retry.Permanent(err)
			}
			return err
		}
		if result.Success {
			externalID = result.ExternalID
			return nil
		}

		s.logger.Warn().
			Int("attempt", attempt).
			Str("error_code", result.ErrorCode).
			Int("response_code", result.ResponseCode).
			Bool("transient", result.IsTransient).
			Msg("delivery attempt failed")

		failure := &FailedError{Channel: name, Result: result}
		if !result.IsTransient {
			return retry.Permanent(failure)
		}
		if result.RetryAfter != nil {
			return retry.WithRetryAfter(failure, *result.RetryAfter)
		}
		return failure
	})

	switch {
	case err == nil:
		metrics.RecordDelivery(name, "success")
		s.logger.Info().Str("message_id", externalID).Msg("report delivered")
		return nil
	case errors.Is(err, ErrNotConfigured):
		metrics.RecordDelivery(name, "not_configured")
	case retry.IsExhausted(err):
		metrics.RecordDelivery(name, "exhausted")
	case ctx.Err() != nil:
		metrics.RecordDelivery(name, "canceled")
	default:
		metrics.RecordDelivery(name, "rejected")
	}
	return err
}
