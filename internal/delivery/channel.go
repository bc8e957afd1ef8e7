// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

// Package delivery posts the report image to the configured messaging
// channel.
//
// Exactly one Channel is active per process:
//   - Telegram: Bot API sendPhoto as a multipart upload (default)
//   - Discord: channel message with a file attachment via discordgo
//
// A Channel makes one attempt per Send and describes the outcome in a
// Result. Sender wraps a Channel with the shared retry primitive, stopping
// early on non-transient results and honouring server rate-limit hints.
//
// Credentials are never logged.
package delivery

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// Placeholder credentials shipped in sample deployments. They count as unset.
const (
	PlaceholderBotToken = "YOUR_BOT_TOKEN_HERE"
	PlaceholderChatID   = "-1000000000"
)

// ErrNotConfigured is returned when the active channel has no usable
// credentials. Placeholder values count as missing.
var ErrNotConfigured = errors.New("delivery channel not configured")

// Attachment is the payload of one send.
type Attachment struct {
	Data        []byte
	Filename    string
	ContentType string
	Caption     string
}

// Channel is one messaging destination.
type Channel interface {
	// Name returns the channel identifier (telegram, discord).
	Name() string

	// Ready returns ErrNotConfigured when credentials are missing.
	Ready() error

	// Send makes a single delivery attempt. A non-nil error means the
	// attempt could not be described by a Result at all.
	Send(ctx context.Context, att *Attachment) (*Result, error)
}

// Result is the outcome of one delivery attempt.
type Result struct {
	// Success indicates the message was accepted.
	Success bool

	// ErrorCode is a machine-readable error code.
	ErrorCode string

	// ErrorMessage contains error details if failed.
	ErrorMessage string

	// IsTransient indicates the attempt may succeed if repeated.
	IsTransient bool

	// RetryAfter is the server's requested wait, if any.
	RetryAfter *time.Duration

	// ExternalID is the message ID assigned by the service.
	ExternalID string

	// ResponseCode is the HTTP status code, when there was a response.
	ResponseCode int

	// DeliveredAt is set on success.
	DeliveredAt *time.Time
}

// Error codes for delivery failures.
const (
	ErrorCodeInvalidConfig     = "INVALID_CONFIG"
	ErrorCodeInvalidRequest    = "INVALID_REQUEST"
	ErrorCodeConnectionFailed  = "CONNECTION_FAILED"
	ErrorCodeAuthFailed        = "AUTH_FAILED"
	ErrorCodeForbidden         = "FORBIDDEN"
	ErrorCodeRateLimited       = "RATE_LIMITED"
	ErrorCodeContentTooLarge   = "CONTENT_TOO_LARGE"
	ErrorCodeRecipientNotFound = "RECIPIENT_NOT_FOUND"
	ErrorCodeRejected          = "REJECTED"
	ErrorCodeServerError       = "SERVER_ERROR"
	ErrorCodeTimeout           = "TIMEOUT"
	ErrorCodeUnknown           = "UNKNOWN"
)

// isTransientCode reports whether an error code is worth retrying.
func isTransientCode(code string) bool {
	switch code {
	case ErrorCodeConnectionFailed, ErrorCodeTimeout, ErrorCodeRateLimited, ErrorCodeServerError:
		return true
	default:
		return false
	}
}

// classifyTransportError classifies a failed round trip.
func classifyTransportError(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrorCodeTimeout
	case strings.Contains(err.Error(), "timeout"):
		return ErrorCodeTimeout
	default:
		// Refused connections, DNS failures and resets are all worth another try.
		return ErrorCodeConnectionFailed
	}
}

// classifyStatusCode classifies an HTTP status without a parsed API error.
func classifyStatusCode(code int) string {
	switch {
	case code == 401:
		return ErrorCodeAuthFailed
	case code == 403:
		return ErrorCodeForbidden
	case code == 404:
		return ErrorCodeRecipientNotFound
	case code == 413:
		return ErrorCodeContentTooLarge
	case code == 429:
		return ErrorCodeRateLimited
	case code >= 500:
		return ErrorCodeServerError
	case code >= 400:
		return ErrorCodeInvalidRequest
	default:
		return ErrorCodeUnknown
	}
}

// truncateRunes cuts s to at most n runes, ending with an ellipsis when cut.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// isUnset reports whether a credential is empty or still a placeholder.
func isUnset(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == PlaceholderBotToken || v == PlaceholderChatID
}
