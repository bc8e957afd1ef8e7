// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// TelegramCaptionLimit is the Bot API limit for photo captions.
const TelegramCaptionLimit = 1024

// TelegramConfig configures a TelegramChannel.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Timeout  time.Duration
}

// TelegramChannel posts photos through the Telegram Bot API.
type TelegramChannel struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
}

// NewTelegramChannel creates a TelegramChannel.
func NewTelegramChannel(cfg TelegramConfig) *TelegramChannel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &TelegramChannel{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   strings.TrimSpace(cfg.BotToken),
		chatID:  strings.TrimSpace(cfg.ChatID),
	}
}

// Name returns the channel identifier.
func (c *TelegramChannel) Name() string {
	return "telegram"
}

// Ready reports whether both the bot token and chat ID are set.
func (c *TelegramChannel) Ready() error {
	if isUnset(c.token) {
		return fmt.Errorf("%w: TELEGRAM_BOT_TOKEN is missing", ErrNotConfigured)
	}
	if isUnset(c.chatID) {
		return fmt.Errorf("%w: TELEGRAM_TARGET_CHAT_ID is missing", ErrNotConfigured)
	}
	return nil
}

// telegramResponse is a Bot API response envelope.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Result      *struct {
		MessageID int64 `json:"message_id"`
	} `json:"result,omitempty"`
	Parameters *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// Send uploads att with sendPhoto.
func (c *TelegramChannel) Send(ctx context.Context, att *Attachment) (*Result, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}

	result := &Result{}

	body, contentType, err := c.buildForm(att)
	if err != nil {
		result.ErrorCode = ErrorCodeInvalidRequest
		result.ErrorMessage = fmt.Sprintf("failed to build multipart body: %v", err)
		return result, nil
	}

	// The token is part of the URL; never log it or return it in errors.
	endpoint := fmt.Sprintf("%s/bot%s/sendPhoto", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		result.ErrorCode = ErrorCodeInvalidConfig
		result.ErrorMessage = "failed to create request"
		return result, nil
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		result.ErrorCode = classifyTransportError(err)
		result.ErrorMessage = "failed to send photo: " + redact(err.Error(), c.token)
		result.IsTransient = isTransientCode(result.ErrorCode)
		return result, nil
	}
	defer resp.Body.Close()

	result.ResponseCode = resp.StatusCode

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		result.ErrorCode = ErrorCodeConnectionFailed
		result.ErrorMessage = fmt.Sprintf("failed to read response: %v", err)
		result.IsTransient = true
		return result, nil
	}

	var apiResp telegramResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		// No envelope (proxy error page, truncated body): fall back to status.
		result.ErrorCode = classifyStatusCode(resp.StatusCode)
		result.ErrorMessage = fmt.Sprintf("unexpected response (status %d)", resp.StatusCode)
		result.IsTransient = isTransientCode(result.ErrorCode)
		result.RetryAfter = retryAfterHeader(resp.Header.Get("Retry-After"))
		return result, nil
	}

	if apiResp.OK {
		now := time.Now()
		result.Success = true
		result.DeliveredAt = &now
		if apiResp.Result != nil {
			result.ExternalID = strconv.FormatInt(apiResp.Result.MessageID, 10)
		}
		return result, nil
	}

	code := apiResp.ErrorCode
	if code == 0 {
		code = resp.StatusCode
	}
	result.ErrorMessage = apiResp.Description
	result.ErrorCode = classifyTelegramError(code, apiResp.Description)
	result.IsTransient = isTransientCode(result.ErrorCode)

	if apiResp.Parameters != nil && apiResp.Parameters.RetryAfter > 0 {
		d := time.Duration(apiResp.Parameters.RetryAfter) * time.Second
		result.RetryAfter = &d
	} else {
		result.RetryAfter = retryAfterHeader(resp.Header.Get("Retry-After"))
	}

	return result, nil
}

// buildForm writes the chat_id, caption and photo fields.
func (c *TelegramChannel) buildForm(att *Attachment) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("chat_id", c.chatID); err != nil {
		return nil, "", err
	}
	if att.Caption != "" {
		if err := w.WriteField("caption", truncateRunes(att.Caption, TelegramCaptionLimit)); err != nil {
			return nil, "", err
		}
	}

	filename := att.Filename
	if filename == "" {
		filename = "report.png"
	}
	contentType := att.ContentType
	if contentType == "" {
		contentType = "image/png"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(att.Data); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// classifyTelegramError maps a Bot API error_code and description to an
// error code. A 200 with ok=false lands in the default branch as REJECTED.
func classifyTelegramError(code int, description string) string {
	desc := strings.ToLower(description)
	switch {
	case code == 401:
		return ErrorCodeAuthFailed
	case code == 400 && strings.Contains(desc, "chat not found"):
		return ErrorCodeRecipientNotFound
	case code == 400:
		return ErrorCodeInvalidRequest
	case code == 403:
		return ErrorCodeForbidden
	case code == 413:
		return ErrorCodeContentTooLarge
	case code == 429:
		return ErrorCodeRateLimited
	case code >= 500:
		return ErrorCodeServerError
	default:
		return ErrorCodeRejected
	}
}

func retryAfterHeader(v string) *time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return nil
	}
	d := time.Duration(secs) * time.Second
	return &d
}

// redact removes secret from s. url.Error messages include the request URL,
// which carries the bot token.
func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "<redacted>")
}
