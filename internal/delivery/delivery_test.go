// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/vixwatch/internal/retry"
)

func testAttachment() *Attachment {
	return &Attachment{
		Data:        []byte{0x89, 'P', 'N', 'G', 1, 2, 3},
		Filename:    "vix_plot.png",
		ContentType: "image/png",
		Caption:     "VIX 17.20 (neutral)",
	}
}

func newTestTelegram(t *testing.T, h http.HandlerFunc) *TelegramChannel {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewTelegramChannel(TelegramConfig{
		BotToken: "123:abc",
		ChatID:   "-1001234",
		BaseURL:  srv.URL,
		Timeout:  2 * time.Second,
	})
}

func TestTelegram_SendPhotoMultipart(t *testing.T) {
	var gotPath, gotChat, gotCaption, gotFilename, gotType string
	var gotPhoto []byte

	c := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotChat = r.FormValue("chat_id")
		gotCaption = r.FormValue("caption")

		f, hdr, err := r.FormFile("photo")
		require.NoError(t, err)
		defer f.Close()
		gotFilename = hdr.Filename
		gotType = hdr.Header.Get("Content-Type")
		gotPhoto, _ = io.ReadAll(f)

		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	})

	res, err := c.Send(context.Background(), testAttachment())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "42", res.ExternalID)
	assert.Equal(t, "/bot123:abc/sendPhoto", gotPath)
	assert.Equal(t, "-1001234", gotChat)
	assert.Equal(t, "VIX 17.20 (neutral)", gotCaption)
	assert.Equal(t, "vix_plot.png", gotFilename)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, testAttachment().Data, gotPhoto)
}

func TestTelegram_CaptionTruncated(t *testing.T) {
	var gotCaption string
	c := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotCaption = r.FormValue("caption")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})

	att := testAttachment()
	att.Caption = strings.Repeat("가", 1500)
	_, err := c.Send(context.Background(), att)
	require.NoError(t, err)

	assert.Equal(t, TelegramCaptionLimit, utf8.RuneCountInString(gotCaption))
	assert.True(t, strings.HasSuffix(gotCaption, "..."))
}

func TestTelegram_Classification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantCode      string
		wantTransient bool
		wantRetry     time.Duration
	}{
		{"unauthorized", 401, `{"ok":false,"error_code":401,"description":"Unauthorized"}`, ErrorCodeAuthFailed, false, 0},
		{"chat not found", 400, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`, ErrorCodeRecipientNotFound, false, 0},
		{"bad request", 400, `{"ok":false,"error_code":400,"description":"Bad Request: PHOTO_INVALID_DIMENSIONS"}`, ErrorCodeInvalidRequest, false, 0},
		{"forbidden", 403, `{"ok":false,"error_code":403,"description":"Forbidden: bot was kicked"}`, ErrorCodeForbidden, false, 0},
		{"rate limited", 429, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 9","parameters":{"retry_after":9}}`, ErrorCodeRateLimited, true, 9 * time.Second},
		{"server error", 502, `{"ok":false,"error_code":502,"description":"Bad Gateway"}`, ErrorCodeServerError, true, 0},
		{"proxy page", 503, `<html>unavailable</html>`, ErrorCodeServerError, true, 0},
		{"ok false on 200", 200, `{"ok":false,"description":"message rejected"}`, ErrorCodeRejected, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestTelegram(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			res, err := c.Send(context.Background(), testAttachment())
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantCode, res.ErrorCode)
			assert.Equal(t, tt.wantTransient, res.IsTransient)
			assert.Equal(t, tt.status, res.ResponseCode)
			if tt.wantRetry > 0 {
				require.NotNil(t, res.RetryAfter)
				assert.Equal(t, tt.wantRetry, *res.RetryAfter)
			}
		})
	}
}

func TestTelegram_NetworkErrorIsTransientAndRedacted(t *testing.T) {
	c := NewTelegramChannel(TelegramConfig{
		BotToken: "999:secret-token",
		ChatID:   "-1001",
		BaseURL:  "http://127.0.0.1:1",
		Timeout:  time.Second,
	})

	res, err := c.Send(context.Background(), testAttachment())
	require.NoError(t, err)
	assert.True(t, res.IsTransient)
	assert.NotContains(t, res.ErrorMessage, "secret-token")
}

func TestTelegram_Ready(t *testing.T) {
	tests := []struct {
		name  string
		token string
		chat  string
		ready bool
	}{
		{"configured", "1:a", "-100", true},
		{"missing token", "", "-100", false},
		{"placeholder token", PlaceholderBotToken, "-100", false},
		{"placeholder chat", "1:a", PlaceholderChatID, false},
		{"blank chat", "1:a", "  ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTelegramChannel(TelegramConfig{BotToken: tt.token, ChatID: tt.chat}).Ready()
			if tt.ready {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrNotConfigured)
			}
		})
	}
}

type fakeSession struct {
	err  error
	sent *discordgo.MessageSend
}

func (f *fakeSession) ChannelMessageSendComplex(_ string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = data
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Message{ID: "m-1"}, nil
}

func TestDiscord_Send(t *testing.T) {
	fake := &fakeSession{}
	c := &DiscordChannel{session: fake, token: "tok", channelID: "chan"}

	res, err := c.Send(context.Background(), testAttachment())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "m-1", res.ExternalID)
	require.Len(t, fake.sent.Files, 1)
	assert.Equal(t, "vix_plot.png", fake.sent.Files[0].Name)
	assert.Equal(t, "VIX 17.20 (neutral)", fake.sent.Content)
}

func TestDiscord_Classification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantCode      string
		wantTransient bool
	}{
		{
			name: "rate limited",
			err: &discordgo.RateLimitError{RateLimit: &discordgo.RateLimit{
				TooManyRequests: &discordgo.TooManyRequests{RetryAfter: 3 * time.Second},
			}},
			wantCode:      ErrorCodeRateLimited,
			wantTransient: true,
		},
		{
			name: "missing permissions",
			err: &discordgo.RESTError{
				Response: &http.Response{StatusCode: 403},
				Message:  &discordgo.APIErrorMessage{Code: 50013, Message: "Missing Permissions"},
			},
			wantCode: ErrorCodeForbidden,
		},
		{
			name:          "server error",
			err:           &discordgo.RESTError{Response: &http.Response{StatusCode: 500}},
			wantCode:      ErrorCodeServerError,
			wantTransient: true,
		},
		{
			name:          "transport",
			err:           errors.New("dial tcp: connection refused"),
			wantCode:      ErrorCodeConnectionFailed,
			wantTransient: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &DiscordChannel{session: &fakeSession{err: tt.err}, token: "tok", channelID: "chan"}
			res, err := c.Send(context.Background(), testAttachment())
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantCode, res.ErrorCode)
			assert.Equal(t, tt.wantTransient, res.IsTransient)
		})
	}
}

func TestDiscord_ReadyWithoutToken(t *testing.T) {
	c, err := NewDiscordChannel(DiscordConfig{ChannelID: "chan"})
	require.NoError(t, err)
	assert.ErrorIs(t, c.Ready(), ErrNotConfigured)
	_, err = c.Send(context.Background(), testAttachment())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

// scriptedChannel returns one queued result per Send.
type scriptedChannel struct {
	ready   error
	results []*Result
	calls   int
}

func (c *scriptedChannel) Name() string { return "scripted" }
func (c *scriptedChannel) Ready() error { return c.ready }
func (c *scriptedChannel) Send(context.Context, *Attachment) (*Result, error) {
	r := c.results[c.calls]
	c.calls++
	return r, nil
}

func newTestSender(ch Channel, attempts int) (*Sender, *[]time.Duration) {
	var delays []time.Duration
	s := NewSender(ch, retry.Policy{MaxAttempts: attempts, BaseDelay: time.Second, Multiplier: 2}, zerolog.Nop())
	s.WithSleep(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})
	return s, &delays
}

func TestSender_RetriesTransientThenSucceeds(t *testing.T) {
	ch := &scriptedChannel{results: []*Result{
		{ErrorCode: ErrorCodeServerError, IsTransient: true},
		{Success: true, ExternalID: "7"},
	}}
	s, delays := newTestSender(ch, 3)

	require.NoError(t, s.Send(context.Background(), testAttachment()))
	assert.Equal(t, 2, ch.calls)
	assert.Equal(t, []time.Duration{time.Second}, *delays)
}

func TestSender_NonTransientStops(t *testing.T) {
	ch := &scriptedChannel{results: []*Result{
		{ErrorCode: ErrorCodeAuthFailed, ErrorMessage: "Unauthorized"},
	}}
	s, _ := newTestSender(ch, 3)

	err := s.Send(context.Background(), testAttachment())
	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, ErrorCodeAuthFailed, failed.Result.ErrorCode)
	assert.Equal(t, 1, ch.calls)
	assert.False(t, retry.IsExhausted(err))
}

func TestSender_HonoursRetryAfter(t *testing.T) {
	wait := 9 * time.Second
	ch := &scriptedChannel{results: []*Result{
		{ErrorCode: ErrorCodeRateLimited, IsTransient: true, RetryAfter: &wait},
		{ErrorCode: ErrorCodeRateLimited, IsTransient: true, RetryAfter: &wait},
		{ErrorCode: ErrorCodeRateLimited, IsTransient: true, RetryAfter: &wait},
	}}
	s, delays := newTestSender(ch, 3)

	err := s.Send(context.Background(), testAttachment())
	assert.True(t, retry.IsExhausted(err))
	assert.Equal(t, 3, ch.calls)
	assert.Equal(t, []time.Duration{wait, wait}, *delays)
}

func TestSender_NotConfiguredShortCircuits(t *testing.T) {
	ch := &scriptedChannel{ready: ErrNotConfigured}
	s, _ := newTestSender(ch, 3)

	err := s.Send(context.Background(), testAttachment())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, 0, ch.calls)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab...", truncateRunes("abcdefgh", 5))
	assert.Equal(t, "ab", truncateRunes("abcdefgh", 2))
	assert.Equal(t, "abc", truncateRunes("abc", 0))
}
