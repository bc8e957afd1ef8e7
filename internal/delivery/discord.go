// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// DiscordContentLimit is the message content limit.
const DiscordContentLimit = 2000

// DiscordConfig configures a DiscordChannel.
type DiscordConfig struct {
	BotToken  string
	ChannelID string
	Timeout   time.Duration
}

// discordSession is the subset of *discordgo.Session the channel uses.
type discordSession interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordChannel posts the report as a message attachment to one Discord
// channel through the REST API. No gateway connection is opened.
type DiscordChannel struct {
	session   discordSession
	token     string
	channelID string
}

// NewDiscordChannel creates a DiscordChannel. An empty token yields a channel
// whose Ready reports ErrNotConfigured.
func NewDiscordChannel(cfg DiscordConfig) (*DiscordChannel, error) {
	c := &DiscordChannel{
		token:     strings.TrimSpace(cfg.BotToken),
		channelID: strings.TrimSpace(cfg.ChannelID),
	}
	if isUnset(c.token) {
		return c, nil
	}

	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	// Rate limits are surfaced as results so the Sender owns the waiting.
	s.ShouldRetryOnRateLimit = false
	s.MaxRestRetries = 0
	if cfg.Timeout > 0 {
		s.Client.Timeout = cfg.Timeout
	}
	c.session = s
	return c, nil
}

// Name returns the channel identifier.
func (c *DiscordChannel) Name() string {
	return "discord"
}

// Ready reports whether the token and channel ID are set.
func (c *DiscordChannel) Ready() error {
	if isUnset(c.token) || c.session == nil {
		return fmt.Errorf("%w: DISCORD_BOT_TOKEN is missing", ErrNotConfigured)
	}
	if isUnset(c.channelID) {
		return fmt.Errorf("%w: DISCORD_CHANNEL_ID is missing", ErrNotConfigured)
	}
	return nil
}

// Send posts att as a file with the caption as message content.
func (c *DiscordChannel) Send(ctx context.Context, att *Attachment) (*Result, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}

	filename := att.Filename
	if filename == "" {
		filename = "report.png"
	}
	msg := &discordgo.MessageSend{
		Content: truncateRunes(att.Caption, DiscordContentLimit),
		Files: []*discordgo.File{{
			Name:        filename,
			ContentType: att.ContentType,
			Reader:      bytes.NewReader(att.Data),
		}},
	}

	sent, err := c.session.ChannelMessageSendComplex(c.channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return classifyDiscordError(err), nil
	}

	now := time.Now()
	result := &Result{Success: true, DeliveredAt: &now, ResponseCode: 200}
	if sent != nil {
		result.ExternalID = sent.ID
	}
	return result, nil
}

// classifyDiscordError converts a discordgo error into a Result.
func classifyDiscordError(err error) *Result {
	result := &Result{ErrorMessage: err.Error()}

	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		result.ResponseCode = 429
		result.ErrorCode = ErrorCodeRateLimited
		result.IsTransient = true
		if rateErr.RateLimit != nil && rateErr.TooManyRequests != nil && rateErr.RetryAfter > 0 {
			d := rateErr.RetryAfter
			result.RetryAfter = &d
		}
		return result
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		result.ResponseCode = restErr.Response.StatusCode
		result.ErrorCode = classifyStatusCode(restErr.Response.StatusCode)
		if restErr.Message != nil && restErr.Message.Message != "" {
			result.ErrorMessage = restErr.Message.Message
		}
		result.IsTransient = isTransientCode(result.ErrorCode)
		return result
	}

	result.ErrorCode = classifyTransportError(err)
	result.IsTransient = isTransientCode(result.ErrorCode)
	return result
}
