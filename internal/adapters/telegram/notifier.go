package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"aeroclaim/pkg/errors"
	"aeroclaim/pkg/logger"
)

// Config contains the alert bot configuration
type Config struct {
	Token       string
	AdminIDs    []int64
	Debug       bool
	HTTPTimeout time.Duration
}

// Notifier delivers quota alerts to the configured admin chats. It satisfies
// the quota service's Notifier interface.
type Notifier struct {
	api      *tgbotapi.BotAPI
	adminIDs []int64
	log      *logger.Logger
}

// NewNotifier creates a new Telegram notifier
func NewNotifier(cfg Config, log *logger.Logger) (*Notifier, error) {
	if cfg.Token == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram bot token is required")
	}
	if len(cfg.AdminIDs) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "at least one admin chat ID is required")
	}

	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}
	api.Debug = cfg.Debug

	return &Notifier{
		api:      api,
		adminIDs: cfg.AdminIDs,
		log:      log.With("component", "telegram_notifier"),
	}, nil
}

// NotifyThreshold announces a quota threshold crossing to every admin chat.
// Delivery is best effort per chat; one unreachable admin does not block the
// others.
func (n *Notifier) NotifyThreshold(ctx context.Context, provider string, threshold float64, used, allowed int64) error {
	text := formatThresholdMessage(provider, threshold, used, allowed)

	var firstErr error
	for _, chatID := range n.adminIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown

		if _, err := n.api.Send(msg); err != nil {
			n.log.Errorf("Failed to send quota alert to chat %d: %v", chatID, err)
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "failed to send quota alert to chat %d", chatID)
			}
		}
	}

	return firstErr
}

func formatThresholdMessage(provider string, threshold float64, used, allowed int64) string {
	var severity string
	switch {
	case threshold >= 95:
		severity = "🚨 *CRITICAL*: provider calls are now blocked until the next period"
	case threshold >= 90:
		severity = "⚠️ *URGENT*: consider raising the plan or reducing lookups"
	default:
		severity = "ℹ️ *WARNING*"
	}

	remaining := allowed - used
	if remaining < 0 {
		remaining = 0
	}

	return fmt.Sprintf(
		"%s\n\nAPI quota for *%s* reached *%.0f%%*\nUsed: %s of %s credits\nRemaining: %s",
		severity,
		provider,
		threshold,
		humanize.Comma(used),
		humanize.Comma(allowed),
		humanize.Comma(remaining),
	)
}
