package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rustyeddy/scantrade/scanners"
)

// Telegram sends signals to one chat through a bot.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram authenticates the bot token with the Bot API.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	return newTelegram(token, tgbotapi.APIEndpoint, chatID, &http.Client{Timeout: 15 * time.Second})
}

func newTelegram(token, endpoint string, chatID int64, client *http.Client) (*Telegram, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Notify(_ context.Context, sig scanners.Signal) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatSignal(sig, "*"))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
