package alert

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jabinweb/sciocare-sub001/internal/domain/ports/adapter"
)

var _ adapter.AlertSender = (*TelegramAlerter)(nil)

// TelegramAlerter DMs critical failures to the operators' chat. It is
// deliberately dumb: no polling, no commands, just outbound messages.
type TelegramAlerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramAlerter(token string, chatID int64) (*TelegramAlerter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("alert: telegram auth: %w", err)
	}
	return &TelegramAlerter{bot: bot, chatID: chatID}, nil
}

func (a *TelegramAlerter) Alert(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(a.chatID, message)
	if _, err := a.bot.Send(msg); err != nil {
		return fmt.Errorf("alert: send: %w", err)
	}
	return nil
}

// NoopAlerter satisfies adapter.AlertSender when alerting is not configured.
type NoopAlerter struct{}

func (NoopAlerter) Alert(ctx context.Context, message string) error { return nil }
