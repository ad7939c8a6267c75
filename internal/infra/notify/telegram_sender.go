package notify

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"meal-planner/internal/domain/ports/adapter"
)

var _ adapter.AlertSender = (*TelegramAlertSender)(nil)

type chattableSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramAlertSender posts plain-text alerts through a Telegram bot.
type TelegramAlertSender struct {
	bot chattableSender
}

func NewTelegramAlertSender(token string) (*TelegramAlertSender, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &TelegramAlertSender{bot: bot}, nil
}

func (s *TelegramAlertSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	_, err := s.bot.Send(msg)
	return err
}
