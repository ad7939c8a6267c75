package notify

import (
	"context"

	"github.com/rs/zerolog"

	"meal-planner/internal/domain/ports/adapter"
)

var _ adapter.AlertSender = (*NoopAlertSender)(nil)

// NoopAlertSender logs alerts instead of sending them. Used when no bot token is set.
type NoopAlertSender struct {
	log *zerolog.Logger
}

func NewNoopAlertSender(logger *zerolog.Logger) *NoopAlertSender {
	l := logger.With().Str("component", "NoopAlertSender").Logger()
	return &NoopAlertSender{log: &l}
}

func (s *NoopAlertSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	s.log.Info().Int64("chat_id", chatID).Str("text", text).Msg("alert")
	return ctx.Err()
}
