package adapter

import "context"

// AlertSender delivers plain-text operational alerts to chat ids.
type AlertSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}
