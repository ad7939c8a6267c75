package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"meal-planner/internal/domain/model"
	"meal-planner/internal/domain/ports/adapter"
	"meal-planner/internal/domain/ports/repository"
	"meal-planner/internal/infra/metrics"
)

var _ adapter.Notifier = (*Notifier)(nil)

const (
	channelInApp    = "inapp"
	channelTelegram = "telegram"
)

// Notifier stores in-app notifications and mirrors terminal generation
// failures to the operator alert chats.
type Notifier struct {
	repo     repository.NotificationRepository
	alerts   adapter.AlertSender
	alertIDs []int64
	log      *zerolog.Logger
}

func NewNotifier(repo repository.NotificationRepository, alerts adapter.AlertSender, alertChatIDs []int64, logger *zerolog.Logger) *Notifier {
	l := logger.With().Str("component", "Notifier").Logger()
	return &Notifier{repo: repo, alerts: alerts, alertIDs: alertChatIDs, log: &l}
}

// Notify returns the in-app store error only. Alert delivery is best effort.
func (n *Notifier) Notify(ctx context.Context, note *model.Notification) error {
	if err := n.repo.Save(ctx, repository.NoTX, note); err != nil {
		metrics.IncNotification(string(note.Type), channelInApp, "error")
		return fmt.Errorf("save notification: %w", err)
	}
	metrics.IncNotification(string(note.Type), channelInApp, "ok")

	if note.Type == model.NotificationGenerationFailed && n.alerts != nil {
		text := alertText(note)
		for _, chatID := range n.alertIDs {
			if err := n.alerts.SendMessage(ctx, chatID, text); err != nil {
				metrics.IncNotification(string(note.Type), channelTelegram, "error")
				n.log.Warn().Err(err).Int64("chat_id", chatID).Str("owner_id", note.OwnerID).Msg("alert delivery failed")
				continue
			}
			metrics.IncNotification(string(note.Type), channelTelegram, "ok")
		}
	}
	return nil
}

func alertText(note *model.Notification) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\nowner: %s", note.Title, note.OwnerID)
	for _, k := range []string{"jobId", "errorCode", "errorMessage"} {
		if v, ok := note.Details[k]; ok {
			fmt.Fprintf(&sb, "\n%s: %v", k, v)
		}
	}
	return sb.String()
}
