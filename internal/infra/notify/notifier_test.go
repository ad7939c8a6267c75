//go:build !integration

package notify

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"meal-planner/internal/domain/model"
	"meal-planner/internal/domain/ports/repository"
)

type mockNotificationRepo struct {
	saved []*model.Notification
	err   error
}

func (m *mockNotificationRepo) Save(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, n)
	return nil
}

func (m *mockNotificationRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit int) ([]*model.Notification, error) {
	return m.saved, nil
}

type sentAlert struct {
	chatID int64
	text   string
}

type mockAlertSender struct {
	sent   []sentAlert
	failOn int64
}

func (m *mockAlertSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	if chatID == m.failOn {
		return errors.New("chat not found")
	}
	m.sent = append(m.sent, sentAlert{chatID: chatID, text: text})
	return nil
}

type mockBot struct {
	msgs []tgbotapi.MessageConfig
}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.msgs = append(m.msgs, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func failedNotice() *model.Notification {
	return &model.Notification{
		OwnerID: "user-1",
		Type:    model.NotificationGenerationFailed,
		Title:   "Meal plan generation failed",
		Details: map[string]any{"jobId": "job-1", "errorCode": "QUALITY_CHECK"},
	}
}

func TestNotifier_Notify(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)

	t.Run("should store and alert every chat on terminal failure", func(t *testing.T) {
		// --- Arrange ---
		repo := &mockNotificationRepo{}
		alerts := &mockAlertSender{failOn: 2}
		n := NewNotifier(repo, alerts, []int64{1, 2, 3}, &logger)

		// --- Act ---
		err := n.Notify(ctx, failedNotice())

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(repo.saved) != 1 {
			t.Errorf("expected 1 stored notification, but got %d", len(repo.saved))
		}
		if len(alerts.sent) != 2 {
			t.Fatalf("expected 2 delivered alerts, but got %d", len(alerts.sent))
		}
		if !strings.Contains(alerts.sent[0].text, "QUALITY_CHECK") || !strings.Contains(alerts.sent[0].text, "user-1") {
			t.Errorf("unexpected alert text: %q", alerts.sent[0].text)
		}
	})

	t.Run("should not alert on plan ready", func(t *testing.T) {
		repo := &mockNotificationRepo{}
		alerts := &mockAlertSender{}
		n := NewNotifier(repo, alerts, []int64{1}, &logger)

		err := n.Notify(ctx, &model.Notification{OwnerID: "user-1", Type: model.NotificationPlanReady})

		if err != nil || len(repo.saved) != 1 || len(alerts.sent) != 0 {
			t.Errorf("expected stored without alerts, but got err=%v saved=%d sent=%d", err, len(repo.saved), len(alerts.sent))
		}
	})

	t.Run("should return the store error and skip alerts", func(t *testing.T) {
		repo := &mockNotificationRepo{err: errors.New("db down")}
		alerts := &mockAlertSender{}
		n := NewNotifier(repo, alerts, []int64{1}, &logger)

		err := n.Notify(ctx, failedNotice())

		if err == nil {
			t.Fatal("expected an error, but got nil")
		}
		if len(alerts.sent) != 0 {
			t.Errorf("expected no alerts, but got %d", len(alerts.sent))
		}
	})
}

func TestTelegramAlertSender_SendMessage(t *testing.T) {
	bot := &mockBot{}
	s := &TelegramAlertSender{bot: bot}

	if err := s.SendMessage(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if len(bot.msgs) != 1 || bot.msgs[0].ChatID != 42 || bot.msgs[0].Text != "hello" {
		t.Errorf("unexpected messages: %+v", bot.msgs)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SendMessage(ctx, 42, "late"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, but got %v", err)
	}

	if _, err := NewTelegramAlertSender(""); err == nil {
		t.Error("expected an error for an empty token")
	}
}
