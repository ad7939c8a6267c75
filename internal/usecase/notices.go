package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"meal-planner/internal/domain/model"
	"meal-planner/internal/domain/ports/adapter"
)

// notices sends best-effort user notifications. Failures are logged, never returned.
type notices struct {
	n   adapter.Notifier
	log *zerolog.Logger
}

func (s notices) send(ctx context.Context, n *model.Notification) {
	if s.n == nil {
		return
	}
	if err := s.n.Notify(ctx, n); err != nil {
		s.log.Warn().Err(err).
			Str("owner_id", n.OwnerID).
			Str("type", string(n.Type)).
			Msg("notification failed")
	}
}

func planReadyNotice(ownerID, jobID, planID string) *model.Notification {
	return &model.Notification{
		OwnerID: ownerID,
		Type:    model.NotificationPlanReady,
		Title:   "Your meal plan is ready for review",
		Message: "A new weekly meal plan was generated. Review the draft before it becomes active.",
		Details: map[string]any{"jobId": jobID, "planId": planID},
	}
}

func generationFailedNotice(ownerID, jobID string, attempts int, code, message string) *model.Notification {
	return &model.Notification{
		OwnerID: ownerID,
		Type:    model.NotificationGenerationFailed,
		Title:   "Meal plan generation failed",
		Message: fmt.Sprintf("We could not generate your weekly meal plan after %d attempts.", attempts),
		Details: map[string]any{"jobId": jobID, "errorCode": code, "errorMessage": message},
	}
}
