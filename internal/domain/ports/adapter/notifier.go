package adapter

import (
	"context"

	"meal-planner/internal/domain/model"
)

// Notifier delivers a user notification. Callers treat failures as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, n *model.Notification) error
}
