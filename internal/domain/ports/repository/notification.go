package repository

import (
	"context"

	"meal-planner/internal/domain/model"
)

type NotificationRepository interface {
	Save(ctx context.Context, tx Tx, n *model.Notification) error
	ListByOwner(ctx context.Context, tx Tx, ownerID string, limit int) ([]*model.Notification, error)
}
