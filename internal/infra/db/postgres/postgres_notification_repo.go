package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"meal-planner/internal/domain"
	"meal-planner/internal/domain/model"
	"meal-planner/internal/domain/ports/repository"
)

var _ repository.NotificationRepository = (*notificationRepo)(nil)

type notificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) repository.NotificationRepository {
	return &notificationRepo{pool: pool}
}

func (r *notificationRepo) Save(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	details := n.Details
	if details == nil {
		details = map[string]any{}
	}
	b, err := json.Marshal(details)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO user_notifications (id, owner_id, type, title, message, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = execSQL(ctx, r.pool, tx, q, n.ID, n.OwnerID, string(n.Type), n.Title, n.Message, b, n.CreatedAt)
	return err
}

func (r *notificationRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit int) ([]*model.Notification, error) {
	const q = `
SELECT id::text, owner_id, type, title, message, details, created_at
FROM user_notifications
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2;`

	rows, err := queryRows(ctx, r.pool, tx, q, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		var n model.Notification
		var typ string
		var details []byte
		if err := rows.Scan(&n.ID, &n.OwnerID, &typ, &n.Title, &n.Message, &details, &n.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		n.Type = model.NotificationType(typ)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &n.Details); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
