package repository

import (
	"context"

	"meal-planner/internal/domain/model"
)

type PreferencesRepository interface {
	// FindByOwner returns domain.ErrNotFound when the user never saved preferences.
	FindByOwner(ctx context.Context, tx Tx, ownerID string) (*model.Preferences, error)
	Save(ctx context.Context, tx Tx, p *model.Preferences) error
}
