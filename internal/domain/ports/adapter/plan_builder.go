package adapter

import (
	"context"
	"fmt"

	"meal-planner/internal/domain/model"
)

// Plan builder failure codes.
const (
	PlanErrValidation       = "VALIDATION"
	PlanErrInsufficientData = "INSUFFICIENT_DATA"
	PlanErrQualityCheck     = "QUALITY_CHECK"
)

// PlanBuildError is a coded generation failure. Other errors returned by a
// PlanBuilder are recorded as GENERATION_FAILED.
type PlanBuildError struct {
	Code    string
	Message string
}

func (e *PlanBuildError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type PlanRequest struct {
	WeekStart string
	Days      int
	Settings  model.GenerationSettings
}

// PlanBuilder produces and stores a meal plan, returning its id.
type PlanBuilder interface {
	CreatePlanForUser(ctx context.Context, ownerID string, req PlanRequest) (string, error)
}
