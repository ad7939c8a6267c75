package model

import (
	"encoding/json"
	"time"
)

type MealPlanStatus string

const (
	MealPlanStatusGenerated MealPlanStatus = "generated"
	MealPlanStatusDraft     MealPlanStatus = "draft"
	MealPlanStatusActive    MealPlanStatus = "active"
	MealPlanStatusArchived  MealPlanStatus = "archived"
)

type MealPlan struct {
	ID             string
	OwnerID        string
	WeekStart      string
	Days           int
	Status         MealPlanStatus
	PlanSnapshot   json.RawMessage
	DraftSnapshot  json.RawMessage
	DraftCreatedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InDraftReview reports whether the plan already went through draft promotion.
func (p *MealPlan) InDraftReview() bool {
	return p.Status == MealPlanStatusDraft || len(p.DraftSnapshot) > 0 || p.DraftCreatedAt != nil
}

// PlannedDay is one day of a generated plan as stored in plan_snapshot.
type PlannedDay struct {
	Date  string        `json:"date"`
	Meals []PlannedMeal `json:"meals"`
}

type PlannedMeal struct {
	Slot  string `json:"slot"`
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`
}
