package model

import "time"

type NotificationType string

const (
	NotificationPlanReady        NotificationType = "meal_plan_ready_for_review"
	NotificationGenerationFailed NotificationType = "meal_plan_generation_failed"
)

type Notification struct {
	ID        string
	OwnerID   string
	Type      NotificationType
	Title     string
	Message   string
	Details   map[string]any
	CreatedAt time.Time
}
