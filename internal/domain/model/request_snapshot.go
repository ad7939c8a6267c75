package model

import (
	"encoding/json"
	"fmt"
	"time"

	"meal-planner/internal/domain"
)

const (
	DateLayout      = "2006-01-02"
	DefaultPlanDays = 7
	MaxPlanDays     = 14
)

// GenerationSettings are the per-user generation inputs captured at scheduling time.
type GenerationSettings struct {
	DietKey       string `json:"dietKey,omitempty"`
	ShoppingDay   int    `json:"shoppingDay"`
	LeadTimeHours int    `json:"leadTimeHours"`
	Timezone      string `json:"timezone,omitempty"`
}

// RequestSnapshot is the immutable input of a job. It is written once by the
// scheduler and re-read on every claim so that generation does not depend on
// later preference edits.
type RequestSnapshot struct {
	WeekStart string             `json:"weekStart"`
	Days      int                `json:"days"`
	Settings  GenerationSettings `json:"settings"`
}

func (s RequestSnapshot) Validate() error {
	if _, err := time.Parse(DateLayout, s.WeekStart); err != nil {
		return fmt.Errorf("%w: weekStart %q is not a date", domain.ErrValidation, s.WeekStart)
	}
	if s.Days < 1 || s.Days > MaxPlanDays {
		return fmt.Errorf("%w: days must be between 1 and %d, got %d", domain.ErrValidation, MaxPlanDays, s.Days)
	}
	return nil
}

// Encode validates the snapshot and returns its stored form.
func (s RequestSnapshot) Encode() (json.RawMessage, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// DecodeRequestSnapshot reads a stored snapshot. A missing weekStart means the
// row was written by an older scheduling path and cannot be run; a missing
// days field falls back to a full week.
func DecodeRequestSnapshot(raw []byte) (RequestSnapshot, error) {
	var wire struct {
		WeekStart *string            `json:"weekStart"`
		Days      *int               `json:"days"`
		Settings  GenerationSettings `json:"settings"`
	}
	if len(raw) == 0 {
		return RequestSnapshot{}, fmt.Errorf("%w: empty request snapshot", domain.ErrInvalidJobState)
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return RequestSnapshot{}, fmt.Errorf("%w: request snapshot: %v", domain.ErrInvalidJobState, err)
	}
	if wire.WeekStart == nil || *wire.WeekStart == "" {
		return RequestSnapshot{}, fmt.Errorf("%w: request snapshot has no weekStart", domain.ErrInvalidJobState)
	}
	if _, err := time.Parse(DateLayout, *wire.WeekStart); err != nil {
		return RequestSnapshot{}, fmt.Errorf("%w: request snapshot weekStart %q", domain.ErrInvalidJobState, *wire.WeekStart)
	}
	snap := RequestSnapshot{WeekStart: *wire.WeekStart, Days: DefaultPlanDays, Settings: wire.Settings}
	if wire.Days != nil && *wire.Days > 0 {
		snap.Days = *wire.Days
	}
	return snap, nil
}
