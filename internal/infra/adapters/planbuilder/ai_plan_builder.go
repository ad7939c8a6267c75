package planbuilder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meal-planner/internal/domain/model"
	"meal-planner/internal/domain/ports/adapter"
	"meal-planner/internal/domain/ports/repository"
	"meal-planner/internal/infra/metrics"
)

var _ adapter.PlanBuilder = (*AIPlanBuilder)(nil)

const systemPrompt = `You are a meal planner. Reply with JSON only, no prose.
Shape: {"days":[{"meals":[{"slot":"breakfast|lunch|dinner|snack","title":"...","notes":"..."}]}]}
One entry in "days" per requested day, in order. If the diet cannot be satisfied,
reply {"error":"<short reason>"} instead.`

// AIPlanBuilder asks an LLM for a plan, checks it and stores it as a
// generated meal plan.
type AIPlanBuilder struct {
	ai              adapter.AIServiceAdapter
	plans           repository.MealPlanRepository
	model           string
	maxPromptTokens int
	log             *zerolog.Logger
}

func NewAIPlanBuilder(ai adapter.AIServiceAdapter, plans repository.MealPlanRepository, model string, maxPromptTokens int, logger *zerolog.Logger) *AIPlanBuilder {
	l := logger.With().Str("component", "AIPlanBuilder").Logger()
	return &AIPlanBuilder{ai: ai, plans: plans, model: model, maxPromptTokens: maxPromptTokens, log: &l}
}

// wirePlan is the reply shape requested from the model.
type wirePlan struct {
	Days  []wireDay `json:"days"`
	Error string    `json:"error"`
}

type wireDay struct {
	Meals []model.PlannedMeal `json:"meals"`
}

// storedPlan is what lands in meal_plans.plan_snapshot.
type storedPlan struct {
	WeekStart string             `json:"weekStart"`
	DietKey   string             `json:"dietKey,omitempty"`
	Days      []model.PlannedDay `json:"days"`
}

func (b *AIPlanBuilder) CreatePlanForUser(ctx context.Context, ownerID string, req adapter.PlanRequest) (string, error) {
	start, err := time.Parse(model.DateLayout, req.WeekStart)
	if err != nil || ownerID == "" || req.Days < 1 || req.Days > model.MaxPlanDays {
		return "", b.reject(adapter.PlanErrValidation, fmt.Sprintf("invalid request: owner=%q weekStart=%q days=%d", ownerID, req.WeekStart, req.Days))
	}

	messages := []adapter.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt(req)},
	}
	if b.maxPromptTokens > 0 {
		n, err := b.ai.CountTokens(ctx, b.model, messages)
		switch {
		case err != nil:
			b.log.Warn().Err(err).Msg("token count unavailable")
		case n > b.maxPromptTokens:
			return "", b.reject(adapter.PlanErrValidation, fmt.Sprintf("prompt has %d tokens, limit is %d", n, b.maxPromptTokens))
		}
	}

	reply, usage, err := b.ai.ChatWithUsage(ctx, b.model, messages)
	if err != nil {
		return "", fmt.Errorf("plan generation: %w", err)
	}
	b.log.Debug().Int("prompt_tokens", usage.PromptTokens).Int("completion_tokens", usage.CompletionTokens).Msg("plan reply received")

	days, err := b.check(reply, req.Days)
	if err != nil {
		return "", err
	}

	stored := storedPlan{WeekStart: req.WeekStart, DietKey: req.Settings.DietKey}
	for i, d := range days {
		stored.Days = append(stored.Days, model.PlannedDay{
			Date:  start.AddDate(0, 0, i).Format(model.DateLayout),
			Meals: d.Meals,
		})
	}
	snapshot, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}

	plan := &model.MealPlan{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		WeekStart:    req.WeekStart,
		Days:         req.Days,
		Status:       model.MealPlanStatusGenerated,
		PlanSnapshot: snapshot,
	}
	if err := b.plans.Save(ctx, repository.NoTX, plan); err != nil {
		return "", fmt.Errorf("save plan: %w", err)
	}
	return plan.ID, nil
}

// check parses the reply and applies the quality rules: exactly the requested
// day count is kept, every day needs a meal and every meal a title.
func (b *AIPlanBuilder) check(reply string, wantDays int) ([]wireDay, error) {
	var wp wirePlan
	if err := json.Unmarshal([]byte(stripFences(reply)), &wp); err != nil {
		return nil, b.reject(adapter.PlanErrQualityCheck, "reply is not a JSON plan")
	}
	if wp.Error != "" {
		return nil, b.reject(adapter.PlanErrInsufficientData, wp.Error)
	}
	if len(wp.Days) < wantDays {
		return nil, b.reject(adapter.PlanErrQualityCheck, fmt.Sprintf("plan has %d of %d days", len(wp.Days), wantDays))
	}
	days := wp.Days[:wantDays]
	for i, d := range days {
		if len(d.Meals) == 0 {
			return nil, b.reject(adapter.PlanErrQualityCheck, fmt.Sprintf("day %d has no meals", i+1))
		}
		for _, m := range d.Meals {
			if strings.TrimSpace(m.Title) == "" {
				return nil, b.reject(adapter.PlanErrQualityCheck, fmt.Sprintf("day %d has a meal without title", i+1))
			}
		}
	}
	return days, nil
}

func (b *AIPlanBuilder) reject(code, msg string) error {
	metrics.IncPlanBuildReject(code)
	return &adapter.PlanBuildError{Code: code, Message: msg}
}

func userPrompt(req adapter.PlanRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan %d days starting %s.", req.Days, req.WeekStart)
	if req.Settings.DietKey != "" {
		fmt.Fprintf(&sb, " Diet: %s.", req.Settings.DietKey)
	}
	fmt.Fprintf(&sb, " Groceries are bought on %s.", time.Weekday(req.Settings.ShoppingDay))
	return sb.String()
}

// stripFences removes a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
