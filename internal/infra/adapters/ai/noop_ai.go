package ai

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"

	"meal-planner/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

var daysPattern = regexp.MustCompile(`(\d+)\s+days`)

// NoopAIAdapter answers with a fixed plan shape for local runs without
// provider keys. The day count is read from the last "<n> days" in the prompt.
type NoopAIAdapter struct{}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{}
}

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{"noop"}, nil
}

func (a *NoopAIAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{
		Name:        "noop",
		Description: "Offline plan generator for development",
		MaxTokens:   1 << 16,
		Supports:    []string{"json"},
	}, nil
}

// CountTokens estimates four characters per token.
func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(m.Content)/4 + 1
	}
	return n, nil
}

func (a *NoopAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	reply, _, err := a.ChatWithUsage(ctx, model, messages)
	return reply, err
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if err := ctx.Err(); err != nil {
		return "", adapter.Usage{}, err
	}
	days := 7
	for _, m := range messages {
		if match := daysPattern.FindAllStringSubmatch(m.Content, -1); len(match) > 0 {
			if n, err := strconv.Atoi(match[len(match)-1][1]); err == nil && n > 0 {
				days = n
			}
		}
	}

	type meal struct {
		Slot  string `json:"slot"`
		Title string `json:"title"`
	}
	type day struct {
		Meals []meal `json:"meals"`
	}
	plan := struct {
		Days []day `json:"days"`
	}{}
	for i := 0; i < days; i++ {
		plan.Days = append(plan.Days, day{Meals: []meal{
			{Slot: "breakfast", Title: "Oatmeal with fruit"},
			{Slot: "lunch", Title: "Lentil soup"},
			{Slot: "dinner", Title: "Vegetable stir-fry with rice"},
		}})
	}
	b, err := json.Marshal(plan)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	in, _ := a.CountTokens(ctx, model, messages)
	out := len(b)/4 + 1
	return string(b), adapter.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}, nil
}
