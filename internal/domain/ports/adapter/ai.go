package adapter

import "context"

// Message is one chat turn sent to an LLM provider.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

type ModelInfo struct {
	Name        string
	Description string
	MaxTokens   int
	Supports    []string
}

// Usage reported by the provider for a single chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIServiceAdapter is the port the plan builder talks to.
type AIServiceAdapter interface {
	ListModels(ctx context.Context) ([]string, error)
	GetModelInfo(model string) (ModelInfo, error)

	// CountTokens returns prompt tokens for messages. Best effort when the
	// provider has no exact tokenizer.
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	Chat(ctx context.Context, model string, messages []Message) (string, error)
	ChatWithUsage(ctx context.Context, model string, messages []Message) (string, Usage, error)
}
