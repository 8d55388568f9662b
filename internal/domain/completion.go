package domain

import "context"

// Completer sends a single prompt to a language model and returns the generated text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (CompletionResult, error)
}

// CompletionResult carries the generated text and token usage of one completion call.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
