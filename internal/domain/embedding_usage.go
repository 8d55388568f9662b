package domain

import "context"

type usageKey struct{}

// Usage collects token usage for a single question.
// The HTTP handler puts a mutable pointer into the context before calling the service;
// the retriever and answerer write to it; the handler reads it for response headers.
type Usage struct {
	EmbeddingTokens  int
	CompletionTokens int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddEmbeddingTokens records tokens consumed by embedding calls. Safe on a nil receiver.
func (u *Usage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.EmbeddingTokens += n
	}
}

// AddCompletionTokens records tokens consumed by completion calls. Safe on a nil receiver.
func (u *Usage) AddCompletionTokens(n int) {
	if u != nil {
		u.CompletionTokens += n
	}
}
