package manualqa

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
)

// keywordEmbedder maps text to a vector of keyword hits plus a constant
// component, so no vector is ever zero.
type keywordEmbedder struct {
	keywords []string
	calls    atomic.Int32
	err      error
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{keywords: []string{"valve", "display", "weather"}}
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	e.calls.Add(1)
	if e.err != nil {
		return EmbeddingResult{}, e.err
	}
	lower := strings.ToLower(text)
	v := make([]float32, len(e.keywords)+1)
	for i, k := range e.keywords {
		if strings.Contains(lower, k) {
			v[i] = 1
		}
	}
	v[len(e.keywords)] = 0.01
	return EmbeddingResult{Embedding: v, PromptTokens: 3, TotalTokens: 3}, nil
}

// batchKeywordEmbedder also implements BatchEmbedder.
type batchKeywordEmbedder struct {
	*keywordEmbedder
	batches atomic.Int32
}

func (e *batchKeywordEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	e.batches.Add(1)
	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		r, err := e.Embed(ctx, t)
		if err != nil {
			return BatchEmbeddingResult{}, err
		}
		out.Embeddings[i] = r.Embedding
		out.TotalTokens += r.TotalTokens
	}
	return out, nil
}

type recordingCompleter struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (c *recordingCompleter) Complete(_ context.Context, prompt string) (CompletionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return CompletionResult{}, c.err
	}
	return CompletionResult{Text: c.reply, PromptTokens: 100, CompletionTokens: 4, TotalTokens: 104}, nil
}

func (c *recordingCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

var errProviderDown = errors.New("provider down")

const (
	operatorText = "The pressure valve must be checked every 6 months by a certified technician."
	userText     = "The display shows the current temperature and the remaining filter life."
)
