package openai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/manualqa/internal/domain"
	"github.com/kailas-cloud/manualqa/internal/metrics"
)

// Completer sends a prompt as a single user message to the chat completions endpoint.
type Completer struct {
	client      *openai.Client
	model       string
	temperature float32
	user        string
	logger      *zap.Logger
}

// NewCompleter creates a chat completion provider.
func NewCompleter(cfg *Config) *Completer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{
		client:      newClient(cfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		user:        cfg.User,
		logger:      logger,
	}
}

// Model returns the completion model name.
func (c *Completer) Model() string { return c.model }

// wireTemperature maps 0 to the smallest positive float32: the request field
// is omitempty, and an omitted temperature makes the provider use its default.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// Complete implements domain.Completer. The first choice's content is returned
// with surrounding whitespace trimmed.
func (c *Completer) Complete(ctx context.Context, prompt string) (domain.CompletionResult, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: wireTemperature(c.temperature),
		User:        c.user,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "error").Inc()
		c.logger.Warn("completion request failed", zap.String("model", c.model), zap.Error(err))
		return domain.CompletionResult{}, parseAPIError("completion", domain.ErrCompletionProviderError, err)
	}

	if len(resp.Choices) == 0 {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return domain.CompletionResult{}, fmt.Errorf("completion returned no choices: %w",
			domain.ErrCompletionProviderError)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())
	metrics.CompletionTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.CompletionTokensTotal.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	return domain.CompletionResult{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}
