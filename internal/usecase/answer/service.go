// Package answer asks a language model to answer a question strictly from
// retrieved manual excerpts.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/manualqa/internal/domain"
)

// RefusalMessage is what the model is told to reply when the excerpts do not
// contain the answer.
const RefusalMessage = "I'm sorry, the answer is not available in the provided content."

// ErrEmptyInput is returned before any remote call when context or question is blank.
var ErrEmptyInput = errors.New("answer: context and question are required")

const promptTemplate = `You are a precise and factual assistant.
Use only the information from the provided manuals (below) to answer the user's question.
Do not assume or make up any details.
Maintain original units, numbers, and terminology.

If the answer is not in the provided content, simply respond:
"%s"

Manual Excerpts:
%s

Question: %s
Answer:`

// BuildPrompt renders the constrained answering prompt.
func BuildPrompt(excerpts, question string) string {
	return fmt.Sprintf(promptTemplate, RefusalMessage, excerpts, question)
}

// Service produces answers grounded in the supplied context.
type Service struct {
	completer Completer
	logger    *zap.Logger
}

// New creates an answering service.
func New(completer Completer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{completer: completer, logger: logger}
}

// Answer returns the model's trimmed reply to question using only excerpts.
// The question is placed in the prompt as given.
func (s *Service) Answer(ctx context.Context, excerpts, question string) (string, error) {
	if strings.TrimSpace(excerpts) == "" || strings.TrimSpace(question) == "" {
		return "", ErrEmptyInput
	}

	start := time.Now()
	res, err := s.completer.Complete(ctx, BuildPrompt(excerpts, question))
	if err != nil {
		if !errors.Is(err, domain.ErrCompletionProviderError) {
			err = fmt.Errorf("%w: %w", domain.ErrCompletionProviderError, err)
		}
		return "", fmt.Errorf("complete: %w", err)
	}
	domain.UsageFromContext(ctx).AddCompletionTokens(res.TotalTokens)

	text := strings.TrimSpace(res.Text)
	s.logger.Debug("Answer generated",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", res.PromptTokens),
		zap.Int("completion_tokens", res.CompletionTokens),
		zap.Bool("refused", text == RefusalMessage),
	)

	return text, nil
}
