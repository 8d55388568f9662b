package answer

import (
	"context"

	"github.com/kailas-cloud/manualqa/internal/domain"
)

// Completer sends one prompt to the language model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (domain.CompletionResult, error)
}
