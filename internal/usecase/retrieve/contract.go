package retrieve

import (
	"context"

	"github.com/kailas-cloud/manualqa/internal/domain"
)

// Embedder vectorizes the query. It must be the same model the store was built with.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
