package index

import (
	"context"

	"github.com/kailas-cloud/manualqa/internal/domain"
)

// Extractor reads the full text of a source document.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Embedder vectorizes text into embeddings. Implementations that also satisfy
// domain.BatchEmbedder get whole batches per request.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
