package chat

import (
	"context"

	domindex "github.com/kailas-cloud/manualqa/internal/domain/index"
	"github.com/kailas-cloud/manualqa/internal/domain/search/result"
)

// Retriever finds the chunks relevant to a question.
type Retriever interface {
	Search(ctx context.Context, store *domindex.Store, query string, k int, threshold float64) ([]result.Match, error)
}

// Answerer answers a question from the supplied context.
type Answerer interface {
	Answer(ctx context.Context, excerpts, question string) (string, error)
}
