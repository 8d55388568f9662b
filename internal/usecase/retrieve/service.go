// Package retrieve finds the chunks most similar to a question.
package retrieve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/manualqa/internal/domain"
	domindex "github.com/kailas-cloud/manualqa/internal/domain/index"
	"github.com/kailas-cloud/manualqa/internal/domain/search/result"
	"github.com/kailas-cloud/manualqa/internal/domain/search/similarity"
	"github.com/kailas-cloud/manualqa/internal/metrics"
)

// DefaultTopK is the number of chunks handed to the answering step.
const DefaultTopK = 3

// ContextSeparator joins matched chunks into one context block.
const ContextSeparator = "\n\n"

// Service embeds queries and ranks them against a vector store.
type Service struct {
	embedder Embedder
	logger   *zap.Logger
}

// New creates a retrieval service.
func New(embedder Embedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embedder: embedder, logger: logger}
}

// Search returns up to k matches in rank order. When the best score is below
// threshold, or no chunk can be scored, it returns domain.ErrNoRelevantMatch.
// k <= 0 means DefaultTopK.
func (s *Service) Search(
	ctx context.Context, store *domindex.Store, query string, k int, threshold float64,
) ([]result.Match, error) {
	if store == nil || store.Len() == 0 {
		return nil, domain.ErrEmptyStore
	}
	if k <= 0 {
		k = DefaultTopK
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		metrics.SearchOutcomesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("embed query: %w", err)
	}
	domain.UsageFromContext(ctx).AddEmbeddingTokens(emb.TotalTokens)

	if len(emb.Embedding) != store.Dimension() {
		metrics.SearchOutcomesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("query has %d dimensions, store has %d: %w",
			len(emb.Embedding), store.Dimension(), domain.ErrVectorDimMismatch)
	}

	ranked := Rank(store, emb.Embedding)
	if len(ranked) == 0 {
		metrics.SearchOutcomesTotal.WithLabelValues("no_match").Inc()
		s.logger.Debug("No scorable chunks for query")
		return nil, domain.ErrNoRelevantMatch
	}

	best := ranked[0].Score()
	metrics.SearchTopScore.Observe(best)

	if best < threshold {
		metrics.SearchOutcomesTotal.WithLabelValues("no_match").Inc()
		s.logger.Debug("Best match below threshold",
			zap.Float64("best_score", best),
			zap.Float64("threshold", threshold),
		)
		return nil, fmt.Errorf("best score %.4f below threshold %.4f: %w", best, threshold, domain.ErrNoRelevantMatch)
	}

	matches := ranked[:min(k, len(ranked))]
	metrics.SearchOutcomesTotal.WithLabelValues("match").Inc()

	for i := range matches {
		c := matches[i].Chunk()
		s.logger.Debug("Matched chunk",
			zap.Int("rank", i+1),
			zap.Int("index", matches[i].Index()),
			zap.String("source", c.Source()),
			zap.Float64("score", matches[i].Score()),
		)
	}

	return matches, nil
}

// Rank scores every stored vector against query and orders the results by
// descending score, ties broken by ascending store index. Vectors whose
// similarity is undefined (zero magnitude, length mismatch) are left out.
func Rank(store *domindex.Store, query []float32) []result.Match {
	ranked := make([]result.Match, 0, store.Len())
	for i := range store.Len() {
		score, ok := similarity.Cosine(query, store.Vector(i))
		if !ok {
			continue
		}
		ranked = append(ranked, result.New(i, score, store.Chunk(i)))
	}

	// ranked is built in index order, so a stable sort keeps index ties ascending.
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score() > ranked[b].Score()
	})
	return ranked
}

// JoinContext concatenates the labelled text of matches in rank order.
func JoinContext(matches []result.Match) string {
	parts := make([]string, len(matches))
	for i := range matches {
		parts[i] = matches[i].Text()
	}
	return strings.Join(parts, ContextSeparator)
}
