// Package index builds the in-memory vector store from the configured manuals.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/manualqa/internal/domain"
	"github.com/kailas-cloud/manualqa/internal/domain/chunk"
	domindex "github.com/kailas-cloud/manualqa/internal/domain/index"
	"github.com/kailas-cloud/manualqa/internal/metrics"
)

// Builder turns source documents into a vector store: extract, chunk, embed.
type Builder struct {
	extractor   Extractor
	embedder    Embedder
	model       string
	chunkSize   int
	overlap     int
	concurrency int
	batchSize   int
	logger      *zap.Logger
}

// New creates a builder with the default window (1000/200), 4 workers and
// one chunk per embedding request.
func New(extractor Extractor, embedder Embedder, model string, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		extractor:   extractor,
		embedder:    embedder,
		model:       model,
		chunkSize:   1000,
		overlap:     200,
		concurrency: 4,
		batchSize:   1,
		logger:      logger,
	}
}

// WithChunking sets the chunk window. The pair is validated by Build.
func (b *Builder) WithChunking(size, overlap int) *Builder {
	b.chunkSize = size
	b.overlap = overlap
	return b
}

// WithConcurrency sets the number of in-flight embedding requests and the
// number of chunks per request. Non-positive values keep the current setting.
func (b *Builder) WithConcurrency(workers, batchSize int) *Builder {
	if workers > 0 {
		b.concurrency = workers
	}
	if batchSize > 0 {
		b.batchSize = batchSize
	}
	return b
}

// Build processes sources in order (all chunks of the first document precede
// those of the second) and embeds every chunk. Any failure aborts the build
// and no store is returned.
func (b *Builder) Build(ctx context.Context, sources []domindex.Source) (*domindex.Store, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("build index: no documents configured")
	}

	start := time.Now()

	var chunks []chunk.Chunk
	for _, src := range sources {
		text, err := b.extractor.Extract(ctx, src.Path)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", src.Path, err)
		}

		docChunks, err := chunk.Document(src.Label, text, b.chunkSize, b.overlap)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", src.Path, err)
		}

		b.logger.Info("Document chunked",
			zap.String("path", src.Path),
			zap.String("label", src.Label),
			zap.Int("chunks", len(docChunks)),
		)
		chunks = append(chunks, docChunks...)
	}

	vectors, tokens, err := b.embedAll(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	store, err := domindex.New(chunks, vectors, b.model)
	if err != nil {
		return nil, fmt.Errorf("assemble store: %w", err)
	}

	for label, n := range store.CountBySource() {
		metrics.IndexedChunks.WithLabelValues(label).Set(float64(n))
	}
	elapsed := time.Since(start)
	metrics.IndexBuildDuration.Set(elapsed.Seconds())

	b.logger.Info("Vector store built",
		zap.Int("chunks", store.Len()),
		zap.Int("dimension", store.Dimension()),
		zap.String("model", b.model),
		zap.Int64("embedding_tokens", tokens),
		zap.Duration("duration", elapsed),
	)

	return store, nil
}

// embedAll fills vectors[i] with the embedding of chunks[i]. Work is split into
// batches run with bounded concurrency; each batch writes only its own slots.
func (b *Builder) embedAll(ctx context.Context, chunks []chunk.Chunk) ([][]float32, int64, error) {
	vectors := make([][]float32, len(chunks))
	var tokens atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for from := 0; from < len(chunks); from += b.batchSize {
		if gctx.Err() != nil {
			break
		}
		to := min(from+b.batchSize, len(chunks))

		g.Go(func() error {
			n, err := b.embedBatch(gctx, chunks[from:to], vectors[from:to])
			if err != nil {
				return fmt.Errorf("chunks %d-%d: %w", from, to-1, err)
			}
			tokens.Add(int64(n))
			b.logger.Debug("Embedded chunk batch",
				zap.Int("from", from),
				zap.Int("to", to),
				zap.Int("tokens", n),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, providerError(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return vectors, tokens.Load(), nil
}

func (b *Builder) embedBatch(ctx context.Context, batch []chunk.Chunk, slots [][]float32) (int, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text()
	}

	if be, ok := b.embedder.(domain.BatchEmbedder); ok && len(texts) > 1 {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return 0, err
		}
		if len(res.Embeddings) != len(texts) {
			return 0, fmt.Errorf("expected %d vectors, got %d: %w",
				len(texts), len(res.Embeddings), domain.ErrEmbeddingProviderError)
		}
		copy(slots, res.Embeddings)
		return res.TotalTokens, nil
	}

	total := 0
	for i, text := range texts {
		res, err := b.embedder.Embed(ctx, text)
		if err != nil {
			return 0, err
		}
		slots[i] = res.Embedding
		total += res.TotalTokens
	}
	return total, nil
}

// providerError makes sure a build failure is attributable to the embedding
// service unless it already carries a more specific cause.
func providerError(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmbeddingProviderError),
		errors.Is(err, domain.ErrEmbeddingQuotaExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}
}
