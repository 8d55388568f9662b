// Package index holds the in-memory vector store: chunks and their embeddings
// kept as two index-aligned sequences.
package index

import (
	"fmt"

	"github.com/kailas-cloud/manualqa/internal/domain"
	"github.com/kailas-cloud/manualqa/internal/domain/chunk"
)

// Source is a document to index: a file path and the label attached to its chunks.
type Source struct {
	Path  string
	Label string
}

// Store is the vector store. It is immutable after New, so concurrent readers need no locking.
// Invariant: chunks[i] is the text that produced vectors[i], and every vector has Dimension() entries.
type Store struct {
	chunks    []chunk.Chunk
	vectors   [][]float32
	dimension int
	model     string
}

// New validates alignment and dimensionality and takes ownership of both slices.
// model identifies the embedding model that produced the vectors.
func New(chunks []chunk.Chunk, vectors [][]float32, model string) (*Store, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("store: %d chunks but %d vectors", len(chunks), len(vectors))
	}

	dim := 0
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("store: vector %d is empty", i)
		}
		if dim == 0 {
			dim = len(v)
			continue
		}
		if len(v) != dim {
			return nil, fmt.Errorf("store: vector %d has %d dimensions, expected %d: %w",
				i, len(v), dim, domain.ErrVectorDimMismatch)
		}
	}

	return &Store{chunks: chunks, vectors: vectors, dimension: dim, model: model}, nil
}

// Len returns the number of stored chunks.
func (s *Store) Len() int { return len(s.chunks) }

// Dimension returns the shared vector length (0 for an empty store).
func (s *Store) Dimension() int { return s.dimension }

// Model returns the embedding model identity the store was built with.
func (s *Store) Model() string { return s.model }

// Chunk returns the chunk at position i.
func (s *Store) Chunk(i int) chunk.Chunk { return s.chunks[i] }

// Vector returns the embedding at position i. Callers must not modify it.
func (s *Store) Vector(i int) []float32 { return s.vectors[i] }

// CountBySource returns the number of chunks per source label.
func (s *Store) CountBySource() map[string]int {
	counts := make(map[string]int)
	for i := range s.chunks {
		counts[s.chunks[i].Source()]++
	}
	return counts
}
