package result

import "github.com/kailas-cloud/manualqa/internal/domain/chunk"

// Match is a single scored hit from a vector store scan. Transient, one per query.
type Match struct {
	index int
	score float64
	chunk chunk.Chunk
}

// New creates a match for the chunk stored at index.
func New(index int, score float64, c chunk.Chunk) Match {
	return Match{index: index, score: score, chunk: c}
}

// Index returns the position of the chunk in the vector store.
func (m *Match) Index() int { return m.index }

// Score returns the cosine similarity in [-1, 1].
func (m *Match) Score() float64 { return m.score }

// Chunk returns the matched chunk.
func (m *Match) Chunk() chunk.Chunk { return m.chunk }

// Text returns the labelled chunk text.
func (m *Match) Text() string { return m.chunk.Text() }
