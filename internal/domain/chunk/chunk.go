package chunk

import (
	"errors"
	"fmt"
)

// ErrInvalidWindow signals a chunk size/overlap pair outside 0 < overlap < size.
var ErrInvalidWindow = errors.New("invalid chunk window")

// Chunk is a bounded excerpt of a source document (immutable value object).
type Chunk struct {
	source  string
	body    string
	ordinal int
	offset  int
}

// New creates a chunk. ordinal is the position within its document, offset the rune offset of body.
func New(source, body string, ordinal, offset int) Chunk {
	return Chunk{source: source, body: body, ordinal: ordinal, offset: offset}
}

// Source returns the label of the document the chunk came from.
func (c Chunk) Source() string { return c.source }

// Body returns the raw excerpt without the source label.
func (c Chunk) Body() string { return c.body }

// Ordinal returns the zero-based position of the chunk within its document.
func (c Chunk) Ordinal() int { return c.ordinal }

// Offset returns the rune offset of the excerpt within its document.
func (c Chunk) Offset() int { return c.offset }

// Text returns the excerpt prefixed with its source label ("LABEL: body").
// This is the form that gets embedded and handed to the language model.
func (c Chunk) Text() string {
	if c.source == "" {
		return c.body
	}
	return c.source + ": " + c.body
}

// Split cuts text into windows of size runes whose starts advance by size-overlap,
// so consecutive windows share exactly overlap runes. The last window may be shorter.
// Empty text yields no windows.
func Split(text string, size, overlap int) ([]string, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	step := size - overlap

	var pieces []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces, nil
}

// Document splits a document's text and labels every piece with source.
func Document(source, text string, size, overlap int) ([]Chunk, error) {
	pieces, err := Split(text, size, overlap)
	if err != nil {
		return nil, err
	}

	step := size - overlap
	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = New(source, p, i, i*step)
	}
	return chunks, nil
}

func validateWindow(size, overlap int) error {
	if overlap <= 0 || overlap >= size {
		return fmt.Errorf("%w: need 0 < overlap < size, got size=%d overlap=%d", ErrInvalidWindow, size, overlap)
	}
	return nil
}
