package domain

import "errors"

var (
	// ErrDocumentRead signals a missing, unreadable or unparsable source document.
	ErrDocumentRead = errors.New("document read failed")
	// ErrVectorDimMismatch signals vectors of different dimensionality.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
	// ErrNoRelevantMatch is not a failure: the best similarity is below the relevance threshold.
	ErrNoRelevantMatch = errors.New("no relevant match")
	// ErrEmptyStore signals a search against a store without chunks.
	ErrEmptyStore = errors.New("vector store is empty")
)
