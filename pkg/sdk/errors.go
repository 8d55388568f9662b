package manualqa

import (
	"github.com/kailas-cloud/manualqa/internal/domain"
	"github.com/kailas-cloud/manualqa/internal/usecase/chat"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNoRelevantMatch         = domain.ErrNoRelevantMatch
	ErrEmptyQuestion           = chat.ErrEmptyQuestion
	ErrEmptyStore              = domain.ErrEmptyStore
	ErrDocumentRead            = domain.ErrDocumentRead
	ErrVectorDimMismatch       = domain.ErrVectorDimMismatch
	ErrEmbeddingQuotaExceeded  = domain.ErrEmbeddingQuotaExceeded
	ErrEmbeddingProviderError  = domain.ErrEmbeddingProviderError
	ErrCompletionProviderError = domain.ErrCompletionProviderError
)
