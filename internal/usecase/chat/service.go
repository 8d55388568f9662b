// Package chat runs a single question through retrieval and answering.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domindex "github.com/kailas-cloud/manualqa/internal/domain/index"
	"github.com/kailas-cloud/manualqa/internal/domain/search/result"
	"github.com/kailas-cloud/manualqa/internal/usecase/retrieve"
)

// ErrEmptyQuestion is returned for blank input.
var ErrEmptyQuestion = errors.New("question is empty")

// Reply is the outcome of one answered turn.
type Reply struct {
	Answer  string
	Matches []result.Match
}

// Service answers questions against one vector store. It holds no
// per-conversation state, so every question is independent.
type Service struct {
	store     *domindex.Store
	retriever Retriever
	answerer  Answerer
	topK      int
	threshold float64
}

// New creates a chat service over store.
func New(store *domindex.Store, retriever Retriever, answerer Answerer, topK int, threshold float64) *Service {
	return &Service{
		store:     store,
		retriever: retriever,
		answerer:  answerer,
		topK:      topK,
		threshold: threshold,
	}
}

// Store returns the vector store questions are answered from.
func (s *Service) Store() *domindex.Store { return s.store }

// Search runs retrieval only. limit <= 0 uses the configured top k.
// The query is embedded as given; blank input is rejected.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]result.Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuestion
	}
	if limit <= 0 {
		limit = s.topK
	}
	matches, err := s.retriever.Search(ctx, s.store, query, limit, s.threshold)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return matches, nil
}

// Ask retrieves context for question and answers it. When nothing relevant is
// found the error wraps domain.ErrNoRelevantMatch and the answerer is not called.
// The question reaches the retriever and the answerer verbatim.
func (s *Service) Ask(ctx context.Context, question string) (Reply, error) {
	matches, err := s.Search(ctx, question, s.topK)
	if err != nil {
		return Reply{}, err
	}

	answer, err := s.answerer.Answer(ctx, retrieve.JoinContext(matches), question)
	if err != nil {
		return Reply{Matches: matches}, fmt.Errorf("answer: %w", err)
	}

	return Reply{Answer: answer, Matches: matches}, nil
}
