package chi

import "time"

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	ErrorCodeBadRequest              ErrorCode = "bad_request"
	ErrorCodeUnauthorized            ErrorCode = "unauthorized"
	ErrorCodeValidationFailed        ErrorCode = "validation_failed"
	ErrorCodeNoRelevantMatch         ErrorCode = "no_relevant_match"
	ErrorCodeVectorDimMismatch       ErrorCode = "vector_dim_mismatch"
	ErrorCodeEmbeddingQuotaExceeded  ErrorCode = "embedding_quota_exceeded"
	ErrorCodeEmbeddingProviderError  ErrorCode = "embedding_provider_error"
	ErrorCodeCompletionProviderError ErrorCode = "completion_provider_error"
	ErrorCodeIndexNotReady           ErrorCode = "index_not_ready"
	ErrorCodeInternalError           ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the body of a successful POST /v1/ask.
type AskResponse struct {
	Answer  string      `json:"answer"`
	Matches []MatchItem `json:"matches"`
}

// MatchItem is one retrieved chunk.
type MatchItem struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

// SearchParams are the query parameters of GET /v1/search.
type SearchParams struct {
	Q     string `form:"q" json:"q"`
	Limit *int   `form:"limit,omitempty" json:"limit,omitempty"`
}

// SearchResponse is the body of a successful GET /v1/search.
type SearchResponse struct {
	Items []MatchItem `json:"items"`
}

// UsageParams are the query parameters of GET /v1/usage.
type UsageParams struct {
	Period *string `form:"period,omitempty" json:"period,omitempty"`
}

// UsageResponse reports embedding token consumption for one period.
type UsageResponse struct {
	Period        string       `json:"period"`
	Model         string       `json:"model"`
	PeriodStartAt time.Time    `json:"period_start_at"`
	PeriodEndAt   time.Time    `json:"period_end_at"`
	Budget        BudgetStatus `json:"budget"`
}

// BudgetStatus is the token budget part of UsageResponse.
// TokensLimit and TokensRemaining are omitted when unlimited.
type BudgetStatus struct {
	TokensUsed      int64  `json:"tokens_used"`
	TokensLimit     *int64 `json:"tokens_limit,omitempty"`
	TokensRemaining *int64 `json:"tokens_remaining,omitempty"`
	IsExhausted     bool   `json:"is_exhausted"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
