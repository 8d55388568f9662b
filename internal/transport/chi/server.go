// Package chi exposes the question answering service over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/manualqa/internal/domain"
	"github.com/kailas-cloud/manualqa/internal/domain/search/result"
	domusage "github.com/kailas-cloud/manualqa/internal/domain/usage"
	logpkg "github.com/kailas-cloud/manualqa/internal/logger"
	"github.com/kailas-cloud/manualqa/internal/metrics"
	"github.com/kailas-cloud/manualqa/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/manualqa/internal/usecase/health"
)

const (
	maxQuestionBytes = 8 << 10
	maxSearchLimit   = 50
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the HTTP API.
type Server struct {
	chat          ChatService
	usage         UsageService
	health        HealthService
	apiKeys       []string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. apiKeys empty disables auth.
func NewServer(
	chatSvc ChatService,
	usageSvc UsageService,
	healthSvc HealthService,
	apiKeys []string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		chat:    chatSvc,
		usage:   usageSvc,
		health:  healthSvc,
		apiKeys: apiKeys,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(chat.ErrEmptyQuestion, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrNoRelevantMatch, http.StatusNotFound, ErrorCodeNoRelevantMatch),
		sentinelHandler(domain.ErrEmptyStore, http.StatusServiceUnavailable, ErrorCodeIndexNotReady),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, ErrorCodeVectorDimMismatch),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded,
			http.StatusTooManyRequests, ErrorCodeEmbeddingQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrCompletionProviderError,
			http.StatusBadGateway, ErrorCodeCompletionProviderError),
	}
	return s
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", s.Ask)
		r.Get("/search", s.Search)
		r.Get("/usage", s.GetUsage)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
	return r
}

// Ask handles POST /v1/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	reply, err := s.chat.Ask(ctx, req.Question)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:  reply.Answer,
		Matches: matchesToAPI(reply.Matches),
	})
}

// Search handles GET /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var params SearchParams
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "q", query, &params.Q); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter q: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &params.Limit); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter limit: "+err.Error())
		return
	}

	limit := 0
	if params.Limit != nil {
		limit = *params.Limit
		if limit < 1 || limit > maxSearchLimit {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
				"limit must be between 1 and "+strconv.Itoa(maxSearchLimit))
			return
		}
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	matches, err := s.chat.Search(ctx, params.Q, limit)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Items: matchesToAPI(matches)})
}

// GetUsage handles GET /v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var params UsageParams
	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &params.Period); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter period: "+err.Error())
		return
	}

	var raw string
	if params.Period != nil {
		raw = *params.Period
	}
	period, err := domusage.ParsePeriod(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	report := s.usage.GetReport(r.Context(), period)
	b := report.Budget()

	resp := UsageResponse{
		Period:        string(report.Period()),
		Model:         report.Model(),
		PeriodStartAt: report.PeriodStart(),
		PeriodEndAt:   report.PeriodEnd(),
		Budget: BudgetStatus{
			TokensUsed:  b.TokensUsed(),
			IsExhausted: b.IsExhausted(),
		},
	}
	if !b.Unlimited() {
		limit, remaining := b.TokensLimit(), b.TokensRemaining()
		resp.Budget.TokensLimit = &limit
		resp.Budget.TokensRemaining = &remaining
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.Usage) {
	if usage == nil {
		return
	}
	if usage.EmbeddingTokens > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
	}
	if usage.CompletionTokens > 0 {
		w.Header().Set("X-Completion-Tokens", strconv.Itoa(usage.CompletionTokens))
	}
}

func matchesToAPI(matches []result.Match) []MatchItem {
	items := make([]MatchItem, len(matches))
	for i := range matches {
		m := &matches[i]
		items[i] = MatchItem{
			Source: m.Chunk().Source(),
			Score:  m.Score(),
			Text:   m.Chunk().Body(),
		}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		chat.ErrEmptyQuestion,
		domain.ErrNoRelevantMatch,
		domain.ErrEmptyStore,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
		domain.ErrCompletionProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			if !errors.Is(err, domain.ErrNoRelevantMatch) {
				log.Warn("domain error", zap.Error(err))
			}
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
