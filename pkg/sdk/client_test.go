package manualqa

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestClient(t *testing.T, e Embedder, c Completer, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithEmbedder(e),
		WithCompleter(c),
		WithText("USER", userText),
		WithText("OPERATOR", operatorText),
		WithThreshold(0.5),
	}
	client, err := New(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestNew_Validation(t *testing.T) {
	e, c := newKeywordEmbedder(), &recordingCompleter{}
	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"no threshold", []Option{WithEmbedder(e), WithCompleter(c), WithText("A", "x")}, "threshold"},
		{"no documents", []Option{WithEmbedder(e), WithCompleter(c), WithThreshold(0.5)}, "document"},
		{"no embedder", []Option{WithCompleter(c), WithText("A", "x"), WithThreshold(0.5)}, "embedding provider"},
		{"no completer", []Option{WithEmbedder(e), WithText("A", "x"), WithThreshold(0.5)}, "answering provider"},
		{
			"bad top k", []Option{WithEmbedder(e), WithCompleter(c), WithText("A", "x"), WithThreshold(0.5), WithTopK(0)},
			"top k",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.opts...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
	if e.calls.Load() != 0 {
		t.Error("validation failures must not call the embedder")
	}
}

func TestNew_BuildErrors(t *testing.T) {
	e := newKeywordEmbedder()
	e.err = errProviderDown

	_, err := New(context.Background(),
		WithEmbedder(e), WithCompleter(&recordingCompleter{}),
		WithText("OPERATOR", operatorText), WithThreshold(0.5))
	if err == nil || !errors.Is(err, errProviderDown) {
		t.Fatalf("expected provider error, got %v", err)
	}

	_, err = New(context.Background(),
		WithEmbedder(newKeywordEmbedder()), WithCompleter(&recordingCompleter{}),
		WithManual("does-not-exist.pdf", "USER"), WithThreshold(0.5))
	if !errors.Is(err, ErrDocumentRead) {
		t.Fatalf("expected ErrDocumentRead, got %v", err)
	}

	_, err = New(context.Background(),
		WithEmbedder(newKeywordEmbedder()), WithCompleter(&recordingCompleter{}),
		WithText("USER", ""), WithThreshold(0.5))
	if !errors.Is(err, ErrDocumentRead) {
		t.Fatalf("expected ErrDocumentRead for empty text, got %v", err)
	}
}

func TestAsk_Answered(t *testing.T) {
	comp := &recordingCompleter{reply: "Every 6 months."}
	client := newTestClient(t, newKeywordEmbedder(), comp)

	if client.Chunks() != 2 {
		t.Fatalf("expected 2 chunks, got %d", client.Chunks())
	}

	ans, err := client.Ask(context.Background(), "How often should the pressure valve be checked?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "Every 6 months." {
		t.Errorf("answer = %q", ans.Text)
	}
	if len(ans.Matches) == 0 || ans.Matches[0].Source != "OPERATOR" || ans.Matches[0].Text != operatorText {
		t.Fatalf("expected the operator excerpt first, got %+v", ans.Matches)
	}
	if ans.EmbeddingTokens != 3 || ans.CompletionTokens != 104 {
		t.Errorf("tokens = %d/%d, want 3/104", ans.EmbeddingTokens, ans.CompletionTokens)
	}
	if comp.calls() != 1 {
		t.Fatalf("expected one completion, got %d", comp.calls())
	}
	if !strings.Contains(comp.prompts[0], "OPERATOR: "+operatorText) {
		t.Errorf("prompt missing labelled excerpt:\n%s", comp.prompts[0])
	}
}

func TestAsk_NoRelevantMatch(t *testing.T) {
	comp := &recordingCompleter{reply: "unused"}
	client := newTestClient(t, newKeywordEmbedder(), comp)

	_, err := client.Ask(context.Background(), "What will the weather be tomorrow?")
	if !errors.Is(err, ErrNoRelevantMatch) {
		t.Fatalf("expected ErrNoRelevantMatch, got %v", err)
	}
	if comp.calls() != 0 {
		t.Error("completer must not be called without a relevant excerpt")
	}
}

func TestAsk_Errors(t *testing.T) {
	client := newTestClient(t, newKeywordEmbedder(), &recordingCompleter{err: errProviderDown})

	if _, err := client.Ask(context.Background(), "  "); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("expected ErrEmptyQuestion, got %v", err)
	}
	_, err := client.Ask(context.Background(), "valve?")
	if !errors.Is(err, ErrCompletionProviderError) {
		t.Errorf("expected ErrCompletionProviderError, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, newKeywordEmbedder(), &recordingCompleter{})

	matches, err := client.Search(context.Background(), "display", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].Source != "USER" {
		t.Errorf("unexpected matches: %+v", matches)
	}
}

func TestBatchEmbedderUsed(t *testing.T) {
	e := &batchKeywordEmbedder{keywordEmbedder: newKeywordEmbedder()}
	newTestClient(t, e, &recordingCompleter{}, WithConcurrency(1, 2))

	if e.batches.Load() == 0 {
		t.Error("expected batch embedding during indexing")
	}
}

func TestUsage(t *testing.T) {
	client := newTestClient(t, newKeywordEmbedder(), &recordingCompleter{reply: "ok"},
		WithBudget(1000, 0, true))

	if _, err := client.Ask(context.Background(), "valve?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	rep, err := client.Usage(context.Background(), PeriodDay)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	// two chunks at build time plus one question
	if rep.Budget.TokensUsed != 9 || rep.Budget.TokensRemaining != 991 || rep.Budget.TokensLimit != 1000 {
		t.Errorf("unexpected budget: %+v", rep.Budget)
	}
	if !rep.PeriodEnd.After(rep.PeriodStart) {
		t.Errorf("bad period bounds: %v - %v", rep.PeriodStart, rep.PeriodEnd)
	}

	month, err := client.Usage(context.Background(), PeriodMonth)
	if err != nil {
		t.Fatalf("Usage month: %v", err)
	}
	if month.Budget.TokensLimit != 0 || month.Budget.TokensRemaining != -1 {
		t.Errorf("expected unlimited monthly budget, got %+v", month.Budget)
	}

	if _, err := client.Usage(context.Background(), "total"); err == nil {
		t.Error("expected error for unknown period")
	}
}

func TestBudgetReject(t *testing.T) {
	client := newTestClient(t, newKeywordEmbedder(), &recordingCompleter{reply: "ok"},
		WithBudget(6, 0, true))

	_, err := client.Ask(context.Background(), "valve?")
	if !errors.Is(err, ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected ErrEmbeddingQuotaExceeded, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	client := newTestClient(t, newKeywordEmbedder(), &recordingCompleter{})

	h := client.Health(context.Background())
	if h.Status != "ok" {
		t.Errorf("status = %q, checks %v", h.Status, h.Checks)
	}
	if h.Checks["vector_store"] != "ok" || h.Checks["embedding"] != "ok" {
		t.Errorf("unexpected checks: %v", h.Checks)
	}
	if _, ok := h.Checks["database"]; ok {
		t.Error("database check must be absent without Redis")
	}
}

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	client := newTestClient(t, newKeywordEmbedder(), &recordingCompleter{reply: "ok"},
		WithPrometheus(reg), WithLogger(slog.New(slog.DiscardHandler)))

	_, _ = client.Ask(context.Background(), "valve?")
	_, _ = client.Ask(context.Background(), "weather?")

	m, err := newSDKMetrics(reg)
	if err != nil {
		t.Fatalf("reuse metrics: %v", err)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("ask", "ok")); got != 1 {
		t.Errorf("ask ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("ask", "no_match")); got != 1 {
		t.Errorf("ask no_match = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("build", "ok")); got != 1 {
		t.Errorf("build ok = %v, want 1", got)
	}
	// both questions embed; only the matched one reaches the completer
	if got := testutil.ToFloat64(m.tokens.WithLabelValues("embedding")); got != 6 {
		t.Errorf("embedding tokens = %v, want 6", got)
	}
	if got := testutil.ToFloat64(m.tokens.WithLabelValues("completion")); got != 104 {
		t.Errorf("completion tokens = %v, want 104", got)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := defaultConfig()
	for _, o := range []Option{
		WithOpenAI("sk-test"),
		WithBaseURL("http://localhost:1234/v1"),
		WithModels("emb", ""),
		WithTemperature(0),
		WithChunking(500, 50),
		WithTopK(5),
		WithThreshold(0.7),
		WithRedis("localhost:6379", "pw"),
		WithManual("a.pdf", "A"),
	} {
		o.apply(cfg)
	}

	if cfg.apiKey != "sk-test" || cfg.baseURL != "http://localhost:1234/v1" {
		t.Errorf("provider options not applied: %+v", cfg)
	}
	if cfg.embeddingModel != "emb" || cfg.completionModel != "gpt-3.5-turbo" {
		t.Errorf("models = %q/%q", cfg.embeddingModel, cfg.completionModel)
	}
	if cfg.temperature != 0 || cfg.chunkSize != 500 || cfg.chunkOverlap != 50 || cfg.topK != 5 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.threshold == nil || *cfg.threshold != 0.7 {
		t.Errorf("threshold = %v", cfg.threshold)
	}
	if cfg.redisAddr != "localhost:6379" || len(cfg.sources) != 1 || cfg.sources[0].inline {
		t.Errorf("unexpected sources/redis: %+v", cfg)
	}
}

func TestObserver_Nil(t *testing.T) {
	var o *observer
	o.observe("ask", time.Now(), errProviderDown)
}
