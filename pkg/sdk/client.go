package manualqa

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/manualqa/internal/db/redis"
	"github.com/kailas-cloud/manualqa/internal/domain"
	domindex "github.com/kailas-cloud/manualqa/internal/domain/index"
	"github.com/kailas-cloud/manualqa/internal/domain/search/result"
	budgetrepo "github.com/kailas-cloud/manualqa/internal/repository/budget"
	openaiTransport "github.com/kailas-cloud/manualqa/internal/transport/openai"
	pdfTransport "github.com/kailas-cloud/manualqa/internal/transport/pdf"
	answeruc "github.com/kailas-cloud/manualqa/internal/usecase/answer"
	chatuc "github.com/kailas-cloud/manualqa/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/manualqa/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/manualqa/internal/usecase/health"
	indexuc "github.com/kailas-cloud/manualqa/internal/usecase/index"
	retrieveuc "github.com/kailas-cloud/manualqa/internal/usecase/retrieve"
	usageuc "github.com/kailas-cloud/manualqa/internal/usecase/usage"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, swapped out in tests.
type chatUseCase interface {
	Ask(ctx context.Context, question string) (chatuc.Reply, error)
	Search(ctx context.Context, query string, limit int) ([]result.Match, error)
}

// Answer is the reply to one question.
type Answer struct {
	Text             string
	Matches          []Match
	EmbeddingTokens  int
	CompletionTokens int
}

// Match is one manual excerpt that supported an answer.
type Match struct {
	Source string
	Text   string
	Score  float64
}

// Client is the manualqa SDK entry point. It is safe for concurrent use:
// the vector store is read-only once New returns.
type Client struct {
	db        *dbRedis.Store
	store     *domindex.Store
	chatSvc   chatUseCase
	healthSvc healthUseCase
	usageSvc  usageUseCase
	obs       *observer
}

// New indexes the configured documents and returns a ready Client.
// It blocks until every chunk is embedded; any document or embedding
// failure aborts construction.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := &Client{obs: obs}
	if cfg.redisAddr != "" {
		c.db, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    []string{cfg.redisAddr},
			Password: cfg.redisPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("manualqa: create redis store: %w", err)
		}
		if err := c.db.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			c.db.Close()
			return nil, fmt.Errorf("manualqa: database not ready: %w", err)
		}
	}

	start := time.Now()
	err = c.wire(ctx, cfg)
	obs.observe("build", start, err)
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (cfg *clientConfig) validate() error {
	if cfg.threshold == nil {
		return errors.New("manualqa: similarity threshold required (use WithThreshold)")
	}
	if len(cfg.sources) == 0 {
		return errors.New("manualqa: at least one document required (use WithManual or WithText)")
	}
	if cfg.embedder == nil && cfg.apiKey == "" {
		return errors.New("manualqa: embedding provider required (use WithOpenAI or WithEmbedder)")
	}
	if cfg.completer == nil && cfg.apiKey == "" {
		return errors.New("manualqa: answering provider required (use WithOpenAI or WithCompleter)")
	}
	if cfg.topK < 1 {
		return fmt.Errorf("manualqa: top k must be at least 1, got %d", cfg.topK)
	}
	return nil
}

// wire assembles the same chain as the manualqa binary and builds the store.
func (c *Client) wire(ctx context.Context, cfg *clientConfig) error {
	logger := zap.NewNop()

	var (
		embedder  domain.Embedder
		completer domain.Completer
		model     = cfg.embeddingModel
	)
	if cfg.embedder != nil {
		embedder = adaptEmbedder(cfg.embedder)
		model = "custom"
	} else {
		embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:  cfg.apiKey,
			BaseURL: cfg.baseURL,
			Model:   cfg.embeddingModel,
			Timeout: cfg.timeout,
			Logger:  logger,
		})
	}
	if cfg.completer != nil {
		completer = &completerAdapter{inner: cfg.completer}
	} else {
		completer = openaiTransport.NewCompleter(&openaiTransport.Config{
			APIKey:      cfg.apiKey,
			BaseURL:     cfg.baseURL,
			Model:       cfg.completionModel,
			Temperature: cfg.temperature,
			Timeout:     cfg.timeout,
			Logger:      logger,
		})
	}

	// Pass nil interfaces, not typed nil pointers.
	var (
		budgetChecker embeddinguc.BudgetChecker
		budgetReader  usageuc.BudgetReader
		dbPinger      healthuc.DBPinger
	)
	if cfg.dailyLimit > 0 || cfg.monthlyLimit > 0 || c.db != nil {
		action := embeddinguc.BudgetActionWarn
		if cfg.rejectOver {
			action = embeddinguc.BudgetActionReject
		}
		budget := embeddinguc.NewBudgetTracker(model, cfg.dailyLimit, cfg.monthlyLimit, action, logger)
		if c.db != nil {
			budget.WithStore(ctx, budgetrepo.New(c.db, 0, 0))
			dbPinger = c.db
		}
		budgetChecker = budget
		budgetReader = budget
	}
	instrumented := embeddinguc.NewInstrumentedEmbedder(embedder, model, budgetChecker, logger)

	sources, extractor := cfg.indexSources(logger)
	store, err := indexuc.New(extractor, instrumented, model, logger).
		WithChunking(cfg.chunkSize, cfg.chunkOverlap).
		WithConcurrency(cfg.concurrency, cfg.batchSize).
		Build(ctx, sources)
	if err != nil {
		return fmt.Errorf("manualqa: build vector store: %w", err)
	}

	c.store = store
	c.chatSvc = chatuc.New(
		store,
		retrieveuc.New(instrumented, logger),
		answeruc.New(completer, logger),
		cfg.topK,
		*cfg.threshold,
	)
	c.healthSvc = healthuc.New(dbPinger, instrumented, store)
	c.usageSvc = usageuc.New(budgetReader, model)
	return nil
}

// indexSources maps configured documents to index sources. Inline texts get
// synthetic paths that the returned extractor resolves without touching disk.
func (cfg *clientConfig) indexSources(logger *zap.Logger) ([]domindex.Source, *sourceExtractor) {
	ex := &sourceExtractor{pdf: pdfTransport.NewExtractor(logger), inline: make(map[string]string)}
	sources := make([]domindex.Source, len(cfg.sources))
	for i, s := range cfg.sources {
		path := s.path
		if s.inline {
			path = "inline:" + strconv.Itoa(i) + ":" + s.label
			ex.inline[path] = s.text
		}
		sources[i] = domindex.Source{Path: path, Label: s.label}
	}
	return sources, ex
}

type sourceExtractor struct {
	pdf    *pdfTransport.Extractor
	inline map[string]string
}

func (e *sourceExtractor) Extract(ctx context.Context, path string) (string, error) {
	if text, ok := e.inline[path]; ok {
		if text == "" {
			return "", fmt.Errorf("%s: %w: empty text", path, domain.ErrDocumentRead)
		}
		return text, nil
	}
	text, err := e.pdf.Extract(ctx, path)
	if err != nil {
		return "", fmt.Errorf("extract pdf: %w", err)
	}
	return text, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.db != nil {
		c.db.Close()
	}
}

// Chunks returns the number of indexed chunks.
func (c *Client) Chunks() int {
	if c.store == nil {
		return 0
	}
	return c.store.Len()
}

// Ask answers question from the indexed manuals. When no excerpt is similar
// enough the error wraps ErrNoRelevantMatch and no answer is generated.
func (c *Client) Ask(ctx context.Context, question string) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err) }()

	ctx, usage := domain.NewContextWithUsage(ctx)
	reply, err := c.chatSvc.Ask(ctx, question)
	c.obs.tokens(usage.EmbeddingTokens, usage.CompletionTokens)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return Answer{
		Text:             reply.Answer,
		Matches:          matchesFromDomain(reply.Matches),
		EmbeddingTokens:  usage.EmbeddingTokens,
		CompletionTokens: usage.CompletionTokens,
	}, nil
}

// Search returns the excerpts most similar to query without answering.
// limit <= 0 uses the configured top k.
func (c *Client) Search(ctx context.Context, query string, limit int) (matches []Match, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	res, err := c.chatSvc.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return matchesFromDomain(res), nil
}

func matchesFromDomain(in []result.Match) []Match {
	out := make([]Match, len(in))
	for i := range in {
		m := &in[i]
		out[i] = Match{
			Source: m.Chunk().Source(),
			Text:   m.Chunk().Body(),
			Score:  m.Score(),
		}
	}
	return out
}
