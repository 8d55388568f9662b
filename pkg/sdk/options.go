package manualqa

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// source is one document: a PDF path, or inline text when inline is set.
type source struct {
	path   string
	label  string
	text   string
	inline bool
}

type clientConfig struct {
	apiKey          string
	baseURL         string
	embeddingModel  string
	completionModel string
	temperature     float32
	timeout         time.Duration

	embedder  Embedder
	completer Completer

	sources      []source
	chunkSize    int
	chunkOverlap int
	concurrency  int
	batchSize    int
	topK         int
	threshold    *float64

	redisAddr     string
	redisPassword string
	dailyLimit    int64
	monthlyLimit  int64
	rejectOver    bool

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		embeddingModel:  "text-embedding-ada-002",
		completionModel: "gpt-3.5-turbo",
		temperature:     0.3,
		timeout:         60 * time.Second,
		chunkSize:       1000,
		chunkOverlap:    200,
		concurrency:     4,
		batchSize:       1,
		topK:            3,
	}
}

// WithOpenAI uses the OpenAI API for both embeddings and answers.
func WithOpenAI(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = apiKey
	})
}

// WithBaseURL points the OpenAI client at a compatible endpoint.
func WithBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = url
	})
}

// WithModels overrides the embedding and completion model names.
// Empty values keep the defaults (text-embedding-ada-002, gpt-3.5-turbo).
func WithModels(embedding, completion string) Option {
	return optionFunc(func(c *clientConfig) {
		if embedding != "" {
			c.embeddingModel = embedding
		}
		if completion != "" {
			c.completionModel = completion
		}
	})
}

// WithTemperature sets the answering temperature. Default: 0.3.
func WithTemperature(t float32) Option {
	return optionFunc(func(c *clientConfig) {
		c.temperature = t
	})
}

// WithEmbedder sets a custom embedding provider instead of OpenAI.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCompleter sets a custom answering provider instead of OpenAI.
func WithCompleter(cp Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = cp
	})
}

// WithManual adds a PDF manual. label prefixes every chunk, e.g. "OPERATOR".
func WithManual(path, label string) Option {
	return optionFunc(func(c *clientConfig) {
		c.sources = append(c.sources, source{path: path, label: label})
	})
}

// WithText adds already extracted text as a document.
func WithText(label, text string) Option {
	return optionFunc(func(c *clientConfig) {
		c.sources = append(c.sources, source{label: label, text: text, inline: true})
	})
}

// WithChunking sets the sliding window in characters. Requires 0 < overlap < size.
// Default: 1000/200.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithConcurrency bounds the parallel embedding requests made while indexing
// and sets how many chunks go into one request. Default: 4 workers, 1 chunk.
func WithConcurrency(workers, batchSize int) Option {
	return optionFunc(func(c *clientConfig) {
		c.concurrency = workers
		c.batchSize = batchSize
	})
}

// WithTopK sets how many excerpts are passed to the answering model. Default: 3.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithThreshold sets the minimum cosine similarity of the best excerpt for a
// question to be answered. Required.
func WithThreshold(t float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.threshold = &t
	})
}

// WithRedis persists token budget counters in Redis.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.redisAddr = addr
		c.redisPassword = password
	})
}

// WithBudget limits embedding tokens per UTC day and month (0 = unlimited).
// With reject set, calls over budget fail with ErrEmbeddingQuotaExceeded;
// otherwise they are only logged.
func WithBudget(daily, monthly int64, reject bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.dailyLimit = daily
		c.monthlyLimit = monthly
		c.rejectOver = reject
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
