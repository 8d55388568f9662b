package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure so callers can tell a bad
// configuration from an unreadable file.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the manualqa configuration.
type Config struct {
	OpenAI    OpenAIConfig     `yaml:"openai"`
	Documents []DocumentConfig `yaml:"documents"`
	Chunking  ChunkingConfig   `yaml:"chunking"`
	Indexing  IndexingConfig   `yaml:"indexing"`
	Retrieval RetrievalConfig  `yaml:"retrieval"`
	Budget    BudgetConfig     `yaml:"budget"`
	Database  DatabaseConfig   `yaml:"database"`
	HTTP      HTTPConfig       `yaml:"http"`
	Auth      AuthConfig       `yaml:"auth"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// OpenAIConfig holds the embedding and completion provider settings.
type OpenAIConfig struct {
	APIKey              string   `yaml:"api_key"`
	BaseURL             string   `yaml:"base_url"`
	EmbeddingModel      string   `yaml:"embedding_model"`
	EmbeddingDimensions int      `yaml:"embedding_dimensions"` // 0 = model default
	CompletionModel     string   `yaml:"completion_model"`
	Temperature         *float64 `yaml:"temperature"`
	RequestTimeoutSec   int      `yaml:"request_timeout_sec"`
}

// DocumentConfig is one manual to index.
type DocumentConfig struct {
	Path  string `yaml:"path"`
	Label string `yaml:"label"`
}

// ChunkingConfig holds the sliding window used to split documents.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// IndexingConfig holds vector store construction settings.
type IndexingConfig struct {
	Concurrency int `yaml:"concurrency"`
	BatchSize   int `yaml:"batch_size"` // chunks per embedding request
}

// RetrievalConfig holds search settings. SimilarityThreshold has no default:
// the right value depends on corpus and embedding model, so it must be set explicitly.
type RetrievalConfig struct {
	TopK                int      `yaml:"top_k"`
	SimilarityThreshold *float64 `yaml:"similarity_threshold"`
}

// BudgetConfig holds token budget settings for embedding calls.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// DatabaseConfig holds the optional Redis/Valkey connection used to persist budget counters.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Enabled         bool `yaml:"enabled"`
	Port            int  `yaml:"port"`
	ReadTimeoutSec  int  `yaml:"read_timeout_sec"`
	WriteTimeoutSec int  `yaml:"write_timeout_sec"`
	ShutdownSec     int  `yaml:"shutdown_timeout_sec"`
}

// AuthConfig holds API authentication settings for the HTTP surface.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Threshold returns the configured similarity threshold. Call only after Validate.
func (r RetrievalConfig) Threshold() float64 {
	if r.SimilarityThreshold == nil {
		return 0
	}
	return *r.SimilarityThreshold
}

// Load reads configuration for an environment name (local, dev, prod) from config/<env>.yaml.
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
// A .env file in the working directory is loaded first so ${VAR} references can use it;
// variables already present in the process environment win.
func LoadFile(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = "text-embedding-ada-002"
	}
	if c.OpenAI.CompletionModel == "" {
		c.OpenAI.CompletionModel = "gpt-3.5-turbo"
	}
	if c.OpenAI.Temperature == nil {
		t := 0.3
		c.OpenAI.Temperature = &t
	}
	if c.OpenAI.RequestTimeoutSec <= 0 {
		c.OpenAI.RequestTimeoutSec = 60
	}
	if len(c.Documents) == 0 {
		c.Documents = []DocumentConfig{
			{Path: "user_manual.pdf", Label: "USER"},
			{Path: "operator_manual.pdf", Label: "OPERATOR"},
		}
	}
	if c.Chunking.Size == 0 && c.Chunking.Overlap == 0 {
		c.Chunking.Size = 1000
		c.Chunking.Overlap = 200
	}
	if c.Indexing.Concurrency <= 0 {
		c.Indexing.Concurrency = 4
	}
	if c.Indexing.BatchSize <= 0 {
		c.Indexing.BatchSize = 1
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 3
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 90
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return fmt.Errorf("openai.api_key is required (set OPENAI_API_KEY)")
	}
	if c.OpenAI.EmbeddingModel == "" || c.OpenAI.CompletionModel == "" {
		return fmt.Errorf("openai.embedding_model and openai.completion_model are required")
	}
	if c.OpenAI.EmbeddingDimensions < 0 {
		return fmt.Errorf("openai.embedding_dimensions must not be negative, got %d", c.OpenAI.EmbeddingDimensions)
	}
	if t := c.OpenAI.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("openai.temperature must be between 0 and 2, got %g", *t)
	}

	if len(c.Documents) == 0 {
		return fmt.Errorf("at least one document is required")
	}
	for i, d := range c.Documents {
		if strings.TrimSpace(d.Path) == "" {
			return fmt.Errorf("documents[%d].path is required", i)
		}
	}

	if c.Chunking.Overlap <= 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking requires 0 < overlap < size, got size=%d overlap=%d",
			c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Indexing.Concurrency < 1 || c.Indexing.BatchSize < 1 {
		return fmt.Errorf("indexing.concurrency and indexing.batch_size must be at least 1")
	}

	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be at least 1, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.SimilarityThreshold == nil {
		return fmt.Errorf("retrieval.similarity_threshold is required")
	}
	if t := *c.Retrieval.SimilarityThreshold; t < -1 || t > 1 {
		return fmt.Errorf("retrieval.similarity_threshold must be between -1 and 1, got %g", t)
	}

	switch c.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf("budget.action must be \"warn\" or \"reject\", got %q", c.Budget.Action)
	}

	for i, k := range c.Auth.APIKeys {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("auth.api_keys[%d] is empty (unset environment variable?)", i)
		}
	}

	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

// loadDotEnv loads KEY=VALUE pairs without overriding the existing environment.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
