package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

// Config holds all configuration for the assistant.
type Config struct {
	Ingest     IngestConfig     `yaml:"ingest"`
	Store      StoreConfig      `yaml:"store"`
	Index      IndexConfig      `yaml:"index"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Pack       PackConfig       `yaml:"pack"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retry      RetryConfig      `yaml:"retry"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// IngestConfig holds chunking and file selection settings.
type IngestConfig struct {
	ChunkSize         int      `yaml:"chunk_size"`
	ChunkOverlap      int      `yaml:"chunk_overlap"`
	ChunkUnit         string   `yaml:"chunk_unit"` // "char" or "token"
	BoundaryTolerance int      `yaml:"boundary_tolerance"`
	MaxFileSizeMB     int      `yaml:"max_file_size_mb"`
	Workers           int      `yaml:"workers"`
	Includes          []string `yaml:"includes"`
	Excludes          []string `yaml:"excludes"`
}

// StoreConfig selects the document repository backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "bolt", "sqlite", "memory"
	DataDir string `yaml:"data_dir"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Backend string `yaml:"backend"` // "bolt" (persistent) or "memory"
	Metric  string `yaml:"metric"`  // "cosine" or "euclidean"
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK                int           `yaml:"top_k"`
	CandidateMultiplier int           `yaml:"candidate_multiplier"`
	DedupEpsilon        float64       `yaml:"dedup_epsilon"`
	MinScore            float64       `yaml:"min_score"` // 0 disables the threshold
	CacheSize           int           `yaml:"cache_size"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
}

// PackConfig holds context assembly configuration.
type PackConfig struct {
	TokenBudget int `yaml:"token_budget"`
}

// EmbeddingConfig holds embedding service configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai", "ollama", "compatible", "hash"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// GenerationConfig holds language model configuration.
type GenerationConfig struct {
	Provider    string  `yaml:"provider"` // "openai", "ollama", "compatible", "echo"
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// RetryConfig bounds calls to external services.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	InitialInterval   time.Duration `yaml:"initial_interval"`
	MaxInterval       time.Duration `yaml:"max_interval"`
	Multiplier        float64       `yaml:"multiplier"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
	MaxConcurrency    int           `yaml:"max_concurrency"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int           `yaml:"burst"`
}

// ExtractionConfig selects the text extractor.
type ExtractionConfig struct {
	Provider string `yaml:"provider"` // "plain" or "http"
	URL      string `yaml:"url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "pretty" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			ChunkSize:         1000,
			ChunkOverlap:      200,
			ChunkUnit:         "char",
			BoundaryTolerance: 20,
			MaxFileSizeMB:     50,
			Workers:           4,
			Includes:          []string{"**/*.txt", "**/*.md", "**/*.pdf"},
			Excludes:          []string{"**/.git/**", "**/.assistant/**", "**/node_modules/**"},
		},
		Store: StoreConfig{
			Backend: "bolt",
			DataDir: ".assistant",
		},
		Index: IndexConfig{
			Backend: "bolt",
			Metric:  "cosine",
		},
		Retrieve: RetrieveConfig{
			TopK:                5,
			CandidateMultiplier: 2,
			DedupEpsilon:        0.01,
			CacheSize:           128,
			CacheTTL:            5 * time.Minute,
		},
		Pack: PackConfig{
			TokenBudget: 3000,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-ada-002",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 100,
		},
		Generation: GenerationConfig{
			Provider:    "openai",
			Model:       "gpt-4",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.1,
			MaxTokens:   1024,
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
			Multiplier:      2,
			CallTimeout:     60 * time.Second,
			MaxConcurrency:  4,
			Burst:           1,
		},
		Extraction: ExtractionConfig{
			Provider: "plain",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "pretty",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, domain.NewError(domain.KindConfiguration, "parse "+path, err)
	}

	return cfg, nil
}

// LoadFromDir loads <dir>/.env into the environment, then the first config
// file found: assistant.yaml, then .assistant/config.yaml.
func LoadFromDir(dir string) (*Config, error) {
	if err := LoadEnv(dir); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "assistant.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".assistant", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// LoadEnv loads variables from <dir>/.env without overriding the environment.
func LoadEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return domain.NewError(domain.KindConfiguration, "load .env", err)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks settings that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	var errs []error
	if c.Ingest.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest.chunk_size must be positive"))
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		errs = append(errs, fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size)"))
	}
	if c.Ingest.ChunkUnit != "char" && c.Ingest.ChunkUnit != "token" {
		errs = append(errs, fmt.Errorf("ingest.chunk_unit must be char or token"))
	}
	if c.Retrieve.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieve.top_k must be positive"))
	}
	if c.Retrieve.CandidateMultiplier < 1 {
		errs = append(errs, fmt.Errorf("retrieve.candidate_multiplier must be at least 1"))
	}
	if c.Pack.TokenBudget <= 0 {
		errs = append(errs, fmt.Errorf("pack.token_budget must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1"))
	}
	if _, err := domain.ParseMetric(c.Index.Metric); err != nil {
		errs = append(errs, fmt.Errorf("index.metric: unknown metric %q", c.Index.Metric))
	}
	if len(errs) > 0 {
		return domain.NewError(domain.KindConfiguration, "validate", errors.Join(errs...))
	}
	return nil
}

// ValidateAPIKeys checks that remote providers have their API key set.
func (c *Config) ValidateAPIKeys() error {
	check := func(section, provider, env string) error {
		if provider != "openai" && provider != "compatible" {
			return nil
		}
		if env == "" || os.Getenv(env) == "" {
			return domain.NewError(domain.KindConfiguration, section,
				fmt.Errorf("API key not found in environment variable %q", env))
		}
		return nil
	}
	if err := check("embedding", c.Embedding.Provider, c.Embedding.APIKeyEnv); err != nil {
		return err
	}
	return check("generation", c.Generation.Provider, c.Generation.APIKeyEnv)
}

// DataDir resolves the data directory against the project root.
func (c *Config) DataDir(root string) string {
	if filepath.IsAbs(c.Store.DataDir) {
		return c.Store.DataDir
	}
	return filepath.Join(root, c.Store.DataDir)
}

// IndexDBPath returns the path to the bbolt database.
func (c *Config) IndexDBPath(root string) string {
	return filepath.Join(c.DataDir(root), "assistant.db")
}

// SQLitePath returns the path to the sqlite document database.
func (c *Config) SQLitePath(root string) string {
	return filepath.Join(c.DataDir(root), "assistant.sqlite")
}

// VectorDBPath returns the bbolt file holding vectors when documents live in sqlite.
func (c *Config) VectorDBPath(root string) string {
	return filepath.Join(c.DataDir(root), "vectors.db")
}

// EnsureDataDir ensures the data directory exists.
func (c *Config) EnsureDataDir(root string) error {
	return os.MkdirAll(c.DataDir(root), 0755)
}

// MaxFileSizeBytes returns the upload limit in bytes; 0 means unlimited.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Ingest.MaxFileSizeMB) * 1024 * 1024
}
