package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Ingest.ChunkSize != 1000 {
		t.Errorf("expected ChunkSize=1000, got %d", cfg.Ingest.ChunkSize)
	}
	if cfg.Ingest.ChunkOverlap != 200 {
		t.Errorf("expected ChunkOverlap=200, got %d", cfg.Ingest.ChunkOverlap)
	}
	if cfg.Ingest.MaxFileSizeMB != 50 {
		t.Errorf("expected MaxFileSizeMB=50, got %d", cfg.Ingest.MaxFileSizeMB)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.CandidateMultiplier != 2 {
		t.Errorf("expected CandidateMultiplier=2, got %d", cfg.Retrieve.CandidateMultiplier)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", cfg.Retry.MaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "assistant.yaml")

	content := `
ingest:
  chunk_size: 500
  chunk_unit: token
retrieve:
  top_k: 10
  cache_ttl: 30s
index:
  metric: euclidean
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Ingest.ChunkSize != 500 {
		t.Errorf("expected ChunkSize=500, got %d", cfg.Ingest.ChunkSize)
	}
	if cfg.Ingest.ChunkUnit != "token" {
		t.Errorf("expected ChunkUnit=token, got %s", cfg.Ingest.ChunkUnit)
	}
	if cfg.Ingest.ChunkOverlap != 200 {
		t.Errorf("expected unset ChunkOverlap to keep default 200, got %d", cfg.Ingest.ChunkOverlap)
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.CacheTTL != 30*time.Second {
		t.Errorf("expected CacheTTL=30s, got %s", cfg.Retrieve.CacheTTL)
	}
	if cfg.Index.Metric != "euclidean" {
		t.Errorf("expected Metric=euclidean, got %s", cfg.Index.Metric)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "assistant.yaml")
	if err := os.WriteFile(configPath, []byte("ingest: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if !domain.IsKind(err, domain.KindConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".assistant"), 0755); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, ".assistant", "config.yaml")

	content := `
pack:
  token_budget: 8000
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Pack.TokenBudget != 8000 {
		t.Errorf("expected TokenBudget=8000, got %d", cfg.Pack.TokenBudget)
	}
}

func TestLoadFromDir_DotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	const key = "ASSISTANT_TEST_DOTENV_KEY"
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(key+"=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv(key) })

	if _, err := LoadFromDir(tmpDir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv(key); got != "from-dotenv" {
		t.Errorf("expected %s=from-dotenv, got %q", key, got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap equals size", func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize }},
		{"zero chunk size", func(c *Config) { c.Ingest.ChunkSize = 0 }},
		{"unknown unit", func(c *Config) { c.Ingest.ChunkUnit = "line" }},
		{"zero top k", func(c *Config) { c.Retrieve.TopK = 0 }},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"unknown metric", func(c *Config) { c.Index.Metric = "manhattan" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !domain.IsKind(err, domain.KindConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestValidateAPIKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.APIKeyEnv = "ASSISTANT_TEST_MISSING_KEY"
	os.Unsetenv("ASSISTANT_TEST_MISSING_KEY")

	if err := cfg.ValidateAPIKeys(); !domain.IsKind(err, domain.KindConfiguration) {
		t.Errorf("expected configuration error for missing key, got %v", err)
	}

	cfg.Embedding.Provider = "hash"
	cfg.Generation.Provider = "echo"
	if err := cfg.ValidateAPIKeys(); err != nil {
		t.Errorf("expected offline providers to need no key, got %v", err)
	}
}

func TestIndexDBPath(t *testing.T) {
	cfg := DefaultConfig()
	path := cfg.IndexDBPath("/home/user/papers")
	expected := filepath.Join("/home/user/papers", ".assistant", "assistant.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}

	cfg.Store.DataDir = "/var/lib/assistant"
	if got := cfg.IndexDBPath("/home/user/papers"); got != filepath.Join("/var/lib/assistant", "assistant.db") {
		t.Errorf("expected absolute data dir to be used, got %s", got)
	}
}
