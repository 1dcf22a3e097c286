package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docrag/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Retrieve.TopK != 3 {
		t.Errorf("expected TopK=3, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected text-embedding-3-small, got %s", cfg.Embedding.Model)
	}
	if cfg.Store.Backend != "bolt" {
		t.Errorf("expected bolt backend, got %s", cfg.Store.Backend)
	}
	if cfg.Ingest.Gate != "collection" {
		t.Errorf("expected collection gate, got %s", cfg.Ingest.Gate)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
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
	configPath := filepath.Join(tmpDir, "docrag.yaml")

	content := `
store:
  backend: sqlite
  collection: lab4
retrieve:
  top_k: 5
  timeout: 5s
ingest:
  workers: 4
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Store.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %s", cfg.Store.Backend)
	}
	if cfg.Store.Collection != "lab4" {
		t.Errorf("expected collection lab4, got %s", cfg.Store.Collection)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.Retrieve.Timeout)
	}
	if cfg.Ingest.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Ingest.Workers)
	}
	// untouched sections keep defaults
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("expected default provider, got %s", cfg.Embedding.Provider)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("DOCRAG_TEST_COLLECTION", "from-env")
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docrag.yaml")

	if err := os.WriteFile(configPath, []byte("store:\n  collection: ${DOCRAG_TEST_COLLECTION}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.Collection != "from-env" {
		t.Errorf("expected from-env, got %s", cfg.Store.Collection)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docrag.yaml")
	if err := os.WriteFile(configPath, []byte("store: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if !domain.IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".docrag"), 0755); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, ".docrag", "config.yaml")

	content := `
retrieve:
  top_k: 7
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Retrieve.TopK != 7 {
		t.Errorf("expected TopK=7, got %d", cfg.Retrieve.TopK)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "chroma" }, "Store.Backend"},
		{"memory backend", func(c *Config) { c.Store.Backend = "memory" }, "Store.Backend"},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }, "Embedding.Provider"},
		{"zero top k", func(c *Config) { c.Retrieve.TopK = 0 }, "Retrieve.TopK"},
		{"unknown gate", func(c *Config) { c.Ingest.Gate = "never" }, "Ingest.Gate"},
		{"zero workers", func(c *Config) { c.Ingest.Workers = 0 }, "Ingest.Workers"},
		{"empty collection", func(c *Config) { c.Store.Collection = "" }, "Store.Collection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var ce *domain.ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, ce.Field)
			}
		})
	}
}

func TestAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.APIKeyEnv = "DOCRAG_TEST_KEY"

	t.Setenv("DOCRAG_TEST_KEY", "")
	if _, err := cfg.Embedding.APIKey(); !domain.IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError for unset key, got %v", err)
	}

	t.Setenv("DOCRAG_TEST_KEY", "sk-test")
	key, err := cfg.Embedding.APIKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "sk-test" {
		t.Errorf("expected sk-test, got %s", key)
	}

	cfg.Embedding.Provider = "hash"
	t.Setenv("DOCRAG_TEST_KEY", "")
	if _, err := cfg.Embedding.APIKey(); err != nil {
		t.Errorf("hash provider needs no key, got %v", err)
	}
}

func TestStorePath(t *testing.T) {
	cfg := DefaultConfig()
	path := cfg.StorePath("/home/user/project")
	expected := filepath.Join("/home/user/project", ".docrag", "vectors.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}

	cfg.Store.Path = "/var/lib/docrag/vectors.db"
	if got := cfg.StorePath("/home/user/project"); got != cfg.Store.Path {
		t.Errorf("absolute path should be kept, got %s", got)
	}
}
