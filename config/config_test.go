package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ctxopt/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Optimizer.MaxTokens != 100000 {
		t.Errorf("expected MaxTokens=100000, got %d", cfg.Optimizer.MaxTokens)
	}
	if cfg.Optimizer.DefaultMode != "signatures" {
		t.Errorf("expected DefaultMode=signatures, got %s", cfg.Optimizer.DefaultMode)
	}
	if cfg.CacheTTL() != time.Hour {
		t.Errorf("expected cache TTL 1h, got %v", cfg.CacheTTL())
	}
	if cfg.Search.MaxFallbacks != 2 {
		t.Errorf("expected MaxFallbacks=2, got %d", cfg.Search.MaxFallbacks)
	}
	if !cfg.Index.Stemming {
		t.Error("expected stemming on by default")
	}
	if cfg.SearchTimeout() != 30*time.Second {
		t.Errorf("expected search timeout 30s, got %v", cfg.SearchTimeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
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

func TestLoad_ZeroMaxFallbacks(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "ctxopt.yaml")
	if err := os.WriteFile(configPath, []byte("search:\n  max_fallbacks: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.MaxFallbacks != 0 {
		t.Errorf("expected an explicit 0 to survive loading, got %d", cfg.Search.MaxFallbacks)
	}
	if !cfg.Search.EnableFallback {
		t.Error("expected unrelated defaults to be kept")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ctxopt.yaml")

	content := `
optimizer:
  max_tokens: 5000
  default_mode: types_only
cache:
  enabled: false
  ttl_ms: 1500
search:
  strategy: literal
  timeout_ms: 250
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Optimizer.MaxTokens != 5000 {
		t.Errorf("expected MaxTokens=5000, got %d", cfg.Optimizer.MaxTokens)
	}
	if cfg.Optimizer.DefaultMode != "types_only" {
		t.Errorf("expected DefaultMode=types_only, got %s", cfg.Optimizer.DefaultMode)
	}
	if cfg.Cache.Enabled {
		t.Error("expected cache disabled")
	}
	if cfg.CacheTTL() != 1500*time.Millisecond {
		t.Errorf("expected TTL 1.5s, got %v", cfg.CacheTTL())
	}
	if cfg.Search.Strategy != "literal" {
		t.Errorf("expected strategy literal, got %s", cfg.Search.Strategy)
	}
	if cfg.SearchTimeout() != 250*time.Millisecond {
		t.Errorf("expected timeout 250ms, got %v", cfg.SearchTimeout())
	}
	// Untouched sections keep their defaults.
	if cfg.Index.ChunkTokens != 512 {
		t.Errorf("expected ChunkTokens=512, got %d", cfg.Index.ChunkTokens)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"mode", "optimizer:\n  default_mode: everything\n", domain.ErrUnknownMode},
		{"strategy", "search:\n  strategy: psychic\n", domain.ErrUnknownStrategy},
		{"tokens", "optimizer:\n  max_tokens: 0\n", nil},
		{"threshold", "cache:\n  similarity_threshold: 1.5\n", nil},
		{"dialect", "literal:\n  dialect: grep\n", nil},
		{"overlap", "index:\n  chunk_tokens: 10\n  chunk_overlap: 10\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ctxopt.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureDataDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, DataDir, "config.yaml")

	content := `
search:
  max_results: 7
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.MaxResults != 7 {
		t.Errorf("expected MaxResults=7, got %d", cfg.Search.MaxResults)
	}

	// ctxopt.yaml takes precedence.
	if err := os.WriteFile(filepath.Join(tmpDir, "ctxopt.yaml"), []byte("search:\n  max_results: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.MaxResults != 3 {
		t.Errorf("expected MaxResults=3, got %d", cfg.Search.MaxResults)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctxopt.yaml")
	cfg := DefaultConfig()
	cfg.Optimizer.MaxTokens = 1234
	cfg.Embedding.Provider = "mock"

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Optimizer.MaxTokens != 1234 || loaded.Embedding.Provider != "mock" {
		t.Errorf("round trip lost values: %+v", loaded.Optimizer)
	}
}

func TestIndexDBPath(t *testing.T) {
	path := IndexDBPath("/home/user/project")
	expected := filepath.Join("/home/user/project", ".ctxopt", "index.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}
