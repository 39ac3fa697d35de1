package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ctxopt/internal/domain"
)

// DataDir is the per-project directory holding the index and config.
const DataDir = ".ctxopt"

// Config holds all configuration for ctxopt.
type Config struct {
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Cache     CacheConfig     `yaml:"cache"`
	Search    SearchConfig    `yaml:"search"`
	Literal   LiteralConfig   `yaml:"literal"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// OptimizerConfig holds the token budget and extraction defaults.
type OptimizerConfig struct {
	MaxTokens         int     `yaml:"max_tokens"`
	DefaultMode       string  `yaml:"default_mode"` // full, signatures, types_only, imports_only, exports_only
	WarnThreshold     float64 `yaml:"warn_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold"`
	CharsPerToken     float64 `yaml:"chars_per_token"`
	TokenThreshold    int     `yaml:"token_threshold"` // search results above this are optimized
}

// CacheConfig holds similarity cache configuration.
type CacheConfig struct {
	Enabled             bool    `yaml:"enabled"`
	Size                int     `yaml:"size"`
	TTLMs               int64   `yaml:"ttl_ms"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// SearchConfig holds routing configuration.
type SearchConfig struct {
	Strategy       string  `yaml:"strategy"` // auto, semantic, literal, hybrid
	MaxResults     int     `yaml:"max_results"`
	TimeoutMs      int64   `yaml:"timeout_ms"`
	EnableFallback bool    `yaml:"enable_fallback"`
	MaxFallbacks   int     `yaml:"max_fallbacks"`
	MinConfidence  float64 `yaml:"min_confidence"`
	LiteralWeight  float64 `yaml:"literal_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
}

// LiteralConfig configures the external exact-match search executable.
type LiteralConfig struct {
	Binary         string `yaml:"binary"`
	Dialect        string `yaml:"dialect"` // ripgrep or native
	TimeoutMs      int64  `yaml:"timeout_ms"`
	MaxCount       int    `yaml:"max_count"`
	IncludeContent bool   `yaml:"include_content"`
	NoRerank       bool   `yaml:"no_rerank"`
}

// IndexConfig holds corpus indexing configuration.
type IndexConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	ChunkTokens  int      `yaml:"chunk_tokens"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	MaxFileSize  int64    `yaml:"max_file_size"`
	// StructuralChunks cuts chunks at top-level declarations instead of
	// fixed line runs.
	StructuralChunks bool `yaml:"structural_chunks"`
	// Stemming indexes and searches Porter stems instead of whole words.
	Stemming bool `yaml:"stemming"`
	// OnDemand indexes a search scope in memory when no index file exists.
	OnDemand bool `yaml:"on_demand"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider"` // "openai", "jina", "ollama", "compatible", "mock"
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable for API key
	Dimension int    `yaml:"dimension"`
	CacheSize int    `yaml:"cache_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Optimizer: OptimizerConfig{
			MaxTokens:         100000,
			DefaultMode:       "signatures",
			WarnThreshold:     0.7,
			CriticalThreshold: 0.9,
			CharsPerToken:     4,
			TokenThreshold:    500,
		},
		Cache: CacheConfig{
			Enabled:             true,
			Size:                100,
			TTLMs:               3600000,
			SimilarityThreshold: 0.8,
		},
		Search: SearchConfig{
			Strategy:       "auto",
			MaxResults:     20,
			TimeoutMs:      30000,
			EnableFallback: true,
			MaxFallbacks:   2,
			MinConfidence:  0.5,
			LiteralWeight:  0.5,
			SemanticWeight: 0.5,
		},
		Literal: LiteralConfig{
			Binary:         "rg",
			Dialect:        "ripgrep",
			TimeoutMs:      30000,
			IncludeContent: true,
		},
		Index: IndexConfig{
			Includes:     []string{"**/*.go", "**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx", "**/*.mjs", "**/*.py", "**/*.rs", "**/*.java", "**/*.kt", "**/*.rb", "**/*.c", "**/*.h", "**/*.cpp", "**/*.md"},
			Excludes:     []string{"**/node_modules/**", "**/vendor/**", "**/.git/**", "**/.ctxopt/**", "**/dist/**", "**/build/**", "**/__pycache__/**", "**/*.min.js"},
			ChunkTokens:  512,
			ChunkOverlap: 50,
			MaxFileSize:  2 << 20,
			OnDemand:     true,

			StructuralChunks: true,
			Stemming:         true,
		},
		Embedding: EmbeddingConfig{
			Enabled:   false,
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			CacheSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromDir loads ctxopt.yaml from dir, then .ctxopt/config.yaml, and
// falls back to the defaults.
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ctxopt.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, DataDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Optimizer.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("optimizer.max_tokens must be positive, got %d", c.Optimizer.MaxTokens))
	}
	if _, err := domain.ParseMode(c.Optimizer.DefaultMode); err != nil {
		errs = append(errs, fmt.Errorf("optimizer.default_mode: %w", err))
	}
	if !unit(c.Optimizer.WarnThreshold) || !unit(c.Optimizer.CriticalThreshold) {
		errs = append(errs, errors.New("optimizer thresholds must be in (0, 1]"))
	} else if c.Optimizer.WarnThreshold > c.Optimizer.CriticalThreshold {
		errs = append(errs, errors.New("optimizer.warn_threshold exceeds critical_threshold"))
	}
	if c.Optimizer.CharsPerToken < 0 {
		errs = append(errs, errors.New("optimizer.chars_per_token must not be negative"))
	}

	if c.Cache.Size < 0 || c.Cache.TTLMs < 0 {
		errs = append(errs, errors.New("cache.size and cache.ttl_ms must not be negative"))
	}
	if !unit(c.Cache.SimilarityThreshold) {
		errs = append(errs, fmt.Errorf("cache.similarity_threshold must be in (0, 1], got %v", c.Cache.SimilarityThreshold))
	}

	if _, err := domain.ParseStrategy(c.Search.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("search.strategy: %w", err))
	}
	if c.Search.MaxResults < 0 || c.Search.TimeoutMs < 0 || c.Search.MaxFallbacks < 0 {
		errs = append(errs, errors.New("search.max_results, timeout_ms and max_fallbacks must not be negative"))
	}
	if c.Search.LiteralWeight < 0 || c.Search.SemanticWeight < 0 {
		errs = append(errs, errors.New("search weights must not be negative"))
	}

	switch c.Literal.Dialect {
	case "", "ripgrep", "native":
	default:
		errs = append(errs, fmt.Errorf("literal.dialect must be ripgrep or native, got %q", c.Literal.Dialect))
	}

	if c.Index.ChunkTokens <= 0 {
		errs = append(errs, fmt.Errorf("index.chunk_tokens must be positive, got %d", c.Index.ChunkTokens))
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkTokens {
		errs = append(errs, fmt.Errorf("index.chunk_overlap must be in [0, chunk_tokens), got %d", c.Index.ChunkOverlap))
	}

	if c.Embedding.Enabled && c.Embedding.Dimension <= 0 && c.Embedding.Provider != "ollama" {
		errs = append(errs, errors.New("embedding.dimension must be positive"))
	}

	return errors.Join(errs...)
}

func unit(v float64) bool {
	return v > 0 && v <= 1
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMs) * time.Millisecond
}

func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutMs) * time.Millisecond
}

func (c *Config) LiteralTimeout() time.Duration {
	return time.Duration(c.Literal.TimeoutMs) * time.Millisecond
}

// IndexDBPath returns the path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, DataDir, "index.db")
}

// EnsureDataDir ensures the .ctxopt directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, DataDir), 0755)
}
