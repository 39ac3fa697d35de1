package embedding

import (
	"fmt"

	"ctxopt/internal/port"
)

// Config selects and tunes a provider. An empty Provider means embeddings
// are disabled.
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKeyEnv string
	Dimension int
	CacheSize int
}

// New builds the configured embedder wrapped in an LRU cache. It returns
// nil and no error when embeddings are disabled.
func New(cfg Config) (port.Embedder, error) {
	var inner port.Embedder
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "mock":
		inner = NewMockEmbedder(cfg.Dimension)
	case "ollama":
		inner = NewOllamaEmbedder(orDefault(cfg.Model, "nomic-embed-text"), cfg.BaseURL).WithDimension(cfg.Dimension)
	case "openai", "jina", "compatible":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			switch cfg.Provider {
			case "openai":
				baseURL = "https://api.openai.com/v1"
			case "jina":
				baseURL = "https://api.jina.ai/v1"
			default:
				return nil, fmt.Errorf("embedding: provider %q needs a base URL", cfg.Provider)
			}
		}
		e, err := NewOpenAICompatibleEmbedder(orDefault(cfg.APIKeyEnv, "OPENAI_API_KEY"), orDefault(cfg.Model, "text-embedding-3-small"), baseURL)
		if err != nil {
			return nil, err
		}
		inner = e.WithDimension(cfg.Dimension)
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
