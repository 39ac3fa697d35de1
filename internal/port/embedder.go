package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns one vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	Dimension() int

	ModelName() string
}

// VectorStore stores and searches embedding vectors.
type VectorStore interface {
	Upsert(items []VectorItem) error

	// Search finds the k nearest vectors to the query.
	Search(query []float32, k int) ([]VectorResult, error)

	Delete(ids []string) error

	Count() (int, error)
}

type VectorItem struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

type VectorResult struct {
	ID       string
	Score    float64 // higher is better
	Metadata map[string]string
}
