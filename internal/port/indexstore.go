package port

import "ctxopt/internal/domain"

// IndexStore holds the corpus searched by the semantic strategy.
type IndexStore interface {
	GetDoc(id string) (domain.Document, error)

	ListDocs() ([]domain.Document, error)

	GetChunk(id string) (domain.Chunk, error)

	GetChunksByDoc(docID string) ([]domain.Chunk, error)

	GetPostings(term string) ([]domain.Posting, error)

	GetStats() (domain.Stats, error)

	UpdateStats(stats domain.Stats) error

	BatchIndex(files []IndexedFile) error

	// RemoveDoc drops a document with its chunks and postings.
	RemoveDoc(id string) error

	Close() error
}

// IndexedFile is one document ready to be written. Postings maps
// term -> chunkID -> term frequency.
type IndexedFile struct {
	Doc      domain.Document
	Chunks   []domain.Chunk
	Postings map[string]map[string]int
}
