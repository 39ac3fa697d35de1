// Package memstore keeps the search corpus and its vectors in memory. It
// backs tests and runs where no index file is configured.
package memstore

import (
	"fmt"
	"sync"

	"ctxopt/internal/domain"
	"ctxopt/internal/port"
)

var _ port.IndexStore = (*MemoryStore)(nil)

type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string]domain.Document
	chunks    map[string]domain.Chunk
	docChunks map[string][]string
	postings  map[string]map[string]int // term -> chunkID -> tf
	stats     domain.Stats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]domain.Document),
		chunks:    make(map[string]domain.Chunk),
		docChunks: make(map[string][]string),
		postings:  make(map[string]map[string]int),
	}
}

func (s *MemoryStore) GetDoc(id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("memstore: document %s: %w", id, domain.ErrNotFound)
	}
	return doc, nil
}

func (s *MemoryStore) ListDocs() ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *MemoryStore) GetChunk(id string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("memstore: chunk %s: %w", id, domain.ErrNotFound)
	}
	return chunk, nil
}

func (s *MemoryStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunkIDs := s.docChunks[docID]
	chunks := make([]domain.Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if chunk, ok := s.chunks[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

func (s *MemoryStore) GetPostings(term string) ([]domain.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byChunk := s.postings[term]
	out := make([]domain.Posting, 0, len(byChunk))
	for chunkID, tf := range byChunk {
		out = append(out, domain.Posting{ChunkID: chunkID, TF: tf})
	}
	return out, nil
}

func (s *MemoryStore) GetStats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

func (s *MemoryStore) UpdateStats(stats domain.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
	return nil
}

// BatchIndex writes files, replacing any earlier version of each document.
func (s *MemoryStore) BatchIndex(files []port.IndexedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, file := range files {
		s.removeDoc(file.Doc.ID)
		s.docs[file.Doc.ID] = file.Doc

		for _, chunk := range file.Chunks {
			s.chunks[chunk.ID] = chunk
			s.docChunks[chunk.DocID] = append(s.docChunks[chunk.DocID], chunk.ID)
		}

		for term, chunkPostings := range file.Postings {
			byChunk, ok := s.postings[term]
			if !ok {
				byChunk = make(map[string]int)
				s.postings[term] = byChunk
			}
			for chunkID, tf := range chunkPostings {
				byChunk[chunkID] = tf
			}
		}
	}

	return nil
}

func (s *MemoryStore) RemoveDoc(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeDoc(id)
	return nil
}

func (s *MemoryStore) removeDoc(id string) {
	for _, chunkID := range s.docChunks[id] {
		chunk := s.chunks[chunkID]
		for _, term := range chunk.Tokens {
			if byChunk, ok := s.postings[term]; ok {
				delete(byChunk, chunkID)
				if len(byChunk) == 0 {
					delete(s.postings, term)
				}
			}
		}
		delete(s.chunks, chunkID)
	}
	delete(s.docChunks, id)
	delete(s.docs, id)
}

func (s *MemoryStore) Close() error {
	return nil
}
