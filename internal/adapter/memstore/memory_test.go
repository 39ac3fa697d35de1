package memstore

import (
	"errors"
	"testing"

	"ctxopt/internal/domain"
	"ctxopt/internal/port"
)

func indexedFile(docID, path string, terms ...string) port.IndexedFile {
	chunk := domain.Chunk{ID: docID + "#0", DocID: docID, StartLine: 1, EndLine: 3, Tokens: terms, Text: "body"}
	postings := make(map[string]map[string]int)
	for _, t := range terms {
		postings[t] = map[string]int{chunk.ID: 1}
	}
	return port.IndexedFile{
		Doc:      domain.Document{ID: docID, Path: path},
		Chunks:   []domain.Chunk{chunk},
		Postings: postings,
	}
}

func TestBatchIndexAndLookup(t *testing.T) {
	s := NewMemoryStore()
	if err := s.BatchIndex([]port.IndexedFile{indexedFile("a", "a.go", "alpha", "beta")}); err != nil {
		t.Fatal(err)
	}

	postings, _ := s.GetPostings("alpha")
	if len(postings) != 1 || postings[0].ChunkID != "a#0" {
		t.Fatalf("postings = %v", postings)
	}
	chunks, _ := s.GetChunksByDoc("a")
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if _, err := s.GetDoc("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetDoc(missing) error = %v, want ErrNotFound", err)
	}
}

func TestBatchIndexReplacesDocument(t *testing.T) {
	s := NewMemoryStore()
	_ = s.BatchIndex([]port.IndexedFile{indexedFile("a", "a.go", "alpha")})
	_ = s.BatchIndex([]port.IndexedFile{indexedFile("a", "a.go", "gamma")})

	if p, _ := s.GetPostings("alpha"); len(p) != 0 {
		t.Errorf("stale postings for alpha: %v", p)
	}
	if p, _ := s.GetPostings("gamma"); len(p) != 1 {
		t.Errorf("postings for gamma = %v", p)
	}
	chunks, _ := s.GetChunksByDoc("a")
	if len(chunks) != 1 {
		t.Errorf("chunks = %d, want 1", len(chunks))
	}
}

func TestRemoveDoc(t *testing.T) {
	s := NewMemoryStore()
	_ = s.BatchIndex([]port.IndexedFile{indexedFile("a", "a.go", "alpha"), indexedFile("b", "b.go", "alpha")})

	if err := s.RemoveDoc("a"); err != nil {
		t.Fatal(err)
	}
	p, _ := s.GetPostings("alpha")
	if len(p) != 1 || p[0].ChunkID != "b#0" {
		t.Errorf("postings after remove = %v", p)
	}
	if _, err := s.GetChunk("a#0"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("chunk a#0 still present")
	}
}

func TestVectorStoreSearch(t *testing.T) {
	vs := NewVectorStore(2)
	err := vs.Upsert([]port.VectorItem{
		{ID: "x", Vector: []float32{1, 0}},
		{ID: "y", Vector: []float32{0, 1}},
		{ID: "z", Vector: []float32{1, 1}},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := vs.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 || res[0].ID != "x" || res[1].ID != "z" {
		t.Errorf("Search = %+v", res)
	}

	if err := vs.Upsert([]port.VectorItem{{ID: "bad", Vector: []float32{1}}}); err == nil {
		t.Error("expected dimension error")
	}
	_ = vs.Delete([]string{"x"})
	if n, _ := vs.Count(); n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}
