package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxopt/internal/domain"
	"ctxopt/internal/port"
)

func openStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func indexed(docID, path string, terms ...string) port.IndexedFile {
	chunk := domain.Chunk{ID: docID + "#0", DocID: docID, StartLine: 1, EndLine: 4, Tokens: terms, Text: "text of " + docID}
	postings := make(map[string]map[string]int)
	for _, term := range terms {
		postings[term] = map[string]int{chunk.ID: 1}
	}
	return port.IndexedFile{
		Doc:      domain.Document{ID: docID, Path: path, ModTime: time.Unix(1700000000, 0), Lang: "go"},
		Chunks:   []domain.Chunk{chunk},
		Postings: postings,
	}
}

func TestBoltStoreRoundTrip(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.BatchIndex([]port.IndexedFile{indexed("a", "/src/a.go", "alpha", "beta")}))

	doc, err := s.GetDoc("a")
	require.NoError(t, err)
	assert.Equal(t, "/src/a.go", doc.Path)
	assert.Equal(t, int64(1700000000), doc.ModTime.Unix())

	chunk, err := s.GetChunk("a#0")
	require.NoError(t, err)
	assert.Equal(t, "text of a", chunk.Text)
	assert.Equal(t, []string{"alpha", "beta"}, chunk.Tokens)

	postings, err := s.GetPostings("beta")
	require.NoError(t, err)
	assert.Equal(t, []domain.Posting{{ChunkID: "a#0", TF: 1}}, postings)

	_, err = s.GetDoc("nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestBoltStoreReindexAndRemove(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.BatchIndex([]port.IndexedFile{indexed("a", "/src/a.go", "alpha"), indexed("b", "/src/b.go", "alpha")}))
	require.NoError(t, s.BatchIndex([]port.IndexedFile{indexed("a", "/src/a.go", "gamma")}))

	postings, _ := s.GetPostings("alpha")
	assert.Equal(t, []domain.Posting{{ChunkID: "b#0", TF: 1}}, postings)
	postings, _ = s.GetPostings("gamma")
	assert.Len(t, postings, 1)

	require.NoError(t, s.RemoveDoc("b"))
	postings, _ = s.GetPostings("alpha")
	assert.Empty(t, postings)
	docs, _ := s.ListDocs()
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)
}

func TestNeedsRebuild(t *testing.T) {
	s := openStore(t)
	fp := Fingerprint{ChunkTokens: 40, ChunkOverlap: 5}

	rebuild, _, err := s.NeedsRebuild(fp)
	require.NoError(t, err)
	assert.False(t, rebuild)

	require.NoError(t, s.Stamp(fp))
	rebuild, _, _ = s.NeedsRebuild(fp)
	assert.False(t, rebuild)

	rebuild, reason, _ := s.NeedsRebuild(Fingerprint{ChunkTokens: 80, ChunkOverlap: 5})
	assert.True(t, rebuild)
	assert.Equal(t, "index configuration changed", reason)

	stemmed := fp
	stemmed.Stemming = true
	rebuild, _, _ = s.NeedsRebuild(stemmed)
	assert.True(t, rebuild, "terms indexed without stemming cannot serve stemmed queries")
}

func TestClearKeepsSchema(t *testing.T) {
	s := openStore(t)
	fp := Fingerprint{ChunkTokens: 40}
	require.NoError(t, s.Stamp(fp))
	require.NoError(t, s.BatchIndex([]port.IndexedFile{indexed("a", "/src/a.go", "alpha")}))
	require.NoError(t, s.UpdateStats(domain.Stats{TotalDocs: 1}))

	require.NoError(t, s.Clear())

	docs, _ := s.ListDocs()
	assert.Empty(t, docs)
	stats, _ := s.GetStats()
	assert.Equal(t, domain.Stats{}, stats)
	info, _ := s.GetSchemaInfo()
	assert.Equal(t, CurrentSchemaVersion, info.Version)
	assert.Equal(t, fp.Hash(), info.ConfigHash)
}

func TestBoltVectorStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := NewBoltStore(path)
	require.NoError(t, err)

	vs, err := NewBoltVectorStore(s.DB(), 2)
	require.NoError(t, err)
	require.NoError(t, vs.Upsert([]port.VectorItem{
		{ID: "a#0", Vector: []float32{1, 0}},
		{ID: "b#0", Vector: []float32{0, 1}},
	}))
	require.Error(t, vs.Upsert([]port.VectorItem{{ID: "bad", Vector: []float32{1, 2, 3}}}))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(path)
	require.NoError(t, err)
	defer s.Close()
	vs, err = NewBoltVectorStore(s.DB(), 2)
	require.NoError(t, err)

	n, _ := vs.Count()
	assert.Equal(t, 2, n)
	res, err := vs.Search([]float32{0.9, 0.1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a#0", res[0].ID)
}
