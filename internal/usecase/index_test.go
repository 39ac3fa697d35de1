package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/adapter/chunker"
	"ctxopt/internal/adapter/embedding"
	"ctxopt/internal/adapter/fs"
	"ctxopt/internal/adapter/memstore"
	"ctxopt/internal/domain"
	"ctxopt/internal/logging"
)

const loginSource = `package auth

// Authenticate checks a user password against the stored hash.
func Authenticate(user, password string) bool {
	return verifyPassword(lookupHash(user), password)
}
`

const storeSource = `package db

// InsertUser writes a user row into the users table.
func InsertUser(name string) error {
	return exec("INSERT INTO users VALUES (?)", name)
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestIndexer(vectors bool) (*IndexUseCase, *memstore.MemoryStore, *memstore.VectorStore) {
	tok := analyzer.NewTokenizer(analyzer.NewEstimator(0))
	store := memstore.NewMemoryStore()
	if !vectors {
		idx := NewIndexUseCase(store, fs.NewWalker(nil, nil), fs.NewReader(0), chunker.NewLineChunker(200, 0, tok), nil, nil, logging.Discard())
		return idx, store, nil
	}
	vs := memstore.NewVectorStore(32)
	idx := NewIndexUseCase(store, fs.NewWalker(nil, nil), fs.NewReader(0), chunker.NewLineChunker(200, 0, tok), embedding.NewMockEmbedder(32), vs, logging.Discard())
	return idx, store, vs
}

func TestIndex_Incremental(t *testing.T) {
	root := t.TempDir()
	login := filepath.Join(root, "auth", "login.go")
	db := filepath.Join(root, "db", "store.go")
	writeFile(t, login, loginSource)
	writeFile(t, db, storeSource)
	writeFile(t, filepath.Join(root, "node_modules", "x.js"), "ignored()")

	idx, store, _ := newTestIndexer(false)
	ctx := context.Background()

	var calls, lastDone, lastTotal int
	res, err := idx.Index(ctx, root, func(done, total int) {
		calls++
		lastDone, lastTotal = done, total
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesIndexed)
	assert.Positive(t, res.ChunksCreated)
	assert.Empty(t, res.Errors)
	assert.Positive(t, calls)
	assert.Equal(t, 2, lastDone)
	assert.Equal(t, 2, lastTotal)

	stats, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDocs)

	doc, err := store.GetDoc(docID(login))
	require.NoError(t, err)
	assert.Equal(t, "go", doc.Lang)

	res, err = idx.Index(ctx, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.FilesIndexed)
	assert.Equal(t, 2, res.FilesSkipped)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(login, future, future))
	require.NoError(t, os.Remove(db))

	res, err = idx.Index(ctx, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesIndexed)
	assert.Equal(t, 1, res.FilesDeleted)

	_, err = store.GetDoc(docID(db))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	postings, err := store.GetPostings("insertuser")
	require.NoError(t, err)
	assert.Empty(t, postings)
}

func TestIndex_RemoveLeavesOtherRootsAlone(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(a, "login.go"), loginSource)
	writeFile(t, filepath.Join(b, "store.go"), storeSource)

	idx, _, _ := newTestIndexer(false)
	ctx := context.Background()
	_, err := idx.Index(ctx, a, nil)
	require.NoError(t, err)
	res, err := idx.Index(ctx, b, nil)
	require.NoError(t, err)
	assert.Zero(t, res.FilesDeleted)

	stats, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDocs)
}

func TestIndex_EmbedsChunks(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "login.go")
	writeFile(t, path, loginSource)

	idx, store, vectors := newTestIndexer(true)
	ctx := context.Background()
	res, err := idx.Index(ctx, root, nil)
	require.NoError(t, err)

	n, err := vectors.Count()
	require.NoError(t, err)
	assert.Equal(t, res.ChunksCreated, n)

	require.NoError(t, os.Remove(path))
	require.NoError(t, idx.IndexFile(ctx, path))

	n, err = vectors.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
	docs, err := store.ListDocs()
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestEngine_SemanticSearchIndexesOnDemand(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "auth", "login.go"), loginSource)
	writeFile(t, filepath.Join(root, "db", "store.go"), storeSource)

	idx, _, _ := newTestIndexer(false)
	cfg := DefaultEngineConfig()
	cfg.IndexOnDemand = true
	e := NewEngine(cfg, EngineDeps{
		Content: fs.NewReader(0),
		Index:   idx.store,
		Indexer: idx,
		Logger:  logging.Discard(),
	})

	out, err := e.Search(context.Background(), "authenticate user password", []string{root}, domain.SearchOptions{
		Strategy: domain.StrategySemantic,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, filepath.Join(root, "auth", "login.go"), out.Results[0].FilePath)
	assert.Equal(t, domain.StrategySemantic, out.StrategyUsed)
	assert.Positive(t, e.BudgetStatus().UsedTokens)
}

func TestEngine_StemmedSemanticSearch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "auth", "login.go"), loginSource)
	writeFile(t, filepath.Join(root, "db", "store.go"), storeSource)

	tok := analyzer.NewTokenizer(analyzer.NewEstimator(0), analyzer.WithStemming())
	store := memstore.NewMemoryStore()
	idx := NewIndexUseCase(store, fs.NewWalker(nil, nil), fs.NewReader(0), chunker.NewLineChunker(200, 0, tok), nil, nil, logging.Discard())

	cfg := DefaultEngineConfig()
	cfg.IndexOnDemand = true
	cfg.Stemming = true
	e := NewEngine(cfg, EngineDeps{
		Content: fs.NewReader(0),
		Index:   store,
		Indexer: idx,
		Logger:  logging.Discard(),
	})

	out, err := e.Search(context.Background(), "authenticating passwords", []string{root}, domain.SearchOptions{
		Strategy: domain.StrategySemantic,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, filepath.Join(root, "auth", "login.go"), out.Results[0].FilePath)
}
