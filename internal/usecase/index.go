package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ctxopt/internal/adapter/surgeon"
	"ctxopt/internal/domain"
	"ctxopt/internal/logging"
	"ctxopt/internal/port"
)

const (
	indexBatchSize   = 64
	indexConcurrency = 8
)

// IndexUseCase builds the corpus the semantic strategy searches.
type IndexUseCase struct {
	store    port.IndexStore
	walker   port.FileWalker
	reader   port.ContentProvider
	chunker  port.Chunker
	embedder port.Embedder
	vectors  port.VectorStore
	logger   *slog.Logger

	// mu serializes index writes from the CLI, the watcher and on-demand
	// scope indexing.
	mu sync.Mutex
}

// NewIndexUseCase wires an indexer. embedder and vectors may be nil.
func NewIndexUseCase(
	store port.IndexStore,
	walker port.FileWalker,
	reader port.ContentProvider,
	chunker port.Chunker,
	embedder port.Embedder,
	vectors port.VectorStore,
	logger *slog.Logger,
) *IndexUseCase {
	if embedder == nil || vectors == nil {
		embedder, vectors = nil, nil
	}
	return &IndexUseCase{
		store:    store,
		walker:   walker,
		reader:   reader,
		chunker:  chunker,
		embedder: embedder,
		vectors:  vectors,
		logger:   logging.OrDiscard(logger).With("component", "indexer"),
	}
}

type IndexResult struct {
	FilesIndexed  int      `json:"filesIndexed"`
	FilesSkipped  int      `json:"filesSkipped"`
	FilesDeleted  int      `json:"filesDeleted"`
	ChunksCreated int      `json:"chunksCreated"`
	Errors        []string `json:"errors,omitempty"`
}

// Progress is told how many files of the walk have been processed.
type Progress func(done, total int)

// Index walks root and brings the store up to date: new and modified
// files are (re)indexed, unchanged files are skipped by mtime, and indexed
// files under root that no longer exist are removed.
func (u *IndexUseCase) Index(ctx context.Context, root string, progress Progress) (IndexResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	var result IndexResult

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return result, fmt.Errorf("index: %w", err)
	}
	files, err := u.walker.Walk(absRoot)
	if err != nil {
		return result, fmt.Errorf("index: walk %s: %w", absRoot, err)
	}

	existing, err := u.store.ListDocs()
	if err != nil {
		return result, fmt.Errorf("index: list docs: %w", err)
	}
	byPath := make(map[string]domain.Document, len(existing))
	for _, doc := range existing {
		byPath[doc.Path] = doc
	}

	var todo []port.FileInfo
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f.Path] = true
		if doc, ok := byPath[f.Path]; ok && doc.ModTime.Unix() >= f.ModTime {
			result.FilesSkipped++
			continue
		}
		todo = append(todo, f)
	}

	done := result.FilesSkipped
	if progress != nil {
		progress(done, len(files))
	}

	for start := 0; start < len(todo); start += indexBatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch := todo[start:min(start+indexBatchSize, len(todo))]
		built, errs := u.build(ctx, batch)
		result.Errors = append(result.Errors, errs...)

		if err := u.write(ctx, built); err != nil {
			return result, err
		}
		for _, f := range built {
			result.FilesIndexed++
			result.ChunksCreated += len(f.Chunks)
		}
		done += len(batch)
		if progress != nil {
			progress(done, len(files))
		}
	}

	prefix := absRoot + string(filepath.Separator)
	for path, doc := range byPath {
		if seen[path] || (path != absRoot && !strings.HasPrefix(path, prefix)) {
			continue
		}
		if err := u.remove(doc.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("remove %s: %v", path, err))
			continue
		}
		result.FilesDeleted++
	}

	if err := u.refreshStats(); err != nil {
		return result, err
	}
	u.logger.Info("index updated",
		"root", absRoot,
		"indexed", result.FilesIndexed,
		"skipped", result.FilesSkipped,
		"deleted", result.FilesDeleted,
		"errors", len(result.Errors))
	return result, nil
}

// IndexFile re-indexes one file, or removes it when it no longer exists.
func (u *IndexUseCase) IndexFile(ctx context.Context, path string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	files, err := u.walker.Walk(path)
	if err != nil || len(files) == 0 {
		if rmErr := u.remove(docID(path)); rmErr != nil {
			return rmErr
		}
		return u.refreshStats()
	}

	built, errs := u.build(ctx, files)
	if len(errs) > 0 {
		return fmt.Errorf("index: %s", strings.Join(errs, "; "))
	}
	if err := u.write(ctx, built); err != nil {
		return err
	}
	return u.refreshStats()
}

// EnsureIndexed indexes each scope root that has no documents yet. It lets
// semantic search work on an empty store without a prior index run.
func (u *IndexUseCase) EnsureIndexed(ctx context.Context, scope []string) error {
	docs, err := u.store.ListDocs()
	if err != nil {
		return err
	}
	if len(scope) == 0 {
		if len(docs) > 0 {
			return nil
		}
		scope = []string{"."}
	}

	for _, root := range scope {
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		if covered(abs, docs) {
			continue
		}
		if _, err := u.Index(ctx, abs, nil); err != nil {
			return err
		}
	}
	return nil
}

func covered(root string, docs []domain.Document) bool {
	prefix := root + string(filepath.Separator)
	for _, d := range docs {
		if d.Path == root || strings.HasPrefix(d.Path, prefix) {
			return true
		}
	}
	return false
}

// build reads and chunks files concurrently. Per-file failures are
// reported as messages and the file is left out.
func (u *IndexUseCase) build(ctx context.Context, files []port.FileInfo) ([]port.IndexedFile, []string) {
	out := make([]*port.IndexedFile, len(files))
	errs := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(indexConcurrency)
	for i, f := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			built, err := u.buildFile(f)
			if err != nil {
				errs[i] = fmt.Sprintf("%s: %v", f.Path, err)
				return nil
			}
			out[i] = &built
			return nil
		})
	}
	_ = g.Wait()

	var (
		built    []port.IndexedFile
		messages []string
	)
	for i := range files {
		if out[i] != nil {
			built = append(built, *out[i])
		}
		if errs[i] != "" {
			messages = append(messages, errs[i])
		}
	}
	return built, messages
}

func (u *IndexUseCase) buildFile(f port.FileInfo) (port.IndexedFile, error) {
	content, err := u.reader.ReadFile(f.Path)
	if err != nil {
		return port.IndexedFile{}, err
	}

	doc := domain.Document{
		ID:      docID(f.Path),
		Path:    f.Path,
		ModTime: time.Unix(f.ModTime, 0),
		Lang:    surgeon.DetectLanguage(f.Path).String(),
	}
	chunks, err := u.chunker.Chunk(doc, content)
	if err != nil {
		return port.IndexedFile{}, fmt.Errorf("chunk: %w", err)
	}

	postings := make(map[string]map[string]int)
	for _, c := range chunks {
		for _, tok := range c.Tokens {
			byChunk, ok := postings[tok]
			if !ok {
				byChunk = make(map[string]int)
				postings[tok] = byChunk
			}
			byChunk[c.ID]++
		}
	}
	return port.IndexedFile{Doc: doc, Chunks: chunks, Postings: postings}, nil
}

// write stores a batch and, when configured, its chunk embeddings. Stale
// vectors of re-indexed documents are dropped first.
func (u *IndexUseCase) write(ctx context.Context, files []port.IndexedFile) error {
	if len(files) == 0 {
		return nil
	}
	if u.vectors != nil {
		for _, f := range files {
			if err := u.dropVectors(f.Doc.ID); err != nil {
				return err
			}
		}
	}
	if err := u.store.BatchIndex(files); err != nil {
		return fmt.Errorf("index: write batch: %w", err)
	}
	if u.embedder == nil {
		return nil
	}

	var (
		ids   []string
		texts []string
	)
	for _, f := range files {
		for _, c := range f.Chunks {
			ids = append(ids, c.ID)
			texts = append(texts, c.Text)
		}
	}
	vecs, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		// The keyword index is already written; search degrades without vectors.
		u.logger.Warn("embedding chunks failed", "chunks", len(texts), "error", err)
		return nil
	}
	items := make([]port.VectorItem, 0, len(vecs))
	for i, v := range vecs {
		if i < len(ids) && len(v) > 0 {
			items = append(items, port.VectorItem{ID: ids[i], Vector: v})
		}
	}
	if err := u.vectors.Upsert(items); err != nil {
		return fmt.Errorf("index: store vectors: %w", err)
	}
	return nil
}

func (u *IndexUseCase) remove(id string) error {
	if err := u.dropVectors(id); err != nil {
		return err
	}
	return u.store.RemoveDoc(id)
}

func (u *IndexUseCase) dropVectors(id string) error {
	if u.vectors == nil {
		return nil
	}
	chunks, err := u.store.GetChunksByDoc(id)
	if err != nil || len(chunks) == 0 {
		return err
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return u.vectors.Delete(ids)
}

func (u *IndexUseCase) refreshStats() error {
	docs, err := u.store.ListDocs()
	if err != nil {
		return err
	}
	stats := domain.Stats{TotalDocs: len(docs)}
	tokens := 0
	for _, d := range docs {
		chunks, err := u.store.GetChunksByDoc(d.ID)
		if err != nil {
			return err
		}
		stats.TotalChunks += len(chunks)
		for _, c := range chunks {
			tokens += len(c.Tokens)
		}
	}
	if stats.TotalChunks > 0 {
		stats.AvgChunkLen = float64(tokens) / float64(stats.TotalChunks)
	}
	return u.store.UpdateStats(stats)
}

// Stats returns the corpus statistics.
func (u *IndexUseCase) Stats() (domain.Stats, error) {
	return u.store.GetStats()
}

func docID(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:8])
}
