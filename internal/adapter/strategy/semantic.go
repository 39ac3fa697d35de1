package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/adapter/cache"
	"ctxopt/internal/domain"
	"ctxopt/internal/port"
)

const (
	// cacheBoost scales the bonus a chunk gets when its file was recently
	// optimized for a similar query.
	cacheBoost = 0.25
	// minCacheSimilarity ignores cache entries that are only loosely related.
	minCacheSimilarity = 0.3
	// vectorWeight is the share of the embedding score in a blended result.
	vectorWeight = 0.5
)

// Semantic scores indexed chunks by keyword cosine similarity to the
// query, boosted by similar cache entries. With an embedder and vector
// store it blends in embedding similarity; embedding failures degrade to
// keywords only.
type Semantic struct {
	index     port.IndexStore
	cache     *cache.SimilarityCache
	tokenizer *analyzer.Tokenizer
	embedder  port.Embedder
	vectors   port.VectorStore
	logger    *slog.Logger
}

func newSemantic(deps Deps) *Semantic {
	return &Semantic{
		index:     deps.Index,
		cache:     deps.Cache,
		tokenizer: deps.Tokenizer,
		embedder:  deps.Embedder,
		vectors:   deps.Vectors,
		logger:    deps.Logger.With("strategy", "semantic"),
	}
}

func (s *Semantic) Kind() domain.StrategyKind { return domain.StrategySemantic }

type scoredChunk struct {
	chunk   domain.Chunk
	path    string
	keyword float64
	vector  float64
}

func (s *Semantic) Execute(ctx context.Context, query string, scope []string, opts domain.SearchOptions) (domain.StrategyResult, error) {
	start := time.Now()
	res := domain.StrategyResult{Strategy: domain.StrategySemantic}
	if s.index == nil && s.cache == nil {
		return res, fmt.Errorf("semantic: no index or cache configured: %w", domain.ErrStrategyUnavailable)
	}

	keywords := s.tokenizer.KeywordSet(query)
	limit := maxResults(opts)

	var similar []domain.SimilarEntry
	if s.cache != nil {
		similar = s.cache.FindSimilar(query, limit)
	}

	candidates := make(map[string]*scoredChunk)
	if s.index != nil && len(keywords) > 0 {
		if err := s.keywordCandidates(keywords, scope, candidates); err != nil {
			res.ExecutionTimeMs = elapsedMs(start)
			return res, err
		}
	}
	if err := ctx.Err(); err != nil {
		res.ExecutionTimeMs = elapsedMs(start)
		return res, err
	}
	if s.index != nil && s.embedder != nil && s.vectors != nil {
		s.vectorCandidates(ctx, query, scope, limit, candidates)
	}

	var results []domain.SearchResult
	if len(candidates) == 0 {
		results = cachedResults(similar, scope)
	} else {
		results = s.toResults(candidates, similar)
	}

	res.Results = rank(results, limit)
	res.Score = topScore(res.Results)
	res.ExecutionTimeMs = elapsedMs(start)
	return res, nil
}

func (s *Semantic) keywordCandidates(keywords map[string]struct{}, scope []string, out map[string]*scoredChunk) error {
	seen := make(map[string]bool)
	paths := make(map[string]string)
	for term := range keywords {
		postings, err := s.index.GetPostings(term)
		if err != nil {
			return fmt.Errorf("semantic: postings for %q: %w", term, err)
		}
		for _, p := range postings {
			if seen[p.ChunkID] {
				continue
			}
			seen[p.ChunkID] = true

			chunk, err := s.index.GetChunk(p.ChunkID)
			if err != nil {
				continue
			}
			path, ok := s.docPath(chunk.DocID, paths)
			if !ok || !inScope(path, scope) {
				continue
			}
			score := analyzer.Cosine(keywords, toSet(chunk.Tokens))
			if score <= 0 {
				continue
			}
			out[chunk.ID] = &scoredChunk{chunk: chunk, path: path, keyword: score}
		}
	}
	return nil
}

func (s *Semantic) vectorCandidates(ctx context.Context, query string, scope []string, limit int, out map[string]*scoredChunk) {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		s.logger.Warn("embedding query failed, using keywords only", "error", err)
		return
	}
	hits, err := s.vectors.Search(vecs[0], limit*3)
	if err != nil {
		s.logger.Warn("vector search failed, using keywords only", "error", err)
		return
	}

	paths := make(map[string]string)
	for _, h := range hits {
		if c, ok := out[h.ID]; ok {
			c.vector = h.Score
			continue
		}
		chunk, err := s.index.GetChunk(h.ID)
		if err != nil {
			continue
		}
		path, ok := s.docPath(chunk.DocID, paths)
		if !ok || !inScope(path, scope) {
			continue
		}
		out[h.ID] = &scoredChunk{chunk: chunk, path: path, vector: h.Score}
	}
	for _, c := range out {
		c.keyword, c.vector = (1-vectorWeight)*c.keyword, vectorWeight*c.vector
	}
}

func (s *Semantic) docPath(docID string, memo map[string]string) (string, bool) {
	if p, ok := memo[docID]; ok {
		return p, p != ""
	}
	doc, err := s.index.GetDoc(docID)
	if err != nil {
		memo[docID] = ""
		return "", false
	}
	memo[docID] = doc.Path
	return doc.Path, true
}

func (s *Semantic) toResults(candidates map[string]*scoredChunk, similar []domain.SimilarEntry) []domain.SearchResult {
	boost := make(map[string]float64)
	for _, e := range similar {
		if e.Similarity < minCacheSimilarity {
			continue
		}
		f := absPath(cachedFile(e.Entry.FilePath))
		if e.Similarity > boost[f] {
			boost[f] = e.Similarity
		}
	}

	results := make([]domain.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		score := c.keyword + c.vector
		if b, ok := boost[absPath(c.path)]; ok {
			score *= 1 + cacheBoost*b
		}
		results = append(results, domain.SearchResult{
			FilePath:   c.path,
			LineNumber: c.chunk.StartLine,
			EndLine:    c.chunk.EndLine,
			Content:    c.chunk.Text,
			Score:      score,
			Strategy:   domain.StrategySemantic,
		})
	}
	return results
}

// cachedResults answers from the cache alone when the corpus has nothing:
// each similar entry becomes a result for its file.
func cachedResults(similar []domain.SimilarEntry, scope []string) []domain.SearchResult {
	seen := make(map[string]bool)
	var results []domain.SearchResult
	for _, e := range similar {
		f := cachedFile(e.Entry.FilePath)
		if f == "" || seen[f] || e.Similarity < minCacheSimilarity || !inScope(f, scope) {
			continue
		}
		seen[f] = true
		results = append(results, domain.SearchResult{
			FilePath:   f,
			LineNumber: 1,
			Content:    e.Entry.Content,
			Score:      e.Similarity,
			Strategy:   domain.StrategySemantic,
			CacheHit:   true,
		})
	}
	return results
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
