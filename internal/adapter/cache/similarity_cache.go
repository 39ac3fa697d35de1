package cache

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/domain"
	"ctxopt/internal/logging"
)

const (
	DefaultMaxSize   = 100
	DefaultTTL       = 3_600_000 * time.Millisecond
	DefaultThreshold = 0.8
)

// Config tunes a SimilarityCache. Zero values select the defaults.
type Config struct {
	MaxSize   int
	TTL       time.Duration
	Threshold float64
	// Now replaces time.Now, for tests.
	Now    func() time.Time
	Logger *slog.Logger
}

// SimilarityCache maps (query, file) pairs to earlier extraction output.
// Lookups match queries by keyword cosine similarity rather than exact
// text. All methods are safe for concurrent use.
type SimilarityCache struct {
	mu        sync.Mutex
	entries   map[string]*cacheEntry
	byKeyword map[string]map[string]struct{}
	byFile    map[string]map[string]struct{}

	tokenizer *analyzer.Tokenizer
	maxSize   int
	ttl       time.Duration
	threshold float64
	now       func() time.Time
	logger    *slog.Logger

	tick   uint64
	hits   int64
	misses int64
}

type cacheEntry struct {
	entry    domain.CacheEntry
	keywords map[string]struct{}
	norm     string
	// used orders accesses; ties in LastAccessedAt still evict in order.
	used uint64
}

func NewSimilarityCache(tokenizer *analyzer.Tokenizer, cfg Config) *SimilarityCache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SimilarityCache{
		entries:   make(map[string]*cacheEntry),
		byKeyword: make(map[string]map[string]struct{}),
		byFile:    make(map[string]map[string]struct{}),
		tokenizer: tokenizer,
		maxSize:   cfg.MaxSize,
		ttl:       cfg.TTL,
		threshold: cfg.Threshold,
		now:       cfg.Now,
		logger:    logging.OrDiscard(cfg.Logger).With("component", "cache"),
	}
}

// Get returns the best entry for filePath whose query is at least
// threshold-similar to query. Entries for the same file are tried first;
// the keyword index is consulted only when none of them qualifies.
func (c *SimilarityCache) Get(query, filePath string) (domain.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.purgeExpired(now)

	keywords := c.tokenizer.KeywordSet(query)
	norm := normalize(query)

	best, score := c.bestOf(c.byFile[filePath], keywords, norm, filePath)
	if best == nil {
		best, score = c.bestOf(c.keywordCandidates(keywords), keywords, norm, filePath)
	}
	if best == nil {
		c.misses++
		return domain.CacheEntry{}, false
	}

	c.hits++
	c.tick++
	best.used = c.tick
	best.entry.AccessCount++
	best.entry.LastAccessedAt = now
	c.logger.Debug("cache hit", "file", filePath, "similarity", score, "accessCount", best.entry.AccessCount)
	return best.entry, true
}

// Set stores content for (query, filePath), replacing an entry with the same
// normalized query and file. At capacity the least recently used entry is
// evicted first.
func (c *SimilarityCache) Set(query, filePath, content string, tokenCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.purgeExpired(now)

	norm := normalize(query)
	for id := range c.byFile[filePath] {
		e := c.entries[id]
		if e.norm != norm {
			continue
		}
		c.tick++
		e.used = c.tick
		e.entry.Content = content
		e.entry.TokenCount = tokenCount
		e.entry.CreatedAt = now
		e.entry.LastAccessedAt = now
		return
	}

	for len(c.entries) >= c.maxSize {
		c.evictLRU()
	}

	c.tick++
	e := &cacheEntry{
		entry: domain.CacheEntry{
			ID:             uuid.NewString(),
			Query:          query,
			FilePath:       filePath,
			Content:        content,
			TokenCount:     tokenCount,
			CreatedAt:      now,
			LastAccessedAt: now,
		},
		keywords: c.tokenizer.KeywordSet(query),
		norm:     norm,
		used:     c.tick,
	}
	c.add(e)
}

// FindSimilar ranks live entries by similarity to query, most similar
// first. It does not count as a hit or miss and does not touch access times.
func (c *SimilarityCache) FindSimilar(query string, limit int) []domain.SimilarEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	keywords := c.tokenizer.KeywordSet(query)
	norm := normalize(query)

	var out []domain.SimilarEntry
	for id := range c.keywordCandidates(keywords) {
		e := c.entries[id]
		if c.expired(e, now) {
			continue
		}
		if sim := similarity(keywords, e.keywords, norm, e.norm); sim > 0 {
			out = append(out, domain.SimilarEntry{Entry: e.entry, Similarity: sim})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Entry.LastAccessedAt.After(out[j].Entry.LastAccessedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (c *SimilarityCache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := domain.CacheStats{
		Hits:         c.hits,
		Misses:       c.misses,
		TotalEntries: len(c.entries),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

func (c *SimilarityCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// InvalidateFile drops every entry stored for filePath, including entries
// whose file key carries a suffix ("path::mode"). It returns how many were
// removed.
func (c *SimilarityCache) InvalidateFile(filePath string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for file, ids := range c.byFile {
		if file != filePath && !strings.HasPrefix(file, filePath+"::") {
			continue
		}
		for id := range ids {
			c.remove(id)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("invalidated file", "file", filePath, "entries", removed)
	}
	return removed
}

// Clear drops all entries. Hit and miss counters are kept.
func (c *SimilarityCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.byKeyword = make(map[string]map[string]struct{})
	c.byFile = make(map[string]map[string]struct{})
}

func (c *SimilarityCache) bestOf(ids map[string]struct{}, keywords map[string]struct{}, norm, filePath string) (*cacheEntry, float64) {
	var best *cacheEntry
	bestScore := 0.0
	for id := range ids {
		e := c.entries[id]
		if filePath != "" && e.entry.FilePath != filePath {
			continue
		}
		sim := similarity(keywords, e.keywords, norm, e.norm)
		if sim < c.threshold {
			continue
		}
		if best == nil || sim > bestScore || (sim == bestScore && e.used > best.used) {
			best, bestScore = e, sim
		}
	}
	return best, bestScore
}

func (c *SimilarityCache) keywordCandidates(keywords map[string]struct{}) map[string]struct{} {
	ids := make(map[string]struct{})
	for kw := range keywords {
		for id := range c.byKeyword[kw] {
			ids[id] = struct{}{}
		}
	}
	return ids
}

func (c *SimilarityCache) expired(e *cacheEntry, now time.Time) bool {
	return now.Sub(e.entry.CreatedAt) > c.ttl
}

func (c *SimilarityCache) purgeExpired(now time.Time) {
	for id, e := range c.entries {
		if c.expired(e, now) {
			c.remove(id)
		}
	}
}

func (c *SimilarityCache) evictLRU() {
	var victim *cacheEntry
	for _, e := range c.entries {
		if victim == nil || e.entry.LastAccessedAt.Before(victim.entry.LastAccessedAt) ||
			(e.entry.LastAccessedAt.Equal(victim.entry.LastAccessedAt) && e.used < victim.used) {
			victim = e
		}
	}
	if victim == nil {
		return
	}
	c.logger.Debug("evicting entry", "id", victim.entry.ID, "file", victim.entry.FilePath)
	c.remove(victim.entry.ID)
}

func (c *SimilarityCache) add(e *cacheEntry) {
	id := e.entry.ID
	c.entries[id] = e
	index(c.byFile, e.entry.FilePath, id)
	for kw := range e.keywords {
		index(c.byKeyword, kw, id)
	}
}

func (c *SimilarityCache) remove(id string) {
	e, ok := c.entries[id]
	if !ok {
		return
	}
	delete(c.entries, id)
	unindex(c.byFile, e.entry.FilePath, id)
	for kw := range e.keywords {
		unindex(c.byKeyword, kw, id)
	}
}

func index(m map[string]map[string]struct{}, key, id string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[id] = struct{}{}
}

func unindex(m map[string]map[string]struct{}, key, id string) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m, key)
	}
}

// similarity is the keyword cosine. Two queries with no keywords at all
// match only when their text is identical.
func similarity(a, b map[string]struct{}, normA, normB string) float64 {
	if len(a) == 0 && len(b) == 0 {
		if normA == normB {
			return 1
		}
		return 0
	}
	return analyzer.Cosine(a, b)
}

func normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
