// Package strategy implements the retrieval strategies the router chooses
// between: literal (external exact-match tool), semantic (keyword cosine
// over the indexed corpus, optionally blended with embeddings) and hybrid
// (both, merged).
package strategy

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/adapter/cache"
	"ctxopt/internal/domain"
	"ctxopt/internal/logging"
	"ctxopt/internal/port"
)

const (
	DefaultMaxResults     = 20
	DefaultLiteralWeight  = 0.5
	DefaultSemanticWeight = 0.5
)

// Deps are the collaborators a strategy may need. Nil collaborators make
// the strategies that depend on them report ErrStrategyUnavailable.
type Deps struct {
	Literal   port.LiteralSearcher
	Index     port.IndexStore
	Cache     *cache.SimilarityCache
	Tokenizer *analyzer.Tokenizer

	// Embedder and Vectors are optional; without them semantic search
	// scores by keywords only.
	Embedder port.Embedder
	Vectors  port.VectorStore

	LiteralWeight  float64
	SemanticWeight float64

	// Literal tool flags applied to every request.
	LiteralMaxCount int
	IncludeContent  bool
	NoRerank        bool

	Logger *slog.Logger
}

// New builds the strategy for kind. StrategyAuto is not a concrete strategy
// and is rejected.
func New(kind domain.StrategyKind, deps Deps) (port.Strategy, error) {
	if deps.Tokenizer == nil {
		deps.Tokenizer = analyzer.NewTokenizer(analyzer.NewEstimator(0))
	}
	deps.Logger = logging.OrDiscard(deps.Logger)

	switch kind {
	case domain.StrategyLiteral:
		return newLiteral(deps), nil
	case domain.StrategySemantic:
		return newSemantic(deps), nil
	case domain.StrategyHybrid:
		return newHybrid(deps), nil
	case domain.StrategyAuto:
		return nil, fmt.Errorf("strategy: auto is resolved by the router: %w", domain.ErrUnknownStrategy)
	default:
		return nil, fmt.Errorf("strategy: %d: %w", int(kind), domain.ErrUnknownStrategy)
	}
}

// All builds every concrete strategy keyed by kind.
func All(deps Deps) map[domain.StrategyKind]port.Strategy {
	out := make(map[domain.StrategyKind]port.Strategy, len(domain.Strategies()))
	for _, kind := range domain.Strategies() {
		s, err := New(kind, deps)
		if err != nil {
			continue
		}
		out[kind] = s
	}
	return out
}

func maxResults(opts domain.SearchOptions) int {
	if opts.MaxResults > 0 {
		return opts.MaxResults
	}
	return DefaultMaxResults
}

// rank sorts by descending score, then path and line for a stable order,
// and truncates to n.
func rank(results []domain.SearchResult, n int) []domain.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.LineNumber < b.LineNumber
	})
	if n > 0 && len(results) > n {
		results = results[:n]
	}
	return results
}

func topScore(results []domain.SearchResult) float64 {
	best := 0.0
	for _, r := range results {
		if r.Score > best {
			best = r.Score
		}
	}
	return best
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// inScope reports whether path lies under one of scope. An empty scope
// admits everything.
func inScope(path string, scope []string) bool {
	if len(scope) == 0 {
		return true
	}
	abs := absPath(path)
	for _, s := range scope {
		root := absPath(s)
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// cachedFile strips the "::mode" suffix the optimizer adds to cache keys.
func cachedFile(key string) string {
	if i := strings.Index(key, "::"); i >= 0 {
		return key[:i]
	}
	return key
}
