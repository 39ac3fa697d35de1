package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/adapter/budget"
	"ctxopt/internal/adapter/cache"
	"ctxopt/internal/adapter/classifier"
	"ctxopt/internal/adapter/strategy"
	"ctxopt/internal/adapter/surgeon"
	"ctxopt/internal/domain"
	"ctxopt/internal/logging"
	"ctxopt/internal/port"
)

// EngineConfig is the full set of engine options. Zero values select the
// package defaults.
type EngineConfig struct {
	MaxTokens         int
	WarnThreshold     float64
	CriticalThreshold float64
	CharsPerToken     float64

	DefaultMode domain.ExtractionMode

	EnableCache         bool
	CacheSize           int
	CacheTTL            time.Duration
	SimilarityThreshold float64

	Router RouterConfig

	LiteralWeight   float64
	SemanticWeight  float64
	LiteralMaxCount int
	IncludeContent  bool
	NoRerank        bool

	// IndexOnDemand indexes the search scope before a search when it is
	// not in the index yet.
	IndexOnDemand bool

	// Stemming must match how the index chunks were tokenized.
	Stemming bool
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxTokens:           budget.DefaultMaxTokens,
		WarnThreshold:       budget.DefaultWarnThreshold,
		CriticalThreshold:   budget.DefaultCriticalThreshold,
		DefaultMode:         domain.ModeSignatures,
		EnableCache:         true,
		CacheSize:           cache.DefaultMaxSize,
		CacheTTL:            cache.DefaultTTL,
		SimilarityThreshold: cache.DefaultThreshold,
		Router:              DefaultRouterConfig(),
		LiteralWeight:       strategy.DefaultLiteralWeight,
		SemanticWeight:      strategy.DefaultSemanticWeight,
		IncludeContent:      true,
	}
}

// EngineDeps are the external collaborators. Any of them may be nil; the
// strategies that need a missing one report ErrStrategyUnavailable.
type EngineDeps struct {
	Content  port.ContentProvider
	Literal  port.LiteralSearcher
	Index    port.IndexStore
	Embedder port.Embedder
	Vectors  port.VectorStore
	Indexer  *IndexUseCase
	Logger   *slog.Logger
}

// Engine is the public entry point. Each engine owns its cache and budget,
// so several engines in one process do not share state.
type Engine struct {
	cfg       EngineConfig
	content   port.ContentProvider
	surgeon   *surgeon.Surgeon
	cache     *cache.SimilarityCache
	budget    *budget.Tracker
	estimator analyzer.Estimator
	analyzer  *classifier.Analyzer
	optimizer *Optimizer
	router    *Router
	indexer   *IndexUseCase
	logger    *slog.Logger
}

func NewEngine(cfg EngineConfig, deps EngineDeps) *Engine {
	logger := logging.OrDiscard(deps.Logger)
	est := analyzer.NewEstimator(cfg.CharsPerToken)
	tok := analyzer.NewTokenizer(est)

	var c *cache.SimilarityCache
	if cfg.EnableCache {
		c = cache.NewSimilarityCache(tok, cache.Config{
			MaxSize:   cfg.CacheSize,
			TTL:       cfg.CacheTTL,
			Threshold: cfg.SimilarityThreshold,
			Logger:    logger,
		})
	}
	b := budget.NewTracker(cfg.MaxTokens, cfg.WarnThreshold, cfg.CriticalThreshold, est, logger)
	s := surgeon.New()
	opt := NewOptimizer(s, c, b, est, logger)

	strategies := strategy.All(strategy.Deps{
		Literal:         deps.Literal,
		Index:           deps.Index,
		Cache:           c,
		Tokenizer:       searchTokenizer(est, cfg.Stemming),
		Embedder:        deps.Embedder,
		Vectors:         deps.Vectors,
		LiteralWeight:   cfg.LiteralWeight,
		SemanticWeight:  cfg.SemanticWeight,
		LiteralMaxCount: cfg.LiteralMaxCount,
		IncludeContent:  cfg.IncludeContent,
		NoRerank:        cfg.NoRerank,
		Logger:          logger,
	})

	routerCfg := cfg.Router
	if cfg.DefaultMode != domain.ModeFull {
		routerCfg.Mode = cfg.DefaultMode
	}
	a := classifier.New(tok)

	return &Engine{
		cfg:       cfg,
		content:   deps.Content,
		surgeon:   s,
		cache:     c,
		budget:    b,
		estimator: est,
		analyzer:  a,
		optimizer: opt,
		router:    NewRouter(routerCfg, a, strategies, opt, b, est, logger),
		indexer:   deps.Indexer,
		logger:    logger.With("component", "engine"),
	}
}

// searchTokenizer tokenizes queries for the strategies that score them
// against indexed chunk terms.
func searchTokenizer(est analyzer.Estimator, stemming bool) *analyzer.Tokenizer {
	if stemming {
		return analyzer.NewTokenizer(est, analyzer.WithStemming())
	}
	return analyzer.NewTokenizer(est)
}

// OptimizeRequest is one optimize call. Content is read from FilePath when
// nil, so an empty file can still be passed inline; Mode is the configured
// default when empty.
type OptimizeRequest struct {
	FilePath     string
	Content      *string
	Mode         string
	Query        string
	StrictBudget bool
}

// Optimize reduces one file to the requested mode and charges the budget.
func (e *Engine) Optimize(ctx context.Context, req OptimizeRequest) (domain.OptimizationResult, error) {
	mode := e.cfg.DefaultMode
	if req.Mode != "" {
		m, err := domain.ParseMode(req.Mode)
		if err != nil {
			return domain.OptimizationResult{}, fmt.Errorf("optimize: %w", err)
		}
		mode = m
	}

	var content string
	switch {
	case req.Content != nil:
		content = *req.Content
	case e.content == nil:
		return domain.OptimizationResult{}, fmt.Errorf("optimize %s: no content: %w", req.FilePath, domain.ErrNotFound)
	default:
		read, err := e.content.ReadFile(req.FilePath)
		if err != nil {
			return domain.OptimizationResult{}, fmt.Errorf("optimize: %w", err)
		}
		content = read
	}

	res, err := e.optimizer.Optimize(ctx, absPath(req.FilePath), content, mode, req.Query, req.StrictBudget)
	res.FilePath = req.FilePath
	return res, err
}

// Search routes query to a strategy, optimizes and budgets the results.
// scope restricts results to files under the given paths.
func (e *Engine) Search(ctx context.Context, query string, scope []string, opts domain.SearchOptions) (domain.UnifiedSearchResult, error) {
	if e.cfg.IndexOnDemand && e.indexer != nil && opts.Strategy != domain.StrategyLiteral {
		if err := e.indexer.EnsureIndexed(ctx, scope); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return domain.UnifiedSearchResult{}, err
			}
			e.logger.Warn("on-demand indexing failed", "scope", scope, "error", err)
		}
	}
	return e.router.Search(ctx, query, scope, opts)
}

// Analyze classifies a query without searching.
func (e *Engine) Analyze(query string) domain.QueryAnalysis {
	return e.analyzer.Analyze(query)
}

// AnalyzeFile reports declaration counts for a file without reducing it or
// charging the budget.
func (e *Engine) AnalyzeFile(filePath, content string) (domain.ExtractionResult, error) {
	if content == "" && e.content != nil {
		read, err := e.content.ReadFile(filePath)
		if err != nil {
			return domain.ExtractionResult{}, fmt.Errorf("analyze: %w", err)
		}
		content = read
	}
	return e.surgeon.Analyze(surgeon.DetectLanguage(filePath), content), nil
}

func (e *Engine) BudgetStatus() domain.BudgetStatus {
	return e.budget.Status()
}

func (e *Engine) ResetBudget() {
	e.budget.Reset()
}

// CacheStats reports zero stats when caching is disabled.
func (e *Engine) CacheStats() domain.CacheStats {
	if e.cache == nil {
		return domain.CacheStats{}
	}
	return e.cache.Stats()
}

// InvalidateFile drops cached extractions of filePath and returns how many
// were removed.
func (e *Engine) InvalidateFile(filePath string) int {
	if e.cache == nil {
		return 0
	}
	return e.cache.InvalidateFile(absPath(filePath))
}

// ClearCache drops every cached extraction.
func (e *Engine) ClearCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

// Indexer is the engine's corpus indexer, or nil.
func (e *Engine) Indexer() *IndexUseCase {
	return e.indexer
}
