package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/adapter/budget"
	"ctxopt/internal/adapter/classifier"
	"ctxopt/internal/domain"
	"ctxopt/internal/logging"
	"ctxopt/internal/port"
)

const (
	DefaultMaxFallbacks   = 2
	DefaultMinConfidence  = 0.5
	DefaultTokenThreshold = 500
	DefaultSearchTimeout  = 30 * time.Second
)

// RouterConfig holds the engine-wide search defaults. SearchOptions
// override them per call.
type RouterConfig struct {
	Strategy       domain.StrategyKind
	MaxResults     int
	Timeout        time.Duration
	EnableFallback bool
	// MaxFallbacks caps the alternatives tried after the recommended
	// strategy. Zero tries none; SearchOptions.MaxFallbacks only raises or
	// lowers it when positive.
	MaxFallbacks   int
	MinConfidence  float64
	TokenThreshold int
	Mode           domain.ExtractionMode
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Strategy:       domain.StrategyAuto,
		MaxResults:     20,
		Timeout:        DefaultSearchTimeout,
		EnableFallback: true,
		MaxFallbacks:   DefaultMaxFallbacks,
		MinConfidence:  DefaultMinConfidence,
		TokenThreshold: DefaultTokenThreshold,
		Mode:           domain.ModeSignatures,
	}
}

// Router classifies a query, runs strategies along the fallback chain and
// shapes the winning results to the token budget.
type Router struct {
	cfg        RouterConfig
	analyzer   *classifier.Analyzer
	strategies map[domain.StrategyKind]port.Strategy
	optimizer  *Optimizer
	budget     *budget.Tracker
	estimator  analyzer.Estimator
	logger     *slog.Logger
}

func NewRouter(
	cfg RouterConfig,
	a *classifier.Analyzer,
	strategies map[domain.StrategyKind]port.Strategy,
	optimizer *Optimizer,
	b *budget.Tracker,
	est analyzer.Estimator,
	logger *slog.Logger,
) *Router {
	return &Router{
		cfg:        cfg,
		analyzer:   a,
		strategies: strategies,
		optimizer:  optimizer,
		budget:     b,
		estimator:  est,
		logger:     logging.OrDiscard(logger).With("component", "router"),
	}
}

// Search runs the query. It returns an error only when every attempted
// strategy failed; the partial result still lists the attempts.
func (r *Router) Search(ctx context.Context, query string, scope []string, opts domain.SearchOptions) (domain.UnifiedSearchResult, error) {
	start := time.Now()
	opts = r.withDefaults(opts)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	analysis := r.analyzer.Analyze(query)
	out := domain.UnifiedSearchResult{QueryAnalysis: analysis}

	chain := r.chain(analysis, opts)
	chosen, attempts, err := r.run(ctx, query, scope, opts, analysis, chain)
	out.StrategyResults = attempts
	if err != nil {
		out.TotalExecutionTimeMs = time.Since(start).Milliseconds()
		return out, err
	}

	results := chosen.Results
	if len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	results = r.optimize(query, results, opts.Mode)
	results, tokens, exceeded := r.admit(results, opts.StrictBudget)

	out.Results = results
	out.StrategyUsed = chosen.Strategy
	out.ResultCount = len(results)
	out.TokensUsed = tokens
	out.BudgetExceeded = exceeded
	out.FromCache = allFromCache(results)
	out.TotalExecutionTimeMs = time.Since(start).Milliseconds()
	return out, nil
}

func (r *Router) withDefaults(opts domain.SearchOptions) domain.SearchOptions {
	if opts.Strategy == domain.StrategyAuto {
		opts.Strategy = r.cfg.Strategy
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = r.cfg.MaxResults
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = r.cfg.Timeout
	}
	if !r.cfg.EnableFallback {
		opts.DisableFallback = true
	}
	if opts.MaxFallbacks <= 0 {
		opts.MaxFallbacks = r.cfg.MaxFallbacks
	}
	if opts.Mode == domain.ModeFull {
		opts.Mode = r.cfg.Mode
	}
	return opts
}

// chain is the ordered list of strategies to try. A pinned strategy is
// tried alone.
func (r *Router) chain(a domain.QueryAnalysis, opts domain.SearchOptions) []domain.StrategyKind {
	if opts.Strategy != domain.StrategyAuto {
		return []domain.StrategyKind{opts.Strategy}
	}
	chain := []domain.StrategyKind{a.RecommendedStrategy}
	if opts.DisableFallback {
		return chain
	}
	alts := a.AlternativeStrategies
	if len(alts) > opts.MaxFallbacks {
		alts = alts[:opts.MaxFallbacks]
	}
	return append(chain, alts...)
}

// run walks the chain. A strategy failure, or an empty result while the
// classifier is unsure, moves on to the next entry. An empty but
// successful attempt is kept in case nothing better turns up.
func (r *Router) run(ctx context.Context, query string, scope []string, opts domain.SearchOptions, a domain.QueryAnalysis, chain []domain.StrategyKind) (domain.StrategyResult, []domain.StrategyAttempt, error) {
	var (
		attempts  []domain.StrategyAttempt
		errs      []error
		lastEmpty *domain.StrategyResult
	)

	for i, kind := range chain {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res, err := r.execute(ctx, kind, query, scope, opts)
		attempt := domain.StrategyAttempt{
			Strategy:        kind,
			Success:         err == nil,
			ResultCount:     len(res.Results),
			ExecutionTimeMs: res.ExecutionTimeMs,
		}
		if err != nil {
			attempt.Error = err.Error()
		}
		attempts = append(attempts, attempt)

		last := i == len(chain)-1
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			if !last {
				r.logger.Info("strategy failed, falling back", "strategy", kind, "next", chain[i+1], "error", err)
			}
		case len(res.Results) == 0 && a.Confidence < r.minConfidence() && !last:
			r.logger.Info("no results with low confidence, falling back",
				"strategy", kind, "confidence", a.Confidence, "next", chain[i+1])
			lastEmpty = &res
		default:
			return res, attempts, nil
		}
	}

	if lastEmpty != nil {
		return *lastEmpty, attempts, nil
	}
	return domain.StrategyResult{}, attempts, fmt.Errorf("router: %w", errors.Join(append([]error{domain.ErrAllStrategiesFailed}, errs...)...))
}

func (r *Router) execute(ctx context.Context, kind domain.StrategyKind, query string, scope []string, opts domain.SearchOptions) (domain.StrategyResult, error) {
	s, ok := r.strategies[kind]
	if !ok {
		return domain.StrategyResult{Strategy: kind}, fmt.Errorf("%s not configured: %w", kind, domain.ErrUnknownStrategy)
	}
	return s.Execute(ctx, query, scope, opts)
}

func (r *Router) minConfidence() float64 {
	if r.cfg.MinConfidence > 0 {
		return r.cfg.MinConfidence
	}
	return DefaultMinConfidence
}

// optimize reduces every result whose content exceeds the token threshold.
// An extraction that finds no declarations keeps the raw content.
func (r *Router) optimize(query string, results []domain.SearchResult, mode domain.ExtractionMode) []domain.SearchResult {
	threshold := r.cfg.TokenThreshold
	if threshold <= 0 {
		threshold = DefaultTokenThreshold
	}
	if r.optimizer == nil || mode == domain.ModeFull {
		return results
	}

	for i := range results {
		res := &results[i]
		if r.estimator.Estimate(res.Content) <= threshold {
			continue
		}
		key := cacheKey(absPath(res.FilePath), mode) + "::L" + strconv.Itoa(res.LineNumber)
		opt := r.optimizer.reduce(res.FilePath, key, res.Content, mode, query)
		if opt.Content == "" || opt.OptimizedTokens >= opt.OriginalTokens {
			continue
		}
		res.Content = opt.Content
		res.Optimized = true
		res.CacheHit = res.CacheHit || opt.CacheHit
	}
	return results
}

// admit charges the budget for the returned content. In strict mode
// results that no longer fit are dropped.
func (r *Router) admit(results []domain.SearchResult, strict bool) ([]domain.SearchResult, int, bool) {
	if !strict {
		total := 0
		for _, res := range results {
			total += r.estimator.Estimate(res.Content)
		}
		check, _ := r.budget.Admit(total, false)
		return results, total, !check.Allowed
	}

	kept := results[:0]
	total, exceeded := 0, false
	for _, res := range results {
		n := r.estimator.Estimate(res.Content)
		if _, err := r.budget.Admit(n, true); err != nil {
			exceeded = true
			continue
		}
		total += n
		kept = append(kept, res)
	}
	if exceeded {
		r.logger.Warn("strict budget dropped results", "kept", len(kept), "dropped", len(results)-len(kept))
	}
	return kept, total, exceeded
}

// allFromCache reports whether every content-bearing result came from the
// cache. An empty set is not from cache.
func allFromCache(results []domain.SearchResult) bool {
	seen := false
	for _, res := range results {
		if res.Content == "" {
			continue
		}
		if !res.CacheHit {
			return false
		}
		seen = true
	}
	return seen
}
