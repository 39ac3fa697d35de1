package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/adapter/budget"
	"ctxopt/internal/adapter/cache"
	"ctxopt/internal/adapter/surgeon"
	"ctxopt/internal/domain"
	"ctxopt/internal/logging"
)

// Optimizer reduces file content with the surgeon, consulting the
// similarity cache first and charging the budget for what it returns.
type Optimizer struct {
	surgeon   *surgeon.Surgeon
	cache     *cache.SimilarityCache
	budget    *budget.Tracker
	estimator analyzer.Estimator
	logger    *slog.Logger
}

// NewOptimizer wires an optimizer. A nil cache disables caching.
func NewOptimizer(s *surgeon.Surgeon, c *cache.SimilarityCache, b *budget.Tracker, est analyzer.Estimator, logger *slog.Logger) *Optimizer {
	return &Optimizer{
		surgeon:   s,
		cache:     c,
		budget:    b,
		estimator: est,
		logger:    logging.OrDiscard(logger).With("component", "optimizer"),
	}
}

// Optimize reduces content of filePath to mode and admits the optimized
// size to the budget; with strict set an overrun fails with
// ErrBudgetExceeded and nothing is charged. Otherwise the optimized tokens
// are charged.
func (o *Optimizer) Optimize(ctx context.Context, filePath, content string, mode domain.ExtractionMode, query string, strict bool) (domain.OptimizationResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.OptimizationResult{}, err
	}

	res := o.reduce(filePath, cacheKey(filePath, mode), content, mode, query)

	check, err := o.budget.Admit(res.OptimizedTokens, strict)
	if err != nil {
		return res, fmt.Errorf("optimize %s: %w", filePath, err)
	}

	o.logger.Debug("optimized",
		"file", filePath,
		"mode", mode,
		"original", res.OriginalTokens,
		"optimized", res.OptimizedTokens,
		"cacheHit", res.CacheHit,
		"budgetRatio", check.UsageRatio)
	return res, nil
}

// reduce extracts without touching the budget. key identifies the cached
// extraction; it starts with filePath so file invalidation reaches it.
func (o *Optimizer) reduce(filePath, key, content string, mode domain.ExtractionMode, query string) domain.OptimizationResult {
	res := domain.OptimizationResult{
		FilePath:       filePath,
		Mode:           mode,
		OriginalTokens: o.estimator.Estimate(content),
	}

	if o.cache != nil {
		if entry, ok := o.cache.Get(query, key); ok {
			res.Content = entry.Content
			res.OptimizedTokens = entry.TokenCount
			res.CacheHit = true
			res.SavingsPercent = savings(res.OriginalTokens, res.OptimizedTokens)
			return res
		}
	}

	res.Content = o.surgeon.ExtractFile(filePath, content, mode)
	res.OptimizedTokens = o.estimator.Estimate(res.Content)
	res.SavingsPercent = savings(res.OriginalTokens, res.OptimizedTokens)

	if o.cache != nil {
		o.cache.Set(query, key, res.Content, res.OptimizedTokens)
	}
	return res
}

func cacheKey(filePath string, mode domain.ExtractionMode) string {
	return filePath + "::" + mode.String()
}

// absPath is the form of a path used in cache keys. Every writer and
// InvalidateFile go through it so relative and absolute spellings of one
// file share entries.
func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func savings(original, optimized int) float64 {
	if original <= 0 {
		return 0
	}
	return float64(original-optimized) / float64(original) * 100
}
