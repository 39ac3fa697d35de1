package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"ctxopt/internal/domain"
)

// Hybrid runs the literal and semantic strategies concurrently and merges
// their results. It fails only when both sides fail.
type Hybrid struct {
	literal  *Literal
	semantic *Semantic
	wl, ws   float64
	logger   *slog.Logger
}

func newHybrid(deps Deps) *Hybrid {
	wl, ws := deps.LiteralWeight, deps.SemanticWeight
	if wl <= 0 && ws <= 0 {
		wl, ws = DefaultLiteralWeight, DefaultSemanticWeight
	}
	return &Hybrid{
		literal:  newLiteral(deps),
		semantic: newSemantic(deps),
		wl:       wl,
		ws:       ws,
		logger:   deps.Logger.With("strategy", "hybrid"),
	}
}

func (h *Hybrid) Kind() domain.StrategyKind { return domain.StrategyHybrid }

func (h *Hybrid) Execute(ctx context.Context, query string, scope []string, opts domain.SearchOptions) (domain.StrategyResult, error) {
	start := time.Now()
	res := domain.StrategyResult{Strategy: domain.StrategyHybrid}

	var (
		lit, sem       domain.StrategyResult
		litErr, semErr error
	)
	// Side errors are captured rather than returned so one failure does
	// not cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		lit, litErr = h.literal.Execute(ctx, query, scope, opts)
		return nil
	})
	g.Go(func() error {
		sem, semErr = h.semantic.Execute(ctx, query, scope, opts)
		return nil
	})
	_ = g.Wait()

	res.ExecutionTimeMs = elapsedMs(start)
	if litErr != nil && semErr != nil {
		return res, fmt.Errorf("hybrid: %w", errors.Join(litErr, semErr))
	}
	if litErr != nil {
		h.logger.Debug("literal side failed", "error", litErr)
	}
	if semErr != nil {
		h.logger.Debug("semantic side failed", "error", semErr)
	}

	res.Results = rank(h.merge(lit.Results, sem.Results), maxResults(opts))
	res.Score = topScore(res.Results)
	return res, nil
}

// merge de-duplicates on (file, line) and combines max-normalized scores
// with the configured weights. Literal content wins on collisions.
func (h *Hybrid) merge(lit, sem []domain.SearchResult) []domain.SearchResult {
	merged := make(map[string]*domain.SearchResult)
	var order []string

	add := func(results []domain.SearchResult, weight float64, preferContent bool) {
		norm := topScore(results)
		for _, r := range results {
			score := 0.0
			if norm > 0 {
				score = weight * r.Score / norm
			}
			key := absPath(r.FilePath) + ":" + strconv.Itoa(r.LineNumber)
			if m, ok := merged[key]; ok {
				m.Score += score
				if preferContent && r.Content != "" {
					m.Content = r.Content
				}
				if r.EndLine > m.EndLine {
					m.EndLine = r.EndLine
				}
				continue
			}
			r.Score = score
			r.Strategy = domain.StrategyHybrid
			merged[key] = &r
			order = append(order, key)
		}
	}
	add(lit, h.wl, true)
	add(sem, h.ws, false)

	out := make([]domain.SearchResult, 0, len(order))
	for _, k := range order {
		out = append(out, *merged[k])
	}
	return out
}
