package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ctxopt/internal/domain"
	"ctxopt/internal/port"
)

// Literal delegates to the external exact-match tool.
type Literal struct {
	searcher port.LiteralSearcher
	maxCount int
	content  bool
	noRerank bool
	logger   *slog.Logger
}

func newLiteral(deps Deps) *Literal {
	return &Literal{
		searcher: deps.Literal,
		maxCount: deps.LiteralMaxCount,
		content:  deps.IncludeContent,
		noRerank: deps.NoRerank,
		logger:   deps.Logger.With("strategy", "literal"),
	}
}

func (s *Literal) Kind() domain.StrategyKind { return domain.StrategyLiteral }

func (s *Literal) Execute(ctx context.Context, query string, scope []string, opts domain.SearchOptions) (domain.StrategyResult, error) {
	start := time.Now()
	res := domain.StrategyResult{Strategy: domain.StrategyLiteral}
	if s.searcher == nil {
		return res, fmt.Errorf("literal: no search executable configured: %w", domain.ErrStrategyUnavailable)
	}

	maxCount := s.maxCount
	if maxCount <= 0 {
		maxCount = maxResults(opts)
	}
	results, err := s.searcher.Search(ctx, port.LiteralRequest{
		Query:           query,
		Paths:           scope,
		CaseInsensitive: opts.CaseInsensitive,
		Recursive:       true,
		MaxCount:        maxCount,
		IncludeContent:  s.content,
		NoRerank:        s.noRerank,
	})
	res.ExecutionTimeMs = elapsedMs(start)
	if err != nil {
		s.logger.Debug("literal search failed", "error", err)
		return res, err
	}

	for i := range results {
		results[i].Strategy = domain.StrategyLiteral
	}
	res.Results = rank(results, maxResults(opts))
	res.Score = topScore(res.Results)
	return res, nil
}
