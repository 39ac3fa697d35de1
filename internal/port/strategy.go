package port

import (
	"context"

	"ctxopt/internal/domain"
)

// Strategy executes a query against the corpus with one matching approach.
type Strategy interface {
	Kind() domain.StrategyKind

	Execute(ctx context.Context, query string, scope []string, opts domain.SearchOptions) (domain.StrategyResult, error)
}
