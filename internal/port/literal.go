package port

import (
	"context"

	"ctxopt/internal/domain"
)

// LiteralRequest is one invocation of the external literal-search tool.
type LiteralRequest struct {
	Query           string
	Paths           []string
	CaseInsensitive bool
	Recursive       bool
	MaxCount        int
	IncludeContent  bool
	NoRerank        bool
}

// LiteralSearcher runs an exact-match search. A failed or missing tool is
// an error, never an empty result.
type LiteralSearcher interface {
	Search(ctx context.Context, req LiteralRequest) ([]domain.SearchResult, error)
}
