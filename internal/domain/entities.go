package domain

import "time"

// Document is a file known to the corpus index.
type Document struct {
	ID      string
	Path    string
	ModTime time.Time
	Lang    string
}

// Chunk is a contiguous line range of a document. Tokens holds the keyword
// set used for similarity scoring.
type Chunk struct {
	ID        string
	DocID     string
	StartLine int
	EndLine   int
	Tokens    []string
	Text      string
}

type Posting struct {
	ChunkID string
	TF      int
}

type Stats struct {
	TotalDocs   int
	TotalChunks int
	AvgChunkLen float64
}

// TokenBudget is the per-session token ceiling. UsedTokens only grows until
// an explicit reset and may exceed MaxTokens when enforcement is advisory.
type TokenBudget struct {
	MaxTokens         int     `json:"maxTokens"`
	UsedTokens        int     `json:"usedTokens"`
	WarnThreshold     float64 `json:"warnThreshold"`
	CriticalThreshold float64 `json:"criticalThreshold"`
}

// UsageRatio returns used/max, or 0 for a zero ceiling.
func (b TokenBudget) UsageRatio() float64 {
	if b.MaxTokens <= 0 {
		return 0
	}
	return float64(b.UsedTokens) / float64(b.MaxTokens)
}

func (b TokenBudget) Remaining() int {
	if b.UsedTokens >= b.MaxTokens {
		return 0
	}
	return b.MaxTokens - b.UsedTokens
}

// BudgetCheck is the outcome of asking whether content would fit.
type BudgetCheck struct {
	Allowed         bool    `json:"allowed"`
	EstimatedTokens int     `json:"estimatedTokens"`
	UsageRatio      float64 `json:"usageRatio"`
	StatusMessage   string  `json:"statusMessage"`
}

// BudgetStatus is a snapshot of the tracker state.
type BudgetStatus struct {
	TokenBudget
	UsageRatio float64 `json:"usageRatio"`
	Remaining  int     `json:"remaining"`
	Level      string  `json:"level"`
	Message    string  `json:"message"`
}

// ExtractionResult describes a single file after structural reduction.
type ExtractionResult struct {
	Content       string `json:"content"`
	LineCount     int    `json:"lineCount"`
	FunctionCount int    `json:"functionCount"`
	ClassCount    int    `json:"classCount"`
	TypeCount     int    `json:"typeCount"`
	ImportCount   int    `json:"importCount"`
}

// CacheEntry is an extraction previously computed for a (query, file) pair.
type CacheEntry struct {
	ID             string    `json:"id"`
	Query          string    `json:"query"`
	FilePath       string    `json:"filePath"`
	Content        string    `json:"content"`
	TokenCount     int       `json:"tokenCount"`
	CreatedAt      time.Time `json:"createdAt"`
	AccessCount    int       `json:"accessCount"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
}

type SimilarEntry struct {
	Entry      CacheEntry `json:"entry"`
	Similarity float64    `json:"similarity"`
}

type CacheStats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	HitRate      float64 `json:"hitRate"`
	TotalEntries int     `json:"totalEntries"`
}

// QueryAnalysis is the classifier verdict for one query.
type QueryAnalysis struct {
	Type                  QueryType      `json:"type"`
	Confidence            float64        `json:"confidence"`
	RecommendedStrategy   StrategyKind   `json:"recommendedStrategy"`
	AlternativeStrategies []StrategyKind `json:"alternativeStrategies"`
	ExtractedTerms        []string       `json:"extractedTerms"`
}

// SearchResult is one hit. LineNumber is 1-based; EndLine and ColumnNumber
// are zero when the producing strategy does not know them.
type SearchResult struct {
	FilePath      string       `json:"filePath"`
	LineNumber    int          `json:"lineNumber"`
	EndLine       int          `json:"endLine,omitempty"`
	ColumnNumber  int          `json:"columnNumber,omitempty"`
	Content       string       `json:"content"`
	ContextBefore string       `json:"contextBefore,omitempty"`
	ContextAfter  string       `json:"contextAfter,omitempty"`
	Score         float64      `json:"score"`
	Strategy      StrategyKind `json:"strategy"`
	Optimized     bool         `json:"optimized,omitempty"`
	CacheHit      bool         `json:"cacheHit,omitempty"`
}

type StrategyResult struct {
	Strategy        StrategyKind   `json:"strategy"`
	Score           float64        `json:"score"`
	Results         []SearchResult `json:"results"`
	ExecutionTimeMs int64          `json:"executionTimeMs"`
}

// StrategyAttempt records one step of the fallback chain.
type StrategyAttempt struct {
	Strategy        StrategyKind `json:"strategy"`
	Success         bool         `json:"success"`
	Error           string       `json:"error,omitempty"`
	ResultCount     int          `json:"resultCount"`
	ExecutionTimeMs int64        `json:"executionTimeMs"`
}

type UnifiedSearchResult struct {
	Results              []SearchResult    `json:"results"`
	StrategyUsed         StrategyKind      `json:"strategyUsed"`
	QueryAnalysis        QueryAnalysis     `json:"queryAnalysis"`
	StrategyResults      []StrategyAttempt `json:"strategyResults"`
	TotalExecutionTimeMs int64             `json:"totalExecutionTimeMs"`
	ResultCount          int               `json:"resultCount"`
	FromCache            bool              `json:"fromCache"`
	TokensUsed           int               `json:"tokensUsed"`
	BudgetExceeded       bool              `json:"budgetExceeded,omitempty"`
}

// SearchOptions are per-call overrides. Zero values fall back to the
// engine configuration.
type SearchOptions struct {
	Strategy        StrategyKind
	MaxResults      int
	Timeout         time.Duration
	DisableFallback bool
	MaxFallbacks    int
	CaseInsensitive bool
	StrictBudget    bool
	Mode            ExtractionMode
}

// OptimizationResult is returned by the optimize entry point.
type OptimizationResult struct {
	FilePath        string         `json:"filePath"`
	Content         string         `json:"content"`
	OriginalTokens  int            `json:"originalTokens"`
	OptimizedTokens int            `json:"optimizedTokens"`
	SavingsPercent  float64        `json:"savingsPercent"`
	Mode            ExtractionMode `json:"mode"`
	CacheHit        bool           `json:"cacheHit"`
}
