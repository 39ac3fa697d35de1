package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/adapter/budget"
	"ctxopt/internal/adapter/cache"
	"ctxopt/internal/adapter/classifier"
	"ctxopt/internal/adapter/surgeon"
	"ctxopt/internal/domain"
	"ctxopt/internal/logging"
	"ctxopt/internal/port"
)

type fakeStrategy struct {
	kind    domain.StrategyKind
	results []domain.SearchResult
	err     error
	calls   int
}

func (f *fakeStrategy) Kind() domain.StrategyKind { return f.kind }

func (f *fakeStrategy) Execute(ctx context.Context, query string, scope []string, opts domain.SearchOptions) (domain.StrategyResult, error) {
	f.calls++
	res := domain.StrategyResult{Strategy: f.kind}
	if f.err != nil {
		return res, f.err
	}
	for _, r := range f.results {
		r.Strategy = f.kind
		res.Results = append(res.Results, r)
	}
	return res, nil
}

type fakeLiteral struct {
	content string
}

func (f *fakeLiteral) Search(ctx context.Context, req port.LiteralRequest) ([]domain.SearchResult, error) {
	return []domain.SearchResult{hit("./big.go", 1, f.content)}, nil
}

type countingReader struct {
	reads int
}

func (r *countingReader) ReadFile(path string) (string, error) {
	r.reads++
	return goSource(3), nil
}

func hit(path string, line int, content string) domain.SearchResult {
	return domain.SearchResult{FilePath: path, LineNumber: line, Content: content, Score: 1}
}

type routerFixture struct {
	router     *Router
	budget     *budget.Tracker
	strategies map[domain.StrategyKind]*fakeStrategy
}

func newRouterFixture(t *testing.T, cfg RouterConfig, maxTokens int) *routerFixture {
	t.Helper()
	est := analyzer.NewEstimator(0)
	tok := analyzer.NewTokenizer(est)
	b := budget.NewTracker(maxTokens, 0, 0, est, logging.Discard())
	c := cache.NewSimilarityCache(tok, cache.Config{Logger: logging.Discard()})
	opt := NewOptimizer(surgeon.New(), c, b, est, logging.Discard())

	fakes := map[domain.StrategyKind]*fakeStrategy{}
	strategies := map[domain.StrategyKind]port.Strategy{}
	for _, kind := range domain.Strategies() {
		f := &fakeStrategy{kind: kind}
		fakes[kind] = f
		strategies[kind] = f
	}
	r := NewRouter(cfg, classifier.New(tok), strategies, opt, b, est, logging.Discard())
	return &routerFixture{router: r, budget: b, strategies: fakes}
}

func goSource(funcs int) string {
	var sb strings.Builder
	sb.WriteString("package sample\n\nimport \"fmt\"\n\n")
	for i := 0; i < funcs; i++ {
		fmt.Fprintf(&sb, "// Func%d formats a value.\n", i)
		fmt.Fprintf(&sb, "func Func%d(a int) string {\n", i)
		sb.WriteString("\tif a < 0 {\n\t\treturn \"negative\"\n\t}\n")
		sb.WriteString("\ttotal := 0\n\tfor i := 0; i < a; i++ {\n\t\ttotal += i * a\n\t}\n")
		sb.WriteString("\treturn fmt.Sprintf(\"%d-%d\", a, total)\n}\n\n")
	}
	return sb.String()
}

func TestEngine_OptimizeSignatures(t *testing.T) {
	e := NewEngine(DefaultEngineConfig(), EngineDeps{Logger: logging.Discard()})
	src := goSource(20)
	require.Greater(t, len(src), 4000)

	first, err := e.Optimize(context.Background(), OptimizeRequest{
		FilePath: "sample.go",
		Content:  &src,
		Mode:     "signatures",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeSignatures, first.Mode)
	assert.False(t, first.CacheHit)
	assert.Greater(t, first.SavingsPercent, 0.0)
	assert.Less(t, first.OptimizedTokens, first.OriginalTokens)
	assert.Contains(t, first.Content, "func Func0(a int) string")
	assert.NotContains(t, first.Content, "total += i * a")
	assert.Equal(t, "sample.go", first.FilePath)

	second, err := e.Optimize(context.Background(), OptimizeRequest{
		FilePath: "sample.go",
		Content:  &src,
		Mode:     "signatures",
	})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Content, second.Content)

	assert.Equal(t, first.OptimizedTokens*2, e.BudgetStatus().UsedTokens)
	stats := e.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, stats.TotalEntries)
}

func TestEngine_OptimizeDefaultsAndErrors(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.EnableCache = false
	e := NewEngine(cfg, EngineDeps{})

	src, short := goSource(2), "x"
	res, err := e.Optimize(context.Background(), OptimizeRequest{FilePath: "a.go", Content: &src})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeSignatures, res.Mode)
	assert.Equal(t, domain.CacheStats{}, e.CacheStats())

	_, err = e.Optimize(context.Background(), OptimizeRequest{FilePath: "a.go", Content: &short, Mode: "everything"})
	assert.ErrorIs(t, err, domain.ErrUnknownMode)

	_, err = e.Optimize(context.Background(), OptimizeRequest{FilePath: "missing.go"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEngine_OptimizeStrictBudget(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.MaxTokens = 10
	e := NewEngine(cfg, EngineDeps{})
	src := goSource(5)

	_, err := e.Optimize(context.Background(), OptimizeRequest{
		FilePath:     "big.go",
		Content:      &src,
		Mode:         "full",
		StrictBudget: true,
	})
	require.ErrorIs(t, err, domain.ErrBudgetExceeded)
	assert.Zero(t, e.BudgetStatus().UsedTokens)

	e.ResetBudget()
	_, err = e.Optimize(context.Background(), OptimizeRequest{FilePath: "big.go", Content: &src, Mode: "full"})
	require.NoError(t, err)
	assert.Equal(t, budget.LevelExceeded, e.BudgetStatus().Level)
}

func TestEngine_InvalidateFile(t *testing.T) {
	e := NewEngine(DefaultEngineConfig(), EngineDeps{})
	src := goSource(3)
	for _, mode := range []string{"signatures", "types_only"} {
		_, err := e.Optimize(context.Background(), OptimizeRequest{FilePath: "x.go", Content: &src, Mode: mode})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, e.InvalidateFile("x.go"))
	assert.Zero(t, e.CacheStats().TotalEntries)
}

func TestEngine_OptimizeEmptyInlineContent(t *testing.T) {
	reader := &countingReader{}
	e := NewEngine(DefaultEngineConfig(), EngineDeps{Content: reader})

	empty := ""
	res, err := e.Optimize(context.Background(), OptimizeRequest{FilePath: "empty.go", Content: &empty})
	require.NoError(t, err)
	assert.Zero(t, reader.reads)
	assert.Zero(t, res.OriginalTokens)
	assert.Empty(t, res.Content)

	res, err = e.Optimize(context.Background(), OptimizeRequest{FilePath: "disk.go"})
	require.NoError(t, err)
	assert.Equal(t, 1, reader.reads)
	assert.Contains(t, res.Content, "func Func0(a int) string")
}

func TestEngine_InvalidateFileReachesSearchResults(t *testing.T) {
	lit := &fakeLiteral{content: goSource(20)}
	e := NewEngine(DefaultEngineConfig(), EngineDeps{Literal: lit})
	opts := domain.SearchOptions{Strategy: domain.StrategyLiteral}

	first, err := e.Search(context.Background(), "func Func0(", nil, opts)
	require.NoError(t, err)
	require.Len(t, first.Results, 1)
	require.True(t, first.Results[0].Optimized)

	assert.Equal(t, 1, e.InvalidateFile("big.go"))

	lit.content = strings.ReplaceAll(goSource(20), "Func", "Handler")
	second, err := e.Search(context.Background(), "func Func0(", nil, opts)
	require.NoError(t, err)
	require.Len(t, second.Results, 1)
	assert.False(t, second.FromCache)
	assert.Contains(t, second.Results[0].Content, "func Handler0(a int) string")
	assert.NotContains(t, second.Results[0].Content, "func Func0(")
}

func TestEngines_AreIndependent(t *testing.T) {
	a := NewEngine(DefaultEngineConfig(), EngineDeps{})
	b := NewEngine(DefaultEngineConfig(), EngineDeps{})

	src := goSource(3)
	_, err := a.Optimize(context.Background(), OptimizeRequest{FilePath: "x.go", Content: &src})
	require.NoError(t, err)

	assert.Positive(t, a.BudgetStatus().UsedTokens)
	assert.Zero(t, b.BudgetStatus().UsedTokens)
	assert.Zero(t, b.CacheStats().TotalEntries)
}

func TestRouter_FallsBackOnFailure(t *testing.T) {
	f := newRouterFixture(t, DefaultRouterConfig(), 0)
	f.strategies[domain.StrategyLiteral].err = fmt.Errorf("literal: exit status 2: %w", domain.ErrStrategyUnavailable)
	f.strategies[domain.StrategyHybrid].results = []domain.SearchResult{hit("main.go", 3, "func main() {")}

	out, err := f.router.Search(context.Background(), "func main() {", nil, domain.SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.QueryCodePattern, out.QueryAnalysis.Type)
	assert.Equal(t, domain.StrategyHybrid, out.StrategyUsed)
	require.Len(t, out.StrategyResults, 2)
	assert.Equal(t, domain.StrategyLiteral, out.StrategyResults[0].Strategy)
	assert.False(t, out.StrategyResults[0].Success)
	assert.Contains(t, out.StrategyResults[0].Error, "exit status 2")
	assert.True(t, out.StrategyResults[1].Success)
	assert.Equal(t, 1, out.ResultCount)
	assert.Zero(t, f.strategies[domain.StrategySemantic].calls)
}

func TestRouter_FallsBackOnEmptyLowConfidence(t *testing.T) {
	f := newRouterFixture(t, DefaultRouterConfig(), 0)
	f.strategies[domain.StrategyHybrid].results = []domain.SearchResult{hit("a.go", 1, "x")}

	out, err := f.router.Search(context.Background(), "!!!", nil, domain.SearchOptions{})
	require.NoError(t, err)

	assert.Zero(t, out.QueryAnalysis.Confidence)
	assert.Equal(t, domain.StrategyHybrid, out.StrategyUsed)
	require.Len(t, out.StrategyResults, 2)
	assert.True(t, out.StrategyResults[0].Success)
	assert.Zero(t, out.StrategyResults[0].ResultCount)
}

func TestRouter_EmptyConfidentResultIsFinal(t *testing.T) {
	f := newRouterFixture(t, DefaultRouterConfig(), 0)

	out, err := f.router.Search(context.Background(), "func main() {", nil, domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyLiteral, out.StrategyUsed)
	assert.Empty(t, out.Results)
	assert.Len(t, out.StrategyResults, 1)
	assert.False(t, out.FromCache)
}

func TestRouter_PinnedStrategySkipsFallback(t *testing.T) {
	f := newRouterFixture(t, DefaultRouterConfig(), 0)
	f.strategies[domain.StrategySemantic].err = domain.ErrStrategyUnavailable

	out, err := f.router.Search(context.Background(), "how does login work", nil, domain.SearchOptions{
		Strategy: domain.StrategySemantic,
	})
	require.ErrorIs(t, err, domain.ErrAllStrategiesFailed)
	assert.ErrorIs(t, err, domain.ErrStrategyUnavailable)
	assert.Len(t, out.StrategyResults, 1)
	assert.Zero(t, f.strategies[domain.StrategyHybrid].calls)
	assert.Zero(t, f.strategies[domain.StrategyLiteral].calls)
}

func TestRouter_AllStrategiesFail(t *testing.T) {
	f := newRouterFixture(t, DefaultRouterConfig(), 0)
	for _, s := range f.strategies {
		s.err = errors.New("boom")
	}

	out, err := f.router.Search(context.Background(), "func main() {", nil, domain.SearchOptions{})
	require.ErrorIs(t, err, domain.ErrAllStrategiesFailed)
	assert.Len(t, out.StrategyResults, 3)
	for _, a := range out.StrategyResults {
		assert.False(t, a.Success)
	}
}

func TestRouter_MaxFallbacksAndDisabledFallback(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.MaxFallbacks = 1
	f := newRouterFixture(t, cfg, 0)
	for _, s := range f.strategies {
		s.err = errors.New("boom")
	}
	out, _ := f.router.Search(context.Background(), "func main() {", nil, domain.SearchOptions{})
	assert.Len(t, out.StrategyResults, 2)

	cfg.EnableFallback = false
	f = newRouterFixture(t, cfg, 0)
	f.strategies[domain.StrategyLiteral].err = errors.New("boom")
	out, err := f.router.Search(context.Background(), "func main() {", nil, domain.SearchOptions{})
	require.Error(t, err)
	assert.Len(t, out.StrategyResults, 1)
}

func TestRouter_ZeroMaxFallbacksMeansNone(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.MaxFallbacks = 0
	f := newRouterFixture(t, cfg, 0)
	for _, s := range f.strategies {
		s.err = errors.New("boom")
	}

	out, err := f.router.Search(context.Background(), "func main() {", nil, domain.SearchOptions{})
	require.ErrorIs(t, err, domain.ErrAllStrategiesFailed)
	assert.Len(t, out.StrategyResults, 1)
	assert.Zero(t, f.strategies[domain.StrategyHybrid].calls)
}

func TestRouter_OptimizesLargeResults(t *testing.T) {
	f := newRouterFixture(t, DefaultRouterConfig(), 0)
	big := goSource(20)
	f.strategies[domain.StrategyLiteral].results = []domain.SearchResult{
		hit("/repo/big.go", 1, big),
		hit("/repo/small.go", 1, "func small() {}"),
	}

	out, err := f.router.Search(context.Background(), "func Func0(", nil, domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)

	byPath := map[string]domain.SearchResult{}
	for _, r := range out.Results {
		byPath[r.FilePath] = r
	}
	assert.True(t, byPath["/repo/big.go"].Optimized)
	assert.Less(t, len(byPath["/repo/big.go"].Content), len(big))
	assert.False(t, byPath["/repo/small.go"].Optimized)
	assert.False(t, out.FromCache)

	est := analyzer.NewEstimator(0)
	want := est.Estimate(byPath["/repo/big.go"].Content) + est.Estimate("func small() {}")
	assert.Equal(t, want, out.TokensUsed)
	assert.Equal(t, want, f.budget.Status().UsedTokens)
}

func TestRouter_FromCacheWhenEveryResultHits(t *testing.T) {
	f := newRouterFixture(t, DefaultRouterConfig(), 0)
	f.strategies[domain.StrategyLiteral].results = []domain.SearchResult{hit("/repo/big.go", 1, goSource(20))}

	first, err := f.router.Search(context.Background(), "func Func0(", nil, domain.SearchOptions{})
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.router.Search(context.Background(), "func Func0(", nil, domain.SearchOptions{})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Results[0].Content, second.Results[0].Content)
}

func TestRouter_BudgetAdmission(t *testing.T) {
	line := strings.Repeat("a", 40) // 10 tokens
	results := []domain.SearchResult{hit("a.go", 1, line), hit("b.go", 1, line), hit("c.go", 1, line)}

	f := newRouterFixture(t, DefaultRouterConfig(), 25)
	f.strategies[domain.StrategyLiteral].results = results
	out, err := f.router.Search(context.Background(), "func main() {", nil, domain.SearchOptions{StrictBudget: true})
	require.NoError(t, err)
	assert.Len(t, out.Results, 2)
	assert.Equal(t, 20, out.TokensUsed)
	assert.True(t, out.BudgetExceeded)
	assert.Equal(t, 20, f.budget.Status().UsedTokens)

	f = newRouterFixture(t, DefaultRouterConfig(), 25)
	f.strategies[domain.StrategyLiteral].results = results
	out, err = f.router.Search(context.Background(), "func main() {", nil, domain.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, out.Results, 3)
	assert.True(t, out.BudgetExceeded)
	assert.Equal(t, 30, f.budget.Status().UsedTokens)
}

func TestRouter_TruncatesToMaxResults(t *testing.T) {
	f := newRouterFixture(t, DefaultRouterConfig(), 0)
	for i := 1; i <= 5; i++ {
		f.strategies[domain.StrategyLiteral].results = append(f.strategies[domain.StrategyLiteral].results, hit("a.go", i, "x"))
	}
	out, err := f.router.Search(context.Background(), "func main() {", nil, domain.SearchOptions{MaxResults: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, out.ResultCount)
}
