package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"ctxopt/config"
	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/adapter/chunker"
	"ctxopt/internal/adapter/fs"
	"ctxopt/internal/adapter/literal"
	"ctxopt/internal/adapter/memstore"
	"ctxopt/internal/adapter/surgeon"
	"ctxopt/internal/domain"
	"ctxopt/internal/logging"
	"ctxopt/internal/usecase"
)

type modeTotals struct {
	original  int
	optimized int
	elapsed   time.Duration
}

func main() {
	dir := flag.String("dir", ".", "Directory to benchmark")
	query := flag.String("q", "", "Also run this query through every strategy")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	walker := fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes)
	reader := fs.NewReader(cfg.Index.MaxFileSize)
	files, err := walker.Walk(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error walking %s: %v\n", *dir, err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Println("No files matched the include patterns.")
		os.Exit(1)
	}

	fmt.Println("EXTRACTION BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Files: %d under %s\n\n", len(files), *dir)

	est := analyzer.NewEstimator(cfg.Optimizer.CharsPerToken)
	sg := surgeon.New()
	byMode := make(map[domain.ExtractionMode]*modeTotals)
	byLang := make(map[string]*modeTotals)

	for _, f := range files {
		content, err := reader.ReadFile(f.Path)
		if err != nil {
			continue
		}
		lang := surgeon.DetectLanguage(f.Path)
		original := est.Estimate(content)
		for _, mode := range domain.Modes() {
			start := time.Now()
			out := sg.Extract(lang, content, mode)
			t := byMode[mode]
			if t == nil {
				t = &modeTotals{}
				byMode[mode] = t
			}
			t.original += original
			t.optimized += est.Estimate(out)
			t.elapsed += time.Since(start)

			if mode == domain.ModeSignatures {
				l := byLang[lang.String()]
				if l == nil {
					l = &modeTotals{}
					byLang[lang.String()] = l
				}
				l.original += original
				l.optimized += est.Estimate(out)
			}
		}
	}

	fmt.Printf("%-14s %12s %12s %9s %10s\n", "MODE", "ORIGINAL", "OPTIMIZED", "SAVED", "TIME")
	for _, mode := range domain.Modes() {
		t := byMode[mode]
		if t == nil {
			continue
		}
		fmt.Printf("%-14s %12d %12d %8.1f%% %10s\n", mode, t.original, t.optimized, saved(t), t.elapsed.Round(time.Millisecond))
	}

	fmt.Println()
	fmt.Printf("%-14s %12s %12s %9s\n", "LANGUAGE", "ORIGINAL", "SIGNATURES", "SAVED")
	langs := make([]string, 0, len(byLang))
	for l := range byLang {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	for _, l := range langs {
		t := byLang[l]
		fmt.Printf("%-14s %12d %12d %8.1f%%\n", l, t.original, t.optimized, saved(t))
	}

	if *query != "" {
		benchmarkStrategies(cfg, *dir, *query, *topK, walker, reader, est)
	}
}

func benchmarkStrategies(cfg *config.Config, dir, query string, topK int, walker *fs.Walker, reader *fs.Reader, est analyzer.Estimator) {
	log := logging.FromStrings(cfg.Logging.Level, cfg.Logging.Format)
	var opts []analyzer.Option
	if cfg.Index.Stemming {
		opts = append(opts, analyzer.WithStemming())
	}
	tok := analyzer.NewTokenizer(est, opts...)
	store := memstore.NewMemoryStore()
	indexer := usecase.NewIndexUseCase(store, walker, reader,
		chunker.NewLineChunker(cfg.Index.ChunkTokens, cfg.Index.ChunkOverlap, tok), nil, nil, log)

	ctx := context.Background()
	start := time.Now()
	res, err := indexer.Index(ctx, dir, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("STRATEGY BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Indexed %d files, %d chunks in %s\n", res.FilesIndexed, res.ChunksCreated, time.Since(start).Round(time.Millisecond))
	fmt.Printf("Query: \"%s\"\n", query)
	fmt.Println(strings.Repeat("-", 70))

	for _, kind := range append([]domain.StrategyKind{domain.StrategyAuto}, domain.Strategies()...) {
		// A fresh engine per strategy keeps caches from leaking across runs.
		ec := usecase.DefaultEngineConfig()
		ec.EnableCache = false
		ec.Router.MaxResults = topK
		ec.Stemming = cfg.Index.Stemming
		engine := usecase.NewEngine(ec, usecase.EngineDeps{
			Content: reader,
			Literal: literal.New(literal.Config{
				Binary:  cfg.Literal.Binary,
				Dialect: literal.Dialect(cfg.Literal.Dialect),
				Timeout: cfg.LiteralTimeout(),
				Logger:  log,
			}),
			Index:  store,
			Logger: log,
		})

		out, err := engine.Search(ctx, query, []string{dir}, domain.SearchOptions{
			Strategy:        kind,
			DisableFallback: kind != domain.StrategyAuto,
		})
		if err != nil {
			fmt.Printf("%-9s FAILED: %v\n", kind, err)
			continue
		}
		fmt.Printf("%-9s used=%-9s results=%-3d tokens=%-6d time=%dms\n",
			kind, out.StrategyUsed, out.ResultCount, out.TokensUsed, out.TotalExecutionTimeMs)
		if len(out.Results) > 0 {
			top := out.Results[0]
			fmt.Printf("          top: [%.3f] %s:L%d\n", top.Score, shortPath(top.FilePath), top.LineNumber)
		}
	}
}

func saved(t *modeTotals) float64 {
	if t.original == 0 {
		return 0
	}
	return float64(t.original-t.optimized) / float64(t.original) * 100
}

func shortPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		return strings.Join(parts[len(parts)-2:], "/")
	}
	return path
}
