//go:build js && wasm

package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"syscall/js"
	"time"

	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/adapter/chunker"
	"ctxopt/internal/adapter/memstore"
	"ctxopt/internal/adapter/surgeon"
	"ctxopt/internal/domain"
	"ctxopt/internal/port"
	"ctxopt/internal/usecase"
)

// Literal search needs a subprocess, so the browser build searches the
// in-memory index only.
var (
	store     *memstore.MemoryStore
	tokenizer *analyzer.Tokenizer
	chk       port.Chunker
	engine    *usecase.Engine
)

func init() {
	tokenizer = analyzer.NewTokenizer(analyzer.NewEstimator(0))
	chk = chunker.NewLineChunker(256, 50, tokenizer)
	reset()
}

func reset() {
	store = memstore.NewMemoryStore()
	cfg := usecase.DefaultEngineConfig()
	cfg.Router.Strategy = domain.StrategySemantic
	engine = usecase.NewEngine(cfg, usecase.EngineDeps{Index: store})
}

func main() {
	c := make(chan struct{})

	js.Global().Set("ctxoptIndex", js.FuncOf(indexContent))
	js.Global().Set("ctxoptOptimize", js.FuncOf(optimizeContent))
	js.Global().Set("ctxoptSearch", js.FuncOf(searchContent))
	js.Global().Set("ctxoptAnalyze", js.FuncOf(analyzeQuery))
	js.Global().Set("ctxoptBudget", js.FuncOf(budgetStatus))
	js.Global().Set("ctxoptCacheStats", js.FuncOf(cacheStats))
	js.Global().Set("ctxoptClear", js.FuncOf(clearAll))

	<-c
}

func indexContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: ctxoptIndex(filename, content)")
	}

	filename := args[0].String()
	content := args[1].String()

	doc := domain.Document{
		ID:      generateDocID(filename),
		Path:    filename,
		ModTime: time.Now(),
		Lang:    surgeon.DetectLanguage(filename).String(),
	}

	chunks, err := chk.Chunk(doc, content)
	if err != nil {
		return makeError("chunking failed: " + err.Error())
	}

	postings := make(map[string]map[string]int)
	for _, chunk := range chunks {
		for _, token := range chunk.Tokens {
			if postings[token] == nil {
				postings[token] = make(map[string]int)
			}
			postings[token][chunk.ID]++
		}
	}

	if err := store.BatchIndex([]port.IndexedFile{{Doc: doc, Chunks: chunks, Postings: postings}}); err != nil {
		return makeError("indexing failed: " + err.Error())
	}
	engine.InvalidateFile(filename)

	return makeResult(map[string]interface{}{
		"success":  true,
		"chunks":   len(chunks),
		"filename": filename,
	})
}

func optimizeContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: ctxoptOptimize(filename, content, [mode], [query])")
	}

	content := args[1].String()
	req := usecase.OptimizeRequest{
		FilePath: args[0].String(),
		Content:  &content,
	}
	if len(args) > 2 {
		req.Mode = args[2].String()
	}
	if len(args) > 3 {
		req.Query = args[3].String()
	}

	res, err := engine.Optimize(context.Background(), req)
	if err != nil {
		return makeError(err.Error())
	}
	return makeJSON(res)
}

func searchContent(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: ctxoptSearch(query, [maxResults])")
	}

	opts := domain.SearchOptions{}
	if len(args) > 1 {
		opts.MaxResults = args[1].Int()
	}

	out, err := engine.Search(context.Background(), args[0].String(), nil, opts)
	if err != nil {
		return makeError("search failed: " + err.Error())
	}
	return makeJSON(out)
}

func analyzeQuery(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: ctxoptAnalyze(query)")
	}
	return makeJSON(engine.Analyze(args[0].String()))
}

func budgetStatus(this js.Value, args []js.Value) interface{} {
	return makeJSON(engine.BudgetStatus())
}

func cacheStats(this js.Value, args []js.Value) interface{} {
	return makeJSON(engine.CacheStats())
}

func clearAll(this js.Value, args []js.Value) interface{} {
	reset()
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func generateDocID(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:8])
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	return makeJSON(data)
}

func makeJSON(v interface{}) interface{} {
	result, err := json.Marshal(v)
	if err != nil {
		return makeError(err.Error())
	}
	return string(result)
}
