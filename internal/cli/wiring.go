package cli

import (
	"errors"
	"fmt"
	"os"

	"ctxopt/config"
	"ctxopt/internal/adapter/analyzer"
	"ctxopt/internal/adapter/chunker"
	"ctxopt/internal/adapter/embedding"
	"ctxopt/internal/adapter/fs"
	"ctxopt/internal/adapter/literal"
	"ctxopt/internal/adapter/memstore"
	"ctxopt/internal/adapter/store"
	"ctxopt/internal/adapter/surgeon"
	"ctxopt/internal/domain"
	"ctxopt/internal/port"
	"ctxopt/internal/usecase"
)

// runtime is an engine with the stores it owns.
type runtime struct {
	engine  *usecase.Engine
	indexer *usecase.IndexUseCase
	walker  *fs.Walker
	// bolt is nil when the corpus lives in memory.
	bolt *store.BoltStore
	// rebuilt explains why an existing index was cleared.
	rebuilt string
}

func (r *runtime) Close() error {
	if r.bolt != nil {
		return r.bolt.Close()
	}
	return nil
}

type buildOptions struct {
	// persistent creates the index file when it does not exist and clears
	// it when its fingerprint is stale.
	persistent bool
	// rebuild clears the persistent index unconditionally.
	rebuild bool
}

// buildRuntime wires an engine from the loaded configuration. Without an
// index file the corpus is kept in memory and filled on demand.
func buildRuntime(opts buildOptions) (*runtime, error) {
	cfg := GetConfig()
	root := GetRootDir()
	log := GetLogger()

	var tokOpts []analyzer.Option
	if cfg.Index.Stemming {
		tokOpts = append(tokOpts, analyzer.WithStemming())
	}
	tok := analyzer.NewTokenizer(analyzer.NewEstimator(cfg.Optimizer.CharsPerToken), tokOpts...)
	walker := fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes)
	reader := fs.NewReader(cfg.Index.MaxFileSize)
	var chk port.Chunker = chunker.NewLineChunker(cfg.Index.ChunkTokens, cfg.Index.ChunkOverlap, tok)
	if cfg.Index.StructuralChunks {
		chk = chunker.NewDeclChunker(cfg.Index.ChunkTokens, cfg.Index.ChunkOverlap, tok, surgeon.New())
	}

	var emb port.Embedder
	if cfg.Embedding.Enabled {
		var err error
		emb, err = embedding.New(embedding.Config{
			Provider:  cfg.Embedding.Provider,
			Model:     cfg.Embedding.Model,
			BaseURL:   cfg.Embedding.BaseURL,
			APIKeyEnv: cfg.Embedding.APIKeyEnv,
			Dimension: cfg.Embedding.Dimension,
			CacheSize: cfg.Embedding.CacheSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	}
	dim := cfg.Embedding.Dimension
	if emb != nil && emb.Dimension() > 0 {
		dim = emb.Dimension()
	}

	rt := &runtime{walker: walker}
	var (
		index   port.IndexStore
		vectors port.VectorStore
	)

	dbPath := config.IndexDBPath(root)
	_, statErr := os.Stat(dbPath)
	if opts.persistent || statErr == nil {
		if err := config.EnsureDataDir(root); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", config.DataDir, err)
		}
		st, err := store.NewBoltStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open index store: %w", err)
		}
		rt.bolt = st
		if err := checkIndex(rt, opts); err != nil {
			st.Close()
			return nil, err
		}
		index = st
		if emb != nil {
			vs, err := store.NewBoltVectorStore(st.DB(), dim)
			if err != nil {
				st.Close()
				return nil, fmt.Errorf("failed to create vector store: %w", err)
			}
			vectors = vs
		}
	} else {
		index = memstore.NewMemoryStore()
		if emb != nil {
			vectors = memstore.NewVectorStore(dim)
		}
	}

	rt.indexer = usecase.NewIndexUseCase(index, walker, reader, chk, emb, vectors, log)

	ec, err := engineConfig(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	ec.IndexOnDemand = cfg.Index.OnDemand && rt.bolt == nil

	rt.engine = usecase.NewEngine(ec, usecase.EngineDeps{
		Content: reader,
		Literal: literal.New(literal.Config{
			Binary:  cfg.Literal.Binary,
			Dialect: literal.Dialect(cfg.Literal.Dialect),
			Timeout: cfg.LiteralTimeout(),
			Logger:  log,
		}),
		Index:    index,
		Embedder: emb,
		Vectors:  vectors,
		Indexer:  rt.indexer,
		Logger:   log,
	})
	return rt, nil
}

// checkIndex clears a stale persistent index when allowed to, and warns
// otherwise.
func checkIndex(rt *runtime, opts buildOptions) error {
	stale, reason, err := rt.bolt.NeedsRebuild(fingerprint(GetConfig()))
	if err != nil {
		return fmt.Errorf("failed to read index metadata: %w", err)
	}
	if opts.rebuild {
		stale, reason = true, "rebuild requested"
	}
	if !stale {
		return nil
	}
	if !opts.persistent {
		GetLogger().Warn("index is out of date, run 'ctxopt index'", "reason", reason)
		return nil
	}
	if err := rt.bolt.Clear(); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	rt.rebuilt = reason
	return nil
}

func fingerprint(cfg *config.Config) store.Fingerprint {
	fp := store.Fingerprint{
		ChunkTokens:  cfg.Index.ChunkTokens,
		ChunkOverlap: cfg.Index.ChunkOverlap,
		Structural:   cfg.Index.StructuralChunks,
		Stemming:     cfg.Index.Stemming,
	}
	if cfg.Embedding.Enabled {
		fp.EmbeddingEnabled = true
		fp.EmbeddingModel = cfg.Embedding.Provider + "/" + cfg.Embedding.Model
		fp.Dimension = cfg.Embedding.Dimension
	}
	return fp
}

func engineConfig(cfg *config.Config) (usecase.EngineConfig, error) {
	mode, modeErr := domain.ParseMode(cfg.Optimizer.DefaultMode)
	kind, kindErr := domain.ParseStrategy(cfg.Search.Strategy)
	if err := errors.Join(modeErr, kindErr); err != nil {
		return usecase.EngineConfig{}, err
	}

	ec := usecase.DefaultEngineConfig()
	ec.MaxTokens = cfg.Optimizer.MaxTokens
	ec.WarnThreshold = cfg.Optimizer.WarnThreshold
	ec.CriticalThreshold = cfg.Optimizer.CriticalThreshold
	ec.CharsPerToken = cfg.Optimizer.CharsPerToken
	ec.DefaultMode = mode

	ec.EnableCache = cfg.Cache.Enabled
	ec.CacheSize = cfg.Cache.Size
	ec.CacheTTL = cfg.CacheTTL()
	ec.SimilarityThreshold = cfg.Cache.SimilarityThreshold

	ec.Router.Strategy = kind
	ec.Router.MaxResults = cfg.Search.MaxResults
	ec.Router.Timeout = cfg.SearchTimeout()
	ec.Router.EnableFallback = cfg.Search.EnableFallback
	ec.Router.MaxFallbacks = cfg.Search.MaxFallbacks
	ec.Router.MinConfidence = cfg.Search.MinConfidence
	ec.Router.TokenThreshold = cfg.Optimizer.TokenThreshold

	ec.LiteralWeight = cfg.Search.LiteralWeight
	ec.SemanticWeight = cfg.Search.SemanticWeight
	ec.LiteralMaxCount = cfg.Literal.MaxCount
	ec.IncludeContent = cfg.Literal.IncludeContent
	ec.NoRerank = cfg.Literal.NoRerank
	ec.Stemming = cfg.Index.Stemming
	return ec, nil
}
