// Package app builds an Assistant and its storage from configuration.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/justineyoo1/PDFResearchAssistant/config"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/analyzer"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/cache"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/chunker"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/embedding"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/extractor"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/llm"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/memstore"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/openaiapi"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/store"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/vectorindex"
	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
	"github.com/justineyoo1/PDFResearchAssistant/internal/logging"
	"github.com/justineyoo1/PDFResearchAssistant/internal/port"
	"github.com/justineyoo1/PDFResearchAssistant/internal/resilience"
	"github.com/justineyoo1/PDFResearchAssistant/internal/usecase"
)

// Runtime is an opened Assistant together with the bbolt file that holds
// schema information. Meta is nil when nothing is persisted. Repaired counts
// documents dropped at open because their record and vectors disagreed.
type Runtime struct {
	Assistant *usecase.Assistant
	Meta      *store.BoltStore
	Rebuilt   string
	Repaired  int
	closers   []func() error
}

// Close releases the assistant and every opened database.
func (r *Runtime) Close() error {
	var errs []error
	if r.Assistant != nil {
		errs = append(errs, r.Assistant.Close())
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// Open builds the Assistant described by cfg under root. When the stored
// data was produced with different chunking or embedding settings it is
// cleared and Runtime.Rebuilt holds the reason.
func Open(cfg *config.Config, root string, logger *slog.Logger) (*Runtime, error) {
	logger = logging.OrDiscard(logger)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateAPIKeys(); err != nil {
		return nil, err
	}

	metric, err := domain.ParseMetric(cfg.Index.Metric)
	if err != nil {
		return nil, err
	}

	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	model, err := NewLLM(cfg)
	if err != nil {
		return nil, err
	}
	ext, err := NewExtractor(cfg)
	if err != nil {
		return nil, err
	}
	chk, err := NewChunker(cfg)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{}
	var repo port.DocumentRepository
	ok := false
	defer func() {
		if ok {
			return
		}
		if repo != nil {
			repo.Close()
		}
		rt.Close()
	}()

	repo, meta, err := openStorage(cfg, root, rt)
	if err != nil {
		return nil, err
	}
	rt.Meta = meta

	var persister port.VectorPersister
	if meta != nil {
		result, err := meta.CheckMigration(cfg)
		if err != nil {
			return nil, err
		}
		if result.NeedsRebuild {
			logger.Warn("clearing stored documents", slog.String("reason", result.Reason))
			if err := clearStorage(repo, meta); err != nil {
				return nil, fmt.Errorf("failed to clear index: %w", err)
			}
			rt.Rebuilt = result.Reason
		}
		if err := meta.Migrate(cfg); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		switch {
		case cfg.Index.Backend == "memory":
		case port.DocumentRepository(meta) == repo:
			// Documents and vectors share one file and commit together.
			persister = meta.Vectors()
		default:
			persister, err = store.NewBoltVectorPersister(meta.DB())
			if err != nil {
				return nil, err
			}
		}
	}

	index, err := vectorindex.New(embedder.Dimension(), metric, persister, logger)
	if err != nil {
		return nil, err
	}

	exec := resilience.NewExecutor(resilience.PolicyFromConfig(cfg.Retry), logger)
	assistant, err := usecase.NewAssistant(usecase.Components{
		Repository: repo,
		Index:      index,
		Extractor:  ext,
		Chunker:    chk,
		Tokenizer:  analyzer.NewTokenizer(),
		Embedder:   embedding.NewResilientEmbedder(embedder, exec, cfg.Embedding.BatchSize, logger),
		LLM:        llm.NewResilientLLM(model, exec),
		Cache:      cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL),
		Logger:     logger,
	}, SettingsFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	repaired, err := assistant.Reconcile()
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile index: %w", err)
	}
	if repaired > 0 {
		logger.Warn("dropped incomplete documents", slog.Int("documents", repaired))
	}
	rt.Assistant = assistant
	rt.Repaired = repaired

	ok = true
	return rt, nil
}

// SettingsFromConfig converts the pipeline tunables.
func SettingsFromConfig(cfg *config.Config) usecase.Settings {
	return usecase.Settings{
		TopK:         cfg.Retrieve.TopK,
		TokenBudget:  cfg.Pack.TokenBudget,
		Workers:      cfg.Ingest.Workers,
		MaxFileBytes: cfg.MaxFileSizeBytes(),
		Retrieve: usecase.RetrieveOptions{
			CandidateMultiplier: cfg.Retrieve.CandidateMultiplier,
			DedupEpsilon:        cfg.Retrieve.DedupEpsilon,
			MinScore:            cfg.Retrieve.MinScore,
		},
	}
}

// openStorage opens the document repository and, when anything is
// persisted, the bbolt file carrying vectors and schema info. The bbolt
// handle is closed through rt; the repository is owned by the Assistant.
func openStorage(cfg *config.Config, root string, rt *Runtime) (port.DocumentRepository, *store.BoltStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		if cfg.Index.Backend != "memory" {
			return nil, nil, domain.NewError(domain.KindConfiguration, "open storage",
				errors.New("store.backend memory requires index.backend memory"))
		}
		return memstore.NewMemoryStore(), nil, nil

	case "bolt", "":
		if err := cfg.EnsureDataDir(root); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		st, err := store.NewBoltStore(cfg.IndexDBPath(root))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open index store: %w", err)
		}
		// The repository and the vector persister share one bbolt handle;
		// the Assistant closes it as the repository.
		return st, st, nil

	case "sqlite":
		if err := cfg.EnsureDataDir(root); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		docs, err := store.NewSQLiteStore(cfg.SQLitePath(root))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open document store: %w", err)
		}
		vectors, err := store.NewBoltStore(cfg.VectorDBPath(root))
		if err != nil {
			docs.Close()
			return nil, nil, fmt.Errorf("failed to open vector store: %w", err)
		}
		rt.closers = append(rt.closers, vectors.Close)
		return docs, vectors, nil

	default:
		return nil, nil, domain.NewError(domain.KindConfiguration, "open storage",
			fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend))
	}
}

func clearStorage(repo port.DocumentRepository, meta *store.BoltStore) error {
	if err := meta.Clear(); err != nil {
		return err
	}
	if sq, ok := repo.(*store.SQLiteStore); ok {
		return sq.Clear()
	}
	return nil
}

// OpenMeta opens the bbolt file holding schema info without building the
// pipeline. It returns nil when cfg persists nothing or the file is absent.
func OpenMeta(cfg *config.Config, root string) (*store.BoltStore, error) {
	var path string
	switch cfg.Store.Backend {
	case "memory":
		return nil, nil
	case "sqlite":
		path = cfg.VectorDBPath(root)
	default:
		path = cfg.IndexDBPath(root)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return store.NewBoltStore(path)
}

// NewEmbedder creates the embedding service named by the configuration.
func NewEmbedder(cfg *config.Config) (port.Embedder, error) {
	e := cfg.Embedding
	var (
		embedder port.Embedder
		err      error
	)
	switch e.Provider {
	case "openai":
		embedder, err = embedding.NewOpenAIEmbedder(e.APIKeyEnv, e.Model, e.Dimension)
	case "ollama":
		embedder, err = embedding.NewOllamaEmbedder(e.Model, e.BaseURL, e.Dimension)
	case "compatible":
		embedder, err = embedding.NewOpenAICompatibleEmbedder(e.APIKeyEnv, e.Model, e.BaseURL, e.Dimension)
	case "hash":
		embedder = embedding.NewHashEmbedder(e.Dimension)
	default:
		return nil, domain.NewError(domain.KindConfiguration, "new embedder",
			fmt.Errorf("unsupported embedding provider: %s", e.Provider))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// NewLLM creates the generation service named by the configuration.
func NewLLM(cfg *config.Config) (port.LLM, error) {
	g := cfg.Generation
	llmCfg := llm.Config{
		BaseURL:     g.BaseURL,
		Model:       g.Model,
		Temperature: g.Temperature,
		MaxTokens:   g.MaxTokens,
	}
	switch g.Provider {
	case "openai", "compatible":
		key, err := openaiapi.APIKeyFromEnv(g.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		llmCfg.APIKey = key
		if g.Provider == "openai" && llmCfg.BaseURL == "" {
			llmCfg.BaseURL = openaiapi.DefaultBaseURL
		}
		return llm.NewOpenAILLM(llmCfg), nil
	case "ollama":
		if llmCfg.BaseURL == "" {
			llmCfg.BaseURL = openaiapi.OllamaBaseURL
		}
		return llm.NewOpenAILLM(llmCfg), nil
	case "echo":
		return llm.NewEchoLLM(2), nil
	default:
		return nil, domain.NewError(domain.KindConfiguration, "new llm",
			fmt.Errorf("unsupported generation provider: %s", g.Provider))
	}
}

// NewExtractor creates the text extractor named by the configuration.
func NewExtractor(cfg *config.Config) (port.Extractor, error) {
	switch cfg.Extraction.Provider {
	case "plain", "":
		return extractor.NewPlainExtractor(), nil
	case "http":
		return extractor.NewHTTPExtractor(cfg.Extraction.URL)
	default:
		return nil, domain.NewError(domain.KindConfiguration, "new extractor",
			fmt.Errorf("unsupported extraction provider: %s", cfg.Extraction.Provider))
	}
}

// NewChunker creates the window chunker from the ingest settings.
func NewChunker(cfg *config.Config) (*chunker.WindowChunker, error) {
	unit, err := chunker.ParseUnit(cfg.Ingest.ChunkUnit)
	if err != nil {
		return nil, err
	}
	return chunker.NewWindowChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, unit, cfg.Ingest.BoundaryTolerance)
}
