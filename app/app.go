// Package app wires configuration, external capabilities and the analysis
// pipeline together for the server and the command line tools.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"contractlens-backend/config"
	"contractlens-backend/corpus"
	"contractlens-backend/gemini"
	"contractlens-backend/metrics"
	"contractlens-backend/ratelimit"
	"contractlens-backend/repository"
	"contractlens-backend/service"
	"contractlens-backend/storage"
	"contractlens-backend/vectorindex"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Capabilities are the external services the pipeline depends on
type Capabilities struct {
	Embedder  service.Embedder
	Generator service.Generator
	Index     service.VectorIndex
}

// Status describes the configured components
type Status struct {
	IndexBackend     string  `json:"index_backend"`
	EmbeddingModel   string  `json:"embedding_model"`
	GenerationModel  string  `json:"generation_model"`
	ThemeMode        string  `json:"theme_mode"`
	Verifier         string  `json:"verifier"`
	SupportThreshold float64 `json:"support_threshold"`
	Neighbors        int     `json:"neighbors"`
	MaxConcurrency   int     `json:"max_concurrency"`
	AnalysisTimeout  string  `json:"analysis_timeout"`
	IndexedArticles  int     `json:"indexed_articles,omitempty"`
}

// App holds the wired pipeline and the resources to release on shutdown
type App struct {
	Config   *config.Config
	Pipeline *service.Pipeline
	Registry *prometheus.Registry
	Metrics  *metrics.Collector
	Reports  repository.ReportStore
	Jobs     *service.JobService
	Logger   *slog.Logger

	jobStore        repository.JobStore
	indexedArticles int
	closers         []func()
}

// New connects to the configured services and builds the pipeline
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	logger.Info("gemini client initialized", "embedding_model", cfg.EmbeddingModel, "generation_model", cfg.GenerationModel)

	limiter := ratelimit.New(cfg.RateLimit)
	baseEmbedder := gemini.NewEmbedder(client, cfg.EmbeddingModel, gemini.WithLogger(logger))
	caps := Capabilities{
		Embedder:  ratelimit.NewEmbedder(baseEmbedder, limiter),
		Generator: ratelimit.NewGenerator(gemini.NewGenerator(client, cfg.GenerationModel, gemini.WithLogger(logger)), limiter),
	}

	caps.Index, err = a.openIndex(ctx, baseEmbedder, limiter)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := a.build(cfg, caps); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// NewWithCapabilities builds the pipeline on top of given capabilities
func NewWithCapabilities(cfg *config.Config, caps Capabilities, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(cfg, caps); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config, caps Capabilities) error {
	if caps.Embedder == nil || caps.Generator == nil || caps.Index == nil {
		return errors.New("embedder, generator and index are required")
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(a.Registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	a.Metrics = m

	if a.Reports == nil {
		a.Reports = repository.NewMemoryReportStore(repository.DefaultReportCapacity)
	}
	if a.jobStore == nil {
		a.jobStore = repository.NewMemoryJobStore(repository.DefaultReportCapacity)
	}

	rules, err := cfg.ThemeRules()
	if err != nil {
		return err
	}
	heuristic, err := service.NewHeuristicExtractor(rules)
	if err != nil {
		return fmt.Errorf("invalid theme rules: %w", err)
	}

	summarizer := service.NewSummarizer(caps.Generator)

	var extractor service.ThemeExtractor = heuristic
	if cfg.ThemeMode == config.ThemeModeLLM {
		extractor = service.NewLLMExtractor(summarizer, heuristic, a.Logger)
	}

	var verifier service.Verifier = service.NewLexicalVerifier(cfg.SupportThreshold)
	if cfg.Verifier == config.VerifierJudge {
		verifier = service.NewJudgeVerifier(caps.Generator, cfg.SupportThreshold, a.Logger)
	}

	retriever := service.NewRAGRetriever(
		service.RetrieverWithEmbedder(caps.Embedder),
		service.RetrieverWithIndex(caps.Index),
		service.RetrieverWithGenerator(caps.Generator),
		service.RetrieverWithNeighbors(cfg.Neighbors),
		service.RetrieverWithDeduplication(),
		service.RetrieverWithMetrics(a.Metrics),
		service.RetrieverWithLogger(a.Logger),
	)

	a.Pipeline = service.NewPipeline(
		service.PipelineWithExtractor(extractor),
		service.PipelineWithRetriever(retriever),
		service.PipelineWithVerifier(verifier),
		service.PipelineWithSummarizer(summarizer),
		service.PipelineWithCompliance(service.NewComplianceChecker()),
		service.PipelineWithMaxConcurrency(cfg.MaxConcurrency),
		service.PipelineWithTimeout(cfg.AnalysisTimeout),
		service.PipelineWithMetrics(a.Metrics),
		service.PipelineWithLogger(a.Logger),
	)

	a.Jobs = service.NewJobService(
		service.JobWithStore(a.jobStore),
		service.JobWithReportStore(a.Reports),
		service.JobWithPipeline(a.Pipeline),
		service.JobWithLogger(a.Logger),
	)
	return nil
}

func (a *App) openIndex(ctx context.Context, embedder *gemini.Embedder, limiter *ratelimit.Limiter) (service.VectorIndex, error) {
	cfg := a.Config
	switch cfg.IndexBackend {
	case config.IndexPgvector:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to reach Postgres: %w", err)
		}
		repo := repository.NewArticleRepository(pool)
		exists, err := repo.TableExists(ctx)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, errors.New("constitution_articles table does not exist, run cmd/create-schema and cmd/build-index")
		}
		a.Reports = repository.NewReportRepository(pool)
		a.jobStore = repository.NewAnalysisJobRepository(pool)
		a.Logger.Info("pgvector index ready")
		return repo, nil

	case config.IndexQdrant:
		q, err := vectorindex.NewQdrant(vectorindex.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
		})
		if err != nil {
			return nil, err
		}
		a.Logger.Info("qdrant index ready", "url", cfg.QdrantURL, "collection", cfg.QdrantCollection)
		return ratelimit.NewIndex(q, limiter), nil

	case config.IndexMemory:
		mem, err := SeedMemoryIndex(ctx, cfg, ratelimit.NewEmbedder(embedder.ForDocuments(), limiter), a.Logger)
		if err != nil {
			return nil, err
		}
		a.indexedArticles = mem.Len()
		return mem, nil
	}
	return nil, fmt.Errorf("unknown index backend: %s", cfg.IndexBackend)
}

// SeedMemoryIndex loads the corpus from storage and embeds it into a new
// in-memory index
func SeedMemoryIndex(ctx context.Context, cfg *config.Config, embedder service.Embedder, logger *slog.Logger) (*vectorindex.Memory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	storageCfg, prefix := cfg.CorpusStorage()
	store, err := storage.NewStorage(ctx, storageCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize corpus storage: %w", err)
	}

	sources, err := corpus.Load(ctx, store, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}

	mem := vectorindex.NewMemory()
	for _, src := range sources {
		if err := corpus.Embed(ctx, embedder, src.Articles, logger); err != nil {
			return nil, fmt.Errorf("failed to embed %s: %w", src.Path, err)
		}
		if err := mem.Add(src.Articles...); err != nil {
			return nil, fmt.Errorf("failed to index %s: %w", src.Path, err)
		}
		logger.Info("corpus file indexed", "source", src.Path, "articles", len(src.Articles))
	}
	return mem, nil
}

// Status returns the component configuration
func (a *App) Status() Status {
	c := a.Config
	return Status{
		IndexBackend:     c.IndexBackend,
		EmbeddingModel:   c.EmbeddingModel,
		GenerationModel:  c.GenerationModel,
		ThemeMode:        c.ThemeMode,
		Verifier:         c.Verifier,
		SupportThreshold: c.SupportThreshold,
		Neighbors:        c.Neighbors,
		MaxConcurrency:   c.MaxConcurrency,
		AnalysisTimeout:  c.AnalysisTimeout.String(),
		IndexedArticles:  a.indexedArticles,
	}
}

// Close releases connections in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
