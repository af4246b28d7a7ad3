package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	"contractlens-backend/config"
	"contractlens-backend/corpus"
	"contractlens-backend/gemini"
	"contractlens-backend/ratelimit"
	"contractlens-backend/repository"
	"contractlens-backend/storage"
	"contractlens-backend/vectorindex"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	force := flag.Bool("force", false, "re-embed sources that are already indexed (pgvector only)")
	flag.Parse()

	if !config.LoadDotEnv() {
		log.Printf("Warning: No .env file found, using environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.IndexBackend == config.IndexMemory {
		log.Fatal("INDEX_BACKEND=memory is seeded at server start, nothing to build")
	}
	logger := config.NewLogger(cfg.LogLevel)

	ctx := context.Background()

	storageCfg, prefix := cfg.CorpusStorage()
	store, err := storage.NewStorage(ctx, storageCfg)
	if err != nil {
		log.Fatalf("Failed to initialize corpus storage: %v", err)
	}
	sources, err := corpus.Load(ctx, store, prefix)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}

	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Fatalf("Failed to initialize Gemini: %v", err)
	}
	defer client.Close()

	limiter := ratelimit.New(cfg.RateLimit)
	embedder := ratelimit.NewEmbedder(
		gemini.NewEmbedder(client, cfg.EmbeddingModel, gemini.WithLogger(logger)).ForDocuments(),
		limiter,
	)

	var sink func(context.Context, corpus.Source) (bool, error)
	switch cfg.IndexBackend {
	case config.IndexPgvector:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		repo := repository.NewArticleRepository(pool)
		exists, err := repo.TableExists(ctx)
		if err != nil {
			log.Fatalf("Failed to check table existence: %v", err)
		}
		if !exists {
			log.Fatal("constitution_articles table does not exist. Please run: go run cmd/create-schema/main.go")
		}
		sink = pgvectorSink(repo, embedder, logger, *force)

	case config.IndexQdrant:
		q, err := vectorindex.NewQdrant(vectorindex.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
		})
		if err != nil {
			log.Fatalf("Invalid Qdrant configuration: %v", err)
		}
		if err := q.Init(ctx, repository.EmbeddingDimensions); err != nil {
			log.Fatalf("Failed to create Qdrant collection: %v", err)
		}
		sink = func(ctx context.Context, src corpus.Source) (bool, error) {
			if err := corpus.Embed(ctx, embedder, src.Articles, logger); err != nil {
				return false, err
			}
			return true, q.Upsert(ctx, src.Articles)
		}
	}

	total := 0
	for _, src := range sources {
		log.Printf("\n📄 Processing: %s (%d articles)", src.Path, len(src.Articles))
		indexed, err := sink(ctx, src)
		if err != nil {
			log.Printf("❌ Error indexing %s: %v", src.Path, err)
			continue
		}
		if !indexed {
			log.Printf("   ⏭️  Already indexed, skipping")
			continue
		}
		total += len(src.Articles)
		log.Printf("   ✓ Indexed %d articles", len(src.Articles))
	}

	fmt.Printf("\n✅ Indexed %d articles from %d sources into %s\n", total, len(sources), cfg.IndexBackend)
}

func pgvectorSink(repo *repository.ArticleRepository, embedder *ratelimit.Embedder, logger *slog.Logger, force bool) func(context.Context, corpus.Source) (bool, error) {
	return func(ctx context.Context, src corpus.Source) (bool, error) {
		if !force {
			count, err := repo.CountBySource(ctx, src.Path)
			if err != nil {
				return false, err
			}
			if count > 0 {
				return false, nil
			}
		}
		if err := corpus.Embed(ctx, embedder, src.Articles, logger); err != nil {
			return false, err
		}
		return true, repo.Insert(ctx, src.Articles)
	}
}
