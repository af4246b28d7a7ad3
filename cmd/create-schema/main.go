package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"contractlens-backend/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	reset := flag.Bool("reset", false, "drop existing tables before creating them")
	flag.Parse()

	if !config.LoadDotEnv() {
		log.Printf("Warning: No .env file found, using environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Enable pgvector extension
	_, err = pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		log.Printf("Warning: Failed to create pgvector extension: %v", err)
	} else {
		log.Println("✓ pgvector extension enabled")
	}

	if *reset {
		for _, table := range []string{"analysis_jobs", "analysis_reports", "constitution_articles"} {
			if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
				log.Fatalf("Failed to drop %s: %v", table, err)
			}
			log.Printf("✓ Dropped existing %s table (if any)", table)
		}
	}

	tables := []struct {
		name string
		sql  string
	}{
		{
			name: "constitution_articles",
			sql: `
CREATE TABLE IF NOT EXISTS constitution_articles (
    id UUID PRIMARY KEY,
    article_number VARCHAR(32) NOT NULL,
    title TEXT,
    part VARCHAR(128),
    content TEXT NOT NULL,
    source_document VARCHAR(255) NOT NULL,

    embedding vector(768),

    created_at TIMESTAMP DEFAULT NOW(),

    CONSTRAINT article_source_unique UNIQUE (source_document, article_number)
);`,
		},
		{
			name: "analysis_reports",
			sql: `
CREATE TABLE IF NOT EXISTS analysis_reports (
    id UUID PRIMARY KEY,
    status VARCHAR(16) NOT NULL,
    summary TEXT,
    themes TEXT[] NOT NULL DEFAULT '{}',
    report JSONB NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ
);`,
		},
		{
			name: "analysis_jobs",
			sql: `
CREATE TABLE IF NOT EXISTS analysis_jobs (
    id UUID PRIMARY KEY,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    current_step VARCHAR(64),
    steps JSONB NOT NULL DEFAULT '[]',
    report_id UUID REFERENCES analysis_reports(id) ON DELETE SET NULL,
    error_message TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMPTZ
);`,
		},
	}
	for _, t := range tables {
		if _, err := pool.Exec(ctx, t.sql); err != nil {
			log.Fatalf("Failed to create %s table: %v", t.name, err)
		}
		log.Printf("✓ Created %s table", t.name)
	}

	// Create indexes
	indexes := []struct {
		name string
		sql  string
	}{
		{
			name: "Vector similarity search (HNSW)",
			sql: `CREATE INDEX IF NOT EXISTS idx_article_embedding_hnsw ON constitution_articles
USING hnsw (embedding vector_cosine_ops)
WITH (m = 16, ef_construction = 64);`,
		},
		{
			name: "Source document filtering",
			sql:  "CREATE INDEX IF NOT EXISTS idx_article_source_document ON constitution_articles(source_document);",
		},
		{
			name: "Job status",
			sql:  "CREATE INDEX IF NOT EXISTS idx_job_status ON analysis_jobs(status);",
		},
		{
			name: "Report recency",
			sql:  "CREATE INDEX IF NOT EXISTS idx_report_started_at ON analysis_reports(started_at DESC);",
		},
	}

	for _, idx := range indexes {
		_, err = pool.Exec(ctx, idx.sql)
		if err != nil {
			log.Printf("Warning: Failed to create index %s: %v", idx.name, err)
		} else {
			log.Printf("✓ Created index: %s", idx.name)
		}
	}

	fmt.Println("\n✅ Database schema created successfully!")
	fmt.Println("   Tables: constitution_articles, analysis_reports, analysis_jobs")
	fmt.Printf("   Indexes: %d indexes created\n", len(indexes))
}
