package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"contractlens-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EmbeddingDimensions is the vector size of the constitution_articles table
const EmbeddingDimensions = 768

// ArticleRepository handles database operations for constitution articles
type ArticleRepository struct {
	db *pgxpool.Pool
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *pgxpool.Pool) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// formatVector formats an embedding vector as a string for pgx
func formatVector(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, 0, len(embedding))
	for _, v := range embedding {
		parts = append(parts, strconv.FormatFloat(float64(v), 'f', 6, 32))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Search returns the k articles nearest to embedding by cosine distance
func (r *ArticleRepository) Search(ctx context.Context, embedding []float32, k int) ([]models.ConstitutionArticle, error) {
	if len(embedding) != EmbeddingDimensions {
		return nil, fmt.Errorf("embedding must be %d dimensions, got %d", EmbeddingDimensions, len(embedding))
	}

	query := `
		SELECT
			id,
			article_number,
			title,
			part,
			content,
			source_document,
			embedding <=> $1::vector AS distance
		FROM constitution_articles
		WHERE embedding IS NOT NULL
		ORDER BY
			embedding <=> $1::vector
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, formatVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query constitution articles: %w", err)
	}
	defer rows.Close()

	var articles []models.ConstitutionArticle
	for rows.Next() {
		var a models.ConstitutionArticle
		err := rows.Scan(
			&a.ID,
			&a.ArticleNumber,
			&a.Title,
			&a.Part,
			&a.Content,
			&a.SourceDocument,
			&a.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan constitution article: %w", err)
		}
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating constitution articles: %w", err)
	}

	return articles, nil
}

// Query implements the vector index capability on top of pgvector
func (r *ArticleRepository) Query(ctx context.Context, vector []float32, k int) ([]models.SourcePassage, error) {
	articles, err := r.Search(ctx, vector, k)
	if err != nil {
		return nil, err
	}
	passages := make([]models.SourcePassage, 0, len(articles))
	for _, a := range articles {
		passages = append(passages, a.Passage())
	}
	return passages, nil
}

// Insert stores embedded articles in a single transaction, replacing
// articles that were indexed before
func (r *ArticleRepository) Insert(ctx context.Context, articles []models.ConstitutionArticle) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO constitution_articles (
			id, article_number, title, part, content, source_document, embedding
		) VALUES (
			$1, $2, $3, NULLIF($4, ''), $5, $6, $7::vector
		)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			part = EXCLUDED.part,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`

	for _, a := range articles {
		if len(a.Embedding) != EmbeddingDimensions {
			return fmt.Errorf("article %s: embedding must be %d dimensions, got %d",
				a.ArticleNumber, EmbeddingDimensions, len(a.Embedding))
		}
		_, err := tx.Exec(ctx, query,
			a.ID, a.ArticleNumber, a.Title, a.Part, a.Content, a.SourceDocument, formatVector(a.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert article %s: %w", a.ArticleNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CountBySource returns how many articles were indexed from a source document
func (r *ArticleRepository) CountBySource(ctx context.Context, sourceDocument string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM constitution_articles WHERE source_document = $1", sourceDocument,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

// TableExists reports whether the schema has been created
func (r *ArticleRepository) TableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'constitution_articles')",
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return exists, nil
}
