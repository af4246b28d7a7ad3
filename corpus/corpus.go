// Package corpus loads constitution articles from storage and embeds them for
// indexing.
package corpus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"contractlens-backend/models"
	"contractlens-backend/service"
	"contractlens-backend/storage"

	"github.com/google/uuid"
)

// namespace derives stable article IDs from source and article number
var namespace = uuid.MustParse("6f1c1d2e-3b5a-4c8e-9f0a-2d7b8e4c1a93")

var ErrNoArticles = errors.New("corpus contains no articles")

type record struct {
	Article string `json:"article"`
	Title   string `json:"title"`
	Part    string `json:"part"`
	Content string `json:"content"`
}

// Parse reads articles from a JSON array or from JSON lines. Every article
// needs an article number and content.
func Parse(r io.Reader, source string) ([]models.ConstitutionArticle, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoArticles
		}
		return nil, err
	}

	var records []record
	if first == '[' {
		if err := json.NewDecoder(br).Decode(&records); err != nil {
			return nil, fmt.Errorf("%s: invalid JSON array: %w", source, err)
		}
	} else {
		scanner := bufio.NewScanner(br)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := bytes.TrimSpace(scanner.Bytes())
			if len(text) == 0 {
				continue
			}
			var rec record
			if err := json.Unmarshal(text, &rec); err != nil {
				return nil, fmt.Errorf("%s:%d: %w", source, line, err)
			}
			records = append(records, rec)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
	}

	articles := make([]models.ConstitutionArticle, 0, len(records))
	for i, rec := range records {
		rec.Article = strings.TrimSpace(rec.Article)
		rec.Content = strings.TrimSpace(rec.Content)
		if rec.Article == "" || rec.Content == "" {
			return nil, fmt.Errorf("%s: record %d: article and content are required", source, i+1)
		}
		articles = append(articles, models.ConstitutionArticle{
			ID:             uuid.NewSHA1(namespace, []byte(source+"#"+rec.Article)),
			ArticleNumber:  rec.Article,
			Title:          strings.TrimSpace(rec.Title),
			Part:           strings.TrimSpace(rec.Part),
			Content:        rec.Content,
			SourceDocument: source,
		})
	}
	if len(articles) == 0 {
		return nil, ErrNoArticles
	}
	return articles, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// IsCorpusFile reports whether p looks like a corpus file
func IsCorpusFile(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".jsonl", ".json":
		return true
	}
	return false
}

// Source is a corpus file with its parsed articles
type Source struct {
	Path     string
	Articles []models.ConstitutionArticle
}

// Load lists corpus files under prefix and parses each of them
func Load(ctx context.Context, store storage.Storage, prefix string) ([]Source, error) {
	paths, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var sources []Source
	for _, p := range paths {
		if !IsCorpusFile(p) {
			continue
		}
		articles, err := loadFile(ctx, store, p)
		if err != nil {
			return nil, err
		}
		sources = append(sources, Source{Path: p, Articles: articles})
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w under %q", ErrNoArticles, prefix)
	}
	return sources, nil
}

func loadFile(ctx context.Context, store storage.Storage, p string) ([]models.ConstitutionArticle, error) {
	rc, err := store.Download(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Parse(rc, p)
}

// EmbedText is the text embedded for an article
func EmbedText(a models.ConstitutionArticle) string {
	var b strings.Builder
	b.WriteString("Article ")
	b.WriteString(a.ArticleNumber)
	if a.Title != "" {
		b.WriteString(": ")
		b.WriteString(a.Title)
	}
	b.WriteString("\n")
	b.WriteString(a.Content)
	return b.String()
}

// Embed fills the Embedding of every article, stopping at the first failure
func Embed(ctx context.Context, embedder service.Embedder, articles []models.ConstitutionArticle, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for i := range articles {
		vec, err := embedder.Embed(ctx, EmbedText(articles[i]))
		if err != nil {
			return fmt.Errorf("article %s: %w", articles[i].ArticleNumber, err)
		}
		if len(vec) == 0 {
			return fmt.Errorf("article %s: %w", articles[i].ArticleNumber, service.ErrEmptyEmbedding)
		}
		articles[i].Embedding = vec
		logger.Debug("embedded article", "article", articles[i].ArticleNumber, "source", articles[i].SourceDocument)
	}
	return nil
}
