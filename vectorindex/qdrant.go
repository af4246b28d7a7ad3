// Package vectorindex provides the non-Postgres vector index backends.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"contractlens-backend/models"
)

// QdrantConfig holds connection details for a Qdrant collection
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Qdrant is a minimal REST client to Qdrant using cosine distance
type Qdrant struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// NewQdrant creates a client for cfg.Collection
func NewQdrant(cfg QdrantConfig) (*Qdrant, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant url is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Qdrant{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Init creates the collection if missing
func (q *Qdrant) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	err := q.do(ctx, http.MethodPut, q.collectionURL(""), body, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusConflict {
		return nil
	}
	return err
}

// Upsert stores embedded articles; the article ID is the point ID
func (q *Qdrant) Upsert(ctx context.Context, articles []models.ConstitutionArticle) error {
	points := make([]map[string]any, 0, len(articles))
	for _, a := range articles {
		if len(a.Embedding) == 0 {
			return fmt.Errorf("article %s has no embedding", a.ArticleNumber)
		}
		points = append(points, map[string]any{
			"id":     a.ID.String(),
			"vector": a.Embedding,
			"payload": map[string]any{
				"article":         a.ArticleNumber,
				"title":           a.Title,
				"part":            a.Part,
				"content":         a.Content,
				"source_document": a.SourceDocument,
			},
		})
	}
	body := map[string]any{"points": points}
	return q.do(ctx, http.MethodPut, q.collectionURL("/points?wait=true"), body, nil)
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any     `json:"id"`
		Score   float64 `json:"score"`
		Payload struct {
			Article string `json:"article"`
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"payload"`
	} `json:"result"`
}

// Query returns the k nearest passages
func (q *Qdrant) Query(ctx context.Context, vector []float32, k int) ([]models.SourcePassage, error) {
	if k <= 0 {
		k = 3
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp qdrantSearchResponse
	if err := q.do(ctx, http.MethodPost, q.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}

	passages := make([]models.SourcePassage, 0, len(resp.Result))
	for _, r := range resp.Result {
		passages = append(passages, models.SourcePassage{
			ID:      fmt.Sprint(r.ID),
			Article: r.Payload.Article,
			Title:   r.Payload.Title,
			Content: r.Payload.Content,
			Score:   r.Score,
		})
	}
	return passages, nil
}

type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string { return e.msg }

func (q *Qdrant) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", q.url, q.collection, suffix)
}

func (q *Qdrant) do(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{
			code: resp.StatusCode,
			msg:  fmt.Sprintf("qdrant %s %s failed: %s %s", method, url, resp.Status, strings.TrimSpace(string(msg))),
		}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode qdrant response: %w", err)
		}
	}
	return nil
}
