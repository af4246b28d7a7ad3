package vectorindex

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"contractlens-backend/models"
)

// Memory is an in-memory index using brute-force cosine similarity
type Memory struct {
	mu       sync.RWMutex
	articles []models.ConstitutionArticle
	norms    []float64
}

// NewMemory creates an empty in-memory index
func NewMemory() *Memory { return &Memory{} }

// Add stores embedded articles. All vectors must share one dimension.
func (m *Memory) Add(articles ...models.ConstitutionArticle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range articles {
		if len(a.Embedding) == 0 {
			return errors.New("article has no embedding")
		}
		if len(m.articles) > 0 && len(a.Embedding) != len(m.articles[0].Embedding) {
			return errors.New("vector dimension mismatch")
		}
		m.articles = append(m.articles, a)
		m.norms = append(m.norms, norm(a.Embedding))
	}
	return nil
}

// Len returns the number of stored articles
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.articles)
}

// Query returns up to k passages ordered by descending cosine similarity
func (m *Memory) Query(ctx context.Context, vector []float32, k int) ([]models.SourcePassage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.articles) == 0 {
		return []models.SourcePassage{}, nil
	}
	if len(vector) != len(m.articles[0].Embedding) {
		return nil, errors.New("vector dimension mismatch")
	}

	qn := norm(vector)
	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(m.articles))
	for i, a := range m.articles {
		scores[i] = scored{idx: i, score: cosine(a.Embedding, vector, m.norms[i], qn)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if k > len(scores) {
		k = len(scores)
	}
	passages := make([]models.SourcePassage, 0, k)
	for _, s := range scores[:k] {
		p := m.articles[s.idx].Passage()
		p.Score = s.score
		passages = append(passages, p)
	}
	return passages, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
