package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contractlens-backend/metrics"
	"contractlens-backend/models"
)

const (
	// DefaultNeighbors is the number of passages retrieved per theme
	DefaultNeighbors = 3
	maxNeighbors     = 10

	passageSeparator = "\n\n---\n\n"
)

// groundedOptions favor determinism over creativity
var groundedOptions = GenerateOptions{MaxTokens: 1024, Temperature: 0.2, TopP: 0.8}

// RAGRetriever orchestrates embed -> retrieve -> prompt -> generate for one theme
type RAGRetriever struct {
	embedder   Embedder
	index      VectorIndex
	generator  Generator
	neighbors  int
	dedupe     bool
	genOptions GenerateOptions
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// RetrieverOption is a functional option for RAGRetriever
type RetrieverOption func(*RAGRetriever)

// RetrieverWithEmbedder sets the embedding capability
func RetrieverWithEmbedder(e Embedder) RetrieverOption {
	return func(r *RAGRetriever) {
		r.embedder = e
	}
}

// RetrieverWithIndex sets the vector index capability
func RetrieverWithIndex(idx VectorIndex) RetrieverOption {
	return func(r *RAGRetriever) {
		r.index = idx
	}
}

// RetrieverWithGenerator sets the generative capability
func RetrieverWithGenerator(g Generator) RetrieverOption {
	return func(r *RAGRetriever) {
		r.generator = g
	}
}

// RetrieverWithNeighbors sets k, clamped to [1, 10]
func RetrieverWithNeighbors(k int) RetrieverOption {
	return func(r *RAGRetriever) {
		switch {
		case k < 1:
			r.neighbors = DefaultNeighbors
		case k > maxNeighbors:
			r.neighbors = maxNeighbors
		default:
			r.neighbors = k
		}
	}
}

// RetrieverWithDeduplication drops passages whose ID was already retrieved
func RetrieverWithDeduplication() RetrieverOption {
	return func(r *RAGRetriever) {
		r.dedupe = true
	}
}

// RetrieverWithGenerateOptions overrides the grounded decoding parameters
func RetrieverWithGenerateOptions(opts GenerateOptions) RetrieverOption {
	return func(r *RAGRetriever) {
		r.genOptions = opts
	}
}

// RetrieverWithMetrics records external call latencies
func RetrieverWithMetrics(m *metrics.Collector) RetrieverOption {
	return func(r *RAGRetriever) {
		r.metrics = m
	}
}

// RetrieverWithLogger sets the structured logger
func RetrieverWithLogger(l *slog.Logger) RetrieverOption {
	return func(r *RAGRetriever) {
		r.logger = l
	}
}

// NewRAGRetriever creates a retriever; capabilities are injected as options
func NewRAGRetriever(opts ...RetrieverOption) *RAGRetriever {
	r := &RAGRetriever{
		neighbors:  DefaultNeighbors,
		genOptions: groundedOptions,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Neighbors returns the configured k
func (r *RAGRetriever) Neighbors() int { return r.neighbors }

// Retrieve produces a grounded explanation for theme. Capability failures are
// returned as *EmbeddingError, *IndexError or *GenerationError.
func (r *RAGRetriever) Retrieve(ctx context.Context, theme models.Theme) (*models.RetrievalResult, error) {
	if r.embedder == nil {
		return nil, NewEmbeddingError(fmt.Errorf("embedder not set"))
	}
	if r.index == nil {
		return nil, NewIndexError(fmt.Errorf("vector index not set"))
	}
	if r.generator == nil {
		return nil, NewGenerationError(ErrGeneratorNotSet)
	}

	// 1. Embed the theme
	r.logger.Debug("embedding theme", "theme", theme)
	start := time.Now()
	vector, err := r.embedder.Embed(ctx, string(theme))
	r.metrics.ObserveCall(metrics.CapabilityEmbedding, start, err)
	if err != nil {
		return nil, NewEmbeddingError(err)
	}
	if len(vector) == 0 {
		return nil, NewEmbeddingError(ErrEmptyEmbedding)
	}

	// 2. Retrieve the nearest passages
	start = time.Now()
	passages, err := r.index.Query(ctx, vector, r.neighbors)
	r.metrics.ObserveCall(metrics.CapabilityIndex, start, err)
	if err != nil {
		return nil, NewIndexError(err)
	}
	if r.dedupe {
		passages = dedupePassages(passages)
	}

	if len(passages) == 0 {
		r.logger.Info("no passages retrieved", "theme", theme)
		return &models.RetrievalResult{
			Theme:       theme,
			Sources:     []models.SourcePassage{},
			Explanation: models.NoRelevantSourceExplanation,
			Grounded:    false,
		}, nil
	}

	// 3. Build the grounded prompt from the retrieved passages only
	prompt := BuildPrompt(theme, passages)

	// 4. Generate
	r.logger.Debug("generating explanation", "theme", theme, "passages", len(passages))
	start = time.Now()
	explanation, err := r.generator.Generate(ctx, prompt, r.genOptions)
	r.metrics.ObserveCall(metrics.CapabilityGeneration, start, err)
	if err != nil {
		return nil, NewGenerationError(err)
	}
	explanation = strings.TrimSpace(explanation)
	if explanation == "" {
		return nil, NewGenerationError(ErrEmptyGeneration)
	}

	return &models.RetrievalResult{
		Theme:       theme,
		Sources:     passages,
		Explanation: explanation,
		Grounded:    true,
	}, nil
}

// BuildPrompt places the passages as the only permissible knowledge context,
// followed by the grounding instruction and the theme.
func BuildPrompt(theme models.Theme, passages []models.SourcePassage) string {
	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		texts = append(texts, p.Content)
	}

	return fmt.Sprintf(`You are an expert on the Constitution of India.

**Provided Articles:**
---
%s
---

**Instructions:**
Explain how the provided articles relate to the legal theme below.
Rely ONLY on the provided articles. Do not use any outside knowledge.
If the articles do not address the theme, say so instead of guessing.

**Legal Theme:**
%s

**Explanation:**
`, strings.Join(texts, passageSeparator), theme)
}

func dedupePassages(passages []models.SourcePassage) []models.SourcePassage {
	seen := make(map[string]struct{}, len(passages))
	out := make([]models.SourcePassage, 0, len(passages))
	for _, p := range passages {
		key := p.ID
		if key == "" {
			key = p.Content
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
