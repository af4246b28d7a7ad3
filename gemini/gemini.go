// Package gemini adapts the Gemini API to the embedding and generation
// capabilities used by the analysis pipeline.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"contractlens-backend/service"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var (
	ErrMissingAPIKey = errors.New("GEMINI_API_KEY not set")
	ErrBlocked       = errors.New("prompt blocked")
	ErrNoCandidates  = errors.New("API returned no candidates")
	ErrEmptyContent  = errors.New("API returned empty content")
	ErrEmptyVector   = errors.New("API returned an empty embedding")
)

// NewClient creates a Gemini client authenticated with apiKey
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return genai.NewClient(ctx, option.WithAPIKey(apiKey))
}

// Option configures an Embedder or Generator
type Option func(*retryPolicy)

// WithRetry overrides the number of attempts and the initial backoff
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(p *retryPolicy) {
		p.attempts = attempts
		p.backoff = backoff
	}
}

// WithLogger sets the logger used for retry warnings
func WithLogger(l *slog.Logger) Option {
	return func(p *retryPolicy) {
		if l != nil {
			p.logger = l
		}
	}
}

func newPolicy(opts []Option) retryPolicy {
	p := defaultRetryPolicy()
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Embedder implements service.Embedder with a Gemini embedding model.
// Vectors are L2-normalized.
type Embedder struct {
	client   *genai.Client
	model    string
	taskType genai.TaskType
	retry    retryPolicy
}

// NewEmbedder creates an embedder for retrieval queries
func NewEmbedder(client *genai.Client, model string, opts ...Option) *Embedder {
	return &Embedder{
		client:   client,
		model:    model,
		taskType: genai.TaskTypeRetrievalQuery,
		retry:    newPolicy(opts),
	}
}

// ForDocuments returns a copy that embeds corpus passages instead of queries
func (e *Embedder) ForDocuments() *Embedder {
	cp := *e
	cp.taskType = genai.TaskTypeRetrievalDocument
	return &cp
}

// Embed returns the normalized embedding of text
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	em.TaskType = e.taskType

	var values []float32
	err := e.retry.do(ctx, "embed", func(ctx context.Context) error {
		res, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return err
		}
		if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
			return permanent(ErrEmptyVector)
		}
		values = res.Embedding.Values
		return nil
	})
	if err != nil {
		return nil, err
	}
	return normalize(values), nil
}

// Generator implements service.Generator with a Gemini generative model
type Generator struct {
	client *genai.Client
	model  string
	retry  retryPolicy
}

// NewGenerator creates a generator for the named model
func NewGenerator(client *genai.Client, model string, opts ...Option) *Generator {
	return &Generator{client: client, model: model, retry: newPolicy(opts)}
}

// Generate returns the concatenated text of the first candidate. Blocked
// prompts and empty candidates are errors.
func (g *Generator) Generate(ctx context.Context, prompt string, opts service.GenerateOptions) (string, error) {
	// A model handle per call keeps decoding parameters per request
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(opts.Temperature)
	if opts.TopP > 0 {
		model.SetTopP(opts.TopP)
	}
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(opts.MaxTokens)
	}

	var text string
	err := g.retry.do(ctx, "generate", func(ctx context.Context) error {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return err
		}
		text, err = responseText(resp)
		if err != nil {
			return permanent(err)
		}
		return nil
	})
	return text, err
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrNoCandidates
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrNoCandidates
	}

	cand := resp.Candidates[0]
	var b strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w (finish reason: %s)", ErrEmptyContent, cand.FinishReason)
	}
	return text, nil
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
