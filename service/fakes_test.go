package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"contractlens-backend/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vector, f.err
}

type fakeIndex struct {
	passages []models.SourcePassage
	err      error
	gotK     int
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, k int) ([]models.SourcePassage, error) {
	f.gotK = k
	return f.passages, f.err
}

// fakeGenerator records prompts and answers with respond
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ GenerateOptions) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.respond(prompt)
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func answer(text string) *fakeGenerator {
	return &fakeGenerator{respond: func(string) (string, error) { return text, nil }}
}

func failing(err error) *fakeGenerator {
	return &fakeGenerator{respond: func(string) (string, error) { return "", err }}
}

type staticExtractor struct {
	themes []models.Theme
	err    error
}

func (s staticExtractor) Extract(context.Context, string) ([]models.Theme, string, error) {
	return s.themes, "static", s.err
}

// retrieverFunc adapts a function to Retriever
type retrieverFunc func(ctx context.Context, theme models.Theme) (*models.RetrievalResult, error)

func (f retrieverFunc) Retrieve(ctx context.Context, theme models.Theme) (*models.RetrievalResult, error) {
	return f(ctx, theme)
}

type verifierFunc func(explanation string, sources []models.SourcePassage) models.VerificationVerdict

func (f verifierFunc) Verify(_ context.Context, explanation string, sources []models.SourcePassage) models.VerificationVerdict {
	return f(explanation, sources)
}

var (
	article21 = models.SourcePassage{
		ID:      "a21",
		Article: "21",
		Title:   "Protection of life and personal liberty",
		Content: "No person shall be deprived of his life or personal liberty except according to procedure established by law.",
	}
	article14 = models.SourcePassage{
		ID:      "a14",
		Article: "14",
		Title:   "Equality before law",
		Content: "The State shall not deny to any person equality before the law or the equal protection of the laws within the territory of India.",
	}
)

// groundedResult returns a retrieval whose explanation restates the source
func groundedResult(theme models.Theme, src models.SourcePassage) *models.RetrievalResult {
	return &models.RetrievalResult{
		Theme:       theme,
		Sources:     []models.SourcePassage{src},
		Explanation: src.Content,
		Grounded:    true,
	}
}
