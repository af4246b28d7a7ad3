package service

import (
	"context"

	"contractlens-backend/models"
)

// Embedder converts text into a fixed-length vector via an external service
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex returns the k nearest stored passages for a query vector.
// It may return fewer than k passages, or none.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, k int) ([]models.SourcePassage, error)
}

// Generator returns generated text for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions are the decoding parameters for a generation call
type GenerateOptions struct {
	MaxTokens   int32
	Temperature float32
	TopP        float32
}
