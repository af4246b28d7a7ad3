// Package ratelimit throttles calls to external capabilities with a token
// bucket shared by all analysis branches.
package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"contractlens-backend/models"
	"contractlens-backend/service"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
)

// DefaultCooldown is the pause after the remote side reported a quota error
const DefaultCooldown = 10 * time.Second

// Config holds the token bucket parameters
type Config struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultConfig is conservative for free-tier Gemini quotas
var DefaultConfig = Config{RequestsPerSecond: 2.0, BurstSize: 4}

// Limiter is a token bucket with a cooldown for 429 responses
type Limiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	retryAt  time.Time
	cooldown time.Duration
}

// New creates a limiter; non-positive values select DefaultConfig
func New(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultConfig.RequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = DefaultConfig.BurstSize
	}
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		cooldown: DefaultCooldown,
	}
}

// Wait blocks until a request may be made, honouring any cooldown
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if time.Now().Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}

	return l.limiter.Wait(ctx)
}

// Observe starts a cooldown when err is a quota error
func (l *Limiter) Observe(err error) {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusTooManyRequests {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.retryAt = time.Now().Add(l.cooldown)
}

// Embedder throttles a service.Embedder
type Embedder struct {
	next    service.Embedder
	limiter *Limiter
}

// NewEmbedder wraps next with limiter
func NewEmbedder(next service.Embedder, limiter *Limiter) *Embedder {
	return &Embedder{next: next, limiter: limiter}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	v, err := e.next.Embed(ctx, text)
	e.limiter.Observe(err)
	return v, err
}

// Generator throttles a service.Generator
type Generator struct {
	next    service.Generator
	limiter *Limiter
}

// NewGenerator wraps next with limiter
func NewGenerator(next service.Generator, limiter *Limiter) *Generator {
	return &Generator{next: next, limiter: limiter}
}

func (g *Generator) Generate(ctx context.Context, prompt string, opts service.GenerateOptions) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	text, err := g.next.Generate(ctx, prompt, opts)
	g.limiter.Observe(err)
	return text, err
}

// Index throttles a service.VectorIndex
type Index struct {
	next    service.VectorIndex
	limiter *Limiter
}

// NewIndex wraps next with limiter
func NewIndex(next service.VectorIndex, limiter *Limiter) *Index {
	return &Index{next: next, limiter: limiter}
}

func (i *Index) Query(ctx context.Context, vector []float32, k int) ([]models.SourcePassage, error) {
	if err := i.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return i.next.Query(ctx, vector, k)
}
