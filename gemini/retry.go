package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
)

// permanentError marks a failure that a retry cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// retryPolicy retries transient failures with exponential backoff
type retryPolicy struct {
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: maxRetries, backoff: initialBackoff, logger: slog.Default()}
}

func (p retryPolicy) do(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := p.attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	backoff := p.backoff
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			p.logger.Warn("retrying gemini call", "op", op, "attempt", attempt+1, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err = fn(ctx)
		if err == nil || !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return false
	}

	// Don't retry on client errors
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return false
		}
	}
	return true
}
