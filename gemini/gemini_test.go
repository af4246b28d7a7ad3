package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func testPolicy(attempts int) retryPolicy {
	return retryPolicy{
		attempts: attempts,
		backoff:  time.Millisecond,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRetryPolicy_RetriesTransientErrors(t *testing.T) {
	calls := 0
	err := testPolicy(3).do(context.Background(), "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return &googleapi.Error{Code: 503}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	transient := &googleapi.Error{Code: 500}
	err := testPolicy(3).do(context.Background(), "test", func(context.Context) error {
		calls++
		return transient
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	var apiErr *googleapi.Error
	assert.True(t, errors.As(err, &apiErr))
}

func TestRetryPolicy_DoesNotRetryClientErrors(t *testing.T) {
	for _, code := range []int{400, 401, 403} {
		calls := 0
		err := testPolicy(3).do(context.Background(), "test", func(context.Context) error {
			calls++
			return &googleapi.Error{Code: code}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls, "code %d", code)
	}
}

func TestRetryPolicy_DoesNotRetryPermanentOrBlocked(t *testing.T) {
	calls := 0
	err := testPolicy(3).do(context.Background(), "test", func(context.Context) error {
		calls++
		return permanent(ErrEmptyContent)
	})
	assert.ErrorIs(t, err, ErrEmptyContent)
	assert.Equal(t, 1, calls)

	calls = 0
	err = testPolicy(3).do(context.Background(), "test", func(context.Context) error {
		calls++
		return &genai.BlockedError{}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := testPolicy(5)
	p.backoff = time.Hour

	calls := 0
	err := p.do(ctx, "test", func(context.Context) error {
		calls++
		cancel()
		return errors.New("unavailable")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestResponseText(t *testing.T) {
	t.Run("concatenates text parts", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("Article 21 "), genai.Text("protects life.")}},
			}},
		}
		text, err := responseText(resp)
		require.NoError(t, err)
		assert.Equal(t, "Article 21 protects life.", text)
	})

	t.Run("blocked prompt", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety},
		}
		_, err := responseText(resp)
		assert.ErrorIs(t, err, ErrBlocked)
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := responseText(&genai.GenerateContentResponse{})
		assert.ErrorIs(t, err, ErrNoCandidates)

		_, err = responseText(nil)
		assert.ErrorIs(t, err, ErrNoCandidates)
	})

	t.Run("empty content", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text("  ")}}}},
		}
		_, err := responseText(resp)
		assert.ErrorIs(t, err, ErrEmptyContent)
	})
}

func TestNormalize(t *testing.T) {
	out := normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, out[0], 1e-6)
	assert.InDelta(t, 0.8, out[1], 1e-6)

	zero := normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
