package service

import (
	"context"
	"errors"
	"testing"

	"contractlens-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexicalVerifier_Verify(t *testing.T) {
	sources := []models.SourcePassage{article21}
	const (
		restated   = "No person shall be deprived of personal liberty except according to procedure established by law."
		partial    = "Personal liberty follows procedure established by law."
		fabricated = "Employers must pay overtime wages at double rates."
	)

	tests := []struct {
		name        string
		threshold   float64
		explanation string
		score       float64
		supported   bool
		unsupported []string
	}{
		{"restates the source", 0.5, restated, 1, true, []string{}},
		{"fabricated claim", 0.5, fabricated, 0, false, []string{fabricated}},
		{"half supported at default threshold", 0.5, partial + " " + fabricated, 0.5, true, []string{fabricated}},
		{"half supported at stricter threshold", 0.6, partial + " " + fabricated, 0.5, false, []string{fabricated}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewLexicalVerifier(tt.threshold)
			got := v.Verify(context.Background(), tt.explanation, sources)

			assert.Equal(t, models.VerdictScored, got.Kind)
			assert.InDelta(t, tt.score, got.Score, 1e-9)
			assert.Equal(t, tt.supported, got.Supported)
			assert.Equal(t, tt.unsupported, got.UnsupportedClaims)
			assert.Equal(t, MethodLexical, got.Method)
		})
	}
}

func TestLexicalVerifier_IsIdempotent(t *testing.T) {
	v := NewLexicalVerifier(DefaultSupportThreshold)
	explanation := "Article 21 guarantees liberty. Employers must pay overtime wages at double rates."
	sources := []models.SourcePassage{article21, article14}

	first := v.Verify(context.Background(), explanation, sources)
	second := v.Verify(context.Background(), explanation, sources)
	assert.Equal(t, first, second)
}

func TestLexicalVerifier_NoSources(t *testing.T) {
	got := NewLexicalVerifier(0).Verify(context.Background(), "Anything at all here.", nil)

	assert.Equal(t, models.VerdictNotApplicable, got.Kind)
	assert.Zero(t, got.Score)
	assert.False(t, got.Supported)
	assert.NotNil(t, got.UnsupportedClaims)
}

func TestLexicalVerifier_NoClaims(t *testing.T) {
	got := NewLexicalVerifier(0).Verify(context.Background(), "Summary:", []models.SourcePassage{article21})

	assert.Equal(t, models.VerdictScored, got.Kind)
	assert.Zero(t, got.Score)
	assert.False(t, got.Supported)
	assert.NotEmpty(t, got.Reason)
}

func TestNewLexicalVerifier_Threshold(t *testing.T) {
	assert.Equal(t, DefaultSupportThreshold, NewLexicalVerifier(0).Threshold())
	assert.Equal(t, DefaultSupportThreshold, NewLexicalVerifier(1.5).Threshold())
	assert.Equal(t, 0.8, NewLexicalVerifier(0.8).Threshold())
}

func TestSplitClaims(t *testing.T) {
	got := SplitClaims("**Analysis:**\n1. Article 14 ensures equality before law. Article 15 forbids discrimination!\n- ok")
	assert.Equal(t, []string{
		"Article 14 ensures equality before law.",
		"Article 15 forbids discrimination!",
	}, got)
}

func TestParseJudgeAnswer(t *testing.T) {
	score, unsupported, err := ParseJudgeAnswer("SCORE: 0.75\nUNSUPPORTED:\n- Claim A\n- none")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, score, 1e-9)
	assert.Equal(t, []string{"Claim A"}, unsupported)

	score, unsupported, err = ParseJudgeAnswer("score = 1.5\nUNSUPPORTED:\n- none")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
	assert.Empty(t, unsupported)

	_, _, err = ParseJudgeAnswer("All claims look fine to me.")
	assert.ErrorIs(t, err, ErrMalformedVerdict)
}

func TestJudgeVerifier_Verify(t *testing.T) {
	sources := []models.SourcePassage{article21}

	t.Run("scored", func(t *testing.T) {
		gen := answer("SCORE: 0.4\nUNSUPPORTED:\n- Employers must pay overtime.")
		got := NewJudgeVerifier(gen, 0.5, quietLogger()).Verify(context.Background(), "explanation", sources)

		assert.Equal(t, models.VerdictScored, got.Kind)
		assert.InDelta(t, 0.4, got.Score, 1e-9)
		assert.False(t, got.Supported)
		assert.Equal(t, []string{"Employers must pay overtime."}, got.UnsupportedClaims)
		assert.Equal(t, MethodJudge, got.Method)
		require.Equal(t, 1, gen.calls())
		assert.Contains(t, gen.prompts[0], article21.Content)
	})

	t.Run("generator failure degrades", func(t *testing.T) {
		got := NewJudgeVerifier(failing(errors.New("quota")), 0.5, quietLogger()).Verify(context.Background(), "x", sources)
		assert.Equal(t, models.VerdictUnavailable, got.Kind)
		assert.False(t, got.Supported)
	})

	t.Run("malformed answer degrades", func(t *testing.T) {
		got := NewJudgeVerifier(answer("looks good"), 0.5, quietLogger()).Verify(context.Background(), "x", sources)
		assert.Equal(t, models.VerdictUnavailable, got.Kind)
	})

	t.Run("no sources", func(t *testing.T) {
		gen := answer("SCORE: 1")
		got := NewJudgeVerifier(gen, 0.5, quietLogger()).Verify(context.Background(), "x", nil)
		assert.Equal(t, models.VerdictNotApplicable, got.Kind)
		assert.Zero(t, gen.calls())
	})
}
