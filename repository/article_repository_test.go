package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatVector(t *testing.T) {
	assert.Equal(t, "[]", formatVector(nil))
	assert.Equal(t, "[0.500000,-1.000000,0.125000]", formatVector([]float32{0.5, -1, 0.125}))
}

func TestSearch_RejectsWrongDimensions(t *testing.T) {
	repo := NewArticleRepository(nil)

	_, err := repo.Query(context.Background(), []float32{1, 2, 3}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "768 dimensions")
}
