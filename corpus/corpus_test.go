package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"contractlens-backend/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLines = `{"article":"14","title":"Equality before law","part":"Part III","content":"The State shall not deny to any person equality before the law."}

{"article":"21","title":"Protection of life and personal liberty","content":"No person shall be deprived of his life or personal liberty except according to procedure established by law."}
`

func TestParse_JSONLines(t *testing.T) {
	articles, err := Parse(strings.NewReader(sampleLines), "part3.jsonl")
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, "14", articles[0].ArticleNumber)
	assert.Equal(t, "Equality before law", articles[0].Title)
	assert.Equal(t, "Part III", articles[0].Part)
	assert.Equal(t, "part3.jsonl", articles[0].SourceDocument)
	assert.Equal(t, "21", articles[1].ArticleNumber)

	again, err := Parse(strings.NewReader(sampleLines), "part3.jsonl")
	require.NoError(t, err)
	assert.Equal(t, articles[0].ID, again[0].ID, "IDs are stable across runs")
	assert.NotEqual(t, articles[0].ID, articles[1].ID)
}

func TestParse_JSONArray(t *testing.T) {
	input := `  [{"article":"19","content":"All citizens shall have the right to freedom of speech and expression."}]`
	articles, err := Parse(strings.NewReader(input), "part3.json")
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "19", articles[0].ArticleNumber)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(strings.NewReader(""), "empty.jsonl")
	assert.ErrorIs(t, err, ErrNoArticles)

	_, err = Parse(strings.NewReader("{\"article\":\"14\",\"content\":\"x\"}\nnot json\n"), "bad.jsonl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.jsonl:2")

	_, err = Parse(strings.NewReader(`{"article":"14"}`), "nocontent.jsonl")
	assert.Error(t, err)
}

func TestLoad_FromLocalStorage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "corpus"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpus", "part3.jsonl"), []byte(sampleLines), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpus", "README.md"), []byte("ignored"), 0o644))

	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	sources, err := Load(context.Background(), store, "corpus")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "corpus/part3.jsonl", sources[0].Path)
	assert.Len(t, sources[0].Articles, 2)
}

type fakeEmbedder struct {
	failOn string
}

func (f fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("quota exceeded")
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestEmbed(t *testing.T) {
	articles, err := Parse(strings.NewReader(sampleLines), "part3.jsonl")
	require.NoError(t, err)

	require.NoError(t, Embed(context.Background(), fakeEmbedder{}, articles, nil))
	for _, a := range articles {
		assert.Len(t, a.Embedding, 2)
	}

	err = Embed(context.Background(), fakeEmbedder{failOn: "Article 21"}, articles, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "article 21")
}

func TestEmbedText(t *testing.T) {
	articles, err := Parse(strings.NewReader(sampleLines), "part3.jsonl")
	require.NoError(t, err)
	assert.Equal(t,
		"Article 14: Equality before law\nThe State shall not deny to any person equality before the law.",
		EmbedText(articles[0]))
}
