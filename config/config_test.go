package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"contractlens-backend/models"
	"contractlens-backend/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "text-embedding-004", cfg.EmbeddingModel)
	assert.Equal(t, "gemini-1.5-flash-002", cfg.GenerationModel)
	assert.Equal(t, IndexPgvector, cfg.IndexBackend)
	assert.Equal(t, 3, cfg.Neighbors)
	assert.Equal(t, 3, cfg.MaxConcurrency)
	assert.Equal(t, 60*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, 0.5, cfg.SupportThreshold)
	assert.Equal(t, 2.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 4, cfg.RateLimit.BurstSize)
	assert.Equal(t, ThemeModeHeuristic, cfg.ThemeMode)
	assert.Equal(t, VerifierLexical, cfg.Verifier)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"INDEX_BACKEND":     "Qdrant",
		"RAG_NEIGHBORS":     "5",
		"MAX_CONCURRENCY":   "1",
		"ANALYSIS_TIMEOUT":  "15s",
		"SUPPORT_THRESHOLD": "0.7",
		"VERIFIER":          "judge",
		"THEME_MODE":        "llm",
		"LOG_LEVEL":         "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, IndexQdrant, cfg.IndexBackend)
	assert.Equal(t, 5, cfg.Neighbors)
	assert.Equal(t, 1, cfg.MaxConcurrency)
	assert.Equal(t, 15*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, 0.7, cfg.SupportThreshold)
	assert.Equal(t, VerifierJudge, cfg.Verifier)
	assert.Equal(t, ThemeModeLLM, cfg.ThemeMode)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestFromEnv_ValidationNamesVariable(t *testing.T) {
	cases := map[string]map[string]string{
		"INDEX_BACKEND":     {"INDEX_BACKEND": "faiss"},
		"RAG_NEIGHBORS":     {"RAG_NEIGHBORS": "11"},
		"MAX_CONCURRENCY":   {"MAX_CONCURRENCY": "zero"},
		"ANALYSIS_TIMEOUT":  {"ANALYSIS_TIMEOUT": "soon"},
		"SUPPORT_THRESHOLD": {"SUPPORT_THRESHOLD": "1.5"},
		"VERIFIER":          {"VERIFIER": "oracle"},
		"THEME_MODE":        {"THEME_MODE": "random"},
		"CORPUS_SOURCE":     {"CORPUS_SOURCE": "ftp"},
		"AWS_S3_BUCKET":     {"CORPUS_SOURCE": "s3"},
		"LOG_LEVEL":         {"LOG_LEVEL": "loud"},
	}
	for variable, env := range cases {
		t.Run(variable, func(t *testing.T) {
			_, err := FromEnv(envMap(env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), variable)
		})
	}
}

func TestCorpusStorage(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{"CORPUS_PATH": "/srv/corpus"}))
	require.NoError(t, err)
	sc, prefix := cfg.CorpusStorage()
	assert.Equal(t, storage.StorageTypeLocal, sc.Type)
	assert.Equal(t, "/srv/corpus", sc.LocalPath)
	assert.Empty(t, prefix)

	cfg, err = FromEnv(envMap(map[string]string{
		"CORPUS_SOURCE": "s3",
		"AWS_S3_BUCKET": "contracts",
		"CORPUS_PATH":   "constitution/",
	}))
	require.NoError(t, err)
	sc, prefix = cfg.CorpusStorage()
	assert.Equal(t, storage.StorageTypeS3, sc.Type)
	assert.Equal(t, "contracts", sc.S3Bucket)
	assert.Equal(t, "constitution/", prefix)
}

func TestThemeRules(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)
	rules, err := cfg.ThemeRules()
	require.NoError(t, err)
	assert.Equal(t, models.Theme("Right to Work and Employment"), rules[0].Theme)

	path := filepath.Join(t.TempDir(), "themes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`themes:
  - theme: Right to Privacy
    keywords: [confidential, personal data]
  - theme: Right to Work and Employment
    keywords: [employee]
`), 0o644))

	cfg.ThemeRulesFile = path
	rules, err = cfg.ThemeRules()
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, models.Theme("Right to Privacy"), rules[0].Theme)
	assert.Equal(t, []string{"confidential", "personal data"}, rules[0].Keywords)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("themes: []\n"), 0o644))
	_, err = LoadThemeRules(empty)
	assert.Error(t, err)

	_, err = LoadThemeRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
