package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurodoc/internal/domain"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "pinecone", cfg.VectorStore.Type)
	assert.Equal(t, "PINECONE_API_KEY", cfg.VectorStore.Pinecone.APIKeyEnv)
	assert.Equal(t, "gemini-1.5-pro", cfg.Generator.Gemini.Model)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Generator.Gemini.APIKeyEnv)
	assert.Equal(t, 1000, cfg.Chunker.MaxChars)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, 384, cfg.Embedder.Dimension)
	assert.Equal(t, NamespaceConfig{Prefix: "neurallens", Metric: "cosine", Cloud: "aws", Region: "us-east-1"}, cfg.Namespace)
	assert.Equal(t, SearchConfig{AnswerTopK: 1, SummaryTopK: 10, UpsertBatch: 100}, cfg.Search)
}

func TestLoad_AppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vector_store:
  type: qdrant
generator:
  type: openai
  openai:
    base_url: http://localhost:11434/v1
    allow_empty_key: true
search:
  order_by_chunk_index: true
  summary_top_k: 20
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:6333", cfg.VectorStore.Qdrant.URL)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Generator.OpenAI.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Generator.OpenAI.APIKeyEnv)
	assert.True(t, cfg.Search.OrderByChunkIndex)
	assert.Equal(t, 20, cfg.Search.SummaryTopK)
	assert.Equal(t, 1, cfg.Search.AnswerTopK)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [unclosed"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Server.Addr = ":9999"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "neurodoc", "config.yaml"), path)
	assert.Equal(t, Default(), cfg)
	assert.FileExists(t, path)
}

func TestLoadDefault_PrefersWorkingDirectory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("config.yaml", []byte("server:\n  addr: \":7000\"\n"), 0o644))

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", path)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestValidate_MissingCredentials(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	err := Default().Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "PINECONE_API_KEY")
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestValidate_CredentialsPresent(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "pk")
	t.Setenv("GEMINI_API_KEY", "gk")
	assert.NoError(t, Default().Validate())
}

func TestValidate_UnknownSelectors(t *testing.T) {
	cfg := Default()
	cfg.Embedder.Type = "bert"
	cfg.VectorStore.Type = "faiss"
	cfg.Generator.Type = "llama"
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"unknown embedder: bert", "unknown vector store: faiss", "unknown generator: llama", "unknown log level: loud"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_Postgres(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gk")
	t.Setenv("DATABASE_URL", "")
	cfg := Default()
	cfg.VectorStore = VectorStoreConfig{Type: "postgres"}
	applyConfigDefaults(cfg)

	assert.ErrorIs(t, cfg.Validate(), domain.ErrConfiguration)

	t.Setenv("DATABASE_URL", "postgres://localhost/neurodoc?sslmode=disable")
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "postgres://localhost/neurodoc?sslmode=disable", cfg.VectorStore.Postgres.ResolveDSN())
}

func TestLoad_OpenAIEmbedderDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder:\n  type: openai\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, 384, cfg.Embedder.Dimension)
}
