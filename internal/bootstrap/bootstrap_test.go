package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurodoc/internal/config"
	"neurodoc/internal/domain"
)

func chatServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "local",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func localConfig(generatorURL string) *config.AppConfig {
	cfg := config.Default()
	cfg.VectorStore = config.VectorStoreConfig{Type: "memory"}
	cfg.Generator = config.GeneratorConfig{
		Type:   "openai",
		OpenAI: &config.OpenAIGeneratorConfig{BaseURL: generatorURL, AllowEmptyKey: true, APIKeyEnv: "NEURODOC_TEST_UNSET"},
	}
	return cfg
}

func TestNew_LocalStack(t *testing.T) {
	srv := chatServer(t, "Blue.")
	rt, err := New(context.Background(), localConfig(srv.URL), nil)
	require.NoError(t, err)
	defer rt.Close()

	ctx := context.Background()
	stored := rt.Ops.Store(ctx, "alice", "The sky is blue.")
	require.True(t, stored.OK, stored.Text)
	assert.NotEmpty(t, stored.DocID)

	answer := rt.Ops.Search(ctx, "alice", "What colour is the sky?")
	assert.True(t, answer.OK)
	assert.Equal(t, "Blue.", answer.Text)
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := New(context.Background(), config.Default(), nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNew_UnknownVectorStore(t *testing.T) {
	cfg := localConfig("http://localhost")
	cfg.VectorStore.Type = "faiss"

	_, err := New(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNew_DefaultsWithCredentials(t *testing.T) {
	t.Setenv("PINECONE_API_KEY", "pk")
	t.Setenv("GEMINI_API_KEY", "gk")

	rt, err := New(context.Background(), config.Default(), nil)
	require.NoError(t, err)
	assert.NotNil(t, rt.Service)
	assert.NoError(t, rt.Close())
}
