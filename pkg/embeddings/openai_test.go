package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) Service {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewOpenAI(Config{
		Provider: "openai",
		OpenAI: &OpenAIConfig{
			APIKey:  "test-key",
			BaseURL: srv.URL,
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestOpenAIEmbed(t *testing.T) {
	var gotReq openAIRequest

	svc := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,0.6]}],"model":"text-embedding-3-small"}`))
	})

	embedding, err := svc.Embed(context.Background(), "coverage question")
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-small", gotReq.Model)
	assert.Equal(t, "coverage question", gotReq.Input)
	require.NotNil(t, gotReq.Dimensions)
	assert.Equal(t, 1536, *gotReq.Dimensions)
	assert.Equal(t, []float32{0.5, 0.6}, embedding)
}

func TestOpenAIEmbedBatchCountMismatch(t *testing.T) {
	svc := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5]}]}`))
	})

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 embeddings")
}

func TestOpenAIAPIError(t *testing.T) {
	svc := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})

	_, err := svc.Embed(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestOpenAICustomDimensionsRejectedForAda(t *testing.T) {
	_, err := NewOpenAI(Config{
		Provider: "openai",
		OpenAI: &OpenAIConfig{
			APIKey:     "k",
			Model:      "text-embedding-ada-002",
			Dimensions: 256,
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom dimensions")
}

func TestOpenAIModelDimensions(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"text-embedding-ada-002", 1536},
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"something-else", 1536},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, openaiModelDimensions(tt.model), tt.model)
	}
}
