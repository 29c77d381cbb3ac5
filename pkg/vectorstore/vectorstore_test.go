package vectorstore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid document",
			doc: &Document{
				ID:        "doc1",
				Content:   "claim filing instructions",
				Embedding: []float32{0.1, 0.2, 0.3},
				Metadata:  map[string]interface{}{"source": "policy"},
			},
			wantErr: false,
		},
		{
			name: "empty ID",
			doc: &Document{
				Content:   "claim filing instructions",
				Embedding: []float32{0.1, 0.2, 0.3},
			},
			wantErr: true,
			errMsg:  "document ID cannot be empty",
		},
		{
			name: "empty content",
			doc: &Document{
				ID:        "doc1",
				Embedding: []float32{0.1, 0.2, 0.3},
			},
			wantErr: true,
			errMsg:  "document content cannot be empty",
		},
		{
			name: "empty embedding",
			doc: &Document{
				ID:      "doc1",
				Content: "claim filing instructions",
			},
			wantErr: true,
			errMsg:  "document embedding cannot be empty",
		},
		{
			name: "NaN in embedding",
			doc: &Document{
				ID:        "doc1",
				Content:   "claim filing instructions",
				Embedding: []float32{0.1, float32(math.NaN()), 0.3},
			},
			wantErr: true,
			errMsg:  "invalid value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSearchQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   *SearchQuery
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid query",
			query:   &SearchQuery{Embedding: []float32{0.1, 0.2}, TopK: 3},
			wantErr: false,
		},
		{
			name:    "empty embedding",
			query:   &SearchQuery{TopK: 3},
			wantErr: true,
			errMsg:  "query embedding cannot be empty",
		},
		{
			name:    "zero TopK",
			query:   &SearchQuery{Embedding: []float32{0.1, 0.2}},
			wantErr: true,
			errMsg:  "TopK must be at least 1",
		},
		{
			name:    "excessive TopK",
			query:   &SearchQuery{Embedding: []float32{0.1, 0.2}, TopK: 1001},
			wantErr: true,
			errMsg:  "TopK cannot exceed 1000",
		},
		{
			name:    "invalid metric",
			query:   &SearchQuery{Embedding: []float32{0.1, 0.2}, TopK: 3, Metric: "manhattan"},
			wantErr: true,
			errMsg:  "invalid distance metric",
		},
		{
			name:    "Inf in embedding",
			query:   &SearchQuery{Embedding: []float32{float32(math.Inf(1))}, TopK: 3},
			wantErr: true,
			errMsg:  "invalid value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSearchQuery(tt.query)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "nonexistent", EmbeddingDimensions: 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vector store provider")
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Provider: "pinecone", EmbeddingDimensions: 1024}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinecone configuration is required")

	cfg.Pinecone = &PineconeConfig{APIKey: "key"}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index_host is required")

	cfg.Pinecone.IndexHost = "https://idx.svc.pinecone.io"
	assert.NoError(t, cfg.Validate())
}
