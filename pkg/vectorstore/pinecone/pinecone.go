// Package pinecone implements vectorstore.VectorStore against the Pinecone
// data-plane REST API. Passage text travels in the vector metadata under the
// "text" key, matching how the index is populated.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/securesure/chatd/pkg/vectorstore"
)

const metadataTextKey = "text"

// Store implements vectorstore.VectorStore using a Pinecone index.
type Store struct {
	apiKey      string
	indexHost   string
	namespace   string
	defaultTopK int
	client      *http.Client
}

func init() {
	vectorstore.Register("pinecone", New)
}

// New creates a Pinecone-backed store from the provided configuration.
func New(config vectorstore.Config) (vectorstore.VectorStore, error) {
	if config.Pinecone == nil {
		return nil, fmt.Errorf("pinecone configuration is required")
	}
	if err := config.Pinecone.Validate(); err != nil {
		return nil, err
	}

	host := strings.TrimSuffix(config.Pinecone.IndexHost, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}

	return &Store{
		apiKey:      config.Pinecone.APIKey,
		indexHost:   host,
		namespace:   config.Namespace,
		defaultTopK: config.DefaultTopK,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Wire types for the Pinecone data-plane API.

type pineconeVector struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []pineconeVector `json:"vectors"`
	Namespace string           `json:"namespace,omitempty"`
}

type queryRequest struct {
	Namespace       string    `json:"namespace,omitempty"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeValues   bool      `json:"includeValues"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string                 `json:"id"`
		Score    float32                `json:"score"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"matches"`
	Namespace string `json:"namespace"`
}

type deleteRequest struct {
	IDs       []string `json:"ids"`
	Namespace string   `json:"namespace,omitempty"`
}

// Upsert inserts or updates documents in the index.
func (s *Store) Upsert(ctx context.Context, documents []vectorstore.Document) error {
	if len(documents) == 0 {
		return nil
	}

	vectors := make([]pineconeVector, len(documents))
	for i := range documents {
		if err := vectorstore.ValidateDocument(&documents[i]); err != nil {
			return fmt.Errorf("invalid document at index %d: %w", i, err)
		}
		metadata := make(map[string]interface{}, len(documents[i].Metadata)+1)
		for k, v := range documents[i].Metadata {
			metadata[k] = v
		}
		metadata[metadataTextKey] = documents[i].Content
		vectors[i] = pineconeVector{
			ID:       documents[i].ID,
			Values:   documents[i].Embedding,
			Metadata: metadata,
		}
	}

	req := upsertRequest{Vectors: vectors, Namespace: s.namespace}
	return s.post(ctx, "/vectors/upsert", req, nil)
}

// Search queries the index and maps matches back to documents.
func (s *Store) Search(ctx context.Context, query vectorstore.SearchQuery) ([]vectorstore.SearchResult, error) {
	if query.TopK == 0 {
		query.TopK = s.defaultTopK
	}
	if err := vectorstore.ValidateSearchQuery(&query); err != nil {
		return nil, fmt.Errorf("invalid search query: %w", err)
	}

	namespace := query.Namespace
	if namespace == "" {
		namespace = s.namespace
	}

	req := queryRequest{
		Namespace:       namespace,
		Vector:          query.Embedding,
		TopK:            query.TopK,
		IncludeValues:   false,
		IncludeMetadata: true,
	}

	var resp queryResponse
	if err := s.post(ctx, "/query", req, &resp); err != nil {
		return nil, err
	}

	results := make([]vectorstore.SearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if query.MinScore > 0 && m.Score < query.MinScore {
			continue
		}
		content, _ := m.Metadata[metadataTextKey].(string)
		results = append(results, vectorstore.SearchResult{
			Document: vectorstore.Document{
				ID:        m.ID,
				Content:   content,
				Namespace: resp.Namespace,
				Metadata:  m.Metadata,
			},
			Score: m.Score,
		})
	}
	return results, nil
}

// Delete removes vectors by their IDs.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	req := deleteRequest{IDs: ids, Namespace: s.namespace}
	return s.post(ctx, "/vectors/delete", req, nil)
}

// Close releases idle connections.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// post sends a JSON request to the index host and decodes the response.
func (s *Store) post(ctx context.Context, path string, reqBody any, result any) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.indexHost+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		}
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Message != "" {
			return fmt.Errorf("pinecone API error (status %d): %s", resp.StatusCode, errorResp.Message)
		}
		return fmt.Errorf("pinecone API error (status %d): %s", resp.StatusCode, string(body))
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
