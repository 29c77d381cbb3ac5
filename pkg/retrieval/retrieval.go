// Package retrieval looks up context passages semantically similar to a user
// query. It wraps an embedding step (text to vector) and a nearest-neighbor
// search step (vector to ranked matches) behind a single Retriever interface.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/securesure/chatd/pkg/embeddings"
	"github.com/securesure/chatd/pkg/vectorstore"
)

// ErrUnavailable reports a provider or network failure during context lookup.
// It is distinct from finding nothing: zero matches returns an empty slice
// and no error.
var ErrUnavailable = errors.New("retrieval unavailable")

// Passage is one retrieved context snippet with its similarity metadata.
type Passage struct {
	// Text is the passage content.
	Text string
	// Score is the similarity score; higher is more similar.
	Score float32
	// Metadata carries provider-specific match information.
	Metadata map[string]interface{}
}

// Retriever returns up to topK context passages for a query, best first.
// Implementations must return whatever is available when fewer than topK
// matches exist, including none, rather than failing.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Passage, error)
}

// Client implements Retriever over an embedding service and a vector store.
type Client struct {
	embedder  embeddings.Service
	store     vectorstore.VectorStore
	namespace string
}

// NewClient creates a retrieval client.
func NewClient(embedder embeddings.Service, store vectorstore.VectorStore, namespace string) *Client {
	return &Client{
		embedder:  embedder,
		store:     store,
		namespace: namespace,
	}
}

// Retrieve embeds the query and searches the vector store.
// Any embedding or search failure is reported as ErrUnavailable; the caller
// decides whether to proceed without context.
func (c *Client) Retrieve(ctx context.Context, query string, topK int) ([]Passage, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if topK < 1 {
		return nil, fmt.Errorf("topK must be at least 1, got %d", topK)
	}

	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrUnavailable, err)
	}

	results, err := c.store.Search(ctx, vectorstore.SearchQuery{
		Embedding: vector,
		TopK:      topK,
		Namespace: c.namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search index: %v", ErrUnavailable, err)
	}

	passages := make([]Passage, 0, len(results))
	for _, r := range results {
		passages = append(passages, Passage{
			Text:     r.Document.Content,
			Score:    r.Score,
			Metadata: r.Document.Metadata,
		})
	}
	return passages, nil
}
