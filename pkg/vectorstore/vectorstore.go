// Package vectorstore defines the vector index boundary used for semantic
// retrieval. Providers register themselves and are selected by name through
// the Config, so the retrieval pipeline never depends on a concrete index.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"time"
)

// VectorStore is the interface for vector index operations.
type VectorStore interface {
	// Upsert inserts or updates documents with embeddings.
	Upsert(ctx context.Context, documents []Document) error

	// Search performs similarity search and returns the most similar
	// documents, best first. Fewer than TopK matches (including zero) is
	// not an error.
	Search(ctx context.Context, query SearchQuery) ([]SearchResult, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close closes the connection to the index.
	Close() error
}

// Document is a stored passage with its embedding.
type Document struct {
	// ID is the unique identifier for the document.
	ID string `json:"id"`

	// Content is the text content of the document.
	Content string `json:"content"`

	// Embedding is the vector representation of the content.
	Embedding []float32 `json:"embedding"`

	// Namespace partitions documents within an index (optional).
	Namespace string `json:"namespace,omitempty"`

	// Metadata carries additional passage information.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the document was first stored.
	CreatedAt time.Time `json:"created_at"`
}

// SearchQuery defines the parameters for a similarity search.
type SearchQuery struct {
	// Embedding is the query vector.
	Embedding []float32

	// TopK is the number of results to return.
	TopK int

	// Namespace restricts the search to one partition (optional).
	Namespace string

	// MinScore excludes results scoring below this value (0 = no floor).
	MinScore float32

	// Metric selects the similarity calculation (default: cosine).
	Metric DistanceMetric
}

// SearchResult is a single match with its similarity score.
type SearchResult struct {
	// Document is the matched document.
	Document Document

	// Score is the similarity score; higher is more similar.
	Score float32
}

// DistanceMetric selects how vector similarity is calculated.
type DistanceMetric string

const (
	// DistanceMetricCosine is cosine similarity (default).
	DistanceMetricCosine DistanceMetric = "cosine"
	// DistanceMetricDotProduct is dot-product similarity.
	DistanceMetricDotProduct DistanceMetric = "dot_product"
	// DistanceMetricEuclidean is L2 distance converted to a 0-1 score.
	DistanceMetricEuclidean DistanceMetric = "euclidean"
)

// ValidateDocument checks a document before storage.
func ValidateDocument(doc *Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID cannot be empty")
	}
	if doc.Content == "" {
		return fmt.Errorf("document content cannot be empty")
	}
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("document embedding cannot be empty")
	}
	for i, v := range doc.Embedding {
		if invalidFloat(v) {
			return fmt.Errorf("embedding contains invalid value at index %d: %f", i, v)
		}
	}
	return nil
}

// ValidateSearchQuery checks a search query.
func ValidateSearchQuery(query *SearchQuery) error {
	if len(query.Embedding) == 0 {
		return fmt.Errorf("query embedding cannot be empty")
	}
	for i, v := range query.Embedding {
		if invalidFloat(v) {
			return fmt.Errorf("query embedding contains invalid value at index %d: %f", i, v)
		}
	}
	if query.TopK < 1 {
		return fmt.Errorf("TopK must be at least 1, got %d", query.TopK)
	}
	if query.TopK > 1000 {
		return fmt.Errorf("TopK cannot exceed 1000, got %d", query.TopK)
	}
	switch query.Metric {
	case DistanceMetricCosine, DistanceMetricDotProduct, DistanceMetricEuclidean, "":
	default:
		return fmt.Errorf("invalid distance metric: %s", query.Metric)
	}
	return nil
}

func invalidFloat(f float32) bool {
	f64 := float64(f)
	return math.IsNaN(f64) || math.IsInf(f64, 0)
}
