// Package memory provides an in-memory vector store with brute-force search.
// It is intended for tests and local development, not for large corpora.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/securesure/chatd/pkg/vectorstore"
)

// Store implements vectorstore.VectorStore in process.
type Store struct {
	documents     map[string]vectorstore.Document
	maxDocuments  int
	defaultTopK   int
	embeddingDims int
	mu            sync.RWMutex
}

func init() {
	vectorstore.Register("memory", New)
}

// New creates an in-memory store from the provided configuration.
func New(config vectorstore.Config) (vectorstore.VectorStore, error) {
	if config.EmbeddingDimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be greater than 0, got %d", config.EmbeddingDimensions)
	}

	maxDocs := 10000
	if config.Memory != nil && config.Memory.MaxDocuments > 0 {
		maxDocs = config.Memory.MaxDocuments
	}

	return &Store{
		documents:     make(map[string]vectorstore.Document),
		maxDocuments:  maxDocs,
		defaultTopK:   config.DefaultTopK,
		embeddingDims: config.EmbeddingDimensions,
	}, nil
}

// Upsert inserts or updates documents.
func (s *Store) Upsert(ctx context.Context, documents []vectorstore.Document) error {
	if len(documents) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range documents {
		if err := vectorstore.ValidateDocument(&documents[i]); err != nil {
			return fmt.Errorf("invalid document at index %d: %w", i, err)
		}
		if len(documents[i].Embedding) != s.embeddingDims {
			return fmt.Errorf("document %s embedding dimension mismatch: expected %d, got %d",
				documents[i].ID, s.embeddingDims, len(documents[i].Embedding))
		}
	}

	newDocs := 0
	for _, doc := range documents {
		if _, exists := s.documents[doc.ID]; !exists {
			newDocs++
		}
	}
	if len(s.documents)+newDocs > s.maxDocuments {
		return fmt.Errorf("would exceed max documents limit: %d (current: %d, adding: %d)",
			s.maxDocuments, len(s.documents), newDocs)
	}

	for _, doc := range documents {
		s.documents[doc.ID] = copyDocument(doc)
	}
	return nil
}

// Search performs brute-force similarity search.
func (s *Store) Search(ctx context.Context, query vectorstore.SearchQuery) ([]vectorstore.SearchResult, error) {
	if query.TopK == 0 {
		query.TopK = s.defaultTopK
	}
	if err := vectorstore.ValidateSearchQuery(&query); err != nil {
		return nil, fmt.Errorf("invalid search query: %w", err)
	}
	if len(query.Embedding) != s.embeddingDims {
		return nil, fmt.Errorf("query embedding dimension mismatch: expected %d, got %d",
			s.embeddingDims, len(query.Embedding))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []vectorstore.SearchResult
	for _, doc := range s.documents {
		if query.Namespace != "" && doc.Namespace != query.Namespace {
			continue
		}
		score := similarity(query.Embedding, doc.Embedding, query.Metric)
		if query.MinScore > 0 && score < query.MinScore {
			continue
		}
		candidates = append(candidates, vectorstore.SearchResult{
			Document: copyDocument(doc),
			Score:    score,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > query.TopK {
		candidates = candidates[:query.TopK]
	}
	return candidates, nil
}

// Delete removes documents by their IDs.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.documents, id)
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Count returns the number of stored documents (useful for testing).
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

func similarity(a, b []float32, metric vectorstore.DistanceMetric) float32 {
	switch metric {
	case vectorstore.DistanceMetricDotProduct:
		return dotProduct(a, b)
	case vectorstore.DistanceMetricEuclidean:
		return 1.0 / (1.0 + euclideanDistance(a, b))
	default:
		return cosineSimilarity(a, b)
	}
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (sqrt(normA) * sqrt(normB))
}

func dotProduct(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func euclideanDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sqrt(sum)
}

func sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

func copyDocument(doc vectorstore.Document) vectorstore.Document {
	embedding := make([]float32, len(doc.Embedding))
	copy(embedding, doc.Embedding)

	var metadata map[string]interface{}
	if doc.Metadata != nil {
		metadata = make(map[string]interface{}, len(doc.Metadata))
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
	}

	doc.Embedding = embedding
	doc.Metadata = metadata
	return doc
}
