package vectorstore

import "fmt"

// Config holds configuration for vector store providers.
type Config struct {
	// Provider specifies which vector store to use.
	// Supported values: "pinecone", "memory".
	Provider string `yaml:"provider" json:"provider"`

	// EmbeddingDimensions is the size of the embedding vectors.
	EmbeddingDimensions int `yaml:"embedding_dimensions" json:"embedding_dimensions"`

	// DefaultTopK is the default number of results to return.
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`

	// Namespace is the default partition for queries and upserts.
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`

	// Pinecone-specific configuration.
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty" json:"pinecone,omitempty"`

	// Memory-specific configuration (for tests and development).
	Memory *MemoryConfig `yaml:"memory,omitempty" json:"memory,omitempty"`
}

// PineconeConfig contains Pinecone-specific settings.
type PineconeConfig struct {
	// APIKey authenticates against the index.
	APIKey string `yaml:"api_key" json:"api_key"`

	// IndexHost is the index endpoint, e.g.
	// "https://my-index-abc123.svc.us-east-1-aws.pinecone.io".
	IndexHost string `yaml:"index_host" json:"index_host"`
}

// MemoryConfig contains in-memory store settings.
type MemoryConfig struct {
	// MaxDocuments is the maximum number of documents to store (default: 10000).
	MaxDocuments int `yaml:"max_documents" json:"max_documents"`
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider must be specified")
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be greater than 0, got %d", c.EmbeddingDimensions)
	}

	switch c.Provider {
	case "pinecone":
		if c.Pinecone == nil {
			return fmt.Errorf("pinecone configuration is required when provider is 'pinecone'")
		}
		return c.Pinecone.Validate()
	case "memory":
		return nil
	default:
		return fmt.Errorf("unsupported provider: %s", c.Provider)
	}
}

// Validate checks if Pinecone configuration is valid.
func (pc *PineconeConfig) Validate() error {
	if pc.APIKey == "" {
		return fmt.Errorf("pinecone api_key is required")
	}
	if pc.IndexHost == "" {
		return fmt.Errorf("pinecone index_host is required")
	}
	return nil
}
