// Package embeddings turns query text into vectors for semantic search.
// Providers register themselves and are selected by name through the Config.
package embeddings

import (
	"context"
	"fmt"
	"sync"
)

// Service is the interface for generating text embeddings.
type Service interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimension size of the embeddings.
	Dimensions() int

	// ModelName returns the name of the embedding model.
	ModelName() string

	// Close closes any resources held by the service.
	Close() error
}

// Config holds configuration for embedding providers.
type Config struct {
	// Provider specifies which embedding service to use.
	// Supported values: "jina", "openai".
	Provider string `yaml:"provider" json:"provider"`

	// Jina-specific configuration.
	Jina *JinaConfig `yaml:"jina,omitempty" json:"jina,omitempty"`

	// OpenAI-specific configuration.
	OpenAI *OpenAIConfig `yaml:"openai,omitempty" json:"openai,omitempty"`
}

// JinaConfig contains Jina AI embedding API settings.
type JinaConfig struct {
	// APIKey for authentication.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Model specifies which Jina model to use (default: "jina-embeddings-v3").
	Model string `yaml:"model" json:"model"`

	// BaseURL is the API endpoint (default: https://api.jina.ai/v1).
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// Task tunes the embedding for a workload (default: "retrieval.query").
	Task string `yaml:"task,omitempty" json:"task,omitempty"`

	// Dimensions is the embedding size (default: 1024).
	Dimensions int `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
}

// OpenAIConfig contains OpenAI-specific embedding settings.
type OpenAIConfig struct {
	// APIKey for authentication.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Model specifies which OpenAI embedding model to use
	// (default: "text-embedding-3-small", 1536 dims).
	Model string `yaml:"model" json:"model"`

	// BaseURL is the API endpoint (default: https://api.openai.com/v1).
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// Dimensions reduces embedding size (text-embedding-3 models only).
	Dimensions int `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider must be specified")
	}

	switch c.Provider {
	case "jina":
		if c.Jina == nil {
			return fmt.Errorf("jina configuration is required when provider is 'jina'")
		}
		return c.Jina.Validate()
	case "openai":
		if c.OpenAI == nil {
			return fmt.Errorf("openai configuration is required when provider is 'openai'")
		}
		return c.OpenAI.Validate()
	default:
		return fmt.Errorf("unsupported provider: %s", c.Provider)
	}
}

// Validate checks if Jina configuration is valid.
func (jc *JinaConfig) Validate() error {
	if jc.APIKey == "" {
		return fmt.Errorf("jina api_key is required")
	}
	return nil
}

// Validate checks if OpenAI configuration is valid.
func (oc *OpenAIConfig) Validate() error {
	if oc.APIKey == "" {
		return fmt.Errorf("openai api_key is required")
	}
	return nil
}

// ProviderFactory is a function that creates a Service from a Config.
type ProviderFactory func(config Config) (Service, error)

// registry holds all registered embedding providers.
var (
	registry = make(map[string]ProviderFactory)
	mu       sync.RWMutex
)

// Register adds a new embedding provider to the registry.
func Register(name string, factory ProviderFactory) {
	mu.Lock()
	defer mu.Unlock()

	if factory == nil {
		panic("embeddings: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("embeddings: Register called twice for provider " + name)
	}
	registry[name] = factory
}

// New creates a new Service based on the provider named in the config.
func New(config Config) (Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mu.RLock()
	factory, ok := registry[config.Provider]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown embedding provider: %s (available: %v)", config.Provider, ListProviders())
	}

	return factory(config)
}

// ListProviders returns the names of all registered providers.
func ListProviders() []string {
	mu.RLock()
	defer mu.RUnlock()

	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, name)
	}
	return providers
}
