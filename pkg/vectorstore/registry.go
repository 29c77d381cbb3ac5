package vectorstore

import (
	"fmt"
	"sync"
)

// ProviderFactory is a function that creates a VectorStore from a Config.
type ProviderFactory func(config Config) (VectorStore, error)

// registry holds all registered vector store providers.
var (
	registry = make(map[string]ProviderFactory)
	mu       sync.RWMutex
)

// Register adds a new vector store provider to the registry.
// Providers call this from their init function.
func Register(name string, factory ProviderFactory) {
	mu.Lock()
	defer mu.Unlock()

	if factory == nil {
		panic("vectorstore: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("vectorstore: Register called twice for provider " + name)
	}
	registry[name] = factory
}

// New creates a new VectorStore based on the provider named in the config.
func New(config Config) (VectorStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mu.RLock()
	factory, ok := registry[config.Provider]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown vector store provider: %s (available: %v)", config.Provider, ListProviders())
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
