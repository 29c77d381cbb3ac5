// Package config loads the service configuration from YAML with
// environment fallbacks for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/securesure/chatd/pkg/embeddings"
	"github.com/securesure/chatd/pkg/llm"
	"github.com/securesure/chatd/pkg/session"
	"github.com/securesure/chatd/pkg/vectorstore"
)

// maxConfigSize bounds the config file read.
const maxConfigSize = 1 << 20

// Config is the top-level service configuration.
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Session     SessionConfig      `yaml:"session"`
	Embeddings  embeddings.Config  `yaml:"embeddings"`
	VectorStore vectorstore.Config `yaml:"vector_store"`
	LLM         LLMConfig          `yaml:"llm"`
	Chat        ChatConfig         `yaml:"chat"`
	IPFS        IPFSConfig         `yaml:"ipfs"`
}

// ServerConfig configures the HTTP surfaces.
type ServerConfig struct {
	// Port serves the chat gateway. Default 8080.
	Port int `yaml:"port"`

	// MetricsPort serves health and metrics. Default 9090.
	MetricsPort int `yaml:"metrics_port"`
}

// SessionConfig selects and tunes the session store backend.
type SessionConfig struct {
	// Store is "memory" or "redis". Default "memory".
	Store string `yaml:"store"`

	// MaxSessions bounds the in-memory store.
	MaxSessions int `yaml:"max_sessions"`

	// IdleTTL expires idle sessions, e.g. "30m". Empty disables.
	IdleTTL string `yaml:"idle_ttl"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig carries Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`

	// SessionTTL expires whole sessions, e.g. "24h".
	SessionTTL string `yaml:"session_ttl"`

	PoolSize int `yaml:"pool_size"`
}

// LLMConfig selects the completion provider.
type LLMConfig struct {
	// Provider is "groq". Default "groq".
	Provider string `yaml:"provider"`

	Groq llm.GroqConfig `yaml:"groq"`
}

// ChatConfig tunes turn handling.
type ChatConfig struct {
	// SystemTemplate overrides the built-in assistant prompt. Should
	// contain the {context} placeholder.
	SystemTemplate string `yaml:"system_template"`

	// TopK passages retrieved per turn. Default 1.
	TopK int `yaml:"top_k"`

	// TurnTimeout bounds one turn's provider calls, e.g. "60s".
	TurnTimeout string `yaml:"turn_timeout"`
}

// IPFSConfig configures the content fetch utility.
type IPFSConfig struct {
	Gateway string `yaml:"gateway"`
}

// Load reads, parses, and validates a config file, then applies
// defaults and environment fallbacks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > maxConfigSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigSize)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a runnable development config: in-memory stores,
// credentials from the environment.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9090
	}
	if c.Session.Store == "" {
		c.Session.Store = "memory"
	}
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "jina"
	}
	if c.VectorStore.Provider == "" {
		c.VectorStore.Provider = "memory"
	}
	if c.VectorStore.EmbeddingDimensions == 0 {
		c.VectorStore.EmbeddingDimensions = c.embeddingDimensions()
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "groq"
	}
	if c.Chat.TopK == 0 {
		c.Chat.TopK = 1
	}
	if c.Chat.TurnTimeout == "" {
		c.Chat.TurnTimeout = "60s"
	}
}

// embeddingDimensions mirrors the embedding provider's vector size so
// vector_store.embedding_dimensions may be omitted.
func (c *Config) embeddingDimensions() int {
	switch c.Embeddings.Provider {
	case "openai":
		if c.Embeddings.OpenAI != nil && c.Embeddings.OpenAI.Dimensions > 0 {
			return c.Embeddings.OpenAI.Dimensions
		}
		return 1536
	default:
		if c.Embeddings.Jina != nil && c.Embeddings.Jina.Dimensions > 0 {
			return c.Embeddings.Jina.Dimensions
		}
		return 1024
	}
}

// applyEnv fills credentials from the environment when the file left
// them empty.
func (c *Config) applyEnv() {
	if c.LLM.Groq.APIKey == "" {
		c.LLM.Groq.APIKey = os.Getenv("GROQ_API_KEY")
	}
	if jinaKey := os.Getenv("JINA_API_KEY"); jinaKey != "" {
		if c.Embeddings.Jina == nil {
			c.Embeddings.Jina = &embeddings.JinaConfig{}
		}
		if c.Embeddings.Jina.APIKey == "" {
			c.Embeddings.Jina.APIKey = jinaKey
		}
	}
	if c.Embeddings.OpenAI != nil && c.Embeddings.OpenAI.APIKey == "" {
		c.Embeddings.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.VectorStore.Pinecone != nil && c.VectorStore.Pinecone.APIKey == "" {
		c.VectorStore.Pinecone.APIKey = os.Getenv("PINECONE_API_KEY")
	}
	if c.Session.Redis.Addr == "" {
		c.Session.Redis.Addr = os.Getenv("REDIS_ADDR")
	}
}

// Validate rejects configs that cannot produce a working service.
func (c *Config) Validate() error {
	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Session.Redis.Addr == "" {
			return fmt.Errorf("session: redis store requires an address")
		}
	default:
		return fmt.Errorf("session: unknown store %q", c.Session.Store)
	}

	if c.LLM.Provider != "groq" {
		return fmt.Errorf("llm: unknown provider %q", c.LLM.Provider)
	}

	durations := map[string]string{
		"session.idle_ttl":          c.Session.IdleTTL,
		"session.redis.session_ttl": c.Session.Redis.SessionTTL,
		"chat.turn_timeout":         c.Chat.TurnTimeout,
	}
	for name, value := range durations {
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.Chat.TopK < 1 {
		return fmt.Errorf("chat: top_k must be at least 1")
	}
	return nil
}

// SessionStoreConfig translates the session section into the store
// package's config types. The bool reports whether Redis is selected.
func (c *Config) SessionStoreConfig() (session.MemoryConfig, session.RedisConfig, bool) {
	idle, _ := parseDuration(c.Session.IdleTTL)
	sessionTTL, _ := parseDuration(c.Session.Redis.SessionTTL)
	mem := session.MemoryConfig{
		MaxSessions: c.Session.MaxSessions,
		IdleTTL:     idle,
	}
	redis := session.RedisConfig{
		Addr:       c.Session.Redis.Addr,
		Password:   c.Session.Redis.Password,
		DB:         c.Session.Redis.DB,
		Prefix:     c.Session.Redis.Prefix,
		SessionTTL: sessionTTL,
		PoolSize:   c.Session.Redis.PoolSize,
	}
	return mem, redis, c.Session.Store == "redis"
}

// TurnTimeout returns the parsed turn timeout.
func (c *Config) TurnTimeout() time.Duration {
	d, _ := parseDuration(c.Chat.TurnTimeout)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
