package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr"`
	// Password is the Redis password (optional).
	Password string `yaml:"password"`
	// DB is the Redis database number.
	DB int `yaml:"db"`
	// Prefix is the key prefix for all session keys (default: "chatd:session:").
	Prefix string `yaml:"prefix"`
	// SessionTTL is the session expiry duration (0 = never expire).
	SessionTTL time.Duration `yaml:"session_ttl"`
	// PoolSize is the connection pool size (default: 10).
	PoolSize int `yaml:"pool_size"`
}

// RedisStore keeps session memory in Redis.
// It is suitable for multi-node deployments where conversation history must
// survive a single process and be shared across workers.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// NewRedisStore creates a Redis-backed session store and verifies the
// connection with a ping.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "chatd:session:"
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    cfg.SessionTTL,
	}, nil
}

// NewRedisStoreFromClient creates a Redis store from an existing client.
// This is useful for testing with miniredis.
func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "chatd:session:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Key helpers
func (s *RedisStore) metaKey(id string) string {
	return s.prefix + "meta:" + id
}

func (s *RedisStore) turnsKey(id string) string {
	return s.prefix + "turns:" + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

func (s *RedisStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// GetOrCreate returns the session for id, registering empty metadata if none
// exists. Registration uses HSETNX so concurrent callers agree on one session.
func (s *RedisStore) GetOrCreate(ctx context.Context, id string) (Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	created, err := s.client.HSetNX(ctx, s.metaKey(id), "created_at", now).Result()
	if err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}
	if created {
		pipe := s.client.TxPipeline()
		pipe.SAdd(ctx, s.indexKey(), id)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.metaKey(id), s.ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("index session: %w", err)
		}
	}

	return &redisSession{id: id, store: s}, nil
}

// Get returns the session for id or ErrSessionNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	exists, err := s.client.Exists(ctx, s.metaKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return nil, ErrSessionNotFound
	}
	return &redisSession{id: id, store: s}, nil
}

// Remove deletes a session and its turns.
func (s *RedisStore) Remove(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.metaKey(id), s.turnsKey(id))
	pipe.SRem(ctx, s.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Len returns the number of registered sessions.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	n, err := s.client.SCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return int(n), nil
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// redisSession is a stateless handle; all reads and writes go to Redis.
type redisSession struct {
	id    string
	store *RedisStore
}

func (r *redisSession) ID() string {
	return r.id
}

func (r *redisSession) History(ctx context.Context) ([]Turn, error) {
	if err := r.store.checkOpen(); err != nil {
		return nil, err
	}

	raw, err := r.store.client.LRange(ctx, r.store.turnsKey(r.id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}

	turns := make([]Turn, 0, len(raw))
	for i, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("decode turn %d: %w", i, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (r *redisSession) AppendExchange(ctx context.Context, userText, assistantText string) error {
	if err := r.store.checkOpen(); err != nil {
		return err
	}

	now := time.Now().UTC()
	userTurn, err := json.Marshal(Turn{Role: RoleUser, Content: userText, Timestamp: now})
	if err != nil {
		return fmt.Errorf("encode user turn: %w", err)
	}
	assistantTurn, err := json.Marshal(Turn{Role: RoleAssistant, Content: assistantText, Timestamp: now})
	if err != nil {
		return fmt.Errorf("encode assistant turn: %w", err)
	}

	// MULTI/EXEC keeps the pair append all-or-nothing.
	pipe := r.store.client.TxPipeline()
	pipe.RPush(ctx, r.store.turnsKey(r.id), userTurn, assistantTurn)
	pipe.HSet(ctx, r.store.metaKey(r.id), "updated_at", now.Format(time.RFC3339Nano))
	if r.store.ttl > 0 {
		pipe.Expire(ctx, r.store.turnsKey(r.id), r.store.ttl)
		pipe.Expire(ctx, r.store.metaKey(r.id), r.store.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append exchange: %w", err)
	}
	return nil
}

func (r *redisSession) Meta(ctx context.Context) (Metadata, error) {
	if err := r.store.checkOpen(); err != nil {
		return Metadata{}, err
	}

	fields, err := r.store.client.HGetAll(ctx, r.store.metaKey(r.id)).Result()
	if err != nil {
		return Metadata{}, fmt.Errorf("load session meta: %w", err)
	}
	n, err := r.store.client.LLen(ctx, r.store.turnsKey(r.id)).Result()
	if err != nil {
		return Metadata{}, fmt.Errorf("count turns: %w", err)
	}

	meta := Metadata{ID: r.id, TurnCount: int(n)}
	if v := fields["created_at"]; v != "" {
		meta.CreatedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	if v := fields["updated_at"]; v != "" {
		meta.UpdatedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = meta.CreatedAt
	}
	return meta, nil
}

func (r *redisSession) Len(ctx context.Context) (int, error) {
	if err := r.store.checkOpen(); err != nil {
		return 0, err
	}

	n, err := r.store.client.LLen(ctx, r.store.turnsKey(r.id)).Result()
	if err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return int(n), nil
}
