package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStoreFromClient(client, "test:session:", 0)
}

func TestRedisStoreGetOrCreate(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if sess.ID() != "sess-1" {
		t.Errorf("ID() = %v, want sess-1", sess.ID())
	}

	n, err := sess.Len(ctx)
	if err != nil {
		t.Fatalf("Len() error = %v", err)
	}
	if n != 0 {
		t.Errorf("new session Len() = %d, want 0", n)
	}

	count, err := store.Len(ctx)
	if err != nil {
		t.Fatalf("store Len() error = %v", err)
	}
	if count != 1 {
		t.Errorf("store Len() = %d, want 1", count)
	}

	// A second call registers nothing new.
	if _, err := store.GetOrCreate(ctx, "sess-1"); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	count, _ = store.Len(ctx)
	if count != 1 {
		t.Errorf("store Len() after repeat GetOrCreate = %d, want 1", count)
	}
}

func TestRedisStoreGet(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); err != ErrSessionNotFound {
		t.Errorf("Get() error = %v, want %v", err, ErrSessionNotFound)
	}

	if _, err := store.GetOrCreate(ctx, "sess-1"); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if _, err := store.Get(ctx, "sess-1"); err != nil {
		t.Errorf("Get() error = %v", err)
	}
}

func TestRedisSessionAppendAndHistory(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	if err := sess.AppendExchange(ctx, "is dental covered?", "Dental is covered at 80%."); err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}
	if err := sess.AppendExchange(ctx, "what about vision?", "Vision requires a rider."); err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}

	turns, err := sess.History(ctx)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("History() returned %d turns, want 4", len(turns))
	}

	wantRoles := []Role{RoleUser, RoleAssistant, RoleUser, RoleAssistant}
	for i, want := range wantRoles {
		if turns[i].Role != want {
			t.Errorf("turn %d role = %v, want %v", i, turns[i].Role, want)
		}
	}
	if turns[0].Content != "is dental covered?" {
		t.Errorf("turn 0 content = %q", turns[0].Content)
	}
	if turns[3].Content != "Vision requires a rider." {
		t.Errorf("turn 3 content = %q", turns[3].Content)
	}

	// A second handle for the same id sees the same history.
	other, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	otherTurns, err := other.History(ctx)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(otherTurns) != 4 {
		t.Errorf("second handle History() = %d turns, want 4", len(otherTurns))
	}
}

func TestRedisSessionMeta(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	meta, err := sess.Meta(ctx)
	if err != nil {
		t.Fatalf("Meta() error = %v", err)
	}
	if meta.ID != "sess-1" {
		t.Errorf("Meta().ID = %q, want sess-1", meta.ID)
	}
	if meta.TurnCount != 0 {
		t.Errorf("new session Meta().TurnCount = %d, want 0", meta.TurnCount)
	}
	if meta.CreatedAt.IsZero() {
		t.Error("Meta().CreatedAt is zero")
	}
	if !meta.UpdatedAt.Equal(meta.CreatedAt) {
		t.Errorf("fresh session Meta().UpdatedAt = %v, want CreatedAt %v", meta.UpdatedAt, meta.CreatedAt)
	}

	if err := sess.AppendExchange(ctx, "hello", "hi there"); err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}

	meta, err = sess.Meta(ctx)
	if err != nil {
		t.Fatalf("Meta() error = %v", err)
	}
	if meta.TurnCount != 2 {
		t.Errorf("Meta().TurnCount = %d, want 2", meta.TurnCount)
	}
	if meta.UpdatedAt.Before(meta.CreatedAt) {
		t.Errorf("Meta().UpdatedAt = %v before CreatedAt = %v", meta.UpdatedAt, meta.CreatedAt)
	}
}

func TestRedisStoreRemove(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := sess.AppendExchange(ctx, "q", "a"); err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}

	if err := store.Remove(ctx, "sess-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := store.Get(ctx, "sess-1"); err != ErrSessionNotFound {
		t.Errorf("Get() after Remove() error = %v, want %v", err, ErrSessionNotFound)
	}
	count, _ := store.Len(ctx)
	if count != 0 {
		t.Errorf("store Len() after Remove = %d, want 0", count)
	}
}

func TestRedisStoreTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStoreFromClient(client, "test:session:", time.Minute)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := sess.AppendExchange(ctx, "q", "a"); err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "sess-1"); err != ErrSessionNotFound {
		t.Errorf("Get() after TTL expiry error = %v, want %v", err, ErrSessionNotFound)
	}
}

func TestRedisStoreClosed(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := store.GetOrCreate(ctx, "sess-1"); err != ErrStoreClosed {
		t.Errorf("GetOrCreate() after Close() error = %v, want %v", err, ErrStoreClosed)
	}
}
