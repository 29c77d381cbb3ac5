package session

import (
	"context"
	"sync"
	"time"
)

// MemoryConfig configures the in-memory store.
type MemoryConfig struct {
	// MaxSessions caps the number of live sessions (default: 10000).
	// When the cap is reached, the session idle the longest is evicted.
	MaxSessions int `yaml:"max_sessions"`
	// IdleTTL evicts sessions that have been idle longer than this.
	// Zero disables idle expiry.
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

const defaultMaxSessions = 10000

// MemoryStore keeps session memory in process.
// It is bounded: sessions are evicted least-recently-used once MaxSessions
// is reached, and optionally expired after IdleTTL of inactivity.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memSession
	maxSess  int
	idleTTL  time.Duration
	closed   bool

	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryStore creates a bounded in-memory session store.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	maxSess := cfg.MaxSessions
	if maxSess <= 0 {
		maxSess = defaultMaxSessions
	}
	return &MemoryStore{
		sessions: make(map[string]*memSession),
		maxSess:  maxSess,
		idleTTL:  cfg.IdleTTL,
		now:      time.Now,
	}
}

// GetOrCreate returns the session for id, creating an empty one if needed.
// Creation performs no I/O and cannot fail while the store is open.
func (s *MemoryStore) GetOrCreate(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	now := s.now()
	s.expireLocked(now)

	if sess, ok := s.sessions[id]; ok {
		sess.touch(now)
		return sess, nil
	}

	if len(s.sessions) >= s.maxSess {
		s.evictOldestLocked()
	}

	sess := newMemSession(id, now)
	s.sessions[id] = sess
	return sess, nil
}

// Get returns the session for id or ErrSessionNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	now := s.now()
	s.expireLocked(now)

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(now)
	return sess, nil
}

// Remove deletes a session. Unknown ids are a no-op.
func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}
	return len(s.sessions), nil
}

// Close drops all sessions and marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*memSession)
	s.closed = true
	return nil
}

// expireLocked drops sessions idle longer than IdleTTL. Caller holds s.mu.
func (s *MemoryStore) expireLocked(now time.Time) {
	if s.idleTTL <= 0 {
		return
	}
	for id, sess := range s.sessions {
		if now.Sub(sess.lastActive()) > s.idleTTL {
			delete(s.sessions, id)
		}
	}
}

// evictOldestLocked removes the session idle the longest. Caller holds s.mu.
func (s *MemoryStore) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, sess := range s.sessions {
		active := sess.lastActive()
		if oldestID == "" || active.Before(oldest) {
			oldestID = id
			oldest = active
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
	}
}

// memSession is the in-process Session implementation.
type memSession struct {
	id string

	mu      sync.RWMutex
	turns   []Turn
	created time.Time
	updated time.Time
	active  time.Time
}

func newMemSession(id string, now time.Time) *memSession {
	return &memSession{id: id, created: now, updated: now, active: now}
}

func (m *memSession) ID() string {
	return m.id
}

func (m *memSession) History(_ context.Context) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out, nil
}

func (m *memSession) AppendExchange(_ context.Context, userText, assistantText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	m.turns = append(m.turns,
		Turn{Role: RoleUser, Content: userText, Timestamp: now},
		Turn{Role: RoleAssistant, Content: assistantText, Timestamp: now},
	)
	m.updated = now
	m.active = now
	return nil
}

func (m *memSession) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns), nil
}

func (m *memSession) Meta(_ context.Context) (Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metadata{
		ID:        m.id,
		CreatedAt: m.created,
		UpdatedAt: m.updated,
		TurnCount: len(m.turns),
	}, nil
}

func (m *memSession) touch(now time.Time) {
	m.mu.Lock()
	m.active = now
	m.mu.Unlock()
}

func (m *memSession) lastActive() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}
