package chat

import "sync"

// sessionLocks serializes turns per session. Each session gets a
// reference-counted mutex that lives only while turns hold or wait on
// it, so idle sessions cost nothing.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire blocks until the session's turn lock is held and returns the
// release function.
func (sl *sessionLocks) acquire(id string) func() {
	sl.mu.Lock()
	l, ok := sl.locks[id]
	if !ok {
		l = &sessionLock{}
		sl.locks[id] = l
	}
	l.refs++
	sl.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		sl.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(sl.locks, id)
		}
		sl.mu.Unlock()
	}
}
