package gateway

import (
	"sync"

	"github.com/securesure/chatd/pkg/observability"
)

// Broker routes replies to the event stream listening on a session.
// One listener per session; a new subscription replaces the old one.
// Emitting to a session with no listener drops the reply.
type Broker struct {
	mu   sync.Mutex
	subs map[string]chan string
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]chan string)}
}

// Subscribe opens a reply channel for the session and returns it with
// a cancel function. Cancel is idempotent.
func (b *Broker) Subscribe(sessionID string) (<-chan string, func()) {
	ch := make(chan string, 16)

	b.mu.Lock()
	if old, ok := b.subs[sessionID]; ok {
		close(old)
	}
	b.subs[sessionID] = ch
	b.mu.Unlock()
	observability.EventStreamOpened()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if b.subs[sessionID] == ch {
				delete(b.subs, sessionID)
				close(ch)
			}
			b.mu.Unlock()
			observability.EventStreamClosed()
		})
	}
	return ch, cancel
}

// Emit implements chat.Emitter. Delivery is best-effort: no listener
// or a full buffer drops the reply without failing the turn.
func (b *Broker) Emit(sessionID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[sessionID]
	if !ok {
		return nil
	}
	select {
	case ch <- text:
	default:
	}
	return nil
}
