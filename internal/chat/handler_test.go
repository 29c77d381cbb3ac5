package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/securesure/chatd/pkg/llm"
	"github.com/securesure/chatd/pkg/retrieval"
	"github.com/securesure/chatd/pkg/session"
)

type fakeRetriever struct {
	mu       sync.Mutex
	passages []retrieval.Passage
	err      error
	queries  []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Passage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

type recordEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *recordEmitter) Emit(sessionID, text string) error {
	e.mu.Lock()
	e.events = append(e.events, sessionID+": "+text)
	e.mu.Unlock()
	return nil
}

func (e *recordEmitter) last(t *testing.T) string {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.events) == 0 {
		t.Fatal("no events emitted")
	}
	return e.events[len(e.events)-1]
}

func newTestHandler(retriever retrieval.Retriever, provider llm.Provider) (*Handler, session.Store, *recordEmitter) {
	store := session.NewMemoryStore(session.MemoryConfig{})
	emitter := &recordEmitter{}
	h := NewHandler(store, retriever, provider, emitter, Config{TopK: 1})
	return h, store, emitter
}

func TestHandleTurn_SuccessAppendsExchange(t *testing.T) {
	retriever := &fakeRetriever{passages: []retrieval.Passage{{Text: "policy covers dental"}}}
	provider := llm.NewMockProvider("mock")
	provider.Responses = []*llm.CompletionResponse{{Content: "Dental is covered.", FinishReason: "stop"}}
	h, store, emitter := newTestHandler(retriever, provider)

	reply, err := h.HandleTurn(context.Background(), "sess-1", "is dental covered?")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if reply != "Dental is covered." {
		t.Errorf("reply = %q", reply)
	}

	sess, err := store.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("session should exist after first turn: %v", err)
	}
	history, err := sess.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].Role != session.RoleUser || history[0].Content != "is dental covered?" {
		t.Errorf("history[0] = %+v", history[0])
	}
	if history[1].Role != session.RoleAssistant || history[1].Content != "Dental is covered." {
		t.Errorf("history[1] = %+v", history[1])
	}

	if got := emitter.last(t); got != "sess-1: Dental is covered." {
		t.Errorf("emitted = %q", got)
	}

	// Retrieved context lands in the system message.
	if len(provider.Calls) != 1 {
		t.Fatalf("len(provider.Calls) = %d, want 1", len(provider.Calls))
	}
	system := provider.Calls[0].Messages[0]
	if system.Role != llm.RoleSystem || !strings.Contains(system.Content, "policy covers dental") {
		t.Errorf("system message = %+v", system)
	}
}

func TestHandleTurn_HistoryFlowsIntoLaterPrompts(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := llm.NewMockProvider("mock")
	provider.Responses = []*llm.CompletionResponse{
		{Content: "a1", FinishReason: "stop"},
		{Content: "a2", FinishReason: "stop"},
	}
	h, _, _ := newTestHandler(retriever, provider)

	if _, err := h.HandleTurn(context.Background(), "sess-1", "u1"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if _, err := h.HandleTurn(context.Background(), "sess-1", "u2"); err != nil {
		t.Fatalf("turn 2: %v", err)
	}

	second := provider.Calls[1].Messages
	// system, u1, a1, u2
	if len(second) != 4 {
		t.Fatalf("len(messages) = %d, want 4", len(second))
	}
	wantRoles := []string{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleUser}
	wantText := []string{"", "u1", "a1", "u2"}
	for i, m := range second {
		if m.Role != wantRoles[i] {
			t.Errorf("messages[%d].Role = %q, want %q", i, m.Role, wantRoles[i])
		}
		if i > 0 && m.Content != wantText[i] {
			t.Errorf("messages[%d].Content = %q, want %q", i, m.Content, wantText[i])
		}
	}
}

func TestHandleTurn_RetrievalUnavailableContinuesWithSentinel(t *testing.T) {
	retriever := &fakeRetriever{err: fmt.Errorf("%w: index down", retrieval.ErrUnavailable)}
	provider := llm.NewMockProvider("mock")
	provider.Responses = []*llm.CompletionResponse{{Content: "best effort answer", FinishReason: "stop"}}
	h, store, _ := newTestHandler(retriever, provider)

	reply, err := h.HandleTurn(context.Background(), "sess-1", "question")
	if err != nil {
		t.Fatalf("HandleTurn should absorb retrieval unavailability: %v", err)
	}
	if reply != "best effort answer" {
		t.Errorf("reply = %q", reply)
	}

	system := provider.Calls[0].Messages[0].Content
	if !strings.Contains(system, NoContextSentinel) {
		t.Errorf("system message missing sentinel: %q", system)
	}

	sess, _ := store.Get(context.Background(), "sess-1")
	if n, _ := sess.Len(context.Background()); n != 2 {
		t.Errorf("history length = %d, want 2", n)
	}
}

func TestHandleTurn_EmptyRetrievalUsesSentinel(t *testing.T) {
	retriever := &fakeRetriever{passages: nil}
	provider := llm.NewMockProvider("mock")
	h, _, _ := newTestHandler(retriever, provider)

	if _, err := h.HandleTurn(context.Background(), "sess-1", "question"); err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	system := provider.Calls[0].Messages[0].Content
	if !strings.Contains(system, NoContextSentinel) {
		t.Errorf("system message missing sentinel: %q", system)
	}
}

func TestHandleTurn_CompletionFailureLeavesMemoryUntouched(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := llm.NewMockProvider("mock")
	h, store, emitter := newTestHandler(retriever, provider)

	// Seed one good exchange, then fail the second completion.
	provider.Errors = []error{nil, llm.NewProviderError("mock", llm.ErrorCodeServerError, "boom", nil)}
	provider.Responses = []*llm.CompletionResponse{{Content: "a1", FinishReason: "stop"}}
	if _, err := h.HandleTurn(context.Background(), "sess-1", "u1"); err != nil {
		t.Fatalf("seed turn: %v", err)
	}

	_, err := h.HandleTurn(context.Background(), "sess-1", "u2")
	if !errors.Is(err, ErrCompletionFailure) {
		t.Fatalf("error = %v, want ErrCompletionFailure", err)
	}

	// Exactly one provider call for the failed turn, no retry.
	if len(provider.Calls) != 2 {
		t.Errorf("len(provider.Calls) = %d, want 2", len(provider.Calls))
	}

	sess, _ := store.Get(context.Background(), "sess-1")
	history, _ := sess.History(context.Background())
	if len(history) != 2 {
		t.Errorf("len(history) = %d, want 2 (failed turn must not append)", len(history))
	}

	if got := emitter.last(t); got != "sess-1: "+errorReplyText {
		t.Errorf("emitted = %q, want error reply", got)
	}
}

func TestHandleTurn_MalformedInput(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := llm.NewMockProvider("mock")
	h, store, _ := newTestHandler(retriever, provider)

	tests := []struct {
		name      string
		sessionID string
		query     string
	}{
		{"empty session id", "", "hello"},
		{"empty query", "sess-1", ""},
		{"whitespace query", "sess-1", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.HandleTurn(context.Background(), tt.sessionID, tt.query)
			if !errors.Is(err, ErrMalformedMessage) {
				t.Fatalf("error = %v, want ErrMalformedMessage", err)
			}
		})
	}

	if len(provider.Calls) != 0 {
		t.Errorf("provider called %d times, want 0", len(provider.Calls))
	}
	if len(retriever.queries) != 0 {
		t.Errorf("retriever called %d times, want 0", len(retriever.queries))
	}
	if n, _ := store.Len(context.Background()); n != 0 {
		t.Errorf("store has %d sessions, want 0", n)
	}
}

// slowProvider fails the test if two completions for the same session
// overlap.
type slowProvider struct {
	inFlight map[string]*atomic.Int32
	t        *testing.T
}

func (p *slowProvider) CreateCompletion(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	key := req.Messages[len(req.Messages)-1].Content[:1] // session marker
	counter := p.inFlight[key]
	if counter.Add(1) > 1 {
		p.t.Error("overlapping turns for the same session")
	}
	time.Sleep(5 * time.Millisecond)
	counter.Add(-1)
	return &llm.CompletionResponse{Content: "ok", FinishReason: "stop"}, nil
}

func (p *slowProvider) Name() string { return "slow" }

func TestHandleTurn_SerializesPerSession(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := &slowProvider{
		inFlight: map[string]*atomic.Int32{"a": {}, "b": {}},
		t:        t,
	}
	store := session.NewMemoryStore(session.MemoryConfig{})
	h := NewHandler(store, retriever, provider, nil, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for _, sess := range []string{"a", "b"} {
			wg.Add(1)
			go func(sessID string, n int) {
				defer wg.Done()
				query := fmt.Sprintf("%s question %d", sessID, n)
				if _, err := h.HandleTurn(context.Background(), "sess-"+sessID, query); err != nil {
					t.Errorf("HandleTurn(%s): %v", sessID, err)
				}
			}(sess, i)
		}
	}
	wg.Wait()

	// Every turn appended its pair.
	for _, id := range []string{"sess-a", "sess-b"} {
		sess, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if n, _ := sess.Len(context.Background()); n != 8 {
			t.Errorf("%s history length = %d, want 8", id, n)
		}
	}
}

// gateProvider reports on entered when a completion starts and holds it
// until release is signalled.
type gateProvider struct {
	entered chan string
	release chan struct{}
}

func (p *gateProvider) CreateCompletion(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	query := req.Messages[len(req.Messages)-1].Content
	p.entered <- query
	<-p.release
	return &llm.CompletionResponse{Content: "re: " + query, FinishReason: "stop"}, nil
}

func (p *gateProvider) Name() string { return "gate" }

func TestHandleTurn_SameSessionTurnsAppendInIssueOrder(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := &gateProvider{entered: make(chan string), release: make(chan struct{})}
	store := session.NewMemoryStore(session.MemoryConfig{})
	h := NewHandler(store, retriever, provider, nil, Config{})

	var wg sync.WaitGroup
	turn := func(query string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.HandleTurn(context.Background(), "sess-1", query); err != nil {
				t.Errorf("HandleTurn(%s): %v", query, err)
			}
		}()
	}

	// Issue t2 only once t1 is mid-completion, then let both finish.
	turn("t1")
	if got := <-provider.entered; got != "t1" {
		t.Fatalf("first completion = %q, want t1", got)
	}
	turn("t2")
	provider.release <- struct{}{}
	if got := <-provider.entered; got != "t2" {
		t.Fatalf("second completion = %q, want t2", got)
	}
	provider.release <- struct{}{}
	wg.Wait()

	sess, err := store.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	history, err := sess.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	want := []session.Turn{
		{Role: session.RoleUser, Content: "t1"},
		{Role: session.RoleAssistant, Content: "re: t1"},
		{Role: session.RoleUser, Content: "t2"},
		{Role: session.RoleAssistant, Content: "re: t2"},
	}
	if len(history) != len(want) {
		t.Fatalf("len(history) = %d, want %d", len(history), len(want))
	}
	for i, got := range history {
		if got.Role != want[i].Role || got.Content != want[i].Content {
			t.Errorf("history[%d] = %+v, want %+v", i, got, want[i])
		}
	}
}

func TestHandleTurn_NilEmitterIsFine(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := llm.NewMockProvider("mock")
	store := session.NewMemoryStore(session.MemoryConfig{})
	h := NewHandler(store, retriever, provider, nil, Config{})

	if _, err := h.HandleTurn(context.Background(), "sess-1", "hello"); err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
}
