// Package chat runs conversation turns: retrieve context, compose the
// prompt, complete, and persist the exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/securesure/chatd/pkg/llm"
	"github.com/securesure/chatd/pkg/observability"
	"github.com/securesure/chatd/pkg/retrieval"
	"github.com/securesure/chatd/pkg/session"
)

// Turn states, recorded on the turn span as the handler advances.
const (
	stateReceived   = "received"
	stateRetrieving = "retrieving"
	stateComposing  = "composing"
	stateCompleting = "completing"
	stateSucceeded  = "succeeded"
	stateFailed     = "failed"
)

// Emitter delivers a reply to whoever is listening on a session.
// Delivery is best-effort; a vanished listener does not fail the turn.
type Emitter interface {
	Emit(sessionID, text string) error
}

// Config tunes a Handler.
type Config struct {
	// Template is the system prompt; zero value uses DefaultTemplate.
	Template Template

	// TopK is the number of passages to retrieve. Defaults to 1.
	TopK int

	// TurnTimeout bounds one turn's provider calls. Defaults to 60s.
	TurnTimeout time.Duration
}

// Handler executes conversation turns. Turns for the same session run
// one at a time; turns for different sessions run concurrently.
type Handler struct {
	store     session.Store
	retriever retrieval.Retriever
	provider  llm.Provider
	emitter   Emitter

	template    Template
	topK        int
	turnTimeout time.Duration

	locks *sessionLocks
}

// NewHandler wires a turn handler.
func NewHandler(store session.Store, retriever retrieval.Retriever, provider llm.Provider, emitter Emitter, cfg Config) *Handler {
	if cfg.Template.System == "" {
		cfg.Template = DefaultTemplate()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 1
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 60 * time.Second
	}
	return &Handler{
		store:       store,
		retriever:   retriever,
		provider:    provider,
		emitter:     emitter,
		template:    cfg.Template,
		topK:        cfg.TopK,
		turnTimeout: cfg.TurnTimeout,
		locks:       newSessionLocks(),
	}
}

// HandleTurn runs one conversation turn and returns the assistant
// reply. On failure the session memory is left untouched, an error
// reply is emitted, and the provider call is not retried.
func (h *Handler) HandleTurn(ctx context.Context, sessionID, userQuery string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	userQuery = strings.TrimSpace(userQuery)
	if sessionID == "" || userQuery == "" {
		return "", fmt.Errorf("%w: session id and message text are required", ErrMalformedMessage)
	}

	release := h.locks.acquire(sessionID)
	defer release()

	ctx, cancel := context.WithTimeout(ctx, h.turnTimeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "chat.turn",
		trace.WithAttributes(
			attribute.String("chat.session_id", sessionID),
			attribute.Int("chat.top_k", h.topK),
			attribute.String("chat.state", stateReceived),
		),
	)
	defer span.End()

	startTime := time.Now()

	sess, err := h.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return h.fail(span, sessionID, startTime, fmt.Errorf("resolve session: %w", err))
	}

	history, err := sess.History(ctx)
	if err != nil {
		return h.fail(span, sessionID, startTime, fmt.Errorf("load history: %w", err))
	}

	// Retrieval. Unavailability degrades to the sentinel; the turn
	// never aborts here.
	span.SetAttributes(attribute.String("chat.state", stateRetrieving))
	retrieveStart := time.Now()
	contextText := NoContextSentinel
	passages, err := h.retriever.Retrieve(ctx, userQuery, h.topK)
	retrieveDuration := time.Since(retrieveStart)
	switch {
	case errors.Is(err, retrieval.ErrUnavailable):
		span.RecordError(err)
		observability.RecordRetrieval("unavailable", retrieveDuration)
		log.Printf("[chat] session=%s retrieval unavailable, continuing without context: %v", sessionID, err)
	case err != nil:
		span.RecordError(err)
		observability.RecordRetrieval("unavailable", retrieveDuration)
		log.Printf("[chat] session=%s retrieval error, continuing without context: %v", sessionID, err)
	case len(passages) == 0:
		observability.RecordRetrieval("empty", retrieveDuration)
	default:
		observability.RecordRetrieval("hit", retrieveDuration)
		contextText = JoinPassages(passages)
	}
	span.SetAttributes(
		attribute.Int("chat.passages", len(passages)),
		attribute.Int64("chat.retrieve_duration_ms", retrieveDuration.Milliseconds()),
	)

	span.SetAttributes(attribute.String("chat.state", stateComposing))
	messages := Compose(h.template, contextText, history, userQuery)

	span.SetAttributes(attribute.String("chat.state", stateCompleting))
	completeStart := time.Now()
	resp, err := h.provider.CreateCompletion(ctx, llm.CompletionRequest{Messages: messages})
	completeDuration := time.Since(completeStart)
	span.SetAttributes(attribute.Int64("chat.complete_duration_ms", completeDuration.Milliseconds()))

	if err != nil {
		span.RecordError(err)
		observability.RecordCompletion(h.provider.Name(), "error", completeDuration)
		return h.fail(span, sessionID, startTime, fmt.Errorf("%w: %v", ErrCompletionFailure, err))
	}
	observability.RecordCompletion(h.provider.Name(), "ok", completeDuration)
	observability.RecordCompletionTokens(h.provider.Name(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	reply := resp.Content

	if err := sess.AppendExchange(ctx, userQuery, reply); err != nil {
		span.RecordError(err)
		return h.fail(span, sessionID, startTime, fmt.Errorf("append exchange: %w", err))
	}

	span.SetAttributes(attribute.String("chat.state", stateSucceeded))
	observability.RecordTurn(stateSucceeded, time.Since(startTime))
	h.emit(sessionID, reply)
	return reply, nil
}

// fail finishes a turn on the failure path: record, emit the error
// reply, and surface the cause to the caller.
func (h *Handler) fail(span trace.Span, sessionID string, startTime time.Time, err error) (string, error) {
	span.SetAttributes(attribute.String("chat.state", stateFailed))
	observability.RecordTurn(stateFailed, time.Since(startTime))
	log.Printf("[chat] session=%s turn failed: %v", sessionID, err)
	h.emit(sessionID, errorReplyText)
	return "", err
}

func (h *Handler) emit(sessionID, text string) {
	if h.emitter == nil {
		return
	}
	if err := h.emitter.Emit(sessionID, text); err != nil {
		log.Printf("[chat] session=%s reply delivery failed: %v", sessionID, err)
	}
}
