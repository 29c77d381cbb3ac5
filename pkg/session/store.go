package session

import (
	"context"
	"errors"
)

// Common errors for session stores.
var (
	// ErrSessionNotFound is returned when a session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("session store is closed")
)

// Session is one conversation's memory.
// Implementations must be safe for concurrent use, but callers that need
// turn ordering guarantees must serialize whole turns themselves; the
// turn handler does this with a per-session lock.
type Session interface {
	// ID returns the unique session identifier.
	ID() string

	// History returns a snapshot copy of all turns in chronological order.
	// The returned slice is owned by the caller and safe to hold across
	// blocking calls.
	History(ctx context.Context) ([]Turn, error)

	// AppendExchange appends a (user, assistant) turn pair atomically.
	// Either both turns are recorded or neither is.
	AppendExchange(ctx context.Context, userText, assistantText string) error

	// Len returns the number of recorded turns.
	Len(ctx context.Context) (int, error)

	// Meta returns the session's summary without loading its history.
	Meta(ctx context.Context) (Metadata, error)
}

// Store maps session identifiers to their conversational memory.
// Implementations must be safe for concurrent use and must never hold
// internal locks across the Session methods they hand out.
type Store interface {
	// GetOrCreate returns the session for id, creating an empty one if
	// none exists. Creation is atomic: two concurrent calls with the same
	// id observe the same session.
	GetOrCreate(ctx context.Context, id string) (Session, error)

	// Get returns the session for id.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Get(ctx context.Context, id string) (Session, error)

	// Remove deletes a session and all its turns. Removing a session that
	// doesn't exist is not an error.
	Remove(ctx context.Context, id string) error

	// Len returns the number of live sessions.
	Len(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}
