// Package session provides per-conversation memory for the chat backend.
// Each client connection owns one session, keyed by an opaque identifier,
// that accumulates (user, assistant) turn pairs across the conversation.
package session

import (
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	// RoleUser marks a turn authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a turn authored by the model.
	RoleAssistant Role = "assistant"
)

// Turn is a single entry in a session's conversational memory.
// Turns are append-only and immutable once written.
type Turn struct {
	// Role is who authored the turn.
	Role Role `json:"role"`
	// Content is the turn text.
	Content string `json:"content"`
	// Timestamp is when the turn was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Metadata holds session summary information.
// It is kept separate from the turns so stores can list sessions
// without loading full histories.
type Metadata struct {
	// ID is the unique session identifier.
	ID string `json:"id"`
	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is when the session last recorded a turn.
	UpdatedAt time.Time `json:"updatedAt"`
	// TurnCount is the number of turns in the session.
	TurnCount int `json:"turnCount"`
}
