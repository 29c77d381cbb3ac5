package chat

import "errors"

var (
	// ErrCompletionFailure wraps a completion provider error. The turn
	// failed, session memory was not touched, and the call is not
	// retried.
	ErrCompletionFailure = errors.New("completion failure")

	// ErrMalformedMessage marks inbound messages rejected before any
	// provider call.
	ErrMalformedMessage = errors.New("malformed inbound message")
)

// errorReplyText is what the user sees when a turn fails.
const errorReplyText = "Sorry, I ran into a problem answering that. Please try again."
