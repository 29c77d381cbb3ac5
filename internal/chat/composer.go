package chat

import (
	"strings"

	"github.com/securesure/chatd/pkg/llm"
	"github.com/securesure/chatd/pkg/retrieval"
	"github.com/securesure/chatd/pkg/session"
)

// ContextPlaceholder marks where retrieved passages land in the system
// template.
const ContextPlaceholder = "{context}"

// NoContextSentinel is rendered into the template when retrieval found
// nothing or was unavailable.
const NoContextSentinel = "NO MEMORY FOUND"

// DefaultSystemTemplate is the assistant persona used when the config
// does not override it.
const DefaultSystemTemplate = `You are a knowledgeable and helpful health insurance assistant for SecureSure.
Answer the user's questions about their policy using only the policy context below.
If the context does not cover the question, say so instead of guessing.

Policy context:
{context}`

// Template is a system prompt carrying the context placeholder.
type Template struct {
	System string
}

// DefaultTemplate returns the built-in assistant template.
func DefaultTemplate() Template {
	return Template{System: DefaultSystemTemplate}
}

// JoinPassages flattens retrieved passages into the context text, best
// match first.
func JoinPassages(passages []retrieval.Passage) string {
	if len(passages) == 0 {
		return NoContextSentinel
	}
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		if text := strings.TrimSpace(p.Text); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return NoContextSentinel
	}
	return strings.Join(parts, "\n\n")
}

// Compose builds the ordered prompt: system message with the context
// substituted, prior history oldest first, then the current user turn.
// Pure; the history slice is never modified.
func Compose(tmpl Template, contextText string, history []session.Turn, userQuery string) []llm.Message {
	if contextText == "" {
		contextText = NoContextSentinel
	}

	system := tmpl.System
	if strings.Contains(system, ContextPlaceholder) {
		system = strings.Replace(system, ContextPlaceholder, contextText, 1)
	} else {
		system = system + "\n\nContext:\n" + contextText
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userQuery})
	return messages
}
