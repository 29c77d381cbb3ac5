// Package llm defines the chat completion provider contract and the
// message shapes exchanged with completion backends.
package llm

import "context"

// Roles accepted in a chat completion conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest represents a chat completion request.
type CompletionRequest struct {
	// Messages is the full prompt: system message, history, and the
	// current user turn, in order.
	Messages []Message `json:"messages"`

	// Model overrides the provider's default model when set.
	Model string `json:"model,omitempty"`

	// Temperature controls randomness (0.0-2.0).
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// CompletionResponse represents a chat completion response.
type CompletionResponse struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider is a chat completion backend.
type Provider interface {
	// CreateCompletion generates a single non-streaming completion.
	CreateCompletion(ctx context.Context, request CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "groq").
	Name() string
}

// ProviderError represents a provider-specific error.
type ProviderError struct {
	Provider      string `json:"provider"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	StatusCode    int    `json:"status_code,omitempty"`
	IsRetryable   bool   `json:"is_retryable"`
	OriginalError error  `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return e.Provider + " error: " + e.Message
}

// Unwrap returns the original error.
func (e *ProviderError) Unwrap() error {
	return e.OriginalError
}

// Common error codes.
const (
	ErrorCodeInvalidRequest    = "invalid_request"
	ErrorCodeAuthentication    = "authentication_error"
	ErrorCodeRateLimit         = "rate_limit_exceeded"
	ErrorCodeServerError       = "server_error"
	ErrorCodeTimeout           = "timeout"
	ErrorCodeModelNotFound     = "model_not_found"
	ErrorCodeMalformedResponse = "malformed_response"
	ErrorCodeUnknown           = "unknown_error"
)

// NewProviderError creates a new provider error.
func NewProviderError(provider, code, message string, original error) *ProviderError {
	return &ProviderError{
		Provider:      provider,
		Code:          code,
		Message:       message,
		OriginalError: original,
		IsRetryable:   isRetryableCode(code),
	}
}

func isRetryableCode(code string) bool {
	switch code {
	case ErrorCodeRateLimit, ErrorCodeServerError, ErrorCodeTimeout:
		return true
	default:
		return false
	}
}
