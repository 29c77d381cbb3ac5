package llm

import "context"

// MockProvider is a scripted completion provider for testing.
type MockProvider struct {
	ProviderName string

	// Responses and Errors are consumed in order, one entry per call.
	// A non-nil error at the current index wins over the response.
	Responses []*CompletionResponse
	Errors    []error

	// Calls records every request received.
	Calls []CompletionRequest

	currentIndex int
}

// NewMockProvider creates a mock provider.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{ProviderName: name}
}

// CreateCompletion implements Provider.
func (m *MockProvider) CreateCompletion(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	m.Calls = append(m.Calls, request)

	if m.currentIndex < len(m.Errors) && m.Errors[m.currentIndex] != nil {
		err := m.Errors[m.currentIndex]
		m.currentIndex++
		return nil, err
	}

	if m.currentIndex < len(m.Responses) {
		resp := m.Responses[m.currentIndex]
		m.currentIndex++
		return resp, nil
	}

	m.currentIndex++
	return &CompletionResponse{
		Content:      "mock response",
		FinishReason: "stop",
		Usage:        Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// Name implements Provider.
func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}
