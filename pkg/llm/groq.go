package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	groqBaseURL      = "https://api.groq.com/openai/v1"
	groqDefaultModel = "llama3-8b-8192"

	// Groq free-tier chat models allow 30 requests per minute.
	groqDefaultRPS   = 0.5
	groqDefaultBurst = 5
)

// GroqConfig configures the Groq completion provider.
type GroqConfig struct {
	APIKey string `yaml:"api_key"`

	// Model defaults to llama3-8b-8192.
	Model string `yaml:"model"`

	// Temperature defaults to 0.1 when unset.
	Temperature *float64 `yaml:"temperature"`

	// MaxTokens limits completion length; 0 leaves it to the API.
	MaxTokens int `yaml:"max_tokens"`

	// RequestsPerSecond paces outbound calls. Zero uses the default.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// BaseURL overrides the Groq endpoint, for tests.
	BaseURL string `yaml:"base_url"`
}

// chatCompleter is the slice of the OpenAI-compatible client we use.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// GroqProvider calls Groq's OpenAI-compatible chat completion API.
type GroqProvider struct {
	client      chatCompleter
	model       string
	temperature float64
	maxTokens   int
	limiter     *rate.Limiter
}

// NewGroqProvider creates a Groq provider from config.
func NewGroqProvider(cfg GroqConfig) (*GroqProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq: api key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = groqBaseURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = groqDefaultModel
	}

	temperature := 0.1
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = groqDefaultRPS
	}

	return &GroqProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: temperature,
		maxTokens:   cfg.MaxTokens,
		limiter:     rate.NewLimiter(rate.Limit(rps), groqDefaultBurst),
	}, nil
}

// Name implements Provider.
func (p *GroqProvider) Name() string { return "groq" }

// CreateCompletion implements Provider. It paces calls against the
// provider quota, then performs a single non-streaming completion.
// Failures are never retried here; the caller decides what a failed
// turn means.
func (p *GroqProvider) CreateCompletion(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	if len(request.Messages) == 0 {
		return nil, NewProviderError(p.Name(), ErrorCodeInvalidRequest, "no messages provided", nil)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, NewProviderError(p.Name(), ErrorCodeTimeout, "rate limiter wait: "+err.Error(), err)
	}

	model := request.Model
	if model == "" {
		model = p.model
	}
	temperature := p.temperature
	if request.Temperature != 0 {
		temperature = request.Temperature
	}
	maxTokens := request.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}

	messages := make([]openai.ChatCompletionMessage, len(request.Messages))
	for i, m := range request.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, p.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewProviderError(p.Name(), ErrorCodeMalformedResponse, "response contained no choices", nil)
	}

	choice := resp.Choices[0]
	return &CompletionResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (p *GroqProvider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		pe := NewProviderError(p.Name(), codeForStatus(apiErr.HTTPStatusCode), apiErr.Message, err)
		pe.StatusCode = apiErr.HTTPStatusCode
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(p.Name(), ErrorCodeTimeout, "completion timed out", err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewProviderError(p.Name(), ErrorCodeTimeout, "completion timed out", err)
	}
	return NewProviderError(p.Name(), ErrorCodeUnknown, err.Error(), err)
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorCodeAuthentication
	case status == http.StatusNotFound:
		return ErrorCodeModelNotFound
	case status == http.StatusTooManyRequests:
		return ErrorCodeRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrorCodeTimeout
	case status >= 500:
		return ErrorCodeServerError
	case status >= 400:
		return ErrorCodeInvalidRequest
	default:
		return ErrorCodeUnknown
	}
}
