package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	openaiDefaultModel   = "text-embedding-3-small"
	openaiDefaultBaseURL = "https://api.openai.com/v1"
)

// OpenAIEmbeddings implements Service using OpenAI's embeddings API.
type OpenAIEmbeddings struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	client     *http.Client
}

// openAIRequest represents the request format for the OpenAI API.
type openAIRequest struct {
	Input      any    `json:"input"`
	Model      string `json:"model"`
	Dimensions *int   `json:"dimensions,omitempty"`
}

// openAIResponse represents the response format from the OpenAI API.
type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func init() {
	Register("openai", NewOpenAI)
}

// NewOpenAI creates a new OpenAIEmbeddings instance.
func NewOpenAI(config Config) (Service, error) {
	if config.OpenAI == nil {
		return nil, fmt.Errorf("openai configuration is required")
	}
	if config.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	model := config.OpenAI.Model
	if model == "" {
		model = openaiDefaultModel
	}
	baseURL := config.OpenAI.BaseURL
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}

	dims := openaiModelDimensions(model)
	if config.OpenAI.Dimensions > 0 {
		if !isTextEmbedding3Model(model) {
			return nil, fmt.Errorf("custom dimensions only supported for text-embedding-3 models, got model: %s", model)
		}
		dims = config.OpenAI.Dimensions
	}

	return &OpenAIEmbeddings{
		apiKey:     config.OpenAI.APIKey,
		model:      model,
		baseURL:    baseURL,
		dimensions: dims,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Embed generates an embedding for a single text.
func (o *OpenAIEmbeddings) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	embeddings, err := o.makeRequest(ctx, text, 1)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (o *OpenAIEmbeddings) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}
	return o.makeRequest(ctx, texts, len(texts))
}

// Dimensions returns the dimension size of the embeddings.
func (o *OpenAIEmbeddings) Dimensions() int {
	return o.dimensions
}

// ModelName returns the name of the embedding model.
func (o *OpenAIEmbeddings) ModelName() string {
	return o.model
}

// Close closes any resources held by the service.
func (o *OpenAIEmbeddings) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// makeRequest makes an HTTP request to the OpenAI API and returns exactly
// want embeddings ordered by response index.
func (o *OpenAIEmbeddings) makeRequest(ctx context.Context, input any, want int) ([][]float32, error) {
	reqBody := openAIRequest{Input: input, Model: o.model}
	if isTextEmbedding3Model(o.model) && o.dimensions > 0 {
		reqBody.Dimensions = &o.dimensions
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/embeddings", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			return nil, fmt.Errorf("OpenAI API error: %s", errorResp.Error.Message)
		}
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(apiResp.Data) != want {
		return nil, fmt.Errorf("expected %d embeddings, got %d", want, len(apiResp.Data))
	}

	embeddings := make([][]float32, len(apiResp.Data))
	for i, item := range apiResp.Data {
		if item.Embedding == nil {
			return nil, fmt.Errorf("embedding at response index %d is nil", i)
		}
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, fmt.Errorf("embedding index out of bounds: %d (expected 0-%d)", item.Index, len(embeddings)-1)
		}
		if embeddings[item.Index] != nil {
			return nil, fmt.Errorf("duplicate embedding index: %d", item.Index)
		}
		embeddings[item.Index] = item.Embedding
	}
	for i := range embeddings {
		if embeddings[i] == nil {
			return nil, fmt.Errorf("missing embedding at index %d", i)
		}
	}

	return embeddings, nil
}

// openaiModelDimensions returns the default dimensions for OpenAI models.
func openaiModelDimensions(model string) int {
	switch model {
	case "text-embedding-ada-002", "text-embedding-3-small":
		return 1536
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

// isTextEmbedding3Model checks if the model supports custom dimensions.
func isTextEmbedding3Model(model string) bool {
	return model == "text-embedding-3-small" || model == "text-embedding-3-large"
}
