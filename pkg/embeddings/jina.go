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
	jinaDefaultModel      = "jina-embeddings-v3"
	jinaDefaultBaseURL    = "https://api.jina.ai/v1"
	jinaDefaultTask       = "retrieval.query"
	jinaDefaultDimensions = 1024
)

// JinaEmbeddings implements Service using the Jina AI embeddings API.
type JinaEmbeddings struct {
	apiKey     string
	model      string
	baseURL    string
	task       string
	dimensions int
	client     *http.Client
}

// jinaRequest represents the request format for the Jina API.
type jinaRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task"`
	Dimensions    int      `json:"dimensions"`
	LateChunking  bool     `json:"late_chunking"`
	EmbeddingType string   `json:"embedding_type"`
	Input         []string `json:"input"`
}

// jinaResponse represents the response format from the Jina API.
type jinaResponse struct {
	Model string `json:"model"`
	Data  []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func init() {
	Register("jina", NewJina)
}

// NewJina creates a new JinaEmbeddings instance.
func NewJina(config Config) (Service, error) {
	if config.Jina == nil {
		return nil, fmt.Errorf("jina configuration is required")
	}
	if config.Jina.APIKey == "" {
		return nil, fmt.Errorf("jina API key is required")
	}

	model := config.Jina.Model
	if model == "" {
		model = jinaDefaultModel
	}
	baseURL := config.Jina.BaseURL
	if baseURL == "" {
		baseURL = jinaDefaultBaseURL
	}
	task := config.Jina.Task
	if task == "" {
		task = jinaDefaultTask
	}
	dims := config.Jina.Dimensions
	if dims <= 0 {
		dims = jinaDefaultDimensions
	}

	return &JinaEmbeddings{
		apiKey:     config.Jina.APIKey,
		model:      model,
		baseURL:    baseURL,
		task:       task,
		dimensions: dims,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Embed generates an embedding for a single text.
func (j *JinaEmbeddings) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	embeddings, err := j.makeRequest(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (j *JinaEmbeddings) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}
	return j.makeRequest(ctx, texts)
}

// Dimensions returns the dimension size of the embeddings.
func (j *JinaEmbeddings) Dimensions() int {
	return j.dimensions
}

// ModelName returns the name of the embedding model.
func (j *JinaEmbeddings) ModelName() string {
	return j.model
}

// Close closes any resources held by the service.
func (j *JinaEmbeddings) Close() error {
	j.client.CloseIdleConnections()
	return nil
}

// makeRequest makes an HTTP request to the Jina API.
func (j *JinaEmbeddings) makeRequest(ctx context.Context, input []string) ([][]float32, error) {
	reqBody := jinaRequest{
		Model:         j.model,
		Task:          j.task,
		Dimensions:    j.dimensions,
		LateChunking:  false,
		EmbeddingType: "float",
		Input:         input,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/embeddings", j.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.client.Do(req)
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
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Detail != "" {
			return nil, fmt.Errorf("jina API error: %s", errorResp.Detail)
		}
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp jinaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned from API")
	}

	embeddings := make([][]float32, len(apiResp.Data))
	seen := make(map[int]bool, len(apiResp.Data))
	for i, item := range apiResp.Data {
		if item.Embedding == nil {
			return nil, fmt.Errorf("embedding at response index %d is nil", i)
		}
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, fmt.Errorf("embedding index out of bounds: %d (expected 0-%d)", item.Index, len(embeddings)-1)
		}
		if seen[item.Index] {
			return nil, fmt.Errorf("duplicate embedding index: %d", item.Index)
		}
		seen[item.Index] = true
		embeddings[item.Index] = item.Embedding
	}
	for i := range embeddings {
		if !seen[i] {
			return nil, fmt.Errorf("missing embedding at index %d", i)
		}
	}

	return embeddings, nil
}
