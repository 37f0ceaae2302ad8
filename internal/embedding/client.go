// Package embedding implements the embedding provider boundary: batch
// text-to-vector with an opaque vector type. The upstream's wire
// protocol is treated as any other collaborator's; HTTPProvider speaks
// the OpenRouter-compatible embeddings shape, MockProvider produces
// deterministic vectors for tests and the demo binary.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/spherical-ai/hybridstore/internal/errs"
)

// Provider is the embedding contract: a batch method keyed by an
// embeddingType discriminator, so the hybrid store and the ingestion
// pipeline can request different embedding spaces (e.g. "text", "code")
// from the same upstream without knowing its wire protocol.
type Provider interface {
	Embed(ctx context.Context, embeddingType string, texts []string) ([][]float32, error)
	Model() string
	Dimension() int
}

// HTTPProvider adapts an OpenRouter-compatible embeddings endpoint.
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimension  int
}

// Config holds HTTPProvider configuration.
type Config struct {
	APIKey    string
	Model     string // e.g., "google/gemini-embedding-001"
	BaseURL   string // Default: https://openrouter.ai/api/v1
	Dimension int    // Default: 768
	Timeout   time.Duration
}

// NewHTTPProvider creates a new HTTP-backed embedding provider.
func NewHTTPProvider(cfg Config) (*HTTPProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", errs.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "google/gemini-embedding-001"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 768
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPProvider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
	}, nil
}

// embeddingRequest mirrors the OpenRouter/OpenAI-shaped embeddings
// request; embeddingType rides along on the model field so the upstream
// can route to a distinct embedding space per type.
type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  embeddingUsage  `json:"usage"`
	Error  *embeddingError `json:"error,omitempty"`
}

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type embeddingError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Embed requests one batch of vectors for texts, tagged with
// embeddingType. An empty texts slice is a no-op, not an error.
func (p *HTTPProvider) Embed(ctx context.Context, embeddingType string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := p.model
	if embeddingType != "" {
		model = p.model + ":" + embeddingType
	}

	reqBody := embeddingRequest{Input: texts, Model: model}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("HTTP-Referer", "https://hybridstore.dev")
	req.Header.Set("X-Title", "hybridstore")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w: %v", errs.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp embeddingResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
			return nil, fmt.Errorf("embedding: %w: %s (%s)", errs.ErrUpstreamFailure, errResp.Error.Message, errResp.Error.Type)
		}
		return nil, fmt.Errorf("embedding: %w: status %d", errs.ErrUpstreamFailure, resp.StatusCode)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("embedding: unmarshal response: %w", err)
	}

	out := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < len(out) {
			out[data.Index] = data.Embedding
			if len(data.Embedding) > 0 && p.dimension != len(data.Embedding) {
				p.dimension = len(data.Embedding)
			}
		}
	}
	return out, nil
}

// Model returns the configured model name.
func (p *HTTPProvider) Model() string { return p.model }

// Dimension returns the last observed embedding dimension.
func (p *HTTPProvider) Dimension() int { return p.dimension }

// MockProvider is a deterministic, network-free Provider for tests and
// the demo binary: it hashes each text's characters into a fixed-size
// vector and normalizes it.
type MockProvider struct {
	dimension int
}

// NewMockProvider creates a mock provider producing dimension-sized
// vectors.
func NewMockProvider(dimension int) *MockProvider {
	if dimension <= 0 {
		dimension = 768
	}
	return &MockProvider{dimension: dimension}
}

// Embed returns one deterministic vector per text; embeddingType does not
// change the hash, since the mock has no real embedding spaces to route
// between.
func (p *MockProvider) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, p.dimension)
		for j, char := range texts[i] {
			if j >= p.dimension {
				break
			}
			out[i][j%p.dimension] += float32(char) / 1000.0
		}
		out[i] = normalize(out[i])
	}
	return out, nil
}

// Model returns a fixed mock model name.
func (p *MockProvider) Model() string { return "mock-embedding-model" }

// Dimension returns the configured vector size.
func (p *MockProvider) Dimension() int { return p.dimension }

func normalize(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= norm
	}
	return v
}

var (
	_ Provider = (*HTTPProvider)(nil)
	_ Provider = (*MockProvider)(nil)
)
