// ABOUTME: OpenAI-compatible embedding client over plain HTTP JSON
// ABOUTME: Request time is bounded so degraded upserts never hang on the provider

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OpenAIProvider implements Provider using the OpenAI-compatible
// /v1/embeddings endpoint. It works against OpenAI, OpenRouter, and local
// servers exposing the same shape.
type OpenAIProvider struct {
	apiKey     string
	apiBase    string
	model      string
	dimensions int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIProvider creates an embeddings client. timeout bounds each request;
// zero means 10 seconds.
func NewOpenAIProvider(apiKey, apiBase, model string, dimensions int, timeout time.Duration) *OpenAIProvider {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default().With("component", "embedding"),
	}
}

// Dimensions reports the configured vector length.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed requests one embedding vector. Any transport or API failure maps to
// ErrUnavailable so callers can degrade uniformly.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{
		Model:      p.model,
		Input:      text,
		Dimensions: p.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("embedding request failed", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, parsed.Error.Message)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding in response", ErrUnavailable)
	}

	vec := parsed.Data[0].Embedding
	if p.dimensions > 0 && len(vec) != p.dimensions {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrUnavailable, len(vec), p.dimensions)
	}
	return vec, nil
}

// Ensure OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
