package embedprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPProvider calls an external embedding HTTP endpoint exposing
// /embed (batch) and /dimension, mirroring the request/response shape
// of the teacher's cortex-embed server.
type HTTPProvider struct {
	BaseURL string
	Client  *http.Client
	Name    string

	dimension int
}

// NewHTTPProvider constructs an HTTPProvider against baseURL (e.g.
// "http://127.0.0.1:8420").
func NewHTTPProvider(baseURL, name string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Name:    name,
	}
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type dimensionResponse struct {
	Dimension int `json:"dimension"`
}

func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *HTTPProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("embedprovider: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedprovider: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedprovider: embed_batch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedprovider: embed_batch returned status %d", resp.StatusCode)
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("embedprovider: decode response: %w", err)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedprovider: expected %d embeddings, got %d", len(texts), len(embedResp.Embeddings))
	}
	return embedResp.Embeddings, nil
}

func (p *HTTPProvider) DetectDimension(ctx context.Context) (int, error) {
	if p.dimension > 0 {
		return p.dimension, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/dimension", nil)
	if err != nil {
		return 0, fmt.Errorf("embedprovider: build dimension request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("embedprovider: detect_dimension request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("embedprovider: detect_dimension returned status %d", resp.StatusCode)
	}

	var dimResp dimensionResponse
	if err := json.NewDecoder(resp.Body).Decode(&dimResp); err != nil {
		return 0, fmt.Errorf("embedprovider: decode dimension response: %w", err)
	}
	p.dimension = dimResp.Dimension
	return p.dimension, nil
}

func (p *HTTPProvider) ProviderName() string {
	if p.Name != "" {
		return p.Name
	}
	return "http"
}
