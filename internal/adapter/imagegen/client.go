// Package imagegen provides the client for the external asset generation
// service used by the logo fan-out side effect.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AssetGenerator requests N independent asset variants for one brief.
// The first returned URL is the primary variant; no other ordering is
// guaranteed.
type AssetGenerator interface {
	Generate(ctx context.Context, brief string, count int) ([]string, error)
}

// Client calls an OpenAI-compatible image generation endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Ensure Client implements AssetGenerator interface.
var _ AssetGenerator = (*Client)(nil)

// NewClient creates a new asset generation client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type generationRequest struct {
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type generationResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Generate requests count asset variants for the given brief.
func (c *Client) Generate(ctx context.Context, brief string, count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive")
	}

	body, err := json.Marshal(generationRequest{Prompt: brief, N: count, Size: "1024x1024"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset generation failed with status %d", resp.StatusCode)
	}

	var gen generationResponse
	if err := json.Unmarshal(respBody, &gen); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(gen.Data) == 0 {
		return nil, fmt.Errorf("malformed response: no assets returned")
	}

	urls := make([]string, 0, len(gen.Data))
	for _, d := range gen.Data {
		if d.URL != "" {
			urls = append(urls, d.URL)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("malformed response: empty asset urls")
	}
	return urls, nil
}
