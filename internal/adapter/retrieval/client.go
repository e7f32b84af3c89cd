// Package retrieval provides the client for the optional retrieved-context
// provider. Its output is consumed as an opaque text block.
package retrieval

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

// Options tunes one retrieval query.
type Options struct {
	TopK          int      `json:"top_k,omitempty"`
	MinSimilarity float64  `json:"min_similarity,omitempty"`
	ScopeIDs      []string `json:"scope_ids,omitempty"`
}

// Provider returns a formatted context block for a query, or an empty string
// when nothing relevant is available.
type Provider interface {
	Retrieve(ctx context.Context, ownerID, query string, opts Options) (string, error)
}

// Client calls the retrieval service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Ensure Client implements Provider interface.
var _ Provider = (*Client)(nil)

// NewClient creates a new retrieval client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type retrieveRequest struct {
	OwnerID string `json:"owner_id"`
	Query   string `json:"query"`
	Options
}

type retrieveResponse struct {
	Context string `json:"context"`
}

// Retrieve fetches a formatted context block.
func (c *Client) Retrieve(ctx context.Context, ownerID, query string, opts Options) (string, error) {
	body, err := json.Marshal(retrieveRequest{OwnerID: ownerID, Query: query, Options: opts})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/retrieve", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("retrieval failed with status %d", resp.StatusCode)
	}

	var out retrieveResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return out.Context, nil
}
