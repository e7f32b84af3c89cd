// Package deploy provides the client for the external app-generation and
// deployment service used by the publish side effect.
package deploy

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

// Request parameterizes one deployment.
type Request struct {
	Brief             string `json:"brief"`
	StylePrompt       string `json:"style_prompt,omitempty"`
	WaitForCompletion bool   `json:"wait_for_completion"`
}

// Result is the outcome of a deployment request.
type Result struct {
	ChatID     string `json:"chat_id"`
	PreviewURL string `json:"preview_url"`
	LiveURL    string `json:"live_url,omitempty"`
}

// Deployer triggers an external site deployment and probes asset URLs.
type Deployer interface {
	Deploy(ctx context.Context, req Request) (*Result, error)
	// Reachable reports whether url answers a HEAD request with a 2xx/3xx.
	Reachable(ctx context.Context, url string) bool
}

// Client calls the deployment service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Ensure Client implements Deployer interface.
var _ Deployer = (*Client)(nil)

// NewClient creates a new deployment client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Deploy submits a deployment request.
func (c *Client) Deploy(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/deployments", bytes.NewReader(body))
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
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("deployment failed with status %d", resp.StatusCode)
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.ChatID == "" {
		return nil, fmt.Errorf("malformed response: missing chat_id")
	}
	return &result, nil
}

// Reachable probes url with a HEAD request.
func (c *Client) Reachable(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}
