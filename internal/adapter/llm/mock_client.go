package llm

import (
	"context"
	"fmt"
)

// MockClient is a mock implementation of Generator for local development.
type MockClient struct{}

// NewMockClient creates a new mock generative client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements Generator interface.
var _ Generator = (*MockClient)(nil)

// Invoke returns a canned response derived from the input.
func (m *MockClient) Invoke(ctx context.Context, req Request) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	text := fmt.Sprintf("[MOCK] Generated content for input: %q", truncate(req.User, 120))
	return &Result{
		Text:       text,
		TokensUsed: (len(req.System) + len(req.User) + len(text)) / 4,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
