// Package llm provides an abstraction for the generative text service.
package llm

import "context"

// Request is one generative invocation. System carries run-level
// instructions (including any retrieved context); User carries the resolved
// per-item input. MaxTokens of zero leaves the provider default in place.
type Request struct {
	System    string
	User      string
	MaxTokens int
}

// Result is the outcome of a generative invocation.
type Result struct {
	Text       string
	TokensUsed int
}

// Generator defines the interface for generative text calls.
type Generator interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// Ensure Client implements Generator interface.
var _ Generator = (*Client)(nil)
