// Package llm defines the completion backend interface.
//
// The runtime treats text completion as a black box: one Complete call in,
// one text out. Provider specifics (auth, wire format) live behind Client
// so tests can substitute a mock.
package llm

import (
	"context"
	"time"
)

// CompletionTimeout bounds every completion call. A call that exceeds it is
// treated as failed; the caller degrades rather than propagating.
const CompletionTimeout = 25 * time.Second

// Message is a single turn in the wire format the backend accepts.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to a Complete call.
type CompletionRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"maxTokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// CompletionResponse is the result of a completion.
type CompletionResponse struct {
	Content  string        `json:"content"`
	Model    string        `json:"model,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Client is the interface all completion providers implement.
type Client interface {
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g. "openai").
	Name() string
}
