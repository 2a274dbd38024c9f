// Package provider implements the AI completion capability.
package provider

import (
	"context"
)

// CompletionProvider is the interface for completion API clients. Model,
// temperature, and max-token parameters pass through opaquely; no retry
// policy is applied here.
type CompletionProvider interface {
	// Complete sends a completion request and returns the response text.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// CompletionRequest contains the parameters for a completion request.
type CompletionRequest struct {
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// CompletionResponse contains the response from a completion request.
type CompletionResponse struct {
	Text  string
	Usage Usage
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
