// Package llm defines the generation backend contract and concrete providers.
package llm

import (
	"context"
	"sync"
)

// GenerateOptions carries per-call generation parameters.
type GenerateOptions struct {
	Model        string  `json:"model,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
}

// Provider defines the interface for interacting with generation backends.
// Failures surface as errors.CodeBackend.
type Provider interface {
	// Generate turns a prompt into text.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// StreamChunk is one fragment of a streaming generation.
type StreamChunk struct {
	Content string
	Done    bool
	Err     error
}

// StreamingProvider produces a lazy, finite, non-restartable sequence of
// text fragments under the same failure contract as Generate.
type StreamingProvider interface {
	Provider
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error)
}

// UsageStats tracks request and token consumption for a provider.
type UsageStats struct {
	Requests    int `json:"requests"`
	TotalTokens int `json:"total_tokens"`
}

// usageTracker accumulates UsageStats under a mutex. Providers embed it.
type usageTracker struct {
	mu    sync.Mutex
	stats UsageStats
}

func (u *usageTracker) record(tokens int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.stats.Requests++
	u.stats.TotalTokens += tokens
}

// Usage returns a copy of the accumulated usage statistics.
func (u *usageTracker) Usage() UsageStats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stats
}
