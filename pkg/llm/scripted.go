// Copyright 2026 © The Conductor Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"sync"
)

// ScriptedProvider is an enhanced mock provider for testing scenarios.
// It returns queued responses in order and captures every prompt it receives.
type ScriptedProvider struct {
	mu           sync.Mutex
	responses    []ScriptedResponse
	currentIndex int
	prompts      []string
	defaultError error
}

// ScriptedResponse defines a response for the scripted provider.
type ScriptedResponse struct {
	Content string
	Error   error
}

// NewScriptedProvider creates a new scripted provider.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{}
}

// AddResponse queues a response to be returned.
func (p *ScriptedProvider) AddResponse(content string) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, ScriptedResponse{Content: content})
	return p
}

// AddErrorResponse queues an error response.
func (p *ScriptedProvider) AddErrorResponse(err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, ScriptedResponse{Error: err})
	return p
}

// WithDefaultError sets the error returned when no responses are queued.
func (p *ScriptedProvider) WithDefaultError(err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultError = err
	return p
}

// Generate returns the next queued response. When the queue runs out it
// repeats the last response, or returns the default error if one is set.
func (p *ScriptedProvider) Generate(_ context.Context, prompt string, _ GenerateOptions) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.prompts = append(p.prompts, prompt)

	if p.currentIndex >= len(p.responses) {
		if p.defaultError != nil {
			return "", p.defaultError
		}
		if len(p.responses) == 0 {
			return "", nil
		}
		last := p.responses[len(p.responses)-1]
		return last.Content, last.Error
	}

	resp := p.responses[p.currentIndex]
	p.currentIndex++
	return resp.Content, resp.Error
}

// Prompts returns a copy of the captured prompts.
func (p *ScriptedProvider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

// CallCount returns how many Generate calls were made.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}
