// Copyright 2026 © The Conductor Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the capability-bearing agent base.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/protean-labs/conductor/pkg/core"
	"github.com/protean-labs/conductor/pkg/errors"
	"github.com/protean-labs/conductor/pkg/llm"
)

// TaskFunc executes a structured task: the "must implement" hook each agent
// specialization supplies. It reads task.InputData and returns a result map.
// It must not mutate task status; lifecycle transitions belong to the
// orchestrator.
type TaskFunc func(ctx context.Context, a *Agent, task *core.Task) (map[string]any, error)

// Agent binds a generation backend, a set of capabilities, and an optional
// memory. It answers free text through Process and structured work through
// ExecuteTask.
type Agent struct {
	id           string
	name         string
	description  string
	provider     llm.Provider
	capabilities []core.Capability
	capIndex     map[string]core.Capability
	memory       core.Memory
	systemPrompt string
	taskFunc     TaskFunc
	genOpts      llm.GenerateOptions

	mu      sync.RWMutex
	history []core.Task
}

// Option configures an Agent instance.
type Option func(*Agent) error

// New creates a new Agent with a required name and options.
func New(name string, opts ...Option) (*Agent, error) {
	a := &Agent{
		id:       uuid.NewString(),
		name:     name,
		capIndex: make(map[string]core.Capability),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.name == "" {
		return nil, errors.New(errors.CodeValidation, "agent name is required", nil)
	}
	if a.provider == nil {
		return nil, errors.New(errors.CodeValidation, "agent provider is required", nil)
	}
	if a.systemPrompt == "" {
		a.systemPrompt = fmt.Sprintf("You are %s, a specialized assistant. %s", a.name, a.description)
	}
	return a, nil
}

// WithDescription sets what this agent does.
func WithDescription(description string) Option {
	return func(a *Agent) error {
		a.description = description
		return nil
	}
}

// WithProvider binds the generation backend.
func WithProvider(provider llm.Provider) Option {
	return func(a *Agent) error {
		a.provider = provider
		return nil
	}
}

// WithCapabilities assigns capabilities to the agent. Names must be unique
// within one agent.
func WithCapabilities(capabilities ...core.Capability) Option {
	return func(a *Agent) error {
		for _, c := range capabilities {
			if _, dup := a.capIndex[c.Name()]; dup {
				return errors.New(errors.CodeValidation, "duplicate capability name", nil).
					WithContext("capability", c.Name())
			}
			a.capabilities = append(a.capabilities, c)
			a.capIndex[c.Name()] = c
		}
		return nil
	}
}

// WithMemory attaches a memory backend to the agent.
func WithMemory(memory core.Memory) Option {
	return func(a *Agent) error {
		a.memory = memory
		return nil
	}
}

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) error {
		a.systemPrompt = prompt
		return nil
	}
}

// WithTaskFunc sets the structured-task executor.
func WithTaskFunc(fn TaskFunc) Option {
	return func(a *Agent) error {
		a.taskFunc = fn
		return nil
	}
}

// WithGenerateOptions sets default generation parameters.
func WithGenerateOptions(opts llm.GenerateOptions) Option {
	return func(a *Agent) error {
		a.genOpts = opts
		return nil
	}
}

// Name returns the agent's unique name.
func (a *Agent) Name() string { return a.name }

// ID returns the agent's instance id.
func (a *Agent) ID() string { return a.id }

// Description returns what this agent does.
func (a *Agent) Description() string { return a.description }

// SystemPrompt returns the standing system prompt.
func (a *Agent) SystemPrompt() string { return a.systemPrompt }

// Provider returns the bound generation backend.
func (a *Agent) Provider() llm.Provider { return a.provider }

// Memory returns the attached memory backend, if any.
func (a *Agent) Memory() core.Memory { return a.memory }

// Capabilities returns the agent's capability set.
func (a *Agent) Capabilities() []core.Capability {
	return append([]core.Capability(nil), a.capabilities...)
}

// Capability returns a bound capability by name.
func (a *Agent) Capability(name string) (core.Capability, bool) {
	c, ok := a.capIndex[name]
	return c, ok
}

// Process answers free text. It assembles a composite prompt from recalled
// memory, supplied context, and capability descriptions, calls the backend,
// and records the turn. An agent without its own memory falls back to one
// carried on the context (core.WithMemory), so a shared backend can serve
// agents constructed without one. Generation failures are converted to a
// user-facing string at this boundary; callers needing failure visibility
// must wrap this call.
func (a *Agent) Process(ctx context.Context, input string, extra map[string]any) string {
	mem := a.memory
	if mem == nil {
		if m, ok := core.MemoryFromContext(ctx); ok {
			mem = m
		}
	}

	memoryContext := ""
	if mem != nil {
		turns, err := mem.Recall(ctx, input, 5)
		if err != nil {
			slog.WarnContext(ctx, "agent.memory.recall_failed",
				slog.String("agent", a.name),
				slog.String("error", err.Error()),
			)
		} else {
			memoryContext = formatMemoryContext(turns)
		}
	}

	prompt := a.buildPrompt(input, memoryContext, extra)

	opts := a.genOpts
	opts.SystemPrompt = a.systemPrompt
	response, err := a.provider.Generate(ctx, prompt, opts)
	if err != nil {
		slog.ErrorContext(ctx, "agent.generate_failed",
			slog.String("agent", a.name),
			slog.String("error", err.Error()),
		)
		return fmt.Sprintf("Error processing request: %v", err)
	}

	if mem != nil {
		if err := mem.Record(ctx, input, response, nil); err != nil {
			slog.WarnContext(ctx, "agent.memory.record_failed",
				slog.String("agent", a.name),
				slog.String("error", err.Error()),
			)
		}
	}

	return response
}

// buildPrompt assembles the complete prompt with all context.
func (a *Agent) buildPrompt(input, memoryContext string, extra map[string]any) string {
	var parts []string

	if memoryContext != "" {
		parts = append(parts, "Previous context:\n"+memoryContext+"\n")
	}
	if len(extra) > 0 {
		parts = append(parts, "Additional context:\n"+formatExtraContext(extra)+"\n")
	}
	if len(a.capabilities) > 0 {
		parts = append(parts, "Available tools:\n"+a.formatCapabilities()+"\n")
	}
	parts = append(parts, "User query: "+input)

	return strings.Join(parts, "\n")
}

func formatMemoryContext(turns []core.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, "- "+turn.Content)
	}
	return strings.Join(lines, "\n")
}

func formatExtraContext(extra map[string]any) string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("- %s: %v", k, extra[k]))
	}
	return strings.Join(lines, "\n")
}

func (a *Agent) formatCapabilities() string {
	lines := make([]string, 0, len(a.capabilities))
	for _, c := range a.capabilities {
		lines = append(lines, fmt.Sprintf("- %s: %s", c.Name(), c.Description()))
	}
	return strings.Join(lines, "\n")
}

// ExecuteTask runs a structured task through the agent's executor.
func (a *Agent) ExecuteTask(ctx context.Context, task *core.Task) (map[string]any, error) {
	if a.taskFunc == nil {
		return nil, errors.New(errors.CodeInternal, "agent has no task executor", nil).
			WithContext("agent", a.name)
	}
	return a.taskFunc(ctx, a, task)
}

// UseCapability invokes a bound capability by name through the uniform Run
// contract. An unknown name is a routing failure, not a capability failure.
func (a *Agent) UseCapability(ctx context.Context, name string, args map[string]any) (core.CapabilityResult, error) {
	c, ok := a.capIndex[name]
	if !ok {
		return core.CapabilityResult{}, errors.New(errors.CodeCapabilityNotFound, "capability not found", nil).
			WithContext("capability", name).
			WithContext("agent", a.name)
	}
	return c.Run(ctx, args), nil
}

// RecordTask appends a finished task to the agent's history.
func (a *Agent) RecordTask(task *core.Task) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, task.Snapshot())
}

// History returns a copy of the agent's task history.
func (a *Agent) History() []core.Task {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]core.Task(nil), a.history...)
}

// Stats summarizes the agent's task history.
func (a *Agent) Stats() core.AgentStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := core.AgentStats{
		Name:            a.name,
		TotalTasks:      len(a.history),
		CapabilityCount: len(a.capabilities),
	}
	for _, t := range a.history {
		switch t.Status {
		case core.TaskStatusCompleted:
			stats.CompletedTasks++
		case core.TaskStatusFailed:
			stats.FailedTasks++
		}
	}
	if stats.TotalTasks > 0 {
		stats.SuccessRate = float64(stats.CompletedTasks) / float64(stats.TotalTasks)
	}
	return stats
}

// Ensure Agent satisfies the core contract.
var _ core.Agent = (*Agent)(nil)
