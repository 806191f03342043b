// Copyright 2026 © The Conductor Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability implements the uniform tool invocation contract.
//
// A capability is a named, stateful unit of work an agent can perform. The
// Run boundary validates parameters, bounds execution time, and converts any
// failure into result data: a raw error never unwinds past Run.
package capability

import (
	"context"
	"sync"
	"time"

	"github.com/protean-labs/conductor/pkg/core"
	"github.com/protean-labs/conductor/pkg/errors"
	"github.com/protean-labs/conductor/pkg/resilience"
	"github.com/protean-labs/conductor/pkg/telemetry"
)

// Invoker is the per-capability hook: the concrete behavior behind Run.
// It may return any domain-specific error; Run absorbs it.
type Invoker interface {
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, args map[string]any) (any, error)

func (f InvokerFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// Stats is a point-in-time view of a capability's counters.
// Counters are monotonically non-decreasing for the capability's lifetime.
type Stats struct {
	Name        string  `json:"name"`
	Invocations int64   `json:"invocations"`
	Successes   int64   `json:"successes"`
	Failures    int64   `json:"failures"`
	SuccessRate float64 `json:"success_rate"`
}

// Base provides the shared Run contract, parameter validation, and counters.
// Concrete capabilities embed it and supply an Invoker. A single Base may be
// shared by multiple agents concurrently; counters are mutex-guarded.
type Base struct {
	name        string
	description string
	params      []core.ParamSpec
	invoker     Invoker
	timeout     time.Duration
	metrics     *telemetry.CapabilityMetrics

	mu          sync.Mutex
	invocations int64
	successes   int64
	failures    int64
}

// Option configures a Base capability.
type Option func(*Base)

// WithParams sets the ordered parameter specs.
func WithParams(params ...core.ParamSpec) Option {
	return func(b *Base) { b.params = params }
}

// WithTimeout bounds each invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(b *Base) { b.timeout = d }
}

// WithMetrics attaches invocation instruments. A nil value is allowed and
// disables recording.
func WithMetrics(m *telemetry.CapabilityMetrics) Option {
	return func(b *Base) { b.metrics = m }
}

// New creates a capability from a name, description, and invoker.
func New(name, description string, invoker Invoker, opts ...Option) *Base {
	b := &Base{
		name:        name,
		description: description,
		invoker:     invoker,
		timeout:     2 * time.Minute,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewFunc creates a capability backed by a plain function.
func NewFunc(name, description string, fn InvokerFunc, opts ...Option) *Base {
	return New(name, description, fn, opts...)
}

// Name returns the unique capability name.
func (b *Base) Name() string { return b.name }

// Description returns what this capability does.
func (b *Base) Description() string { return b.description }

// Schema returns name, description, and parameter specs for discovery.
func (b *Base) Schema() core.CapabilitySchema {
	return core.CapabilitySchema{
		Name:        b.name,
		Description: b.description,
		Parameters:  append([]core.ParamSpec(nil), b.params...),
	}
}

// Run invokes the capability with validation, a time bound, and counter
// tracking. Every call increments the invocation counter; failures of any
// kind (validation, timeout, invoker error) are returned as data and
// increment the failure counter.
func (b *Base) Run(ctx context.Context, args map[string]any) core.CapabilityResult {
	start := time.Now()
	result := b.run(ctx, args)
	b.metrics.RecordInvocation(ctx, b.name, result.Success, time.Since(start))
	return result
}

func (b *Base) run(ctx context.Context, args map[string]any) core.CapabilityResult {
	b.mu.Lock()
	b.invocations++
	b.mu.Unlock()

	if err := b.validate(args); err != nil {
		return b.failure(err)
	}

	output, err := resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{Duration: b.timeout}, func(ctx context.Context) (interface{}, error) {
		return b.invoker.Invoke(ctx, b.applyDefaults(args))
	})
	if err != nil {
		return b.failure(err)
	}

	b.mu.Lock()
	b.successes++
	b.mu.Unlock()

	return core.CapabilityResult{
		Success:    true,
		Output:     output,
		Capability: b.name,
	}
}

func (b *Base) failure(err error) core.CapabilityResult {
	b.mu.Lock()
	b.failures++
	b.mu.Unlock()

	msg := err.Error()
	if msg == "" {
		msg = "capability failed"
	}
	return core.CapabilityResult{
		Success:    false,
		Error:      msg,
		Capability: b.name,
	}
}

// validate checks that every required parameter is present.
func (b *Base) validate(args map[string]any) error {
	for _, p := range b.params {
		if !p.Required {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			return errors.New(errors.CodeValidation, "missing required parameter", nil).
				WithContext("parameter", p.Name).
				WithContext("capability", b.name)
		}
	}
	return nil
}

// applyDefaults fills optional parameters with their declared defaults.
func (b *Base) applyDefaults(args map[string]any) map[string]any {
	filled := make(map[string]any, len(args))
	for k, v := range args {
		filled[k] = v
	}
	for _, p := range b.params {
		if p.Default == nil {
			continue
		}
		if _, ok := filled[p.Name]; !ok {
			filled[p.Name] = p.Default
		}
	}
	return filled
}

// Stats returns a snapshot of the usage counters.
func (b *Base) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	rate := 0.0
	if b.invocations > 0 {
		rate = float64(b.successes) / float64(b.invocations)
	}
	return Stats{
		Name:        b.name,
		Invocations: b.invocations,
		Successes:   b.successes,
		Failures:    b.failures,
		SuccessRate: rate,
	}
}

// Ensure Base satisfies the core contract.
var _ core.Capability = (*Base)(nil)
