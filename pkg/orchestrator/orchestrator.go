// Copyright 2026 © The Conductor Authors
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator owns the agent registry and the task queue, and runs
// the bounded-concurrency dispatch loop.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/protean-labs/conductor/pkg/core"
	"github.com/protean-labs/conductor/pkg/errors"
	"github.com/protean-labs/conductor/pkg/telemetry"
)

// Orchestrator dispatches tasks to registered agents with a concurrency
// bound. Submit and Stop are safe to call from multiple goroutines; a task,
// once in progress, is exclusively owned by its executing goroutine until it
// reaches a terminal or retried-pending state.
type Orchestrator struct {
	mu       sync.Mutex
	agents   map[string]core.Agent
	order    []string // registration order; first registered is the fallback
	queue    *core.TaskQueue
	inflight map[string]struct{}
	maxTasks int
	running  bool

	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	emitter core.EventEmitter
	archive *Archive
	metrics *telemetry.TaskMetrics
	tracer  trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEventEmitter attaches a semantic event sink.
func WithEventEmitter(emitter core.EventEmitter) Option {
	return func(o *Orchestrator) { o.emitter = emitter }
}

// WithArchive journals terminal tasks to a SQLite archive.
func WithArchive(archive *Archive) Option {
	return func(o *Orchestrator) { o.archive = archive }
}

// WithMetrics attaches task metrics.
func WithMetrics(metrics *telemetry.TaskMetrics) Option {
	return func(o *Orchestrator) { o.metrics = metrics }
}

// New creates an orchestrator with the given concurrency bound.
func New(maxConcurrentTasks int, opts ...Option) *Orchestrator {
	if maxConcurrentTasks < 1 {
		maxConcurrentTasks = 5
	}
	o := &Orchestrator{
		agents:   make(map[string]core.Agent),
		queue:    core.NewTaskQueue(),
		inflight: make(map[string]struct{}),
		maxTasks: maxConcurrentTasks,
		wake:     make(chan struct{}, 1),
		emitter:  core.NoopEventEmitter{},
		tracer:   otel.Tracer("conductor/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterAgent registers an agent by name. The last registration for a
// name wins.
func (o *Orchestrator) RegisterAgent(a core.Agent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.agents[a.Name()]; !exists {
		o.order = append(o.order, a.Name())
	}
	o.agents[a.Name()] = a
	slog.Info("orchestrator.agent.registered", slog.String("agent", a.Name()))
}

// UnregisterAgent removes an agent by name.
func (o *Orchestrator) UnregisterAgent(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.agents[name]; !exists {
		return
	}
	delete(o.agents, name)
	for i, n := range o.order {
		if n == name {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	slog.Info("orchestrator.agent.unregistered", slog.String("agent", name))
}

// Agent returns a registered agent by name.
func (o *Orchestrator) Agent(name string) (core.Agent, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.agents[name]
	return a, ok
}

// defaultAgent returns the first-registered agent. A documented simple
// fallback, not a load-balancing policy.
func (o *Orchestrator) defaultAgent() (core.Agent, bool) {
	if len(o.order) == 0 {
		return nil, false
	}
	a, ok := o.agents[o.order[0]]
	return a, ok
}

// Submit adds a task to the queue and returns its id immediately. Tasks
// carrying an id that is already known are rejected rather than upserted.
func (o *Orchestrator) Submit(ctx context.Context, task *core.Task) (string, error) {
	if task.ID == "" {
		return "", errors.New(errors.CodeValidation, "task id is required", nil)
	}
	if _, exists := o.queue.Get(task.ID); exists {
		return "", errors.New(errors.CodeValidation, "duplicate task id", nil).
			WithContext("task_id", task.ID)
	}

	o.queue.Add(task)
	o.emitter.Emit(ctx, core.NewEvent(core.EventTaskSubmitted, task.AgentName, task.ID, nil))
	o.metrics.RecordSubmitted(ctx, string(task.Priority))
	slog.InfoContext(ctx, "orchestrator.task.submitted",
		slog.String("task_id", task.ID),
		slog.String("title", task.Title),
		slog.String("priority", string(task.Priority)),
	)
	o.signal()
	return task.ID, nil
}

// AssignTask creates and submits a task for a specific agent.
func (o *Orchestrator) AssignTask(ctx context.Context, description, agentName string, inputData map[string]any) (string, error) {
	task := core.NewTask(description, description)
	task.AgentName = agentName
	if inputData != nil {
		task.InputData = inputData
	}
	return o.Submit(ctx, task)
}

// resubmit returns a retried task to the queue. The task is already present
// in the queue map; flipping it back to pending is enough, the loop just
// needs a wake-up.
func (o *Orchestrator) resubmit(ctx context.Context, task *core.Task) {
	o.emitter.Emit(ctx, core.NewEvent(core.EventTaskRetried, task.AgentName, task.ID, map[string]any{
		"retry_count": task.RetryCount,
		"max_retries": task.MaxRetries,
	}))
	o.metrics.RecordRetried(ctx)
	slog.InfoContext(ctx, "orchestrator.task.retrying",
		slog.String("task_id", task.ID),
		slog.Int("attempt", task.RetryCount),
		slog.Int("max_retries", task.MaxRetries),
	)
	o.signal()
}

// signal wakes the dispatch loop without blocking.
func (o *Orchestrator) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Start launches the dispatch loop. It returns immediately; the loop runs
// until Stop is called or ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return errors.New(errors.CodeInvalidState, "orchestrator is already running", nil)
	}
	o.running = true
	o.done = make(chan struct{})
	o.mu.Unlock()

	slog.InfoContext(ctx, "orchestrator.started", slog.Int("max_concurrent_tasks", o.maxTasks))

	go o.loop(ctx)
	return nil
}

// loop is the single dispatcher: it admits pending tasks while capacity is
// available and sleeps on the wake channel otherwise. Submission, retry, and
// slot release all signal it; there is no fixed-interval polling.
func (o *Orchestrator) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Stop admitting; in-flight executions drain through Stop.
			o.mu.Lock()
			o.running = false
			o.mu.Unlock()
			return
		case <-o.done:
			return
		case <-o.wake:
		}

		for o.admitNext(ctx) {
		}
	}
}

// admitNext dispatches at most one pending task. Returns false when there is
// no capacity or nothing pending.
func (o *Orchestrator) admitNext(ctx context.Context) bool {
	o.mu.Lock()
	if !o.running || len(o.inflight) >= o.maxTasks {
		o.mu.Unlock()
		return false
	}

	task := o.queue.Next()
	if task == nil {
		o.mu.Unlock()
		return false
	}

	// Resolve the target agent while still under the lock so registry
	// mutations cannot race the dispatch decision.
	agent, resolveErr := o.resolveAgentLocked(task)
	if resolveErr != nil {
		o.mu.Unlock()
		o.failTask(ctx, task, resolveErr.Error(), false)
		return true
	}

	if err := task.Start(); err != nil {
		// Should be unreachable: Next only yields pending tasks.
		o.mu.Unlock()
		slog.ErrorContext(ctx, "orchestrator.task.start_failed",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
		return true
	}
	o.inflight[task.ID] = struct{}{}
	o.wg.Add(1)
	o.mu.Unlock()

	o.metrics.RecordStarted(ctx)
	o.emitter.Emit(ctx, core.NewEvent(core.EventTaskStarted, agent.Name(), task.ID, nil))

	go o.execute(ctx, agent, task)
	return true
}

// resolveAgentLocked picks the task's named agent or the default fallback.
func (o *Orchestrator) resolveAgentLocked(task *core.Task) (core.Agent, error) {
	if task.AgentName != "" {
		agent, ok := o.agents[task.AgentName]
		if !ok {
			return nil, errors.New(errors.CodeAgentNotFound, fmt.Sprintf("agent '%s' not found", task.AgentName), nil).
				WithContext("task_id", task.ID)
		}
		return agent, nil
	}

	agent, ok := o.defaultAgent()
	if !ok {
		return nil, errors.New(errors.CodeAgentNotFound, "no agents available", nil).
			WithContext("task_id", task.ID)
	}
	task.SetAgent(agent.Name())
	return agent, nil
}

// execute runs one task to a terminal or retried-pending state.
func (o *Orchestrator) execute(ctx context.Context, agent core.Agent, task *core.Task) {
	defer o.release(ctx, task.ID)

	ctx, runID := core.EnsureRunID(ctx)
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Execute", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.priority", string(task.Priority)),
		attribute.String("agent.name", agent.Name()),
	))
	defer span.End()

	slog.InfoContext(ctx, "orchestrator.task.executing",
		slog.String("task_id", task.ID),
		slog.String("agent", agent.Name()),
		slog.String("run_id", runID),
	)

	result, err := agent.ExecuteTask(ctx, task)
	if err != nil {
		o.handleFailure(ctx, agent, task, err)
		return
	}

	task.Complete(result)
	agent.RecordTask(task)
	if d, ok := task.Duration(); ok {
		o.metrics.RecordCompleted(ctx, d)
	}
	o.emitter.Emit(ctx, core.NewEvent(core.EventTaskCompleted, agent.Name(), task.ID, nil))
	o.archiveTask(ctx, task)
	slog.InfoContext(ctx, "orchestrator.task.completed",
		slog.String("task_id", task.ID),
		slog.String("agent", agent.Name()),
	)
}

// handleFailure transitions a task to failed and applies the retry policy.
func (o *Orchestrator) handleFailure(ctx context.Context, agent core.Agent, task *core.Task, err error) {
	msg := fmt.Sprintf("task execution failed: %v", err)
	task.Fail(msg)
	agent.RecordTask(task)
	o.metrics.RecordFailed(ctx, string(errors.AsConductorError(err).Code))
	o.emitter.Emit(ctx, core.NewEvent(core.EventTaskFailed, agent.Name(), task.ID, map[string]any{
		"error": msg,
	}))
	slog.ErrorContext(ctx, "orchestrator.task.failed",
		slog.String("task_id", task.ID),
		slog.String("agent", agent.Name()),
		slog.String("error", msg),
	)

	// Routing and validation failures are configuration errors; retrying
	// them cannot succeed.
	if ce, ok := err.(*errors.ConductorError); ok && !ce.Recoverable {
		o.archiveTask(ctx, task)
		return
	}

	if task.Retry() {
		o.resubmit(ctx, task)
		return
	}
	o.archiveTask(ctx, task)
}

// failTask marks a task failed outside the execution path (routing errors).
func (o *Orchestrator) failTask(ctx context.Context, task *core.Task, msg string, retry bool) {
	task.Fail(msg)
	o.metrics.RecordFailed(ctx, string(errors.CodeAgentNotFound))
	o.emitter.Emit(ctx, core.NewEvent(core.EventTaskFailed, task.AgentName, task.ID, map[string]any{
		"error": msg,
	}))
	slog.ErrorContext(ctx, "orchestrator.task.failed",
		slog.String("task_id", task.ID),
		slog.String("error", msg),
	)
	if retry && task.Retry() {
		o.resubmit(ctx, task)
		return
	}
	o.archiveTask(ctx, task)
}

// release reaps a finished execution so its capacity slot becomes available.
func (o *Orchestrator) release(ctx context.Context, taskID string) {
	o.mu.Lock()
	delete(o.inflight, taskID)
	o.mu.Unlock()
	o.metrics.RecordReleased(ctx)
	o.wg.Done()
	o.signal()
}

func (o *Orchestrator) archiveTask(ctx context.Context, task *core.Task) {
	if o.archive == nil {
		return
	}
	if err := o.archive.Record(ctx, task); err != nil {
		slog.WarnContext(ctx, "orchestrator.archive.record_failed",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Stop deactivates the loop and waits for in-flight executions to reach a
// terminal state.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.running = false
		close(o.done)
	}
	inflight := len(o.inflight)
	o.mu.Unlock()

	if inflight > 0 {
		slog.InfoContext(ctx, "orchestrator.stopping",
			slog.Int("inflight", inflight),
		)
	}
	o.wg.Wait()
	slog.InfoContext(ctx, "orchestrator.stopped")
	return nil
}

// Cancel cancels a pending task. Cancelling a task that is already in
// progress is unsupported.
func (o *Orchestrator) Cancel(ctx context.Context, taskID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	task, ok := o.queue.Get(taskID)
	if !ok {
		return errors.New(errors.CodeValidation, "unknown task id", nil).
			WithContext("task_id", taskID)
	}
	// Pending tasks cannot be started concurrently: dispatch admission also
	// runs under o.mu.
	if status := task.Snapshot().Status; status != core.TaskStatusPending {
		return errors.New(errors.CodeInvalidState, "only pending tasks can be cancelled", nil).
			WithContext("task_id", taskID).
			WithContext("status", string(status))
	}
	task.Cancel()
	o.emitter.Emit(ctx, core.NewEvent(core.EventTaskCancelled, task.AgentName, task.ID, nil))
	return nil
}

// TaskStatus returns a snapshot of a task by id.
func (o *Orchestrator) TaskStatus(taskID string) (core.Task, bool) {
	task, ok := o.queue.Get(taskID)
	if !ok {
		return core.Task{}, false
	}
	return task.Snapshot(), true
}

// Queue exposes the underlying task queue for filtered views.
func (o *Orchestrator) Queue() *core.TaskQueue { return o.queue }

// ClearCompleted prunes completed and cancelled tasks from the queue, and
// from the archive when one is attached.
func (o *Orchestrator) ClearCompleted(ctx context.Context, olderThan time.Duration) (int, error) {
	removed := o.queue.ClearCompleted(olderThan)
	if o.archive != nil {
		if err := o.archive.Prune(ctx, olderThan); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// AgentInfo is the introspection view of a registered agent.
type AgentInfo struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	CapabilityCount int             `json:"capability_count"`
	Stats           core.AgentStats `json:"stats"`
}

// ListAgents returns all registered agents in registration order.
func (o *Orchestrator) ListAgents() []AgentInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]AgentInfo, 0, len(o.order))
	for _, name := range o.order {
		a := o.agents[name]
		out = append(out, AgentInfo{
			Name:            a.Name(),
			Description:     a.Description(),
			CapabilityCount: len(a.Capabilities()),
			Stats:           a.Stats(),
		})
	}
	return out
}

// Stats is the aggregate orchestrator view.
type Stats struct {
	RegisteredAgents   int             `json:"registered_agents"`
	TotalTasks         int             `json:"total_tasks"`
	PendingTasks       int             `json:"pending_tasks"`
	ActiveTasks        int             `json:"active_tasks"`
	MaxConcurrentTasks int             `json:"max_concurrent_tasks"`
	Running            bool            `json:"is_running"`
	Queue              core.QueueStats `json:"queue_stats"`
	Agents             []AgentInfo     `json:"agents"`
}

// Stats returns orchestrator statistics.
func (o *Orchestrator) Stats() Stats {
	queueStats := o.queue.Stats()

	o.mu.Lock()
	active := len(o.inflight)
	running := o.running
	agents := len(o.agents)
	o.mu.Unlock()

	return Stats{
		RegisteredAgents:   agents,
		TotalTasks:         queueStats.Total,
		PendingTasks:       queueStats.Pending,
		ActiveTasks:        active,
		MaxConcurrentTasks: o.maxTasks,
		Running:            running,
		Queue:              queueStats,
		Agents:             o.ListAgents(),
	}
}
