// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TaskMetrics tracks the task lifecycle: submissions, completions, failures,
// retries, and the in-flight gauge. All methods are safe on a nil receiver so
// callers never need to guard instrumentation sites.
type TaskMetrics struct {
	submitted metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	retried   metric.Int64Counter
	inflight  metric.Int64UpDownCounter
	duration  metric.Float64Histogram
}

// NewTaskMetrics creates task lifecycle instruments on the global meter.
func NewTaskMetrics() (*TaskMetrics, error) {
	meter := otel.Meter("conductor/tasks")

	submitted, err := meter.Int64Counter(
		"conductor.tasks.submitted",
		metric.WithDescription("Tasks submitted to the orchestrator, by priority"),
	)
	if err != nil {
		return nil, err
	}

	completed, err := meter.Int64Counter(
		"conductor.tasks.completed",
		metric.WithDescription("Tasks that reached the completed state"),
	)
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter(
		"conductor.tasks.failed",
		metric.WithDescription("Task failures by error code, counting each attempt"),
	)
	if err != nil {
		return nil, err
	}

	retried, err := meter.Int64Counter(
		"conductor.tasks.retried",
		metric.WithDescription("Failed tasks returned to the queue for another attempt"),
	)
	if err != nil {
		return nil, err
	}

	inflight, err := meter.Int64UpDownCounter(
		"conductor.tasks.inflight",
		metric.WithDescription("Tasks currently executing"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"conductor.tasks.duration",
		metric.WithDescription("Task execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &TaskMetrics{
		submitted: submitted,
		completed: completed,
		failed:    failed,
		retried:   retried,
		inflight:  inflight,
		duration:  duration,
	}, nil
}

// RecordSubmitted counts a task submission.
func (tm *TaskMetrics) RecordSubmitted(ctx context.Context, priority string) {
	if tm == nil {
		return
	}
	tm.submitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task.priority", priority),
	))
}

// RecordStarted raises the in-flight gauge.
func (tm *TaskMetrics) RecordStarted(ctx context.Context) {
	if tm == nil {
		return
	}
	tm.inflight.Add(ctx, 1)
}

// RecordReleased drops the in-flight gauge, matching RecordStarted.
func (tm *TaskMetrics) RecordReleased(ctx context.Context) {
	if tm == nil {
		return
	}
	tm.inflight.Add(ctx, -1)
}

// RecordCompleted counts a completion and records its duration.
func (tm *TaskMetrics) RecordCompleted(ctx context.Context, d time.Duration) {
	if tm == nil {
		return
	}
	tm.completed.Add(ctx, 1)
	tm.duration.Record(ctx, d.Seconds())
}

// RecordFailed counts a failed attempt by error code. Routing failures count
// here too even though they never entered execution.
func (tm *TaskMetrics) RecordFailed(ctx context.Context, errorCode string) {
	if tm == nil {
		return
	}
	tm.failed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", errorCode),
	))
}

// RecordRetried counts a retry resubmission.
func (tm *TaskMetrics) RecordRetried(ctx context.Context) {
	if tm == nil {
		return
	}
	tm.retried.Add(ctx, 1)
}

// CapabilityMetrics tracks capability invocation outcomes.
type CapabilityMetrics struct {
	invocations metric.Int64Counter
	latency     metric.Float64Histogram
}

// NewCapabilityMetrics creates capability instruments on the global meter.
func NewCapabilityMetrics() (*CapabilityMetrics, error) {
	meter := otel.Meter("conductor/capabilities")

	invocations, err := meter.Int64Counter(
		"conductor.capabilities.invocations",
		metric.WithDescription("Capability invocations by name and outcome"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram(
		"conductor.capabilities.latency",
		metric.WithDescription("Capability invocation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &CapabilityMetrics{invocations: invocations, latency: latency}, nil
}

// RecordInvocation counts one capability run.
func (cm *CapabilityMetrics) RecordInvocation(ctx context.Context, name string, success bool, d time.Duration) {
	if cm == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	attrs := metric.WithAttributes(
		attribute.String("capability.name", name),
		attribute.String("outcome", outcome),
	)
	cm.invocations.Add(ctx, 1, attrs)
	cm.latency.Record(ctx, d.Seconds(), attrs)
}
