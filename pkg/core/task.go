package core

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/protean-labs/conductor/pkg/errors"
)

// TaskStatus describes the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions
// (a failed task with retry budget left is not terminal).
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// TaskPriority orders tasks for dispatch. Lower rank dispatches first.
type TaskPriority string

const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityMedium   TaskPriority = "medium"
	PriorityLow      TaskPriority = "low"
)

// Rank maps a priority to its dispatch order. Unknown priorities sort last.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Task represents a first-class unit of work in Conductor.
//
// Identity fields (ID, Title, Description, Priority, InputData, CreatedAt,
// MaxRetries) are set by the submitter before dispatch and not written
// afterwards. Lifecycle fields are written by the owning dispatch and read
// concurrently by introspection callers; a per-task lock shared by all
// lifecycle methods and Snapshot guards both sides. Create tasks with
// NewTask so the lock exists.
type Task struct {
	ID          string         `json:"task_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	AgentName   string         `json:"agent_name,omitempty"`
	Status      TaskStatus     `json:"status"`
	Priority    TaskPriority   `json:"priority"`
	InputData   map[string]any `json:"input_data"`
	OutputData  map[string]any `json:"output_data,omitempty"`
	ErrorMsg    string         `json:"error_message,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   time.Time      `json:"started_at,omitzero"`
	CompletedAt time.Time      `json:"completed_at,omitzero"`
	RetryCount  int            `json:"retry_count"`
	MaxRetries  int            `json:"max_retries"`
	ParentID    string         `json:"parent_task_id,omitempty"`
	ChildIDs    []string       `json:"child_task_ids,omitempty"`

	// Shared by copies so a snapshot never observes a half-written
	// transition. Nil on zero-value tasks and detached snapshots.
	mu *sync.Mutex
}

// NewTask creates a pending task with a generated ID and default retry budget.
func NewTask(title, description string) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Status:      TaskStatusPending,
		Priority:    PriorityMedium,
		InputData:   make(map[string]any),
		CreatedAt:   time.Now().UTC(),
		MaxRetries:  3,
		mu:          &sync.Mutex{},
	}
}

func (t *Task) lock() {
	if t.mu != nil {
		t.mu.Lock()
	}
}

func (t *Task) unlock() {
	if t.mu != nil {
		t.mu.Unlock()
	}
}

// Start transitions the task from Pending to InProgress and records StartedAt.
// Calling Start on a non-pending task is a contract violation.
func (t *Task) Start() error {
	t.lock()
	defer t.unlock()
	if t.Status != TaskStatusPending {
		return errors.New(errors.CodeInvalidState, "task is not pending", nil).
			WithContext("task_id", t.ID).
			WithContext("status", string(t.Status))
	}
	t.Status = TaskStatusInProgress
	if t.StartedAt.IsZero() {
		t.StartedAt = time.Now().UTC()
	}
	return nil
}

// Complete transitions the task to Completed, storing the output.
func (t *Task) Complete(output map[string]any) {
	t.lock()
	defer t.unlock()
	t.Status = TaskStatusCompleted
	t.OutputData = output
	t.CompletedAt = time.Now().UTC()
}

// Fail transitions the task to Failed, storing the error message.
func (t *Task) Fail(message string) {
	t.lock()
	defer t.unlock()
	t.Status = TaskStatusFailed
	t.ErrorMsg = message
	t.CompletedAt = time.Now().UTC()
}

// Cancel transitions the task to Cancelled.
func (t *Task) Cancel() {
	t.lock()
	defer t.unlock()
	t.Status = TaskStatusCancelled
	t.CompletedAt = time.Now().UTC()
}

// Retry returns the task to Pending if the retry budget permits.
// Returns false, leaving the task Failed, once the budget is exhausted.
func (t *Task) Retry() bool {
	t.lock()
	defer t.unlock()
	if t.RetryCount >= t.MaxRetries {
		return false
	}
	t.RetryCount++
	t.Status = TaskStatusPending
	t.ErrorMsg = ""
	t.CompletedAt = time.Time{}
	return true
}

// Duration returns CompletedAt-StartedAt when both are set.
func (t *Task) Duration() (time.Duration, bool) {
	t.lock()
	defer t.unlock()
	if t.StartedAt.IsZero() || t.CompletedAt.IsZero() {
		return 0, false
	}
	return t.CompletedAt.Sub(t.StartedAt), true
}

// SetAgent records the agent resolved to execute this task.
func (t *Task) SetAgent(name string) {
	t.lock()
	defer t.unlock()
	t.AgentName = name
}

// AddChild links a child task id, ignoring duplicates.
func (t *Task) AddChild(childID string) {
	t.lock()
	defer t.unlock()
	for _, id := range t.ChildIDs {
		if id == childID {
			return
		}
	}
	t.ChildIDs = append(t.ChildIDs, childID)
}

// Snapshot returns a shallow copy safe to hand to introspection callers.
// The copy is detached from the live task's lock.
func (t *Task) Snapshot() Task {
	t.lock()
	defer t.unlock()
	cp := *t
	cp.mu = nil
	return cp
}

// currentStatus reads the lifecycle state under the task's lock.
func (t *Task) currentStatus() TaskStatus {
	t.lock()
	defer t.unlock()
	return t.Status
}
