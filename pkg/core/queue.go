package core

import (
	"sort"
	"sync"
	"time"
)

// TaskQueue holds tasks by id and yields the next eligible one by
// priority-then-age ordering. Safe for concurrent use.
type TaskQueue struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewTaskQueue creates an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{tasks: make(map[string]*Task)}
}

// Add inserts or overwrites a task by id.
func (q *TaskQueue) Add(task *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks[task.ID] = task
}

// Get returns a task by id.
func (q *TaskQueue) Get(id string) (*Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	task, ok := q.tasks[id]
	return task, ok
}

// Remove deletes a task by id.
func (q *TaskQueue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.tasks, id)
}

// Len returns the total number of tasks held, regardless of status.
func (q *TaskQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tasks)
}

// Next returns the pending task with the lowest priority rank, breaking ties
// by creation time (strict FIFO within a priority band). It does not mutate
// status; the caller must Start the task. Returns nil if nothing is pending.
func (q *TaskQueue) Next() *Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var best *Task
	for _, task := range q.tasks {
		if task.currentStatus() != TaskStatusPending {
			continue
		}
		if best == nil || before(task, best) {
			best = task
		}
	}
	return best
}

// before orders a ahead of b for dispatch.
func before(a, b *Task) bool {
	ra, rb := a.Priority.Rank(), b.Priority.Rank()
	if ra != rb {
		return ra < rb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	// Equal timestamps are possible under concurrent submission; fall back
	// to id ordering so repeated calls stay deterministic.
	return a.ID < b.ID
}

// ByStatus returns all tasks with the given status, oldest first.
func (q *TaskQueue) ByStatus(status TaskStatus) []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []*Task
	for _, task := range q.tasks {
		if task.currentStatus() == status {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i], out[j]) })
	return out
}

// ByAgent returns all tasks assigned to the named agent.
func (q *TaskQueue) ByAgent(agentName string) []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []*Task
	for _, task := range q.tasks {
		if task.Snapshot().AgentName == agentName {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i], out[j]) })
	return out
}

// QueueStats summarizes queue contents.
type QueueStats struct {
	Total     int                `json:"total_tasks"`
	ByStatus  map[TaskStatus]int `json:"status_breakdown"`
	Pending   int                `json:"pending_tasks"`
	InFlight  int                `json:"in_progress_tasks"`
	Completed int                `json:"completed_tasks"`
	Failed    int                `json:"failed_tasks"`
}

// Stats returns counts per status plus total.
func (q *TaskQueue) Stats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := QueueStats{
		Total:    len(q.tasks),
		ByStatus: make(map[TaskStatus]int),
	}
	for _, s := range []TaskStatus{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled} {
		stats.ByStatus[s] = 0
	}
	for _, task := range q.tasks {
		stats.ByStatus[task.currentStatus()]++
	}
	stats.Pending = stats.ByStatus[TaskStatusPending]
	stats.InFlight = stats.ByStatus[TaskStatusInProgress]
	stats.Completed = stats.ByStatus[TaskStatusCompleted]
	stats.Failed = stats.ByStatus[TaskStatusFailed]
	return stats
}

// ClearCompleted removes completed and cancelled tasks, optionally only those
// whose completion age exceeds olderThan. Returns the number removed.
func (q *TaskQueue) ClearCompleted(olderThan time.Duration) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	removed := 0
	for id, task := range q.tasks {
		snap := task.Snapshot()
		if snap.Status != TaskStatusCompleted && snap.Status != TaskStatusCancelled {
			continue
		}
		if olderThan > 0 {
			if snap.CompletedAt.IsZero() || now.Sub(snap.CompletedAt) <= olderThan {
				continue
			}
		}
		delete(q.tasks, id)
		removed++
	}
	return removed
}
