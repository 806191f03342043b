package router

import (
	"context"

	"github.com/protean-labs/conductor/pkg/agent"
	"github.com/protean-labs/conductor/pkg/core"
	"github.com/protean-labs/conductor/pkg/memory"
)

// TaskFunc adapts the router into a structured-task executor, so a routing
// agent can run under the orchestrator. The task's input data may carry
// "message", "user_id", "file_data", and "history"; the message falls back
// to the task description.
func (r *Router) TaskFunc() agent.TaskFunc {
	return func(ctx context.Context, _ *agent.Agent, task *core.Task) (map[string]any, error) {
		req := Request{Input: task.Description}
		if msg, ok := task.InputData["message"].(string); ok && msg != "" {
			req.Input = msg
		}
		if userID, ok := task.InputData["user_id"].(string); ok {
			req.UserID = userID
		}
		if fd, ok := task.InputData["file_data"].(map[string]any); ok {
			req.FileData = fd
		}
		if history, ok := task.InputData["history"].([]memory.Message); ok {
			req.History = history
		}

		response := r.Route(ctx, req)
		return map[string]any{
			"response": response,
			"task_id":  task.ID,
		}, nil
	}
}
