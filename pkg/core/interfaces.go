package core

import "context"

// ParamSpec describes one parameter a capability accepts.
type ParamSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

// CapabilitySchema is the discovery/introspection view of a capability.
type CapabilitySchema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []ParamSpec `json:"parameters"`
}

// CapabilityResult is the uniform outcome of a capability run. Failures are
// data, never control flow: Error is a non-empty string when Success is false.
type CapabilityResult struct {
	Success    bool   `json:"success"`
	Output     any    `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	Capability string `json:"capability"`
}

// Capability is a named, stateful unit of work an agent can perform.
// Run must never propagate a raw error past its boundary.
type Capability interface {
	Name() string
	Description() string
	Schema() CapabilitySchema
	Run(ctx context.Context, args map[string]any) CapabilityResult
}

// Memory stores and retrieves conversational context for agents.
type Memory interface {
	// Record appends an input/output turn.
	Record(ctx context.Context, inputText, outputText string, metadata map[string]any) error
	// Recall returns turns relevant to the query, most recent last.
	Recall(ctx context.Context, query string, limit int) ([]Turn, error)
	// Clear empties the store.
	Clear(ctx context.Context) error
}

// Turn is one recorded interaction.
type Turn struct {
	Input     string         `json:"input"`
	Output    string         `json:"output"`
	Content   string         `json:"content"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Agent is the minimal executable unit the orchestrator dispatches to.
type Agent interface {
	Name() string
	Description() string
	Capabilities() []Capability
	// Process answers free text. Generation failures are converted to a
	// user-facing string, never returned as an error.
	Process(ctx context.Context, input string, extra map[string]any) string
	// ExecuteTask runs a structured task and returns its result. It must not
	// mutate task status; lifecycle transitions belong to the orchestrator.
	ExecuteTask(ctx context.Context, task *Task) (map[string]any, error)
	// RecordTask appends a finished task to the agent's history.
	RecordTask(task *Task)
	// Stats summarizes the agent's task history.
	Stats() AgentStats
}

// AgentStats is derived from an agent's historical task list.
type AgentStats struct {
	Name            string  `json:"name"`
	TotalTasks      int     `json:"total_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	FailedTasks     int     `json:"failed_tasks"`
	SuccessRate     float64 `json:"success_rate"`
	CapabilityCount int     `json:"capability_count"`
}
