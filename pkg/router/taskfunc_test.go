package router

import (
	"context"
	"strings"
	"testing"

	"github.com/protean-labs/conductor/pkg/capability"
	"github.com/protean-labs/conductor/pkg/core"
	"github.com/protean-labs/conductor/pkg/llm"
)

func TestTaskFuncRoutesMessageFromInputData(t *testing.T) {
	var seen map[string]any
	probe := capability.NewFunc("todo_workflow", "records args",
		func(_ context.Context, args map[string]any) (any, error) {
			seen = args
			return map[string]any{"ok": true}, nil
		})
	provider := llm.NewScriptedProvider().AddResponse("All done!")
	r := testRouter(t, provider, []*capability.Base{probe}, []Intent{
		{Name: "todo", Capability: "todo_workflow", Keywords: []string{"task"}},
	})

	task := core.NewTask("route message", "fallback description")
	task.InputData = map[string]any{
		"message": "extract my tasks",
		"user_id": "u-3",
	}

	out, err := r.TaskFunc()(context.Background(), nil, task)
	if err != nil {
		t.Fatal(err)
	}
	if out["task_id"] != task.ID {
		t.Errorf("task_id = %v", out["task_id"])
	}
	if resp, _ := out["response"].(string); !strings.Contains(resp, "All done!") {
		t.Errorf("response = %v", out["response"])
	}
	if seen["chat_input"] != "extract my tasks" || seen["user_id"] != "u-3" {
		t.Errorf("dispatch args = %v", seen)
	}
}

func TestTaskFuncFallsBackToDescription(t *testing.T) {
	provider := llm.NewScriptedProvider().AddResponse("Happy to chat.")
	r := testRouter(t, provider, nil, []Intent{calendarIntent()})

	task := core.NewTask("chat", "how is it going")
	out, err := r.TaskFunc()(context.Background(), nil, task)
	if err != nil {
		t.Fatal(err)
	}
	if resp, _ := out["response"].(string); !strings.Contains(resp, "Happy to chat.") {
		t.Errorf("response = %v", out["response"])
	}
	prompts := provider.Prompts()
	if len(prompts) != 1 || !strings.Contains(prompts[0], "how is it going") {
		t.Errorf("prompts = %v", prompts)
	}
}
