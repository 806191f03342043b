package capability

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

type fakeMCPCaller struct {
	result   *mcp.CallToolResult
	err      error
	lastName string
	lastArgs map[string]interface{}
}

func (f *fakeMCPCaller) CallTool(_ context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	f.lastName = name
	f.lastArgs = args
	return f.result, f.err
}

func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "web_search",
		Description: "Searches the web",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{"type": "string", "description": "Search query"},
				"limit": map[string]any{"type": "number", "default": float64(10)},
			},
			Required: []string{"query"},
		},
	}
}

func TestNewMCPRequiresNameAndCaller(t *testing.T) {
	if _, err := NewMCP(mcp.Tool{}, &fakeMCPCaller{}); err == nil {
		t.Error("expected error for unnamed tool")
	}
	if _, err := NewMCP(searchTool(), nil); err == nil {
		t.Error("expected error for nil caller")
	}
}

func TestMCPRunStructuredContent(t *testing.T) {
	caller := &fakeMCPCaller{
		result: &mcp.CallToolResult{
			StructuredContent: map[string]any{"hits": float64(3)},
		},
	}
	c, err := NewMCP(searchTool(), caller)
	if err != nil {
		t.Fatal(err)
	}

	result := c.Run(context.Background(), map[string]any{"query": "golang"})
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	out, ok := result.Output.(map[string]any)
	if !ok || out["hits"] != float64(3) {
		t.Errorf("output = %v", result.Output)
	}
	if caller.lastName != "web_search" || caller.lastArgs["query"] != "golang" {
		t.Errorf("call = %q %v", caller.lastName, caller.lastArgs)
	}
	// Schema defaults flow through the shared Run boundary.
	if caller.lastArgs["limit"] != float64(10) {
		t.Errorf("args = %v, want default limit applied", caller.lastArgs)
	}
}

func TestMCPRunEnforcesRequiredParams(t *testing.T) {
	caller := &fakeMCPCaller{result: &mcp.CallToolResult{}}
	c, err := NewMCP(searchTool(), caller)
	if err != nil {
		t.Fatal(err)
	}

	result := c.Run(context.Background(), map[string]any{})
	if result.Success {
		t.Fatal("missing required parameter must fail")
	}
	if !strings.Contains(result.Error, "missing required parameter") {
		t.Errorf("error = %q", result.Error)
	}
	if caller.lastName != "" {
		t.Error("tool must not be called when validation fails")
	}
}

func TestMCPRunToolError(t *testing.T) {
	caller := &fakeMCPCaller{
		result: &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "rate limited"}},
		},
	}
	c, err := NewMCP(searchTool(), caller)
	if err != nil {
		t.Fatal(err)
	}

	result := c.Run(context.Background(), map[string]any{"query": "golang"})
	if result.Success {
		t.Fatal("tool error must surface as failure")
	}
	if !strings.Contains(result.Error, "rate limited") {
		t.Errorf("error = %q", result.Error)
	}
}

func TestMCPRunTextContent(t *testing.T) {
	caller := &fakeMCPCaller{
		result: &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{Type: "text", Text: "first"},
				mcp.TextContent{Type: "text", Text: "second"},
			},
		},
	}
	c, err := NewMCP(searchTool(), caller)
	if err != nil {
		t.Fatal(err)
	}

	result := c.Run(context.Background(), map[string]any{"query": "golang"})
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if result.Output != "first\nsecond" {
		t.Errorf("output = %v", result.Output)
	}
}

func TestNewMCPSet(t *testing.T) {
	other := searchTool()
	other.Name = "web_fetch"
	caps, err := NewMCPSet([]mcp.Tool{searchTool(), other}, &fakeMCPCaller{result: &mcp.CallToolResult{}})
	if err != nil {
		t.Fatal(err)
	}
	if len(caps) != 2 || caps[0].Name() != "web_search" || caps[1].Name() != "web_fetch" {
		t.Errorf("caps = %v", caps)
	}
}
