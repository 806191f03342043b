package capability

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/protean-labs/conductor/pkg/core"
	"github.com/protean-labs/conductor/pkg/errors"
)

// MCPCaller abstracts MCP tool execution so capabilities can be built from
// any connected MCP client.
type MCPCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// NewMCP wraps an MCP tool definition as a capability. Required fields from
// the tool's input schema become required parameters, so the shared Run
// boundary enforces them before the call goes out.
func NewMCP(tool mcp.Tool, caller MCPCaller, opts ...Option) (*Base, error) {
	if tool.Name == "" {
		return nil, errors.New(errors.CodeValidation, "mcp tool name is required", nil)
	}
	if caller == nil {
		return nil, errors.New(errors.CodeValidation, "mcp caller is required", nil)
	}

	params := paramsFromSchema(tool)
	inv := &mcpInvoker{tool: tool, caller: caller}
	allOpts := append([]Option{WithParams(params...)}, opts...)
	return New(tool.Name, tool.Description, inv, allOpts...), nil
}

// NewMCPSet wraps every tool of a connected MCP server.
func NewMCPSet(tools []mcp.Tool, caller MCPCaller, opts ...Option) ([]*Base, error) {
	out := make([]*Base, 0, len(tools))
	for _, tool := range tools {
		cap, err := NewMCP(tool, caller, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, cap)
	}
	return out, nil
}

type mcpInvoker struct {
	tool   mcp.Tool
	caller MCPCaller
}

func (m *mcpInvoker) Invoke(ctx context.Context, args map[string]any) (any, error) {
	result, err := m.caller.CallTool(ctx, m.tool.Name, args)
	if err != nil {
		return nil, errors.New(errors.CodeCapabilityFailure, "mcp tool call failed", err).
			WithContext("tool", m.tool.Name)
	}
	return mcpResultToOutput(result)
}

func mcpResultToOutput(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, errors.New(errors.CodeCapabilityFailure, "mcp tool result is nil", nil)
	}

	if result.IsError {
		return nil, errors.New(errors.CodeCapabilityFailure, "mcp tool returned error: "+extractTextContent(result.Content), nil)
	}

	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}

	if text := extractTextContent(result.Content); text != "" {
		return text, nil
	}

	return result, nil
}

func extractTextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// paramsFromSchema lifts an MCP input schema into ordered parameter specs.
func paramsFromSchema(tool mcp.Tool) []core.ParamSpec {
	schema := tool.InputSchema
	if schema.Type != "" && schema.Type != "object" {
		return nil
	}

	required := make(map[string]bool, len(schema.Required))
	for _, key := range schema.Required {
		required[key] = true
	}

	var params []core.ParamSpec
	for name, raw := range schema.Properties {
		spec := core.ParamSpec{Name: name, Type: "any", Required: required[name]}
		if prop, ok := raw.(map[string]any); ok {
			if t, ok := prop["type"].(string); ok {
				spec.Type = t
			}
			if d, ok := prop["description"].(string); ok {
				spec.Description = d
			}
			if def, ok := prop["default"]; ok {
				spec.Default = def
			}
		}
		params = append(params, spec)
	}
	return params
}
