package agent

import (
	"context"
	"fmt"
	"sort"

	"github.com/stewardhq/steward/src/approval"
)

// ToolExecutor is a function type for tool execution.
type ToolExecutor func(ctx context.Context, call *ToolCall) (*ToolResponse, error)

// ToolMiddleware wraps a ToolExecutor to add functionality.
type ToolMiddleware func(next ToolExecutor) ToolExecutor

// Toolbox holds the tools exposed to one agent profile.
type Toolbox struct {
	tools      map[string]Tool
	middleware []ToolMiddleware
}

// NewToolbox creates an empty toolbox.
func NewToolbox() *Toolbox {
	return &Toolbox{tools: make(map[string]Tool)}
}

// NewToolboxForProfile registers the given tools, omitting any whose
// approval state on the profile is never. Disabled tools are not merely
// blocked at call time; the agent never sees them.
func NewToolboxForProfile(profile *approval.Profile, tools ...Tool) (*Toolbox, error) {
	tb := NewToolbox()
	for _, tool := range tools {
		if profile.StateFor(ToolID(tool)) == approval.StateNever {
			continue
		}
		if err := tb.RegisterTool(tool); err != nil {
			return nil, err
		}
	}
	return tb, nil
}

// RegisterTool registers a tool.
func (tb *Toolbox) RegisterTool(tool Tool) error {
	if tool.GetName() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := tb.tools[tool.GetName()]; exists {
		return fmt.Errorf("tool %s is already registered", tool.GetName())
	}
	tb.tools[tool.GetName()] = tool
	return nil
}

// RegisterMiddleware registers middleware applied to all tool executions,
// first registered = outermost layer.
func (tb *Toolbox) RegisterMiddleware(middleware ToolMiddleware) {
	tb.middleware = append(tb.middleware, middleware)
}

// Tools returns the registered tools sorted by name.
func (tb *Toolbox) Tools() []Tool {
	out := make([]Tool, 0, len(tb.tools))
	for _, tool := range tb.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

// GetTool returns a specific tool by name.
func (tb *Toolbox) GetTool(name string) (Tool, bool) {
	tool, exists := tb.tools[name]
	return tool, exists
}

// HasTool checks if a tool is available.
func (tb *Toolbox) HasTool(name string) bool {
	_, exists := tb.tools[name]
	return exists
}

// ExecuteTool executes a tool call with the middleware chain applied.
func (tb *Toolbox) ExecuteTool(ctx context.Context, call *ToolCall) (*ToolResponse, error) {
	tool, exists := tb.tools[call.Name]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", call.Name)
	}

	executor := ToolExecutor(tool.Execute)
	for i := len(tb.middleware) - 1; i >= 0; i-- {
		executor = tb.middleware[i](executor)
	}

	return executor(ctx, call)
}

// LoggingMiddleware logs tool execution details.
func LoggingMiddleware(logger interface {
	Info(msg string, args ...any)
}) ToolMiddleware {
	return func(next ToolExecutor) ToolExecutor {
		return func(ctx context.Context, call *ToolCall) (*ToolResponse, error) {
			logger.Info("executing tool", "tool", call.Name, "params", string(call.Arguments))
			result, err := next(ctx, call)
			if err != nil {
				logger.Info("tool execution failed", "error", err)
			}
			return result, err
		}
	}
}
