// Package agent defines the tool abstraction the execution pipeline runs:
// typed tools with generated JSON schemas, and the toolbox that registers
// them per profile.
package agent

import (
	"context"
	"encoding/json"

	jsonschema "github.com/swaggest/jsonschema-go"
)

// ToolCall is one model-issued request to invoke a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResponse is the outcome of executing a tool call.
type ToolResponse struct {
	Type    string `json:"type"`
	Content []byte `json:"content"`
	IsError bool   `json:"is_error"`
}

// Tool is the interface all tools implement.
type Tool interface {
	// GetGroup returns the tool group used for approval policy lookups.
	GetGroup() string

	// GetName returns the tool's name.
	GetName() string

	// GetDescription returns the tool's description.
	GetDescription() string

	// GetParameters returns the JSON schema for the tool's parameters.
	GetParameters() *jsonschema.Schema

	// Execute runs the tool. The response always describes the outcome,
	// including failures; the error return carries the underlying cause so
	// callers can classify timeouts and cancellations.
	Execute(ctx context.Context, call *ToolCall) (*ToolResponse, error)
}

// ToolID returns the "group:name" identifier used in approval profiles.
func ToolID(tool Tool) string {
	return tool.GetGroup() + ":" + tool.GetName()
}
