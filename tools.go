package harmony

import (
	"context"
	"encoding/json"
)

// ToolSpec is the declarative tool schema exposed to the model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a finalized call handed to the executor.
type ToolCall struct {
	Index     int    `json:"index"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Part converts the call to its message representation.
func (c ToolCall) Part() ToolCallPart {
	return ToolCallPart{CallID: c.CallID, Name: c.Name, Arguments: c.Arguments}
}

// ToolResult is the dual rendering of one tool invocation. Model goes back
// to the endpoint, Display is shown to the operator.
type ToolResult struct {
	Model   string `json:"model"`
	Display string `json:"display"`
	IsError bool   `json:"is_error,omitempty"`
}

// Tool is an executable tool. Execute receives arguments that already
// passed schema validation.
type Tool interface {
	Spec() ToolSpec
	Execute(ctx context.Context, args json.RawMessage) (ToolResult, error)
}

// ToolFunc adapts a function to the Tool interface.
type ToolFunc struct {
	ToolSpec ToolSpec
	Fn       func(ctx context.Context, args json.RawMessage) (ToolResult, error)
}

func (t ToolFunc) Spec() ToolSpec { return t.ToolSpec }

func (t ToolFunc) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	return t.Fn(ctx, args)
}
