package harmony

import "time"

// DeltaKind describes the kind of a MessageDelta.
type DeltaKind string

const (
	DeltaStep     DeltaKind = "step"
	DeltaThinking DeltaKind = "thinking"
	DeltaText     DeltaKind = "text"
	DeltaToolCall DeltaKind = "tool_call"
	DeltaToolExec DeltaKind = "tool_exec"
)

// MessageDelta is a streaming-only update.
// It must never be appended into the conversation history.
type MessageDelta interface {
	deltaKind() DeltaKind
}

// ThinkingDelta streams reasoning content.
type ThinkingDelta struct {
	Delta string
}

func (ThinkingDelta) deltaKind() DeltaKind { return DeltaThinking }

// TextDelta streams raw assistant content, Harmony tags included.
type TextDelta struct {
	Delta string
}

func (TextDelta) deltaKind() DeltaKind { return DeltaText }

// ToolCallDelta streams tool call construction. First is set on the first
// fragment seen for Index.
type ToolCallDelta struct {
	Index     int
	CallID    string
	Name      string
	ArgsDelta string
	First     bool
}

func (ToolCallDelta) deltaKind() DeltaKind { return DeltaToolCall }

// ToolExecStartDelta signals tool execution start with the full call info.
type ToolExecStartDelta struct {
	Call ToolCall
}

func (ToolExecStartDelta) deltaKind() DeltaKind { return DeltaToolExec }

// ToolExecEndDelta carries a finished tool's result and wall time.
type ToolExecEndDelta struct {
	Call     ToolCall
	Result   ToolResult
	Duration time.Duration
}

func (ToolExecEndDelta) deltaKind() DeltaKind { return DeltaToolExec }

// StepStatusDelta reports the end of the streaming phase of a step.
type StepStatusDelta struct {
	Interrupted bool
	Duration    time.Duration
	Usage       *Usage
	// Pending is the accumulator snapshot; for an interrupted step these
	// calls were never executed.
	Pending []PendingToolCall
}

func (StepStatusDelta) deltaKind() DeltaKind { return DeltaStep }
