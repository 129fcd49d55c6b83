package harmony

import (
	"encoding/json"
	"strings"
	"time"
)

// Role is the speaker role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// InterruptedNote is appended to assistant text cut short by the operator.
const InterruptedNote = "_[response interrupted by user]_"

// Message is the canonical conversation unit.
type Message interface {
	role() Role
}

// RoleOf returns the role of m.
func RoleOf(m Message) Role {
	if m == nil {
		return ""
	}
	return m.role()
}

// UserMessage represents operator input. The Harmony developer message is
// sent as a user message too.
type UserMessage struct {
	Parts     []Part `json:"parts,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewUserMessage builds a single-text user message.
func NewUserMessage(text string) UserMessage {
	return UserMessage{Parts: []Part{TextPart{Text: text}}, Timestamp: time.Now().UnixMilli()}
}

func (UserMessage) role() Role { return RoleUser }

// Text joins the message's text parts.
func (m UserMessage) Text() string { return joinText(m.Parts) }

func (m UserMessage) MarshalJSON() ([]byte, error) {
	type alias UserMessage
	return json.Marshal(struct {
		Role Role `json:"role"`
		alias
	}{RoleUser, alias(m)})
}

// AssistantMessage represents one streamed assistant response.
type AssistantMessage struct {
	Parts       []Part     `json:"parts,omitempty"`
	Timestamp   int64      `json:"timestamp"`
	Usage       *Usage     `json:"usage,omitempty"`
	StopReason  StopReason `json:"stop_reason,omitempty"`
	Interrupted bool       `json:"interrupted,omitempty"`
}

func (AssistantMessage) role() Role { return RoleAssistant }

// Text joins the message's text parts.
func (m AssistantMessage) Text() string { return joinText(m.Parts) }

// ToolCalls returns the finalized tool calls in declaration order.
func (m AssistantMessage) ToolCalls() []ToolCallPart {
	var calls []ToolCallPart
	for _, p := range m.Parts {
		if tc, ok := p.(ToolCallPart); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

func (m AssistantMessage) MarshalJSON() ([]byte, error) {
	type alias AssistantMessage
	return json.Marshal(struct {
		Role Role `json:"role"`
		alias
	}{RoleAssistant, alias(m)})
}

// ToolResultMessage carries a tool's model rendering back to the endpoint.
// Display is kept for the operator and transcripts and is never sent.
type ToolResultMessage struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	IsError   bool   `json:"is_error,omitempty"`
	Parts     []Part `json:"parts,omitempty"`
	Display   string `json:"display,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (ToolResultMessage) role() Role { return RoleTool }

// Text joins the message's text parts.
func (m ToolResultMessage) Text() string { return joinText(m.Parts) }

func (m ToolResultMessage) MarshalJSON() ([]byte, error) {
	type alias ToolResultMessage
	return json.Marshal(struct {
		Role Role `json:"role"`
		alias
	}{RoleTool, alias(m)})
}

// StopReason explains why generation stopped.
type StopReason string

const (
	StopStop    StopReason = "stop"
	StopLength  StopReason = "length"
	StopToolUse StopReason = "tool_use"
	StopError   StopReason = "error"
	StopAborted StopReason = "aborted"
)

// Usage reports token accounting when the endpoint provides it.
type Usage struct {
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
	CachedReadTokens int `json:"cached_read_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func joinText(parts []Part) string {
	var b strings.Builder
	for _, p := range parts {
		if t, ok := p.(TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}
