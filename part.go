package harmony

import "encoding/json"

// PartType describes the kind of content in a part.
type PartType string

const (
	PartText     PartType = "text"
	PartThinking PartType = "thinking"
	PartToolCall PartType = "tool_call"
)

// Part is a structured message fragment.
type Part interface {
	partType() PartType
}

// TextPart represents text content.
type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) partType() PartType { return PartText }

func (p TextPart) MarshalJSON() ([]byte, error) {
	type alias TextPart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		alias
	}{PartText, alias(p)})
}

// ThinkingPart holds reasoning streamed outside the content field
// (reasoning_content on llama.cpp/vLLM style servers).
type ThinkingPart struct {
	Thinking string `json:"thinking,omitempty"`
}

func (ThinkingPart) partType() PartType { return PartThinking }

func (p ThinkingPart) MarshalJSON() ([]byte, error) {
	type alias ThinkingPart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		alias
	}{PartThinking, alias(p)})
}

// ToolCallPart is a finalized tool call as recorded in the assistant message.
// Arguments is the raw string the model produced and may not be valid JSON.
type ToolCallPart struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func (ToolCallPart) partType() PartType { return PartToolCall }

func (p ToolCallPart) MarshalJSON() ([]byte, error) {
	type alias ToolCallPart
	return json.Marshal(struct {
		Type PartType `json:"type"`
		alias
	}{PartToolCall, alias(p)})
}
