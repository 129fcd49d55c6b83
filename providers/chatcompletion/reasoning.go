package chatcompletion

import (
	"strings"

	harmony "github.com/buchuleaf/harmony-cli"
	"github.com/tidwall/gjson"
)

// ReasoningField is the delta field llama.cpp and vLLM use for the
// analysis channel when they parse Harmony server-side.
const ReasoningField = "reasoning_content"

// reasoningFields are checked in order on each streamed delta.
var reasoningFields = []string{"choices.0.delta.reasoning_content", "choices.0.delta.reasoning"}

// ReasoningHandler maps reasoning between the wire and ThinkingParts.
type ReasoningHandler interface {
	// ConvertThinkingToExtra returns the extra assistant field that replays
	// thinking, or an empty key to drop it.
	ConvertThinkingToExtra(parts []harmony.ThinkingPart) (key string, value any)
	// ExtractThinking returns the reasoning text of one raw chunk.
	ExtractThinking(chunk []byte) string
}

// NoOpReasoningHandler ignores reasoning in both directions.
type NoOpReasoningHandler struct{}

func (NoOpReasoningHandler) ConvertThinkingToExtra([]harmony.ThinkingPart) (string, any) {
	return "", nil
}

func (NoOpReasoningHandler) ExtractThinking([]byte) string { return "" }

// DefaultReasoningHandler reads reasoning_content or reasoning and replays
// thinking as reasoning_content.
type DefaultReasoningHandler struct{}

func (DefaultReasoningHandler) ConvertThinkingToExtra(parts []harmony.ThinkingPart) (string, any) {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Thinking)
	}
	if b.Len() == 0 {
		return "", nil
	}
	return ReasoningField, b.String()
}

func (DefaultReasoningHandler) ExtractThinking(chunk []byte) string {
	for _, path := range reasoningFields {
		if r := gjson.GetBytes(chunk, path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}
