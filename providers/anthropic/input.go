package anthropic

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	harmony "github.com/buchuleaf/harmony-cli"
)

// BuildParams converts a provider request to Messages params. Thinking is
// not replayed since the API requires signed thinking blocks. Consecutive
// tool results are merged into one user turn.
func BuildParams(req harmony.ProviderRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	var results []anthropic.ContentBlockParamUnion
	flush := func() {
		if len(results) > 0 {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, msg := range req.History {
		switch m := msg.(type) {
		case harmony.UserMessage:
			flush()
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text())))
		case harmony.AssistantMessage:
			flush()
			if blocks := assistantBlocks(m); len(blocks) > 0 {
				params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))
			}
		case harmony.ToolResultMessage:
			results = append(results, anthropic.NewToolResultBlock(m.CallID, m.Text(), m.IsError))
		}
	}
	flush()

	for _, spec := range req.Tools {
		params.Tools = append(params.Tools, convertToolSpec(spec))
	}
	return params
}

func assistantBlocks(m harmony.AssistantMessage) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	if text := m.Text(); text != "" {
		blocks = append(blocks, anthropic.NewTextBlock(text))
	}
	for _, tc := range m.ToolCalls() {
		input := json.RawMessage("{}")
		if json.Valid([]byte(tc.Arguments)) {
			input = json.RawMessage(tc.Arguments)
		}
		blocks = append(blocks, anthropic.NewToolUseBlock(tc.CallID, input, tc.Name))
	}
	return blocks
}

func convertToolSpec(spec harmony.ToolSpec) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{Properties: spec.Parameters["properties"]}
	switch req := spec.Parameters["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
		Name:        spec.Name,
		Description: anthropic.String(spec.Description),
		InputSchema: schema,
	}}
}
